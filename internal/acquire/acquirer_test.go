package acquire

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/clipflow/internal/clip"
)

type fakeDownloader struct {
	download *Download
	partial  bool
	err      error
	gotURL   string
}

func (f *fakeDownloader) Download(_ context.Context, rawURL, dir string) (*Download, error) {
	f.gotURL = rawURL
	if f.partial {
		_ = os.WriteFile(filepath.Join(dir, "abc.mp4.part"), []byte("half"), 0o644)
	}
	if f.err != nil {
		return nil, f.err
	}
	dl := *f.download
	dl.Path = filepath.Join(dir, filepath.Base(dl.Path))
	if err := os.WriteFile(dl.Path, []byte("remote-bytes"), 0o644); err != nil {
		return nil, err
	}
	return &dl, nil
}

func testEvent() clip.Event {
	return clip.Event{
		ID:         "m1",
		ChannelID:  "c1",
		AuthorID:   "u1",
		AuthorName: "alice",
		Link:       "https://discord.com/channels/g1/c1/m1",
	}
}

func newTestAcquirer(t *testing.T, dl Downloader) (*Acquirer, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "downloads")
	return New(Params{
		WorkDir:    dir,
		Extensions: []string{".mp4", "mov"},
		Downloader: dl,
		RateLimit:  20 * 1024 * 1024,
	}), dir
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestAcquireAttachment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("attachment-bytes"))
	}))
	defer srv.Close()

	a, dir := newTestAcquirer(t, nil)
	att := clip.Attachment{URL: srv.URL + "/attachments/1/2/clip.mp4", Filename: "clip.mp4"}

	c, err := a.Acquire(context.Background(), clip.Source{Kind: clip.KindAttachment, Attachment: &att}, testEvent())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "clip.mp4"), c.Path)
	data, err := os.ReadFile(c.Path)
	require.NoError(t, err)
	assert.Equal(t, "attachment-bytes", string(data))
	assert.Equal(t, "alice", c.Streamer)
	assert.Equal(t, "alice", c.Submitter)
	assert.Equal(t, "Discord Clip", c.Title)
	assert.Equal(t, "https://discord.com/channels/g1/c1/m1", c.Link)
	assert.Equal(t, []string{"clip.mp4"}, listDir(t, dir))
}

func TestAcquireAttachmentStripsDirectories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	a, dir := newTestAcquirer(t, nil)
	att := clip.Attachment{URL: srv.URL, Filename: "../../evil.MOV"}

	c, err := a.Acquire(context.Background(), clip.Source{Kind: clip.KindAttachment, Attachment: &att}, testEvent())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "evil.MOV"), c.Path)
}

func TestAcquireAttachmentUnsupportedExtension(t *testing.T) {
	a, dir := newTestAcquirer(t, nil)
	att := clip.Attachment{URL: "https://cdn.discordapp.com/x/notes.txt", Filename: "notes.txt"}

	_, err := a.Acquire(context.Background(), clip.Source{Kind: clip.KindAttachment, Attachment: &att}, testEvent())

	var acqErr *clip.AcquisitionError
	require.True(t, errors.As(err, &acqErr))
	assert.Equal(t, clip.ReasonUnsupportedExtension, acqErr.Reason)
	assert.Empty(t, listDir(t, dir))
}

func TestAcquireAttachmentFetchFailureLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	a, dir := newTestAcquirer(t, nil)
	att := clip.Attachment{URL: srv.URL + "/clip.mp4", Filename: "clip.mp4"}

	_, err := a.Acquire(context.Background(), clip.Source{Kind: clip.KindAttachment, Attachment: &att}, testEvent())

	var acqErr *clip.AcquisitionError
	require.True(t, errors.As(err, &acqErr))
	assert.Equal(t, clip.ReasonDownloadFailed, acqErr.Reason)
	assert.Empty(t, listDir(t, dir))
}

func TestAcquireRemoteMetadataFallback(t *testing.T) {
	tests := []struct {
		name         string
		download     Download
		wantStreamer string
		wantTitle    string
		wantLink     string
	}{
		{
			name:         "creator wins",
			download:     Download{ID: "abc", Path: "abc.mp4", Title: "ace", Creator: "creator", Channel: "channel", WebpageURL: "https://www.twitch.tv/x/clip/abc"},
			wantStreamer: "creator",
			wantTitle:    "ace",
			wantLink:     "https://www.twitch.tv/x/clip/abc",
		},
		{
			name:         "channel fallback",
			download:     Download{ID: "abc", Path: "abc.mp4", Channel: "channel", Uploader: "uploader"},
			wantStreamer: "channel",
			wantTitle:    "Untitled Clip",
			wantLink:     "https://youtu.be/abc",
		},
		{
			name:         "submitter fallback",
			download:     Download{ID: "abc", Path: "abc.mp4"},
			wantStreamer: "alice",
			wantTitle:    "Untitled Clip",
			wantLink:     "https://youtu.be/abc",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dl := &fakeDownloader{download: &tt.download}
			a, dir := newTestAcquirer(t, dl)

			c, err := a.Acquire(context.Background(), clip.Source{Kind: clip.KindRemoteURL, URL: "https://youtu.be/abc"}, testEvent())
			require.NoError(t, err)

			assert.Equal(t, "https://youtu.be/abc", dl.gotURL)
			assert.Equal(t, filepath.Join(dir, "abc.mp4"), c.Path)
			assert.Equal(t, tt.wantStreamer, c.Streamer)
			assert.Equal(t, tt.wantTitle, c.Title)
			assert.Equal(t, tt.wantLink, c.Link)
			assert.Equal(t, "alice", c.Submitter)
			assert.Equal(t, []string{"abc.mp4"}, listDir(t, dir))
		})
	}
}

func TestAcquireRemoteFailureLeavesNoFiles(t *testing.T) {
	dl := &fakeDownloader{partial: true, err: errors.New("ERROR: Unsupported URL")}
	a, dir := newTestAcquirer(t, dl)

	_, err := a.Acquire(context.Background(), clip.Source{Kind: clip.KindRemoteURL, URL: "https://youtu.be/abc"}, testEvent())

	var acqErr *clip.AcquisitionError
	require.True(t, errors.As(err, &acqErr))
	assert.Equal(t, clip.ReasonDownloadFailed, acqErr.Reason)
	assert.Empty(t, listDir(t, dir))
}
