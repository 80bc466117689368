// Package acquire turns a classified clip source into a file in the
// working directory.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/your-org/clipflow/internal/clip"
)

const (
	defaultRemoteTitle     = "Untitled Clip"
	defaultAttachmentTitle = "Discord Clip"
	stagingPrefix          = ".staging-"
)

// Acquirer produces exactly one local file per successful acquisition and
// none on failure.
type Acquirer struct {
	workDir    string
	extensions map[string]struct{}
	downloader Downloader
	httpClient *http.Client
	rateLimit  int64
	timeout    time.Duration
	logger     *zap.Logger
}

type Params struct {
	WorkDir    string
	Extensions []string
	Downloader Downloader
	HTTPClient *http.Client
	RateLimit  int64
	Timeout    time.Duration
	Logger     *zap.Logger
}

// New constructs an Acquirer.
func New(p Params) *Acquirer {
	exts := make(map[string]struct{}, len(p.Extensions))
	for _, ext := range p.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = struct{}{}
	}
	hc := p.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Acquirer{
		workDir:    p.WorkDir,
		extensions: exts,
		downloader: p.Downloader,
		httpClient: hc,
		rateLimit:  p.RateLimit,
		timeout:    p.Timeout,
		logger:     logger,
	}
}

// Acquire fetches src into the working directory.
func (a *Acquirer) Acquire(ctx context.Context, src clip.Source, ev clip.Event) (*clip.Clip, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	switch src.Kind {
	case clip.KindRemoteURL:
		return a.acquireRemote(ctx, src.URL, ev)
	case clip.KindAttachment:
		if src.Attachment == nil {
			return nil, &clip.AcquisitionError{Reason: clip.ReasonUnsupportedExtension, Source: src.ID(), Err: errors.New("attachment source without attachment")}
		}
		return a.acquireAttachment(ctx, *src.Attachment, ev)
	default:
		return nil, fmt.Errorf("acquire: unknown source kind %d", src.Kind)
	}
}

func (a *Acquirer) acquireRemote(ctx context.Context, rawURL string, ev clip.Event) (*clip.Clip, error) {
	fail := func(err error) error {
		return &clip.AcquisitionError{Reason: clip.ReasonDownloadFailed, Source: rawURL, Err: err}
	}

	// yt-dlp leaves .part and fragment files behind on failure; keeping
	// them in a per-event directory makes removal a single RemoveAll.
	staging := filepath.Join(a.workDir, stagingPrefix+uuid.NewString())
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, fail(fmt.Errorf("create staging dir: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(staging); err != nil {
			a.logger.Warn("remove staging dir", zap.String("dir", staging), zap.Error(err))
		}
	}()

	dl, err := a.downloader.Download(ctx, rawURL, staging)
	if err != nil {
		return nil, fail(err)
	}

	dest := filepath.Join(a.workDir, filepath.Base(dl.Path))
	if err := os.Rename(dl.Path, dest); err != nil {
		return nil, fail(fmt.Errorf("move download: %w", err))
	}

	c := &clip.Clip{
		Path:      dest,
		SourceID:  dl.ID,
		Streamer:  firstNonEmpty(dl.Creator, dl.Channel, dl.Uploader, ev.AuthorName),
		Title:     firstNonEmpty(dl.Title, defaultRemoteTitle),
		Link:      firstNonEmpty(dl.WebpageURL, rawURL),
		Submitter: ev.AuthorName,
	}
	return c, nil
}

func (a *Acquirer) acquireAttachment(ctx context.Context, att clip.Attachment, ev clip.Event) (*clip.Clip, error) {
	name := filepath.Base(att.Filename)
	if _, ok := a.extensions[att.Extension()]; !ok || name == "." || name == string(filepath.Separator) {
		return nil, &clip.AcquisitionError{Reason: clip.ReasonUnsupportedExtension, Source: att.Filename}
	}
	fail := func(err error) error {
		return &clip.AcquisitionError{Reason: clip.ReasonDownloadFailed, Source: att.URL, Err: err}
	}

	if err := os.MkdirAll(a.workDir, 0o755); err != nil {
		return nil, fail(fmt.Errorf("create work dir: %w", err))
	}
	dest := filepath.Join(a.workDir, name)

	if err := a.save(ctx, att.URL, dest); err != nil {
		if rmErr := os.Remove(dest); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			a.logger.Warn("remove partial attachment", zap.String("path", dest), zap.Error(rmErr))
		}
		return nil, fail(err)
	}

	return &clip.Clip{
		Path:      dest,
		SourceID:  name,
		Streamer:  ev.AuthorName,
		Title:     defaultAttachmentTitle,
		Link:      ev.Link,
		Submitter: ev.AuthorName,
	}, nil
}

func (a *Acquirer) save(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch attachment: unexpected status %s", resp.Status)
	}

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, newThrottledReader(ctx, resp.Body, a.rateLimit)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
