package acquire

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Download is the result of fetching a remote clip.
type Download struct {
	ID         string
	Path       string
	Title      string
	Creator    string
	Channel    string
	Uploader   string
	WebpageURL string
}

// Downloader fetches a remote media URL into dir.
type Downloader interface {
	Download(ctx context.Context, rawURL, dir string) (*Download, error)
}

// commandRunner runs an external program and returns its stdout.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// YtDLP downloads clips with the yt-dlp binary.
type YtDLP struct {
	path      string
	rateLimit int64
	run       commandRunner
}

// NewYtDLP returns a Downloader backed by the yt-dlp binary at path.
// rateLimit is a ceiling in bytes per second; zero disables it.
func NewYtDLP(path string, rateLimit int64) *YtDLP {
	if path == "" {
		path = "yt-dlp"
	}
	return &YtDLP{path: path, rateLimit: rateLimit, run: execCommand}
}

type ytdlpInfo struct {
	ID                 string `json:"id"`
	Ext                string `json:"ext"`
	Title              string `json:"title"`
	Creator            string `json:"creator"`
	Channel            string `json:"channel"`
	Uploader           string `json:"uploader"`
	WebpageURL         string `json:"webpage_url"`
	Filename           string `json:"filename"`
	LegacyFilename     string `json:"_filename"`
	RequestedDownloads []struct {
		Filepath string `json:"filepath"`
	} `json:"requested_downloads"`
}

func (y *YtDLP) args(rawURL, dir string) []string {
	args := []string{
		"--no-progress",
		"--no-playlist",
		"--no-simulate",
		"--dump-single-json",
		"-o", filepath.Join(dir, "%(id)s.%(ext)s"),
	}
	if y.rateLimit > 0 {
		args = append(args, "--limit-rate", strconv.FormatInt(y.rateLimit, 10))
	}
	return append(args, "--", rawURL)
}

func (y *YtDLP) Download(ctx context.Context, rawURL, dir string) (*Download, error) {
	out, err := y.run(ctx, y.path, y.args(rawURL, dir)...)
	if err != nil {
		return nil, err
	}

	var info ytdlpInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("decode yt-dlp info: %w", err)
	}
	if info.ID == "" {
		return nil, errors.New("yt-dlp info has no id")
	}

	path := resolvePath(info, dir)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("downloaded file missing: %w", err)
	}

	return &Download{
		ID:         info.ID,
		Path:       path,
		Title:      info.Title,
		Creator:    info.Creator,
		Channel:    info.Channel,
		Uploader:   info.Uploader,
		WebpageURL: info.WebpageURL,
	}, nil
}

func resolvePath(info ytdlpInfo, dir string) string {
	for _, rd := range info.RequestedDownloads {
		if rd.Filepath != "" {
			return rd.Filepath
		}
	}
	if info.Filename != "" {
		return info.Filename
	}
	if info.LegacyFilename != "" {
		return info.LegacyFilename
	}
	return filepath.Join(dir, info.ID+"."+info.Ext)
}

func execCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%s: %w: %s", filepath.Base(name), err, tail(string(exitErr.Stderr), 512))
		}
		return nil, fmt.Errorf("%s: %w", filepath.Base(name), err)
	}
	return out, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
