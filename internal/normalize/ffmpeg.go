package normalize

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/floostack/transcoder/ffmpeg"
)

// Encoder re-encodes the media at in into a new file at out.
type Encoder interface {
	Encode(ctx context.Context, in, out string) error
}

// ExitError carries the encoder's stderr alongside the process error.
type ExitError struct {
	Err    error
	Stderr string
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// Profile is the canonical encoding target.
type Profile struct {
	VideoCodec string
	AudioCodec string
	Preset     string
	CRF        uint32
}

// FFmpeg encodes with the ffmpeg binary.
type FFmpeg struct {
	path string
	opts ffmpeg.Options
}

// NewFFmpeg returns an Encoder producing MP4 output for the given profile.
func NewFFmpeg(path string, p Profile) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	format := "mp4"
	overwrite := true
	crf := p.CRF

	opts := ffmpeg.Options{
		Crf:          &crf,
		OutputFormat: &format,
		Overwrite:    &overwrite,
	}
	if p.VideoCodec != "" {
		opts.VideoCodec = &p.VideoCodec
	}
	if p.AudioCodec != "" {
		opts.AudioCodec = &p.AudioCodec
	}
	if p.Preset != "" {
		opts.Preset = &p.Preset
	}
	return &FFmpeg{path: path, opts: opts}
}

func (f *FFmpeg) args(in, out string) []string {
	args := []string{"-hide_banner", "-nostdin", "-loglevel", "error", "-i", in}
	args = append(args, f.opts.GetStrArguments()...)
	return append(args, "-movflags", "+faststart", out)
}

func (f *FFmpeg) Encode(ctx context.Context, in, out string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.path, f.args(in, out)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		return &ExitError{Err: err, Stderr: strings.TrimSpace(stderr.String())}
	}
	return nil
}
