// Package normalize re-encodes acquired clips into the canonical upload
// format.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/clipflow/internal/clip"
)

const (
	canonicalExt = ".mp4"
	tempSuffix   = ".normalize.tmp"
	maxDetail    = 1024
)

// Normalizer replaces a clip's file with its canonical encoding.
type Normalizer struct {
	encoder Encoder
	timeout time.Duration
	logger  *zap.Logger
}

// New constructs a Normalizer.
func New(enc Encoder, timeout time.Duration, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{encoder: enc, timeout: timeout, logger: logger}
}

// Normalize encodes c.Path into a sibling temp file and renames it over the
// canonical path, updating c.Path. On failure both the temp file and the
// original are removed.
func (n *Normalizer) Normalize(ctx context.Context, c *clip.Clip) error {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	src := c.Path
	target := strings.TrimSuffix(src, filepath.Ext(src)) + canonicalExt
	tmp := target + tempSuffix

	start := time.Now()
	if err := n.encoder.Encode(ctx, src, tmp); err != nil {
		n.discard(tmp, src)
		return &clip.NormalizationError{Reason: clip.ReasonTranscodeFailed, Detail: detailOf(err), Err: err}
	}
	if err := os.Rename(tmp, target); err != nil {
		n.discard(tmp, src)
		return &clip.NormalizationError{Reason: clip.ReasonTranscodeFailed, Err: fmt.Errorf("replace original: %w", err)}
	}
	if target != src {
		n.discard(src)
	}

	c.Path = target
	n.logger.Debug("clip normalized",
		zap.String("path", target),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

func (n *Normalizer) discard(paths ...string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			n.logger.Warn("remove file", zap.String("path", p), zap.Error(err))
		}
	}
}

func detailOf(err error) string {
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		return ""
	}
	s := exitErr.Stderr
	if len(s) > maxDetail {
		s = s[len(s)-maxDetail:]
	}
	return s
}
