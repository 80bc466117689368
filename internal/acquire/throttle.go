package acquire

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

const maxThrottleChunk = 256 * 1024

// throttledReader caps the read rate of r to the limiter's rate.
type throttledReader struct {
	ctx context.Context
	r   io.Reader
	lim *rate.Limiter
}

func newThrottledReader(ctx context.Context, r io.Reader, bytesPerSec int64) io.Reader {
	if bytesPerSec <= 0 {
		return r
	}
	burst := int(min(bytesPerSec, maxThrottleChunk))
	return &throttledReader{
		ctx: ctx,
		r:   r,
		lim: rate.NewLimiter(rate.Limit(bytesPerSec), burst),
	}
}

func (t *throttledReader) Read(p []byte) (int, error) {
	if len(p) > t.lim.Burst() {
		p = p[:t.lim.Burst()]
	}
	n, err := t.r.Read(p)
	if n > 0 {
		if werr := t.lim.WaitN(t.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
