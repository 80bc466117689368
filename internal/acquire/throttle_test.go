package acquire

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottledReaderLimitsRate(t *testing.T) {
	const rate = 64 * 1024
	payload := bytes.Repeat([]byte("x"), rate+rate/2)

	start := time.Now()
	got, err := io.ReadAll(newThrottledReader(context.Background(), bytes.NewReader(payload), rate))
	require.NoError(t, err)

	assert.Equal(t, payload, got)
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
}

func TestThrottledReaderDisabled(t *testing.T) {
	r := bytes.NewReader([]byte("abc"))
	assert.Same(t, r, newThrottledReader(context.Background(), r, 0))
}

func TestThrottledReaderStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	payload := bytes.Repeat([]byte("x"), 4096)
	_, err := io.ReadAll(newThrottledReader(ctx, bytes.NewReader(payload), 1024))
	assert.ErrorIs(t, err, context.Canceled)
}
