package clip

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReasonOfWrapped(t *testing.T) {
	base := &AcquisitionError{Reason: ReasonDownloadFailed, Source: "https://youtu.be/x", Err: errors.New("exit status 1")}
	wrapped := fmt.Errorf("stage acquire: %w", base)

	reason, ok := ReasonOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, ReasonDownloadFailed, reason)

	_, ok = ReasonOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestDispatchErrorMessage(t *testing.T) {
	err := &DispatchError{Reason: ReasonNonOkStatus, Status: 502, Body: "bad gateway"}
	assert.Equal(t, "upload: non_ok_status: status 502: bad gateway", err.Error())
}

func TestAttachmentExtension(t *testing.T) {
	assert.Equal(t, ".mp4", Attachment{Filename: "Clip.MP4"}.Extension())
	assert.Equal(t, "", Attachment{Filename: "noext"}.Extension())
}
