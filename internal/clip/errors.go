package clip

import (
	"errors"
	"fmt"
)

// Reason narrows a stage failure down to its cause.
type Reason string

const (
	ReasonDownloadFailed       Reason = "download_failed"
	ReasonUnsupportedExtension Reason = "unsupported_extension"
	ReasonTranscodeFailed      Reason = "transcode_failed"
	ReasonLoginFailed          Reason = "login_failed"
	ReasonNonOkStatus          Reason = "non_ok_status"
	ReasonNetworkFailure       Reason = "network_failure"
)

// AcquisitionError is returned when a source cannot be turned into a local file.
type AcquisitionError struct {
	Reason Reason
	Source string
	Err    error
}

func (e *AcquisitionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("acquire %s: %s", e.Source, e.Reason)
	}
	return fmt.Sprintf("acquire %s: %s: %v", e.Source, e.Reason, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// NormalizationError is returned when the encoder fails.
type NormalizationError struct {
	Reason Reason
	Detail string
	Err    error
}

func (e *NormalizationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("normalize: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("normalize: %s: %v: %s", e.Reason, e.Err, e.Detail)
}

func (e *NormalizationError) Unwrap() error { return e.Err }

// AuthError is returned when the backend refuses or cannot serve a login.
type AuthError struct {
	Reason Reason
	Status int
	Err    error
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("backend login: %s: status %d: %v", e.Reason, e.Status, e.Err)
	}
	return fmt.Sprintf("backend login: %s: %v", e.Reason, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// DispatchError is returned when an upload does not end in HTTP 200.
type DispatchError struct {
	Reason Reason
	Status int
	Body   string
	Err    error
}

func (e *DispatchError) Error() string {
	if e.Reason == ReasonNonOkStatus {
		return fmt.Sprintf("upload: %s: status %d: %s", e.Reason, e.Status, e.Body)
	}
	return fmt.Sprintf("upload: %s: %v", e.Reason, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// ReasonOf extracts the failure reason from any error in the taxonomy.
func ReasonOf(err error) (Reason, bool) {
	var (
		acq  *AcquisitionError
		norm *NormalizationError
		auth *AuthError
		disp *DispatchError
	)
	switch {
	case errors.As(err, &acq):
		return acq.Reason, true
	case errors.As(err, &norm):
		return norm.Reason, true
	case errors.As(err, &auth):
		return auth.Reason, true
	case errors.As(err, &disp):
		return disp.Reason, true
	default:
		return "", false
	}
}
