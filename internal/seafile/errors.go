// Package seafile provides an HTTP client for the Seafile web API with
// retry for idempotent calls, path sanitization, and a fixed error taxonomy.
package seafile

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tonimelisma/seafile-filelink/internal/origin"
)

// Error taxonomy. Every error returned by Client wraps exactly one of these;
// use errors.Is(err, seafile.ErrUploadFailed) to classify.
var (
	ErrInvalidInput          = origin.ErrInvalidInput
	ErrUnauthenticated       = errors.New("seafile: not authenticated")
	ErrAuthFailed            = errors.New("seafile: authentication failed")
	ErrTwoFactorRequired     = errors.New("seafile: two-factor code required")
	ErrTwoFactorInvalid      = errors.New("seafile: two-factor code invalid")
	ErrListFailed            = errors.New("seafile: listing libraries failed")
	ErrDirectoryCreateFailed = errors.New("seafile: creating directory failed")
	ErrUploadLinkFailed      = errors.New("seafile: requesting upload link failed")
	ErrUntrustedUploadTarget = errors.New("seafile: upload link points to a foreign host")
	ErrUploadFailed          = errors.New("seafile: upload failed")
	ErrShareLinkFailed       = errors.New("seafile: creating share link failed")
	ErrAccountInfoFailed     = errors.New("seafile: fetching account info failed")
)

// maxReasonLen caps how much of a server error body is kept for diagnostics.
const maxReasonLen = 200

// APIError describes a failed Seafile operation. Error() renders only the
// operation and status so it is safe to show to end users. Reason keeps the
// normalized server message for logs and must not be forwarded to users.
type APIError struct {
	Op         string
	StatusCode int    // 0 for transport failures
	Reason     string // diagnostics only
	Err        error  // taxonomy sentinel
	Cause      error  // underlying transport or context error, may be nil
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("seafile: %s failed (HTTP %d)", e.Op, e.StatusCode)
	}

	if e.Cause != nil {
		return fmt.Sprintf("seafile: %s failed: %v", e.Op, e.Cause)
	}

	return fmt.Sprintf("seafile: %s failed", e.Op)
}

// Unwrap exposes both the taxonomy sentinel and the cause, so errors.Is
// matches ErrUploadFailed and context.Canceled on the same error.
func (e *APIError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}

	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}

	return errs
}

// StatusCode extracts the HTTP status from err, or 0 if err carries none.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}

	var se *statusError
	if errors.As(err, &se) {
		return se.code
	}

	return 0
}

// statusError is the raw non-2xx result of Do. Public methods convert it
// into an APIError carrying the right taxonomy sentinel.
type statusError struct {
	code   int
	reason string
	header http.Header
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.code)
}

// wrapErr converts a Do error into an APIError for op, tagged with kind.
func wrapErr(op string, kind, err error) error {
	apiErr := &APIError{Op: op, Err: kind}

	var se *statusError
	if errors.As(err, &se) {
		apiErr.StatusCode = se.code
		apiErr.Reason = se.reason

		return apiErr
	}

	apiErr.Cause = err

	return apiErr
}

// isRetryable reports whether the given HTTP status code should be retried.
func isRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// normalizeReason extracts a one-line message from a Seafile error body.
// Seafile answers with {"error_msg": ...}, {"detail": ...}, or
// {"non_field_errors": [...]} depending on the endpoint; anything else is
// kept as trimmed text.
func normalizeReason(body []byte) string {
	var parsed struct {
		ErrorMsg       string   `json:"error_msg"`
		Detail         string   `json:"detail"`
		NonFieldErrors []string `json:"non_field_errors"`
	}

	reason := ""
	if err := json.Unmarshal(body, &parsed); err == nil {
		switch {
		case parsed.ErrorMsg != "":
			reason = parsed.ErrorMsg
		case parsed.Detail != "":
			reason = parsed.Detail
		case len(parsed.NonFieldErrors) > 0:
			reason = strings.Join(parsed.NonFieldErrors, "; ")
		}
	}

	if reason == "" {
		reason = string(body)
	}

	reason = strings.Join(strings.Fields(reason), " ")
	if len(reason) > maxReasonLen {
		reason = reason[:maxReasonLen]
	}

	return reason
}
