package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrConfiguration is returned before any network call when the client has no
// usable credential, endpoint or model.
var ErrConfiguration = errors.New("llm credential is not configured")

// quotaMarkers are matched case-insensitively against error bodies of services
// that report quota exhaustion without a 429.
var quotaMarkers = []string{"quota", "resource_exhausted", "rate limit"}

// RemoteServiceError is a transport (Status 0) or service-side failure.
type RemoteServiceError struct {
	Status  int
	Message string
	Err     error
}

func (e *RemoteServiceError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("llm transport failed: %s", e.Message)
	}
	return fmt.Sprintf("llm response status %d: %s", e.Status, e.Message)
}

func (e *RemoteServiceError) Unwrap() error {
	return e.Err
}

// RateLimited reports whether the failure is a rate-limit rejection.
func (e *RemoteServiceError) RateLimited() bool {
	return e.Status == http.StatusTooManyRequests
}

// MalformedResponseError means the service answered but the body did not
// decode into the expected schema.
type MalformedResponseError struct {
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed llm response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// IsRateLimited reports whether err carries a 429 RemoteServiceError.
func IsRateLimited(err error) bool {
	var remoteErr *RemoteServiceError
	if errors.As(err, &remoteErr) {
		return remoteErr.RateLimited()
	}
	return false
}

func IsMalformed(err error) bool {
	var malformedErr *MalformedResponseError
	return errors.As(err, &malformedErr)
}

// newStatusError builds the error for a non-2xx response. Quota messages are
// folded into 429 so callers never classify on free text.
func newStatusError(status int, body []byte) *RemoteServiceError {
	message := extractErrorMessage(body)
	if status != http.StatusTooManyRequests && mentionsQuota(message) {
		status = http.StatusTooManyRequests
	}
	return &RemoteServiceError{Status: status, Message: message}
}

func newTransportError(err error) *RemoteServiceError {
	return &RemoteServiceError{Status: 0, Message: err.Error(), Err: err}
}

func extractErrorMessage(body []byte) string {
	var envelope struct {
		Error *struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		if envelope.Error.Status != "" {
			return envelope.Error.Status + ": " + envelope.Error.Message
		}
		return envelope.Error.Message
	}
	message := strings.TrimSpace(string(body))
	if message == "" {
		return "empty response body"
	}
	return message
}

func mentionsQuota(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range quotaMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
