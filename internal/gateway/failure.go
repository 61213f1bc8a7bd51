package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/desertthunder/playsync/internal/shared"
)

// NetworkErrorStatus is the fixed status reported when no response was received.
const NetworkErrorStatus = http.StatusInternalServerError

var networkErrorBody = []byte(`{"detail":"Unknown error"}`)

// Kind classifies a [Failure].
type Kind int

const (
	// KindUnauthenticated: no usable credential, the request was never sent. Re-authenticate, don't retry.
	KindUnauthenticated Kind = iota + 1
	// KindNetwork: no response received. Safe to retry with backoff.
	KindNetwork
	// KindServer: a non-2xx response. Retry only 5xx.
	KindServer
	// KindInvalidRequest: the request could not be built (bad path, unencodable body).
	KindInvalidRequest
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindNetwork:
		return "networkError"
	case KindServer:
		return "serverError"
	case KindInvalidRequest:
		return "invalidRequest"
	default:
		return "unknown"
	}
}

// Failure is the error envelope returned by every [Gateway] call.
type Failure struct {
	Kind   Kind
	Status int    // response status, [NetworkErrorStatus] for network failures, 0 otherwise
	Body   []byte // raw response body
	Method string
	Path   string
	Err    error // underlying cause, if any
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("%s %s: %s", f.Method, f.Path, f.Kind)
	if f.Kind == KindServer || f.Kind == KindNetwork {
		msg += fmt.Sprintf(" (status %d)", f.Status)
	}
	switch {
	case f.Err != nil:
		msg += ": " + f.Err.Error()
	case f.Detail() != "":
		msg += ": " + f.Detail()
	}
	return msg
}

// Unwrap exposes the matching shared sentinel plus the underlying cause so callers can use [errors.Is].
func (f *Failure) Unwrap() []error {
	var sentinel error
	switch f.Kind {
	case KindUnauthenticated:
		sentinel = shared.ErrNotAuthenticated
	case KindNetwork:
		sentinel = shared.ErrServiceUnavailable
	case KindServer:
		sentinel = shared.ErrAPIRequest
	case KindInvalidRequest:
		sentinel = shared.ErrInvalidInput
	}

	errs := make([]error, 0, 2)
	if sentinel != nil {
		errs = append(errs, sentinel)
	}
	if f.Err != nil {
		errs = append(errs, f.Err)
	}
	return errs
}

// Retryable reports whether repeating the call may succeed: network errors and 5xx responses.
func (f *Failure) Retryable() bool {
	switch f.Kind {
	case KindNetwork:
		return true
	case KindServer:
		return f.Status >= 500
	default:
		return false
	}
}

// Detail returns the "detail" field of a JSON error body, if there is one.
func (f *Failure) Detail() string {
	var body struct {
		Detail any `json:"detail"`
	}
	if len(f.Body) == 0 || json.Unmarshal(f.Body, &body) != nil || body.Detail == nil {
		return ""
	}
	if s, ok := body.Detail.(string); ok {
		return s
	}
	raw, _ := json.Marshal(body.Detail)
	return string(raw)
}

// AsFailure unwraps err into a [*Failure].
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// IsKind reports whether err is a [*Failure] of kind k.
func IsKind(err error, k Kind) bool {
	f, ok := AsFailure(err)
	return ok && f.Kind == k
}
