package registry

import (
	"errors"
	"fmt"
)

// Kind is the normalized failure taxonomy for registry operations.
type Kind string

const (
	// KindConfiguration indicates the auth context is unusable (missing token, bad base URL).
	// Always raised before any network call.
	KindConfiguration Kind = "configuration"

	// KindUnauthorized indicates the registry denied the credentials (401/403).
	KindUnauthorized Kind = "unauthorized"

	// KindNotFound indicates the registry returned no matching record.
	KindNotFound Kind = "not_found"

	// KindUpstream indicates any other non-success status or a transport failure.
	KindUpstream Kind = "upstream"

	// KindTransform indicates the returned payload could not be interpreted.
	KindTransform Kind = "transform"

	// KindInvalidRequest indicates caller input was rejected before any network call.
	KindInvalidRequest Kind = "invalid_request"

	// KindInternal classifies errors that did not originate in this package.
	KindInternal Kind = "internal"
)

// Error carries a categorized registry failure. Status and Body are set for
// failures derived from an HTTP response.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Status  int
	Body    string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("registry %s [%s]: %s", e.Op, e.Kind, msg)
	}
	return fmt.Sprintf("registry [%s]: %s", e.Kind, msg)
}

// Unwrap supports error unwrapping
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by Kind, so errors.Is(err, &Error{Kind: KindNotFound}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == ""
}

func newError(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf extracts the failure kind from an error chain.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusOf returns the upstream HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var re *Error
	if errors.As(err, &re) {
		return re.Status
	}
	return 0
}

// Sentinel targets for errors.Is.
var (
	ErrConfiguration  = &Error{Kind: KindConfiguration}
	ErrUnauthorized   = &Error{Kind: KindUnauthorized}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrUpstream       = &Error{Kind: KindUpstream}
	ErrTransform      = &Error{Kind: KindTransform}
	ErrInvalidRequest = &Error{Kind: KindInvalidRequest}
)

// Summary renders err as "kind: message" for tool and CLI output, including
// the upstream status and body when present.
func Summary(err error) string {
	var re *Error
	if !errors.As(err, &re) {
		return fmt.Sprintf("%s: %v", KindInternal, err)
	}
	msg := re.Message
	if msg == "" && re.Err != nil {
		msg = re.Err.Error()
	}
	if re.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, re.Status)
	}
	if re.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, re.Body)
	}
	return fmt.Sprintf("%s: %s", re.Kind, msg)
}
