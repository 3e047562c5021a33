// Package apperr defines the error kinds surfaced to callers and their HTTP
// and websocket representations.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindAuth          Kind = "auth_error"
	KindForbidden     Kind = "forbidden"
	KindNotMember     Kind = "not_member"
	KindNotFound      Kind = "not_found"
	KindValidation    Kind = "validation_error"
	KindDepthExceeded Kind = "depth_exceeded"
	KindUnavailable   Kind = "service_unavailable"
	KindRateLimited   Kind = "rate_limited"
	KindInternal      Kind = "internal"
)

// Sentinels for errors.Is. An *Error matches the sentinel of its kind.
var (
	ErrAuth          = &Error{Kind: KindAuth}
	ErrForbidden     = &Error{Kind: KindForbidden}
	ErrNotMember     = &Error{Kind: KindNotMember}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrValidation    = &Error{Kind: KindValidation}
	ErrDepthExceeded = &Error{Kind: KindDepthExceeded}
	ErrUnavailable   = &Error{Kind: KindUnavailable}
)

type Error struct {
	Kind    Kind
	Op      string
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == "" && t.Field == ""
}

func Auth(op, msg string) error {
	return &Error{Kind: KindAuth, Op: op, Message: msg}
}

func Forbidden(op, msg string) error {
	return &Error{Kind: KindForbidden, Op: op, Message: msg}
}

func NotMember(op string, roomID int64) error {
	return &Error{Kind: KindNotMember, Op: op, Message: fmt.Sprintf("not a member of room %d", roomID)}
}

// NotFound reports a missing entity, e.g. NotFound("comment.create", "post", 7).
func NotFound(op, entity string, id int64) error {
	return &Error{Kind: KindNotFound, Op: op, Field: entity, Message: fmt.Sprintf("%s %d not found", entity, id)}
}

func Validation(op, field, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Field: field, Message: msg}
}

func DepthExceeded(op string, depth, max int) error {
	return &Error{Kind: KindDepthExceeded, Op: op, Field: "parent_comment_id",
		Message: fmt.Sprintf("reply depth %d exceeds maximum %d", depth, max)}
}

func Unavailable(op string, err error) error {
	return &Error{Kind: KindUnavailable, Op: op, Message: "persistence unavailable", Err: err}
}

func RateLimited(op string) error {
	return &Error{Kind: KindRateLimited, Op: op, Message: "too many requests"}
}

// KindOf returns the kind carried by err, or KindInternal for plain errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsDomain reports whether err carries a kind, i.e. is a decision made by
// the application rather than an infrastructure failure.
func IsDomain(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden, KindNotMember:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindDepthExceeded:
		return http.StatusUnprocessableEntity
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Body is the JSON error representation shared by REST and websocket.
type Body struct {
	Code    Kind   `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ToBody hides the text of internal errors from clients.
func ToBody(err error) Body {
	var e *Error
	if !errors.As(err, &e) {
		return Body{Code: KindInternal, Message: "internal error"}
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	return Body{Code: e.Kind, Message: msg, Field: e.Field}
}
