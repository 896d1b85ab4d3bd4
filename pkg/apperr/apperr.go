// Package apperr defines the error taxonomy shared by the services and its mapping to HTTP.
package apperr

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindForbidden
	KindNotFound
	KindInvariant
)

// Error is a domain error carrying the kind used to pick the response status
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...interface{}) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...interface{}) error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Invariant(format string, args ...interface{}) error {
	return &Error{Kind: KindInvariant, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a new error of the given kind
func Wrap(kind Kind, err error, message string) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, KindInternal for foreign errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is a domain error of the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

var statusByKind = map[Kind]struct {
	status int
	code   string
}{
	KindValidation: {http.StatusBadRequest, "VALIDATION"},
	KindConflict:   {http.StatusConflict, "ALREADY_EXISTS"},
	KindForbidden:  {http.StatusForbidden, "FORBIDDEN"},
	KindNotFound:   {http.StatusNotFound, "NOT_FOUND"},
	KindInvariant:  {http.StatusUnprocessableEntity, "INVARIANT_VIOLATION"},
}

// Status returns the HTTP status and machine code for err
func Status(err error) (int, string) {
	if m, ok := statusByKind[KindOf(err)]; ok {
		return m.status, m.code
	}
	return http.StatusInternalServerError, "INTERNAL"
}

// Respond writes err as a JSON error body and aborts the request
func Respond(c *gin.Context, err error) {
	status, code := Status(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.AbortWithStatusJSON(status, gin.H{"error": "Internal server error", "code": code})
		return
	}

	var e *Error
	errors.As(err, &e)
	c.AbortWithStatusJSON(status, gin.H{"error": e.Message, "code": code})
}
