// coach/utils/apperr/apperr.go
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindAuth    Kind = "auth"
	KindBackend Kind = "backend"
	KindExport  Kind = "export"
	KindSession Kind = "session"
)

// Error is terminal to the operation that raised it; the caller reports it
// and the session carries on.
type Error struct {
	Kind Kind
	Op   string
	Err  error
	// Conflict marks an auth failure caused by an identity that already exists.
	Conflict bool
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Auth(op string, err error) error {
	return &Error{Kind: KindAuth, Op: op, Err: err}
}

func AuthConflict(op string, err error) error {
	return &Error{Kind: KindAuth, Op: op, Err: err, Conflict: true}
}

func Backend(op string, err error) error {
	return &Error{Kind: KindBackend, Op: op, Err: err}
}

func Export(op string, err error) error {
	return &Error{Kind: KindExport, Op: op, Err: err}
}

func Session(op string, err error) error {
	return &Error{Kind: KindSession, Op: op, Err: err}
}

// Is reports whether err carries an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// Status maps an error to the HTTP status the routes respond with.
func Status(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindAuth:
		if e.Conflict {
			return http.StatusConflict
		}
		return http.StatusUnauthorized
	case KindSession:
		return http.StatusUnauthorized
	case KindBackend, KindExport:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
