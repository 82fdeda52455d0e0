// Package gaiaerr defines the closed set of errors reported by the hub client.
package gaiaerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies a class of failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindConnection
	KindRequest
	KindAccessVerification
	KindItemNotFound
	KindPayloadTooLarge
	KindServer
	KindInvalidResponse
	KindSignatureVerification
	KindNotAuthenticated
)

var kindNames = map[Kind]string{
	KindUnknown:               "unknown error",
	KindConfiguration:         "configuration error",
	KindConnection:            "connection error",
	KindRequest:               "request error",
	KindAccessVerification:    "access verification error",
	KindItemNotFound:          "item not found",
	KindPayloadTooLarge:       "payload too large",
	KindServer:                "server error",
	KindInvalidResponse:       "invalid response",
	KindSignatureVerification: "signature verification error",
	KindNotAuthenticated:      "not authenticated",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Sentinels for errors.Is. Only the Kind is compared.
var (
	ErrConfiguration         = &Error{Kind: KindConfiguration}
	ErrConnection            = &Error{Kind: KindConnection}
	ErrRequest               = &Error{Kind: KindRequest}
	ErrAccessVerification    = &Error{Kind: KindAccessVerification}
	ErrItemNotFound          = &Error{Kind: KindItemNotFound}
	ErrPayloadTooLarge       = &Error{Kind: KindPayloadTooLarge}
	ErrServer                = &Error{Kind: KindServer}
	ErrInvalidResponse       = &Error{Kind: KindInvalidResponse}
	ErrSignatureVerification = &Error{Kind: KindSignatureVerification}
	ErrNotAuthenticated      = &Error{Kind: KindNotAuthenticated}
)

// Error is the single error type surfaced by every client component.
type Error struct {
	Kind   Kind
	Op     string // operation, e.g. "putFile"
	Status int    // HTTP status, 0 if no response was received
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	s := e.Kind.String()
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Status != 0 {
		s += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an error of the given kind.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap builds an error of the given kind around err.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of err, or KindUnknown if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// As returns err as an *Error if it is one.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Endpoint selects which status codes are meaningful for a request.
type Endpoint int

const (
	EndpointRead Endpoint = iota
	EndpointWrite
	EndpointDelete
	EndpointList
	EndpointBatch
)

// FromStatus maps a non-2xx HTTP status to an error. It returns nil for 2xx.
// 404 is only reported as ItemNotFound for reads, deletes and batches; 413 only
// for writes and batches. Anything else maps to RequestError with the status.
func FromStatus(op string, status int, ep Endpoint) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return &Error{Kind: KindAccessVerification, Op: op, Status: status}
	case status == http.StatusNotFound && (ep == EndpointRead || ep == EndpointDelete || ep == EndpointBatch):
		return &Error{Kind: KindItemNotFound, Op: op, Status: status}
	case status == http.StatusRequestEntityTooLarge && (ep == EndpointWrite || ep == EndpointBatch):
		return &Error{Kind: KindPayloadTooLarge, Op: op, Status: status}
	case status >= 500:
		return &Error{Kind: KindServer, Op: op, Status: status}
	default:
		return &Error{Kind: KindRequest, Op: op, Status: status}
	}
}
