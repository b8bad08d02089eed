// Package apperror defines the closed set of error kinds the service can
// report and maps each of them to a fixed HTTP status, code and message.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error. The set is closed: callers never see anything
// that is not listed here.
type Kind uint8

const (
	KindInternal Kind = iota
	KindMissingField
	KindMissingFile
	KindInvalidPoints
	KindInvalidDepth
	KindInvalidImage
	KindBadRequest
	KindPayloadTooLarge
	KindNotFound
	KindCorruptEncoding
	KindPersistence
	KindStorage
)

type kindInfo struct {
	code    string
	status  int
	message string
}

var kinds = map[Kind]kindInfo{
	KindInternal:        {"INTERNAL_ERROR", http.StatusInternalServerError, "internal error"},
	KindMissingField:    {"MISSING_FIELD", http.StatusBadRequest, "a required form field is missing"},
	KindMissingFile:     {"MISSING_FILE", http.StatusBadRequest, "the image file is missing"},
	KindInvalidPoints:   {"INVALID_POINTS", http.StatusBadRequest, "points must be a JSON array of [x, y] pairs"},
	KindInvalidDepth:    {"INVALID_DEPTH", http.StatusBadRequest, "depth must be a number"},
	KindInvalidImage:    {"INVALID_IMAGE", http.StatusBadRequest, "image is not a supported raster format"},
	KindBadRequest:      {"BAD_REQUEST", http.StatusBadRequest, "malformed request"},
	KindPayloadTooLarge: {"PAYLOAD_TOO_LARGE", http.StatusRequestEntityTooLarge, "request body too large"},
	KindNotFound:        {"NOT_FOUND", http.StatusNotFound, "not found"},
	KindCorruptEncoding: {"CORRUPT_ENCODING", http.StatusInternalServerError, "stored record is corrupt"},
	KindPersistence:     {"PERSISTENCE_ERROR", http.StatusInternalServerError, "database operation failed"},
	KindStorage:         {"STORAGE_ERROR", http.StatusInternalServerError, "image storage operation failed"},
}

// Code returns the stable machine-readable code for k.
func (k Kind) Code() string { return kinds[k].code }

// Status returns the HTTP status for k.
func (k Kind) Status() int { return kinds[k].status }

// Message returns the fixed public message for k.
func (k Kind) Message() string { return kinds[k].message }

func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.code
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// IsValidation reports whether k is a client-side validation failure.
func (k Kind) IsValidation() bool {
	switch k {
	case KindMissingField, KindMissingFile, KindInvalidPoints, KindInvalidDepth, KindInvalidImage:
		return true
	}
	return false
}

// Error carries a Kind, the operation that failed and the underlying cause.
// Only Kind ever reaches the client.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// New builds an *Error. err may be nil.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind.Code(), e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind.Code(), e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind.Code())
	}
	return e.Kind.Code()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
