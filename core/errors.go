package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies errors for the outer surfaces (bridge status codes, CLI exit messages, results).
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindNotFound
	KindNetwork
	KindTimeout
	KindServer
	KindStorage
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindServer:
		return "server"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// NetworkError is returned when a remote host could not be reached (or did not answer in time).
type NetworkError struct {
	Err     error
	Timeout bool
}

func NewNetworkError(err error, timeout bool) error {
	return &NetworkError{Err: err, Timeout: timeout}
}

func (err NetworkError) Error() string {
	if err.Timeout {
		return "network timeout: " + errString(err.Err)
	}
	return "network unreachable: " + errString(err.Err)
}

func (err NetworkError) Unwrap() error { return err.Err }

// ServerError is returned when a remote host answered but rejected or failed the request.
type ServerError struct {
	Message    string
	StatusCode int
}

func NewServerError(msg string, status int) error {
	return &ServerError{Message: msg, StatusCode: status}
}

func (err ServerError) Error() string {
	if err.StatusCode > 0 {
		return fmt.Sprintf("server error (%d): %s", err.StatusCode, err.Message)
	}
	return "server error: " + err.Message
}

// NotFoundError wraps a lookup miss with the name of what was looked up.
type NotFoundError struct {
	What string
}

func NewNotFoundError(what string) error {
	return &NotFoundError{What: what}
}

func (err NotFoundError) Error() string {
	return err.What + " not found"
}

// StorageError is returned when a device-local store failed to read or write.
type StorageError struct {
	Op  string
	Err error
}

func NewStorageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

func (err StorageError) Error() string {
	return err.Op + ": " + errString(err.Err)
}

func (err StorageError) Unwrap() error { return err.Err }

// KindOf finds the ErrorKind of `err` by walking its cause chain.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var (
		valErr     *ValidationError
		netErr     *NetworkError
		srvErr     *ServerError
		notFound   *NotFoundError
		storageErr *StorageError
	)
	switch {
	case errors.As(err, &valErr):
		return KindValidation
	case errors.As(err, &notFound):
		return KindNotFound
	case errors.As(err, &netErr):
		if netErr.Timeout {
			return KindTimeout
		}
		return KindNetwork
	case errors.As(err, &srvErr):
		return KindServer
	case errors.As(err, &storageErr):
		return KindStorage
	}
	return KindUnknown
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}

func errString(err error) string {
	if err == nil {
		return "<nil>"
	}
	return err.Error()
}
