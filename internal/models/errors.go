package models

import (
	"fmt"

	"gitlab.com/tozd/go/errors"
)

// Error codes for structured error handling.
const (
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeFormat     = "FORMAT_ERROR"
	ErrCodeSecurity   = "SECURITY_ERROR"
	ErrCodeIO         = "IO_ERROR"
	ErrCodeSpace      = "SPACE_ERROR"
	ErrCodeState      = "STATE_ERROR"
	ErrCodeConfig     = "CONFIG_ERROR"
)

// Sentinel errors
var (
	ErrInvalidOptions    = errors.Base("invalid copy options")
	ErrInvalidFormat     = errors.Base("not a supported encrypted format")
	ErrWrongPassword     = errors.Base("wrong password or corrupted data")
	ErrKeyDerivation     = errors.Base("key derivation failed")
	ErrInsufficientSpace = errors.Base("not enough free space at destination")
	ErrTooManyRetries    = errors.Base("retry limit reached")
	ErrInvalidConfig     = errors.Base("invalid configuration")
)

// ValidationError reports a rejected CopyOptions combination. It is raised
// before anything is written and is never offered for retry.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidOptions
}

// FormatError is returned when an input does not carry a readable header.
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("format %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("format: %s", e.Reason)
}

func (e *FormatError) Unwrap() error {
	return ErrInvalidFormat
}

// SecurityError covers authentication tag mismatches and cipher setup
// failures.
type SecurityError struct {
	Path   string
	Reason string
	Err    error
}

func (e *SecurityError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("security %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("security: %s: %v", e.Reason, e.Err)
}

func (e *SecurityError) Unwrap() error {
	return e.Err
}

// TransferError wraps a file system failure with the operation that hit it.
type TransferError struct {
	Op   string // open, create, read, write, sync, rename, mkdir, stat
	Path string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// NewTransferError builds a TransferError carrying a stack trace.
func NewTransferError(op, path string, err error) error {
	return errors.WithStack(&TransferError{Op: op, Path: path, Err: err})
}

// IsSecurityError reports whether err came from authentication or cipher
// setup rather than from the file system.
func IsSecurityError(err error) bool {
	var se *SecurityError
	return errors.As(err, &se)
}

// IsFormatError reports whether err is a header/format problem.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// Code classifies err into one of the ErrCode constants.
func Code(err error) string {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return ErrCodeValidation
	case IsFormatError(err):
		return ErrCodeFormat
	case IsSecurityError(err), errors.Is(err, ErrWrongPassword), errors.Is(err, ErrKeyDerivation):
		return ErrCodeSecurity
	case errors.Is(err, ErrInsufficientSpace):
		return ErrCodeSpace
	case errors.Is(err, ErrInvalidConfig):
		return ErrCodeConfig
	default:
		return ErrCodeIO
	}
}

// Describe returns a short category text suitable for showing to a user, so
// a wrong password never reads like a disk problem.
func Describe(err error) string {
	switch Code(err) {
	case ErrCodeValidation:
		return "invalid options"
	case ErrCodeFormat:
		return "file is not in the encrypted format"
	case ErrCodeSecurity:
		if errors.Is(err, ErrWrongPassword) {
			return "wrong password or corrupted data"
		}
		return "encryption setup failed"
	case ErrCodeSpace:
		return "destination may be out of space"
	case ErrCodeConfig:
		return "configuration problem"
	default:
		return "disk or file system error"
	}
}
