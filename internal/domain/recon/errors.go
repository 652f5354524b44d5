package recon

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies failures so every layer can react without string matching.
type ErrorCode string

const (
	CodeValidation        ErrorCode = "validation"
	CodeUnsupportedFormat ErrorCode = "unsupported_format"
	CodeEmptyFile         ErrorCode = "empty_file"
	CodeMalformedFile     ErrorCode = "malformed_file"
	CodePayloadTooLarge   ErrorCode = "payload_too_large"
	CodeConflict          ErrorCode = "conflict"
	CodeNotFound          ErrorCode = "not_found"
	CodeInternal          ErrorCode = "internal"
)

type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

// Error returns the human readable message; Op is kept for logs.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		return msg
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Cause }

// LogString includes the operation for log lines.
func (e *Error) LogString() string {
	if e == nil {
		return ""
	}
	if e.Op == "" {
		return fmt.Sprintf("%s (%s)", e.Error(), e.Code)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Op, e.Error(), e.Code)
}

func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

func Errorf(code ErrorCode, op, format string, args ...any) error {
	return NewError(code, op, fmt.Sprintf(format, args...), nil)
}

// Wrap keeps an existing classification and only adds one when err has none.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return NewError(code, op, err.Error(), err)
}

func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code carried by err, or CodeInternal for unclassified errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return CodeInternal
	}
	return e.Code
}
