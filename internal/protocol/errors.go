package protocol

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of a codec error
type ErrorType int

const (
	// ErrTypeMalformedFrame indicates a frame too short to carry a header.
	// The frame is dropped and processing continues with the next one.
	ErrTypeMalformedFrame ErrorType = iota
	// ErrTypeChipFormat indicates a chip id with an unknown length or layout
	ErrTypeChipFormat
	// ErrTypeInvalidState indicates a command state argument that the
	// operation does not accept
	ErrTypeInvalidState
	// ErrTypeUnknownOperation indicates an operation name missing from the
	// device type's operation table
	ErrTypeUnknownOperation
	// ErrTypeRegistryMiss indicates a registry lookup that found nothing
	ErrTypeRegistryMiss
	// ErrTypeInvalidKey indicates an unusable XOR key
	ErrTypeInvalidKey
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeMalformedFrame:
		return "Malformed Frame"
	case ErrTypeChipFormat:
		return "Chip Format Error"
	case ErrTypeInvalidState:
		return "Invalid State Value"
	case ErrTypeUnknownOperation:
		return "Unknown Operation"
	case ErrTypeRegistryMiss:
		return "Registry Lookup Miss"
	case ErrTypeInvalidKey:
		return "Invalid XOR Key"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Sentinel errors, one per ErrorType, for use with errors.Is.
var (
	ErrMalformedFrame   = errors.New("malformed frame")
	ErrChipFormat       = errors.New("chip format error")
	ErrInvalidState     = errors.New("invalid state value")
	ErrUnknownOperation = errors.New("unknown operation")
	ErrRegistryMiss     = errors.New("registry lookup miss")
	ErrInvalidKey       = errors.New("invalid xor key")
)

func (et ErrorType) sentinel() error {
	switch et {
	case ErrTypeMalformedFrame:
		return ErrMalformedFrame
	case ErrTypeChipFormat:
		return ErrChipFormat
	case ErrTypeInvalidState:
		return ErrInvalidState
	case ErrTypeUnknownOperation:
		return ErrUnknownOperation
	case ErrTypeRegistryMiss:
		return ErrRegistryMiss
	case ErrTypeInvalidKey:
		return ErrInvalidKey
	default:
		return nil
	}
}

// CodecError describes a failure to decode or encode a message
type CodecError struct {
	Type    ErrorType // Category of error
	Message string    // Human-readable error message
	Err     error     // Underlying error (if any)
}

// Error implements the error interface
func (e *CodecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *CodecError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's type, so that
// errors.Is(err, ErrUnknownOperation) works on any CodecError.
func (e *CodecError) Is(target error) bool {
	return target != nil && target == e.Type.sentinel()
}

func newError(et ErrorType, format string, args ...any) *CodecError {
	return &CodecError{Type: et, Message: fmt.Sprintf(format, args...)}
}

func wrapError(et ErrorType, err error, format string, args ...any) *CodecError {
	return &CodecError{Type: et, Message: fmt.Sprintf(format, args...), Err: err}
}

// ErrorTypeOf returns the ErrorType of err when it is (or wraps) a CodecError.
func ErrorTypeOf(err error) (ErrorType, bool) {
	var ce *CodecError
	if errors.As(err, &ce) {
		return ce.Type, true
	}
	return 0, false
}
