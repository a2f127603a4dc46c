package easybus

import (
	"errors"
	"fmt"
)

var (
	// ErrNoData indicates the instrument did not answer before the read timeout.
	ErrNoData = errors.New("easybus: no data received")
	// ErrMalformedResponse indicates a reply too short for the requested decode.
	ErrMalformedResponse = errors.New("easybus: malformed response")
	// ErrUnrecognizedCode matches both UnknownErrorCodeError and
	// UnknownUnitCodeError.
	ErrUnrecognizedCode = errors.New("easybus: unrecognized code")
)

// TransportError wraps a failure of the underlying port.
type TransportError struct {
	Op  string // "write" or "read"
	Err error
}

// Error implements error.
func (e *TransportError) Error() string {
	return fmt.Sprintf("easybus: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the port error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// DeviceError is an error condition reported by the instrument itself.
type DeviceError struct {
	Code uint32
	Kind DeviceErrorKind
}

// Error implements error.
func (e *DeviceError) Error() string {
	return fmt.Sprintf("easybus: device reported %s (code %d)", e.Kind, e.Code)
}

// UnknownErrorCodeError is returned when the instrument reports an error code
// missing from the error table.
type UnknownErrorCodeError struct {
	Code uint32
}

// Error implements error.
func (e *UnknownErrorCodeError) Error() string {
	return fmt.Sprintf("easybus: unrecognized device error code %d", e.Code)
}

// Is reports whether target is ErrUnrecognizedCode.
func (e *UnknownErrorCodeError) Is(target error) bool {
	return target == ErrUnrecognizedCode
}

// UnknownUnitCodeError is returned when a display unit code is missing from
// the unit table.
type UnknownUnitCodeError struct {
	Code uint16
}

// Error implements error.
func (e *UnknownUnitCodeError) Error() string {
	return fmt.Sprintf("easybus: unrecognized unit code %d", e.Code)
}

// Is reports whether target is ErrUnrecognizedCode.
func (e *UnknownUnitCodeError) Is(target error) bool {
	return target == ErrUnrecognizedCode
}

func malformed(need, got int) error {
	return fmt.Errorf("%w: need at least %d bytes, got %d", ErrMalformedResponse, need, got)
}
