package protocol

import (
	"errors"
	"time"
)

// Core protocol errors
var (
	// Connection errors

	ErrConnectionClosed = errors.New("connection is closed")
	ErrConnectionLost   = errors.New("connection lost")

	// Message errors

	ErrMessageTooLarge       = errors.New("message too large")
	ErrInvalidMessage        = errors.New("invalid message")
	ErrSerializationFailed   = errors.New("message serialization failed")
	ErrDeserializationFailed = errors.New("message deserialization failed")
	ErrUnknownCodec          = errors.New("unknown codec")

	// Entity errors

	ErrInvalidEntityState = errors.New("invalid entity state")

	// Stream errors

	ErrStreamClosed = errors.New("stream is closed")
	ErrInvalidFrame = errors.New("invalid frame")

	// Transport errors

	ErrTransportClosed = errors.New("transport is closed")
	ErrTransportFailed = errors.New("transport failed")
	ErrListenFailed    = errors.New("listen failed")
	ErrDialFailed      = errors.New("dial failed")

	// Security errors

	ErrCertificateInvalid = errors.New("certificate invalid")
)

// ErrorCode represents a numeric error code for efficient error handling
type ErrorCode int

const (
	// Success

	ErrorCodeSuccess ErrorCode = 0

	// Connection error codes (1000-1999)

	ErrorCodeConnectionClosed ErrorCode = 1001
	ErrorCodeConnectionLost   ErrorCode = 1004

	// Message error codes (3000-3999)

	ErrorCodeMessageTooLarge       ErrorCode = 3001
	ErrorCodeInvalidMessage        ErrorCode = 3003
	ErrorCodeSerializationFailed   ErrorCode = 3005
	ErrorCodeDeserializationFailed ErrorCode = 3006
	ErrorCodeUnknownCodec          ErrorCode = 3007
	ErrorCodeInvalidEntityState    ErrorCode = 3008

	// Stream error codes (4000-4999)

	ErrorCodeStreamClosed ErrorCode = 4001
	ErrorCodeInvalidFrame ErrorCode = 4008

	// Transport error codes (7000-7999)

	ErrorCodeTransportClosed ErrorCode = 7002
	ErrorCodeTransportFailed ErrorCode = 7003
	ErrorCodeListenFailed    ErrorCode = 7006
	ErrorCodeDialFailed      ErrorCode = 7007

	// Security error codes (8000-8999)

	ErrorCodeCertificateInvalid ErrorCode = 8001

	// Generic error codes (9000-9999)

	ErrorCodeUnknownError ErrorCode = 9999
)

// Error represents a protocol-specific error with additional context
type Error struct {
	Code      ErrorCode
	Message   string
	Cause     error
	Timestamp int64
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewProtocolError creates a new protocol error
func NewProtocolError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now().Unix(),
	}
}

// Error mapping from standard errors to error codes
var errorCodeMap = map[error]ErrorCode{
	ErrConnectionClosed: ErrorCodeConnectionClosed,
	ErrConnectionLost:   ErrorCodeConnectionLost,

	ErrMessageTooLarge:       ErrorCodeMessageTooLarge,
	ErrInvalidMessage:        ErrorCodeInvalidMessage,
	ErrSerializationFailed:   ErrorCodeSerializationFailed,
	ErrDeserializationFailed: ErrorCodeDeserializationFailed,
	ErrUnknownCodec:          ErrorCodeUnknownCodec,
	ErrInvalidEntityState:    ErrorCodeInvalidEntityState,

	ErrStreamClosed: ErrorCodeStreamClosed,
	ErrInvalidFrame: ErrorCodeInvalidFrame,

	ErrTransportClosed: ErrorCodeTransportClosed,
	ErrTransportFailed: ErrorCodeTransportFailed,
	ErrListenFailed:    ErrorCodeListenFailed,
	ErrDialFailed:      ErrorCodeDialFailed,

	ErrCertificateInvalid: ErrorCodeCertificateInvalid,
}

// GetErrorCode returns the error code for a given error
func GetErrorCode(err error) ErrorCode {
	if err == nil {
		return ErrorCodeSuccess
	}
	if code, exists := errorCodeMap[err]; exists {
		return code
	}

	var protocolErr *Error
	if errors.As(err, &protocolErr) {
		return protocolErr.Code
	}

	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return ErrorCodeUnknownError
}

// WrapError wraps a standard error into a ProtocolError
func WrapError(err error, message string) *Error {
	code := GetErrorCode(err)
	return NewProtocolError(code, message, err)
}
