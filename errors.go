package medchain

import (
	"errors"
	"fmt"
)

// GatewayError is the error type returned by the connection manager and the
// contract gateway. Code is one of the ErrCode constants.
type GatewayError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Error codes
const (
	ErrCodeProviderMissing = "provider_missing"
	ErrCodeUserRejected    = "user_rejected"
	ErrCodeNetworkError    = "network_error"
	ErrCodeConnectionError = "connection_error"
	ErrCodeNotConnected    = "not_connected"
	ErrCodeInvalidInput    = "invalid_input"
	ErrCodeRemoteFailure   = "remote_failure"

	// ErrCodeCallAborted is only produced when a before-call hook aborts.
	ErrCodeCallAborted = "call_aborted"
)

// ErrStaleSession is wrapped into a not_connected error when the connection a
// call was dispatched under ended before the call returned.
var ErrStaleSession = errors.New("connection ended while call was in flight")

// ErrSessionBusy is wrapped into a connection_error when Connect is called
// while a session is connecting or connected.
var ErrSessionBusy = errors.New("session already connecting or connected")

// ErrManagerClosed is returned by manager operations after Close.
var ErrManagerClosed = errors.New("connection manager closed")

// NewGatewayError creates a new gateway error
func NewGatewayError(code, message string, details map[string]interface{}) *GatewayError {
	return &GatewayError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

func wrapGatewayError(code, message string, err error, details map[string]interface{}) *GatewayError {
	return &GatewayError{
		Code:    code,
		Message: message,
		Details: details,
		Err:     err,
	}
}

// ErrorCode returns the gateway error code carried by err, or "" if err is not
// a *GatewayError.
func ErrorCode(err error) string {
	var gerr *GatewayError
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return ""
}

// IsCode reports whether err carries the given gateway error code.
func IsCode(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}

// EIP-1193 provider error codes
const (
	ProviderCodeUserRejected      = 4001
	ProviderCodeUnauthorized      = 4100
	ProviderCodeUnsupportedMethod = 4200
	ProviderCodeDisconnected      = 4900
	ProviderCodeChainDisconnected = 4901
	ProviderCodeUnrecognizedChain = 4902
	ProviderCodeInvalidParams     = -32602
)

// ProviderError is an error reported by a wallet provider with an EIP-1193 code.
type ProviderError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// ErrorCode lets ProviderError satisfy the JSON-RPC error interface.
func (e *ProviderError) ErrorCode() int {
	return e.Code
}

// NewProviderError creates a new provider error
func NewProviderError(code int, message string) *ProviderError {
	return &ProviderError{Code: code, Message: message}
}

// ProviderErrorCode extracts an EIP-1193/JSON-RPC error code from err.
func ProviderErrorCode(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Code, true
	}
	var coded interface{ ErrorCode() int }
	if errors.As(err, &coded) {
		return coded.ErrorCode(), true
	}
	return 0, false
}

// IsUserRejection reports whether err is the provider's user-rejection signal.
func IsUserRejection(err error) bool {
	code, ok := ProviderErrorCode(err)
	return ok && code == ProviderCodeUserRejected
}

// IsUnrecognizedChain reports whether err says the provider does not know the chain.
func IsUnrecognizedChain(err error) bool {
	code, ok := ProviderErrorCode(err)
	return ok && code == ProviderCodeUnrecognizedChain
}
