package http

import (
	"errors"
	"net/http"

	medchain "github.com/medchain-labs/medchain/go"
)

// statusFor maps a gateway error to an HTTP status.
func statusFor(op medchain.Operation, err error) int {
	if errors.Is(err, medchain.ErrManagerClosed) {
		return http.StatusServiceUnavailable
	}

	switch medchain.ErrorCode(err) {
	case medchain.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case medchain.ErrCodeNotConnected:
		return http.StatusConflict
	case medchain.ErrCodeUserRejected, medchain.ErrCodeCallAborted:
		return http.StatusForbidden
	case medchain.ErrCodeProviderMissing:
		return http.StatusServiceUnavailable
	case medchain.ErrCodeNetworkError, medchain.ErrCodeConnectionError:
		return http.StatusBadGateway
	case medchain.ErrCodeRemoteFailure:
		if op == medchain.OpLookupBatch {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func toErrorBody(err error) errorBody {
	var gerr *medchain.GatewayError
	if errors.As(err, &gerr) {
		return errorBody{Code: gerr.Code, Message: gerr.Message, Details: gerr.Details}
	}
	return errorBody{Code: "internal_error", Message: err.Error()}
}
