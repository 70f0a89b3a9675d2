package medchain

import (
	"errors"
	"fmt"
	"testing"
)

type codedError struct{ code int }

func (e codedError) Error() string  { return fmt.Sprintf("rpc error %d", e.code) }
func (e codedError) ErrorCode() int { return e.code }

func TestProviderErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     int
		ok       bool
		rejected bool
		unknown  bool
	}{
		{"nil", nil, 0, false, false, false},
		{"plain", errors.New("boom"), 0, false, false, false},
		{"provider error", NewProviderError(ProviderCodeUserRejected, "no"), ProviderCodeUserRejected, true, true, false},
		{"wrapped provider error", fmt.Errorf("send: %w", NewProviderError(ProviderCodeUnrecognizedChain, "?")), ProviderCodeUnrecognizedChain, true, false, true},
		{"json-rpc error", codedError{code: ProviderCodeUserRejected}, ProviderCodeUserRejected, true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := ProviderErrorCode(tt.err)
			if code != tt.code || ok != tt.ok {
				t.Errorf("Expected (%d, %v), got (%d, %v)", tt.code, tt.ok, code, ok)
			}
			if IsUserRejection(tt.err) != tt.rejected {
				t.Errorf("IsUserRejection mismatch for %v", tt.err)
			}
			if IsUnrecognizedChain(tt.err) != tt.unknown {
				t.Errorf("IsUnrecognizedChain mismatch for %v", tt.err)
			}
		})
	}
}

func TestGatewayErrorUnwrap(t *testing.T) {
	cause := NewProviderError(ProviderCodeUserRejected, "no")
	err := fmt.Errorf("outer: %w", wrapGatewayError(ErrCodeUserRejected, "rejected", cause, nil))

	if ErrorCode(err) != ErrCodeUserRejected {
		t.Errorf("Expected code %s, got %s", ErrCodeUserRejected, ErrorCode(err))
	}
	if !errors.Is(err, cause) {
		t.Error("Expected cause to be reachable through Unwrap")
	}
	if IsCode(nil, ErrCodeUserRejected) {
		t.Error("nil error must not carry a code")
	}
	if ErrorCode(errors.New("plain")) != "" {
		t.Error("plain errors carry no code")
	}
}

func TestShortAddress(t *testing.T) {
	if got := ShortAddress("0x573C0D90761D099d2bb71813BEe1610A66D063a6"); got != "0x573C...63a6" {
		t.Errorf("Unexpected short address %q", got)
	}
	if got := ShortAddress("0x1234"); got != "0x1234" {
		t.Errorf("Short input must be returned unchanged, got %q", got)
	}
}
