package http

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	medchain "github.com/medchain-labs/medchain/go"
)

func TestValidateBody(t *testing.T) {
	tests := []struct {
		name   string
		schema string
		body   string
		valid  bool
	}{
		{"register ok", "register", `{"name":"Aspirin","batchNumber":1,"manufacturer":"Acme"}`, true},
		{"register partial", "register", `{"name":"Aspirin"}`, true},
		{"register empty body", "register", ``, true},
		{"register negative batch", "register", `{"batchNumber":-1}`, false},
		{"register fractional batch", "register", `{"batchNumber":1.5}`, false},
		{"register max batch", "register", `{"batchNumber":18446744073709551615}`, true},
		{"register batch past max", "register", `{"batchNumber":18446744073709551616}`, false},
		{"register extra field", "register", `{"owner":"me"}`, false},
		{"register array", "register", `[]`, false},
		{"transfer ok", "transfer", `{"newHolder":"0xB0b0000000000000000000000000000000000002"}`, true},
		{"transfer number holder", "transfer", `{"newHolder":7}`, false},
		{"malformed", "transfer", `{"newHolder":`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema := registerBatchSchema
			if tt.schema == "transfer" {
				schema = transferBatchSchema
			}

			err := validateBody(schema, []byte(tt.body))
			if tt.valid {
				assert.NoError(t, err)
				return
			}

			var gerr *medchain.GatewayError
			require.True(t, errors.As(err, &gerr), "got %v", err)
			assert.Equal(t, medchain.ErrCodeInvalidInput, gerr.Code)
			assert.NotEmpty(t, gerr.Details["errors"])
		})
	}
}

func TestDecodeBody(t *testing.T) {
	var req registerBatchRequest
	require.NoError(t, decodeBody([]byte(`{"name":"Aspirin","batchNumber":18446744073709551615,"manufacturer":"Acme"}`), &req))
	assert.Equal(t, uint64(18446744073709551615), req.BatchNumber)

	require.NoError(t, decodeBody(nil, &req))

	err := decodeBody([]byte(`{"name":"A","batchNumber":100000000000000000000,"manufacturer":"B"}`), &registerBatchRequest{})
	var gerr *medchain.GatewayError
	require.True(t, errors.As(err, &gerr), "got %v", err)
	assert.Equal(t, medchain.ErrCodeInvalidInput, gerr.Code)
	assert.Equal(t, []string{"batchNumber"}, gerr.Details["fields"])
}
