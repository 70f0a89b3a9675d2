package medchain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBatchNumber(t *testing.T) {
	n, err := ParseBatchNumber(" 1001 ")
	require.NoError(t, err)
	assert.Equal(t, uint64(1001), n)

	for _, input := range []string{"", "   ", "0", "-4", "12a", "1.5", "99999999999999999999999"} {
		_, err := ParseBatchNumber(input)
		assert.True(t, IsCode(err, ErrCodeInvalidInput), "input %q: got %v", input, err)
	}
}

func TestFieldCheck(t *testing.T) {
	var check fieldCheck
	assert.NoError(t, check.err())

	check.text("name", " ")
	check.batch("batchNumber", 0)
	check.text("manufacturer", "Acme")

	err := check.err()
	require.Error(t, err)
	gerr, ok := err.(*GatewayError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeInvalidInput, gerr.Code)
	assert.Equal(t, []string{"name", "batchNumber"}, gerr.Details["fields"])
	assert.Equal(t, "missing required fields: name, batchNumber", gerr.Message)
}
