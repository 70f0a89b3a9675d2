package medchain

import (
	"strconv"
	"strings"
)

// ParseBatchNumber parses user input into a batch number. Batch numbers are
// positive integers.
func ParseBatchNumber(input string) (uint64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, invalidInput("missing required field: batchNumber", "batchNumber")
	}
	n, err := strconv.ParseUint(input, 10, 64)
	if err != nil || n == 0 {
		return 0, invalidInput("batchNumber must be a positive integer", "batchNumber")
	}
	return n, nil
}

// fieldCheck collects missing or malformed fields of one request.
type fieldCheck struct {
	fields []string
}

func (c *fieldCheck) text(field, value string) {
	if strings.TrimSpace(value) == "" {
		c.fields = append(c.fields, field)
	}
}

func (c *fieldCheck) batch(field string, value uint64) {
	if value == 0 {
		c.fields = append(c.fields, field)
	}
}

func (c *fieldCheck) err() error {
	if len(c.fields) == 0 {
		return nil
	}
	return invalidInput("missing required fields: "+strings.Join(c.fields, ", "), c.fields...)
}

func invalidInput(message string, fields ...string) *GatewayError {
	return NewGatewayError(ErrCodeInvalidInput, message, map[string]interface{}{
		"fields": fields,
	})
}
