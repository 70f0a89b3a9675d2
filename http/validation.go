package http

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	medchain "github.com/medchain-labs/medchain/go"
)

// Request body schemas. They check shape only; empty values are left to the
// gateway so they are reported the same way on every surface.
var (
	registerBatchSchema = gojsonschema.NewStringLoader(`{
		"type": "object",
		"properties": {
			"name": {"type": "string"},
			"batchNumber": {"type": "integer", "minimum": 0, "maximum": 18446744073709551615},
			"manufacturer": {"type": "string"}
		},
		"additionalProperties": false
	}`)

	transferBatchSchema = gojsonschema.NewStringLoader(`{
		"type": "object",
		"properties": {
			"newHolder": {"type": "string"}
		},
		"additionalProperties": false
	}`)
)

// validateBody checks body against schema and returns an invalid_input error
// listing every violation.
func validateBody(schema gojsonschema.JSONLoader, body []byte) error {
	if len(body) == 0 {
		body = []byte("{}")
	}

	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return medchain.NewGatewayError(medchain.ErrCodeInvalidInput, "request body is not valid JSON", map[string]interface{}{
			"errors": []string{err.Error()},
		})
	}
	if result.Valid() {
		return nil
	}

	var violations []string
	for _, desc := range result.Errors() {
		violations = append(violations, fmt.Sprintf("%s: %s", desc.Context().String(), desc.Description()))
	}
	return medchain.NewGatewayError(medchain.ErrCodeInvalidInput, "request body does not match schema", map[string]interface{}{
		"errors": violations,
	})
}

// decodeBody unmarshals a body that already passed validateBody. Values the
// schema admits but the Go type cannot hold come back as invalid_input.
func decodeBody(body []byte, v interface{}) error {
	if len(body) == 0 {
		return nil
	}
	err := json.Unmarshal(body, v)
	if err == nil {
		return nil
	}

	details := map[string]interface{}{"errors": []string{err.Error()}}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		details["fields"] = []string{typeErr.Field}
	}
	return medchain.NewGatewayError(medchain.ErrCodeInvalidInput, "request body does not match schema", details)
}
