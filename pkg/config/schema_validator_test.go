package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateWithSchema_Valid(t *testing.T) {
	result, err := ValidateWithSchema([]byte(minimalConfig))
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidateWithSchema_ReportsFields(t *testing.T) {
	data := minimalConfig + "  telemetry:\n    sampleRatio: 2\n"

	result, err := ValidateWithSchema([]byte(data))
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0].Field, "sampleRatio")
}

func TestValidateWithSchema_InvalidYAML(t *testing.T) {
	_, err := ValidateWithSchema([]byte("spec: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestValidateWithSchema_EmptyDocument(t *testing.T) {
	result, err := ValidateWithSchema(nil)
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestSchemaValidationError_Error(t *testing.T) {
	withValue := SchemaValidationError{Field: "spec.backlog.batchSize", Description: "Must be >= 1", Value: 0}
	assert.Equal(t, "spec.backlog.batchSize: Must be >= 1 (value: 0)", withValue.Error())

	noValue := SchemaValidationError{Field: "spec", Description: "spec is required"}
	assert.Equal(t, "spec: spec is required", noValue.Error())
}
