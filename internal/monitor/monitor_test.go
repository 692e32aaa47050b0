package monitor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContractMonitor(t *testing.T) {
	testSchemaContent := `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"title": "TestSchema",
		"type": "object",
		"properties": { "name": { "type": "string" } },
		"required": ["name"]
	}`
	schemaDir := t.TempDir()
	schemaFile := filepath.Join(schemaDir, "test_schema.json")
	require.NoError(t, os.WriteFile(schemaFile, []byte(testSchemaContent), 0644))

	t.Run("SuccessfulLoad", func(t *testing.T) {
		cm, err := NewContractMonitor(schemaFile)
		require.NoError(t, err)
		require.NotNil(t, cm)

		valid, errs, err := cm.Validate([]byte(`{"name": "checkout"}`))
		require.NoError(t, err)
		assert.True(t, valid)
		assert.Empty(t, errs)
	})

	t.Run("SchemaFileNotFound", func(t *testing.T) {
		_, err := NewContractMonitor(filepath.Join(schemaDir, "missing.json"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error loading or compiling schema")
	})

	t.Run("InvalidSchemaSyntax", func(t *testing.T) {
		invalidSchemaFile := filepath.Join(schemaDir, "invalid_schema.json")
		require.NoError(t, os.WriteFile(invalidSchemaFile, []byte("{invalid_json"), 0644))
		_, err := NewContractMonitor(invalidSchemaFile)
		require.Error(t, err)
	})
}

func TestPaymentMonitor_Validate(t *testing.T) {
	cm := NewPaymentMonitor()

	tests := []struct {
		name  string
		body  string
		valid bool
	}{
		{"pending payment", `{"uuid": "p1", "amount": 12.5, "currency": "EUR", "status": "Pending"}`, true},
		{"decimal as string", `{"uuid": "p1", "amount": "12.50", "currency": "EUR", "status": "Succeeded"}`, true},
		{"unsupported status", `{"uuid": "p1", "amount": 1, "currency": "EUR", "status": "Refunded"}`, false},
		{"missing currency", `{"uuid": "p1", "amount": 1, "status": "Pending"}`, false},
		{"empty object", `{}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, errs, err := cm.Validate([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, valid)
			if !tt.valid {
				assert.NotEmpty(t, errs)
				assert.Contains(t, FormatErrors(errs), "Validation errors: ")
			}
		})
	}
}

func TestContractMonitor_ValidateMalformedJSON(t *testing.T) {
	cm := NewPaymentMonitor()
	_, _, err := cm.Validate([]byte("{not json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error during validation")
}

func TestFormatErrors(t *testing.T) {
	assert.Equal(t, "", FormatErrors(nil))
	assert.Equal(t, "Validation errors: a; b", FormatErrors([]string{"a", "b"}))
}
