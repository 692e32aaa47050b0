// Package monitor validates backend documents against the JSON contract the
// checkout relies on, so that shape drift surfaces as an explicit error rather
// than a half-populated payment.
package monitor

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// PaymentSchema is the contract for the public payment document. Statuses
// outside the lifecycle are rejected, which renders the payment invalid.
const PaymentSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"title": "PublicPayment",
	"type": "object",
	"properties": {
		"uuid": { "type": "string", "minLength": 1 },
		"amount": { "type": ["number", "string"] },
		"currency": { "type": "string", "minLength": 3, "maxLength": 3 },
		"status": { "enum": ["Pending", "Processing", "Succeeded", "Failed", "Canceled"] },
		"type": { "type": "string" },
		"provider": { "type": "string" },
		"metadata": { "type": "object" }
	},
	"required": ["uuid", "amount", "currency", "status"]
}`

// ContractMonitor validates documents against a compiled JSON schema.
type ContractMonitor struct {
	schema *gojsonschema.Schema
}

// NewContractMonitor creates a ContractMonitor from a schema file.
func NewContractMonitor(schemaPath string) (*ContractMonitor, error) {
	abs, err := filepath.Abs(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("error loading or compiling schema %s: %w", schemaPath, err)
	}
	return compile(gojsonschema.NewReferenceLoader("file://"+filepath.ToSlash(abs)), schemaPath)
}

// NewContractMonitorFromSchema creates a ContractMonitor from an in-memory schema.
func NewContractMonitorFromSchema(schema string) (*ContractMonitor, error) {
	return compile(gojsonschema.NewStringLoader(schema), "inline")
}

// NewPaymentMonitor returns a monitor for PaymentSchema.
func NewPaymentMonitor() *ContractMonitor {
	cm, err := NewContractMonitorFromSchema(PaymentSchema)
	if err != nil {
		panic(fmt.Sprintf("payment schema does not compile: %v", err))
	}
	return cm
}

func compile(loader gojsonschema.JSONLoader, name string) (*ContractMonitor, error) {
	schema, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return nil, fmt.Errorf("error loading or compiling schema %s: %w", name, err)
	}
	return &ContractMonitor{schema: schema}, nil
}

// Validate validates the given body against the schema.
// It returns true if valid, or false and a list of validation errors if invalid.
func (cm *ContractMonitor) Validate(body []byte) (bool, []string, error) {
	result, err := cm.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return false, nil, fmt.Errorf("error during validation: %w", err)
	}

	if result.Valid() {
		return true, nil, nil
	}

	var errors []string
	for _, desc := range result.Errors() {
		errors = append(errors, desc.String())
	}
	return false, errors, nil
}

// FormatErrors formats a slice of validation error strings into a single string.
func FormatErrors(validationErrors []string) string {
	if len(validationErrors) == 0 {
		return ""
	}
	return "Validation errors: " + strings.Join(validationErrors, "; ")
}
