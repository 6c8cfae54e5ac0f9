// Package validation holds the JSON schemas for payloads crossing the
// service boundary.
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	stderrors "oracle-service/internal/common/errors"
)

const analyzeRequestSchema = `{
	"type": "object",
	"properties": {
		"proposalId":       {"type": "integer", "minimum": 1},
		"title":            {"type": "string", "minLength": 1, "maxLength": 500},
		"description":      {"type": "string"},
		"proposalType":     {"type": "string"},
		"requestedAmount":  {"type": "number", "minimum": 0},
		"submitterAddress": {"type": "string"}
	},
	"required": ["proposalId", "title"],
	"additionalProperties": true
}`

const analysisResponseSchema = `{
	"type": "object",
	"properties": {
		"risk_score":         {"type": "number", "minimum": 0, "maximum": 100},
		"fraud_probability":  {"type": "number", "minimum": 0, "maximum": 100},
		"sentiment_score":    {"type": "number", "minimum": -100, "maximum": 100},
		"recommended_action": {"type": "string"},
		"confidence_level":   {"type": "number", "minimum": 0, "maximum": 100},
		"model_used":         {"type": "string"},
		"key_insights":       {"type": ["array", "string", "null"]},
		"detailed_analysis":  {"type": ["string", "null"]},
		"processing_time":    {"type": ["number", "null"]}
	},
	"additionalProperties": true
}`

var (
	analyzeRequestLoader   = gojsonschema.NewStringLoader(analyzeRequestSchema)
	analysisResponseLoader = gojsonschema.NewStringLoader(analysisResponseSchema)
)

// ValidateAnalyzeRequest checks an inbound analysis request body.
func ValidateAnalyzeRequest(raw []byte) error {
	return validate(analyzeRequestLoader, raw)
}

// ValidateAnalysisResponse checks an AI backend response body.
func ValidateAnalysisResponse(raw []byte) error {
	return validate(analysisResponseLoader, raw)
}

func validate(schema gojsonschema.JSONLoader, raw []byte) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return stderrors.NewInvalidRequestError(fmt.Sprintf("malformed JSON: %v", err))
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}
		return stderrors.NewInvalidRequestError(strings.Join(messages, "; "))
	}

	return nil
}
