package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "oracle-service/internal/common/errors"
)

func TestValidateAnalyzeRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{
			name: "valid full request",
			body: `{"proposalId": 42, "title": "Solar Grant", "description": "Fund panels",
				"proposalType": "Grant", "requestedAmount": 75000, "submitterAddress": "0xabc"}`,
			wantErr: false,
		},
		{
			name:    "minimal request",
			body:    `{"proposalId": 1, "title": "x"}`,
			wantErr: false,
		},
		{
			name:    "missing proposalId",
			body:    `{"title": "Solar Grant"}`,
			wantErr: true,
		},
		{
			name:    "empty title",
			body:    `{"proposalId": 1, "title": ""}`,
			wantErr: true,
		},
		{
			name:    "negative amount",
			body:    `{"proposalId": 1, "title": "x", "requestedAmount": -5}`,
			wantErr: true,
		},
		{
			name:    "fractional proposalId",
			body:    `{"proposalId": 1.5, "title": "x"}`,
			wantErr: true,
		},
		{
			name:    "malformed JSON",
			body:    `{"proposalId": `,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAnalyzeRequest([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeInvalidRequest))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAnalysisResponse(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{
			name: "valid response",
			body: `{"risk_score": 65.5, "fraud_probability": 12, "sentiment_score": 30,
				"recommended_action": "Approve", "confidence_level": 88, "model_used": "AI-Hybrid",
				"key_insights": ["strong submitter history"], "processing_time": 412}`,
			wantErr: false,
		},
		{
			name:    "missing optional fields allowed",
			body:    `{"risk_score": 50}`,
			wantErr: false,
		},
		{
			name:    "risk score out of range",
			body:    `{"risk_score": 140}`,
			wantErr: true,
		},
		{
			name:    "risk score wrong type",
			body:    `{"risk_score": "high"}`,
			wantErr: true,
		},
		{
			name:    "array body",
			body:    `[1, 2, 3]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAnalysisResponse([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeInvalidRequest))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
