// internal/models/analysis.go
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FallbackModel is the sentinel model name identifying a deterministic
// fallback analysis.
const FallbackModel = "Fallback-Heuristic"

// DefaultModel is the model name reported when the AI backend omits one.
const DefaultModel = "AI-Hybrid"

// AnalysisResult is the outcome of one AI (or fallback) analysis.
// The field names follow the AI backend's snake_case wire format.
type AnalysisResult struct {
	RiskScore         float64 `json:"risk_score"`
	FraudProbability  float64 `json:"fraud_probability"`
	SentimentScore    float64 `json:"sentiment_score"`
	RecommendedAction string  `json:"recommended_action"`
	ConfidenceLevel   float64 `json:"confidence_level"`
	ModelUsed         string  `json:"model_used"`
	KeyInsights       string  `json:"key_insights,omitempty"`
	DetailedAnalysis  string  `json:"detailed_analysis,omitempty"`
	ProcessingTime    float64 `json:"processing_time"`
}

// IsFallback reports whether the result came from the deterministic fallback
// rather than the AI backend.
func (r *AnalysisResult) IsFallback() bool {
	return r.ModelUsed == FallbackModel
}

// RequestStatus is the lifecycle state of a tracked analysis request.
type RequestStatus string

const (
	StatusPending   RequestStatus = "Pending"
	StatusAnalyzed  RequestStatus = "Analyzed"
	StatusSubmitted RequestStatus = "Submitted"
	StatusFailed    RequestStatus = "Failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusSubmitted || s == StatusFailed
}

// IsActive reports whether a request in this status blocks a new request
// for the same proposal.
func (s RequestStatus) IsActive() bool {
	return s == StatusPending || s == StatusAnalyzed
}

// AnalysisRequest tracks one pass of a proposal through the pipeline.
type AnalysisRequest struct {
	RequestID       string          `json:"requestId"`
	ProposalID      int64           `json:"proposalId"`
	Proposal        Proposal        `json:"proposal"`
	Status          RequestStatus   `json:"status"`
	Analysis        *AnalysisResult `json:"analysis,omitempty"`
	TransactionHash string          `json:"transactionHash,omitempty"`
	SyntheticHash   bool            `json:"syntheticHash"`
	Error           string          `json:"error,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// NewAnalysisRequest creates a Pending request for a proposal snapshot.
func NewAnalysisRequest(p Proposal) *AnalysisRequest {
	now := time.Now().UTC()
	return &AnalysisRequest{
		RequestID:  fmt.Sprintf("req_%s", uuid.NewString()),
		ProposalID: p.ID,
		Proposal:   p,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// LedgerAttestation is the on-ledger record of an analysis. Scores are
// quantized to integers because the contract stores whole numbers.
type LedgerAttestation struct {
	RequestID         string `json:"request_id"`
	ProposalID        int64  `json:"proposal_id"`
	RiskScore         int64  `json:"risk_score"`
	FraudProbability  int64  `json:"fraud_probability"`
	SentimentScore    int64  `json:"sentiment_score"`
	RecommendedAction string `json:"recommended_action"`
	ConfidenceLevel   int64  `json:"confidence_level"`
	ModelUsed         string `json:"model_used"`
	Timestamp         int64  `json:"timestamp"`
}
