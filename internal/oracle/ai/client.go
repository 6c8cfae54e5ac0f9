// internal/oracle/ai/client.go
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"oracle-service/internal/common/logger"
	"oracle-service/internal/common/metrics"
	"oracle-service/internal/common/validation"
	"oracle-service/internal/models"

	stderrors "oracle-service/internal/common/errors"
)

// Client calls the AI inference backend. When the backend is unreachable or
// returns a server error, Analyze degrades to a deterministic fallback
// instead of failing the pipeline. A 4xx response is a hard failure: the
// request itself is bad and retrying or guessing will not fix it.
type Client struct {
	config Config
	client *http.Client
	logger logger.Logger
}

func NewClient(config Config, log logger.Logger) *Client {
	return &Client{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: log.With(map[string]interface{}{
			"component": "ai-client",
		}),
	}
}

type analyzeRequest struct {
	ProposalID       int64   `json:"proposal_id"`
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	ProposalType     string  `json:"proposal_type"`
	RequestedAmount  float64 `json:"requested_amount"`
	SubmitterAddress string  `json:"submitter_address"`
	AnalysisType     string  `json:"analysis_type"`
}

// analyzeResponse uses pointer fields so that absent optional values can be
// told apart from explicit zeros before neutral defaults are applied.
type analyzeResponse struct {
	RiskScore         *float64     `json:"risk_score"`
	FraudProbability  *float64     `json:"fraud_probability"`
	SentimentScore    *float64     `json:"sentiment_score"`
	RecommendedAction *string      `json:"recommended_action"`
	ConfidenceLevel   *float64     `json:"confidence_level"`
	ModelUsed         *string      `json:"model_used"`
	KeyInsights       insightsText `json:"key_insights"`
	DetailedAnalysis  *string      `json:"detailed_analysis"`
	ProcessingTime    *float64     `json:"processing_time"`
}

// insightsText tolerates both wire forms of key_insights: the backend sends
// a newline-joined bullet string, older agent builds sent an array.
type insightsText string

func (t *insightsText) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = ""
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*t = insightsText(single)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*t = insightsText(strings.Join(list, "\n"))
	return nil
}

// Analyze runs one proposal through the AI backend.
func (c *Client) Analyze(ctx context.Context, proposal models.Proposal) (*models.AnalysisResult, error) {
	reqBody := analyzeRequest{
		ProposalID:       proposal.ID,
		Title:            proposal.Title,
		Description:      proposal.Description,
		ProposalType:     proposal.ProposalType,
		RequestedAmount:  proposal.RequestedAmount,
		SubmitterAddress: proposal.SubmitterAddress,
		AnalysisType:     "Full",
	}

	body, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/analyze", bytes.NewBuffer(body))
	if err != nil {
		return nil, stderrors.NewInvalidRequestError(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("AI backend unreachable, using fallback analysis", map[string]interface{}{
			"proposalId": proposal.ID,
			"error":      err.Error(),
		})
		return c.fallback(proposal), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		c.logger.Warn("AI backend server error, using fallback analysis", map[string]interface{}{
			"proposalId": proposal.ID,
			"status":     resp.StatusCode,
		})
		return c.fallback(proposal), nil
	}

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, stderrors.NewInvalidRequestError(
			fmt.Sprintf("AI backend rejected request: status %d: %s", resp.StatusCode, string(detail)))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Warn("AI response read failed, using fallback analysis", map[string]interface{}{
			"proposalId": proposal.ID,
			"error":      err.Error(),
		})
		return c.fallback(proposal), nil
	}

	if err := validation.ValidateAnalysisResponse(raw); err != nil {
		return nil, err
	}

	var apiResp analyzeResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return nil, stderrors.NewInvalidRequestError(fmt.Sprintf("decode AI response: %v", err))
	}

	result := resultFromResponse(&apiResp)
	c.logger.Info("AI analysis completed", map[string]interface{}{
		"proposalId": proposal.ID,
		"riskScore":  result.RiskScore,
		"modelUsed":  result.ModelUsed,
	})

	return result, nil
}

// resultFromResponse applies neutral defaults to missing optional fields.
func resultFromResponse(r *analyzeResponse) *models.AnalysisResult {
	result := &models.AnalysisResult{
		RiskScore:         50,
		FraudProbability:  0,
		SentimentScore:    0,
		RecommendedAction: "Review",
		ConfidenceLevel:   50,
		ModelUsed:         models.DefaultModel,
		KeyInsights:       string(r.KeyInsights),
	}

	if r.RiskScore != nil {
		result.RiskScore = *r.RiskScore
	}
	if r.FraudProbability != nil {
		result.FraudProbability = *r.FraudProbability
	}
	if r.SentimentScore != nil {
		result.SentimentScore = *r.SentimentScore
	}
	if r.RecommendedAction != nil && *r.RecommendedAction != "" {
		result.RecommendedAction = *r.RecommendedAction
	}
	if r.ConfidenceLevel != nil {
		result.ConfidenceLevel = *r.ConfidenceLevel
	}
	if r.ModelUsed != nil && *r.ModelUsed != "" {
		result.ModelUsed = *r.ModelUsed
	}
	if r.DetailedAnalysis != nil {
		result.DetailedAnalysis = *r.DetailedAnalysis
	}
	if r.ProcessingTime != nil {
		result.ProcessingTime = *r.ProcessingTime
	}

	return result
}

func (c *Client) fallback(proposal models.Proposal) *models.AnalysisResult {
	metrics.FallbackAnalyses.Inc()
	return FallbackAnalysis(proposal)
}

// FallbackAnalysis is the deterministic amount-bucketed heuristic used when
// the AI backend cannot be reached. Same proposal in, same result out.
func FallbackAnalysis(proposal models.Proposal) *models.AnalysisResult {
	return &models.AnalysisResult{
		RiskScore:         FallbackRiskScore(proposal.RequestedAmount),
		FraudProbability:  20,
		SentimentScore:    0,
		RecommendedAction: "Review",
		ConfidenceLevel:   50,
		ModelUsed:         models.FallbackModel,
		KeyInsights:       "• AI service unavailable, using default analysis\n• Manual review recommended",
		DetailedAnalysis:  "AI analysis service was unavailable. Risk estimated from requested amount. Manual review recommended before voting.",
		ProcessingTime:    0,
	}
}

// FallbackRiskScore buckets the requested amount into a risk estimate.
func FallbackRiskScore(requestedAmount float64) float64 {
	switch {
	case requestedAmount > 100000:
		return 75
	case requestedAmount > 50000:
		return 60
	case requestedAmount < 10000:
		return 30
	default:
		return 50
	}
}
