// internal/oracle/store/http.go
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"oracle-service/internal/common/logger"
	"oracle-service/internal/models"

	stderrors "oracle-service/internal/common/errors"
)

// HTTPGateway talks to the governance backend API.
type HTTPGateway struct {
	config Config
	client *http.Client
	logger logger.Logger
}

func NewHTTPGateway(config Config, log logger.Logger) *HTTPGateway {
	return &HTTPGateway{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: log.With(map[string]interface{}{
			"component": "store-http",
		}),
	}
}

func (g *HTTPGateway) ListUnanalyzedPending(ctx context.Context, limit int) ([]models.Proposal, error) {
	url := fmt.Sprintf("%s/api/proposals?status=Pending&pageSize=%d", g.config.BaseURL, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, stderrors.NewStoreReadFailedError(err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, stderrors.NewStoreReadFailedError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, stderrors.NewStoreReadFailedError(fmt.Errorf("list proposals: status %d", resp.StatusCode))
	}

	var payload struct {
		Proposals []models.Proposal `json:"proposals"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, stderrors.NewStoreReadFailedError(fmt.Errorf("decode proposals: %w", err))
	}

	// The status filter is server-side but the risk score filter is not.
	unanalyzed := make([]models.Proposal, 0, len(payload.Proposals))
	for _, p := range payload.Proposals {
		if !p.Analyzed() {
			unanalyzed = append(unanalyzed, p)
		}
	}

	return unanalyzed, nil
}

type saveAnalysisRequest struct {
	ProposalID        int64   `json:"proposalId"`
	RiskScore         float64 `json:"riskScore"`
	FraudProbability  float64 `json:"fraudProbability"`
	SentimentScore    float64 `json:"sentimentScore"`
	RecommendedAction string  `json:"recommendedAction"`
	ConfidenceLevel   float64 `json:"confidenceLevel"`
	ModelUsed         string  `json:"modelUsed"`
	AnalysisType      string  `json:"analysisType"`
	KeyInsights       string  `json:"keyInsights,omitempty"`
	DetailedAnalysis  string  `json:"detailedAnalysis,omitempty"`
	ProcessingTime    float64 `json:"processingTime"`
}

func (g *HTTPGateway) WriteAnalysis(ctx context.Context, proposalID int64, result *models.AnalysisResult) error {
	body, _ := json.Marshal(saveAnalysisRequest{
		ProposalID:        proposalID,
		RiskScore:         result.RiskScore,
		FraudProbability:  result.FraudProbability,
		SentimentScore:    result.SentimentScore,
		RecommendedAction: result.RecommendedAction,
		ConfidenceLevel:   result.ConfidenceLevel,
		ModelUsed:         result.ModelUsed,
		AnalysisType:      "Full",
		KeyInsights:       result.KeyInsights,
		DetailedAnalysis:  result.DetailedAnalysis,
		ProcessingTime:    result.ProcessingTime,
	})

	url := g.config.BaseURL + "/api/aianalysis/save"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return stderrors.NewStoreWriteFailedError(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return stderrors.NewStoreWriteFailedError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return stderrors.NewStoreWriteFailedError(fmt.Errorf("save analysis: status %d", resp.StatusCode))
	}

	g.logger.Info("analysis written back to store", map[string]interface{}{
		"proposalId": proposalID,
		"riskScore":  result.RiskScore,
	})

	return nil
}

func (g *HTTPGateway) ReadProposal(ctx context.Context, proposalID int64) (*models.Proposal, error) {
	url := fmt.Sprintf("%s/api/proposals/%d", g.config.BaseURL, proposalID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, stderrors.NewStoreReadFailedError(err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, stderrors.NewStoreReadFailedError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, stderrors.NewProposalNotFoundError(proposalID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, stderrors.NewStoreReadFailedError(fmt.Errorf("read proposal: status %d", resp.StatusCode))
	}

	var proposal models.Proposal
	if err := json.NewDecoder(resp.Body).Decode(&proposal); err != nil {
		return nil, stderrors.NewStoreReadFailedError(fmt.Errorf("decode proposal: %w", err))
	}

	return &proposal, nil
}
