// internal/oracle/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"errors"

	"oracle-service/internal/common/database"
	"oracle-service/internal/common/logger"
	"oracle-service/internal/models"

	stderrors "oracle-service/internal/common/errors"
)

// PostgresGateway reads and writes the governance tables directly. Used in
// deployments where the oracle sits next to the database instead of behind
// the backend API.
type PostgresGateway struct {
	db     *database.PostgresClient
	logger logger.Logger
}

func NewPostgresGateway(db *database.PostgresClient, log logger.Logger) *PostgresGateway {
	return &PostgresGateway{
		db: db,
		logger: log.With(map[string]interface{}{
			"component": "store-postgres",
		}),
	}
}

func (g *PostgresGateway) ListUnanalyzedPending(ctx context.Context, limit int) ([]models.Proposal, error) {
	rows, err := g.db.Query(ctx, `
		SELECT id, title, description, proposal_type, requested_amount, submitter_address, status, risk_score
		FROM proposals
		WHERE status = 'Pending' AND risk_score IS NULL
		ORDER BY id
		LIMIT $1`, limit)
	if err != nil {
		return nil, stderrors.NewStoreReadFailedError(err)
	}
	defer rows.Close()

	var proposals []models.Proposal
	for rows.Next() {
		var p models.Proposal
		var riskScore sql.NullFloat64
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.ProposalType,
			&p.RequestedAmount, &p.SubmitterAddress, &p.Status, &riskScore); err != nil {
			return nil, stderrors.NewStoreReadFailedError(err)
		}
		if riskScore.Valid {
			p.RiskScore = &riskScore.Float64
		}
		proposals = append(proposals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, stderrors.NewStoreReadFailedError(err)
	}

	return proposals, nil
}

func (g *PostgresGateway) WriteAnalysis(ctx context.Context, proposalID int64, result *models.AnalysisResult) error {
	_, err := g.db.Exec(ctx, `
		INSERT INTO ai_analyses
			(proposal_id, risk_score, fraud_probability, sentiment_score,
			 recommended_action, confidence_level, model_used, analysis_type,
			 key_insights, detailed_analysis, processing_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'Full', $8, $9, $10)
		ON CONFLICT (proposal_id) DO UPDATE SET
			risk_score = EXCLUDED.risk_score,
			fraud_probability = EXCLUDED.fraud_probability,
			sentiment_score = EXCLUDED.sentiment_score,
			recommended_action = EXCLUDED.recommended_action,
			confidence_level = EXCLUDED.confidence_level,
			model_used = EXCLUDED.model_used,
			key_insights = EXCLUDED.key_insights,
			detailed_analysis = EXCLUDED.detailed_analysis,
			processing_time = EXCLUDED.processing_time`,
		proposalID, result.RiskScore, result.FraudProbability, result.SentimentScore,
		result.RecommendedAction, result.ConfidenceLevel, result.ModelUsed,
		result.KeyInsights, result.DetailedAnalysis, result.ProcessingTime)
	if err != nil {
		return stderrors.NewStoreWriteFailedError(err)
	}

	_, err = g.db.Exec(ctx, `UPDATE proposals SET risk_score = $1 WHERE id = $2`,
		result.RiskScore, proposalID)
	if err != nil {
		return stderrors.NewStoreWriteFailedError(err)
	}

	g.logger.Info("analysis written to database", map[string]interface{}{
		"proposalId": proposalID,
		"riskScore":  result.RiskScore,
	})

	return nil
}

func (g *PostgresGateway) ReadProposal(ctx context.Context, proposalID int64) (*models.Proposal, error) {
	var p models.Proposal
	var riskScore sql.NullFloat64

	err := g.db.QueryRow(ctx, `
		SELECT id, title, description, proposal_type, requested_amount, submitter_address, status, risk_score
		FROM proposals
		WHERE id = $1`, proposalID).
		Scan(&p.ID, &p.Title, &p.Description, &p.ProposalType,
			&p.RequestedAmount, &p.SubmitterAddress, &p.Status, &riskScore)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, stderrors.NewProposalNotFoundError(proposalID)
	}
	if err != nil {
		return nil, stderrors.NewStoreReadFailedError(err)
	}

	if riskScore.Valid {
		p.RiskScore = &riskScore.Float64
	}

	return &p, nil
}
