// internal/oracle/store/gateway.go
package store

import (
	"context"

	"oracle-service/internal/models"
)

// Gateway reads proposals from and writes analysis results back to the
// governance store. WriteAnalysis must be idempotent: re-writing the same
// result is harmless.
type Gateway interface {
	// ListUnanalyzedPending returns up to limit Pending proposals that have
	// no risk score yet.
	ListUnanalyzedPending(ctx context.Context, limit int) ([]models.Proposal, error)

	// WriteAnalysis persists a completed analysis for a proposal.
	WriteAnalysis(ctx context.Context, proposalID int64, result *models.AnalysisResult) error

	// ReadProposal fetches one proposal by id.
	ReadProposal(ctx context.Context, proposalID int64) (*models.Proposal, error)
}
