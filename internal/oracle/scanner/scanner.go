// internal/oracle/scanner/scanner.go
package scanner

import (
	"context"
	"time"

	"oracle-service/internal/common/logger"
	"oracle-service/internal/common/metrics"
	"oracle-service/internal/models"
	"oracle-service/internal/oracle/store"
)

// Processor is the coordinator surface the scanner needs.
type Processor interface {
	ProcessBackground(ctx context.Context, proposal models.Proposal, source string)
	InFlight(proposalID int64) bool
	IsMarkedAnalyzed(ctx context.Context, proposalID int64) bool
}

// Config holds the periodic scan settings.
type Config struct {
	Interval  time.Duration
	BatchSize int
	ItemDelay time.Duration
}

// Scanner periodically sweeps the store for Pending proposals without an
// analysis and pushes them through the pipeline. It is a safety net for
// missed webhooks; everything it does is idempotent at the batch level.
type Scanner struct {
	config    Config
	store     store.Gateway
	processor Processor
	logger    logger.Logger
}

func New(config Config, gw store.Gateway, processor Processor, log logger.Logger) *Scanner {
	return &Scanner{
		config:    config,
		store:     gw,
		processor: processor,
		logger: log.With(map[string]interface{}{
			"component": "scanner",
		}),
	}
}

// Run ticks until the context is cancelled. Scan errors are logged and the
// next tick proceeds normally.
func (s *Scanner) Run(ctx context.Context) {
	s.logger.Info("scanner started", map[string]interface{}{
		"interval":  s.config.Interval.String(),
		"batchSize": s.config.BatchSize,
	})

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scanner stopped", nil)
			return
		case <-ticker.C:
			if _, err := s.ScanOnce(ctx); err != nil {
				s.logger.Error("scan failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

// ScanOnce sweeps one batch and returns how many proposals it dispatched.
// Proposals that are already analyzed, marked, or in flight are skipped.
func (s *Scanner) ScanOnce(ctx context.Context) (int, error) {
	proposals, err := s.store.ListUnanalyzedPending(ctx, s.config.BatchSize)
	if err != nil {
		return 0, err
	}

	metrics.ScannerBatchSize.Set(float64(len(proposals)))
	if len(proposals) == 0 {
		return 0, nil
	}

	s.logger.Info("scan batch picked up", map[string]interface{}{
		"count": len(proposals),
	})

	dispatched := 0
	for _, proposal := range proposals {
		if proposal.Analyzed() {
			continue
		}
		if s.processor.InFlight(proposal.ID) {
			s.logger.Debug("skipping proposal with in-flight request", map[string]interface{}{
				"proposalId": proposal.ID,
			})
			continue
		}
		if s.processor.IsMarkedAnalyzed(ctx, proposal.ID) {
			s.logger.Debug("skipping proposal already attested", map[string]interface{}{
				"proposalId": proposal.ID,
			})
			continue
		}

		// Spread requests out so a batch does not slam the AI backend.
		if dispatched > 0 {
			select {
			case <-ctx.Done():
				return dispatched, ctx.Err()
			case <-time.After(s.config.ItemDelay):
			}
		}

		s.processor.ProcessBackground(ctx, proposal, "scanner")
		dispatched++
	}

	return dispatched, nil
}
