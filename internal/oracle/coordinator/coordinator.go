// internal/oracle/coordinator/coordinator.go
package coordinator

import (
	"context"
	"sync"
	"time"

	"oracle-service/internal/common/logger"
	"oracle-service/internal/common/metrics"
	"oracle-service/internal/common/observability"
	"oracle-service/internal/models"
	"oracle-service/internal/oracle/ledger"
	"oracle-service/internal/oracle/store"
	"oracle-service/internal/oracle/tracker"

	stderrors "oracle-service/internal/common/errors"
)

// AnalysisClient produces an analysis for a proposal.
type AnalysisClient interface {
	Analyze(ctx context.Context, proposal models.Proposal) (*models.AnalysisResult, error)
}

// LedgerClient attests analyses on the ledger.
type LedgerClient interface {
	Submit(ctx context.Context, proposalID int64, result *models.AnalysisResult) (*ledger.TxResult, error)
	GetLatest(ctx context.Context, proposalID int64) (*models.LedgerAttestation, error)
}

// Result is what a caller gets back from a completed pipeline run.
type Result struct {
	RequestID       string                 `json:"requestId"`
	Status          models.RequestStatus   `json:"status"`
	TransactionHash string                 `json:"transactionHash,omitempty"`
	SyntheticHash   bool                   `json:"syntheticHash"`
	Analysis        *models.AnalysisResult `json:"analysis,omitempty"`
}

// Coordinator drives a proposal through analyze, attest, and write-back.
type Coordinator struct {
	ai      AnalysisClient
	ledger  LedgerClient
	store   store.Gateway
	tracker *tracker.Tracker
	markers Markers
	obs     *observability.Observability
	logger  logger.Logger

	queue   chan models.Proposal
	workers int
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

type Options struct {
	QueueSize int
	Workers   int
}

func New(ai AnalysisClient, lc LedgerClient, gw store.Gateway, tr *tracker.Tracker,
	markers Markers, obs *observability.Observability, log logger.Logger, opts Options) *Coordinator {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	return &Coordinator{
		ai:      ai,
		ledger:  lc,
		store:   gw,
		tracker: tr,
		markers: markers,
		obs:     obs,
		logger: log.With(map[string]interface{}{
			"component": "coordinator",
		}),
		queue:   make(chan models.Proposal, opts.QueueSize),
		workers: opts.Workers,
	}
}

// RequestAnalysis runs the full pipeline synchronously: Pending, Analyzed,
// then Submitted or Failed. Fallback analyses flow through like real ones.
// The store write-back is best effort and never fails a submitted request.
func (c *Coordinator) RequestAnalysis(ctx context.Context, proposal models.Proposal) (*Result, error) {
	return c.process(ctx, proposal, "api")
}

// ProcessBackground is the scanner and webhook entry point. The outcome is
// logged, not returned.
func (c *Coordinator) ProcessBackground(ctx context.Context, proposal models.Proposal, source string) {
	if _, err := c.process(ctx, proposal, source); err != nil {
		c.logger.Error("background analysis failed", map[string]interface{}{
			"proposalId": proposal.ID,
			"source":     source,
			"error":      err.Error(),
		})
	}
}

func (c *Coordinator) process(ctx context.Context, proposal models.Proposal, source string) (*Result, error) {
	started := time.Now()

	req, err := c.tracker.Create(proposal)
	if err != nil {
		return nil, err
	}

	log := c.logger.With(map[string]interface{}{
		"requestId":  req.RequestID,
		"proposalId": proposal.ID,
		"source":     source,
	})
	log.Info("analysis request accepted", nil)

	fail := func(cause error) (*Result, error) {
		_ = c.tracker.MarkFailed(req.RequestID, cause)
		metrics.AnalysesCompleted.WithLabelValues(source, string(models.StatusFailed)).Inc()
		metrics.AnalysesFailed.WithLabelValues(source, string(stderrors.CodeOf(cause))).Inc()
		c.obs.RecordAnalysisProcessed(ctx, string(models.StatusFailed))
		c.obs.RecordAnalysisDuration(ctx, time.Since(started), string(models.StatusFailed))
		return nil, cause
	}

	// Stage 1: analysis
	aiStart := time.Now()
	result, err := c.ai.Analyze(ctx, proposal)
	if err != nil {
		log.Error("analysis stage failed", map[string]interface{}{"error": err.Error()})
		return fail(err)
	}
	metrics.StageDuration.WithLabelValues("analyze").Observe(time.Since(aiStart).Seconds())

	if err := c.tracker.MarkAnalyzed(req.RequestID, result); err != nil {
		return fail(err)
	}
	log.Info("analysis produced", map[string]interface{}{
		"riskScore": result.RiskScore,
		"modelUsed": result.ModelUsed,
		"fallback":  result.IsFallback(),
	})

	// Stage 2: ledger attestation, exactly one submit per request
	ledgerStart := time.Now()
	tx, err := c.ledger.Submit(ctx, proposal.ID, result)
	if err != nil {
		log.Error("ledger stage failed", map[string]interface{}{"error": err.Error()})
		return fail(err)
	}
	metrics.StageDuration.WithLabelValues("attest").Observe(time.Since(ledgerStart).Seconds())

	if err := c.tracker.MarkSubmitted(req.RequestID, tx.Hash, tx.Synthetic); err != nil {
		return fail(err)
	}
	log.Info("attestation recorded", map[string]interface{}{
		"transactionHash": tx.Hash,
		"synthetic":       tx.Synthetic,
	})

	if err := c.markers.MarkAnalyzed(ctx, proposal.ID); err != nil {
		log.Warn("analyzed marker not set", map[string]interface{}{"error": err.Error()})
	}

	// Stage 3: best-effort write-back. A failure here is logged and the
	// ledger submission stands; the request is already Submitted.
	c.writeBack(proposal.ID, result, log)

	metrics.AnalysesCompleted.WithLabelValues(source, string(models.StatusSubmitted)).Inc()
	c.obs.RecordAnalysisProcessed(ctx, string(models.StatusSubmitted))
	c.obs.RecordAnalysisDuration(ctx, time.Since(started), string(models.StatusSubmitted))

	return &Result{
		RequestID:       req.RequestID,
		Status:          models.StatusSubmitted,
		TransactionHash: tx.Hash,
		SyntheticHash:   tx.Synthetic,
		Analysis:        result,
	}, nil
}

// writeBack persists the result to the store with one retry. It runs on a
// fresh context so a caller timeout cannot cut the write short.
func (c *Coordinator) writeBack(proposalID int64, result *models.AnalysisResult, log logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	err := c.store.WriteAnalysis(ctx, proposalID, result)
	if err != nil {
		log.Warn("store write-back failed, retrying once", map[string]interface{}{"error": err.Error()})
		err = c.store.WriteAnalysis(ctx, proposalID, result)
	}
	metrics.StageDuration.WithLabelValues("writeback").Observe(time.Since(start).Seconds())

	if err != nil {
		log.Error("store write-back failed after retry, ledger result stands", map[string]interface{}{
			"proposalId": proposalID,
			"error":      err.Error(),
		})
	}
}

// SubmitAnalysis attests an already-computed analysis without running the AI
// stage. When requestID names a tracked request, that request is updated.
func (c *Coordinator) SubmitAnalysis(ctx context.Context, proposalID int64, requestID string, result *models.AnalysisResult) (*Result, error) {
	tx, err := c.ledger.Submit(ctx, proposalID, result)
	if err != nil {
		if requestID != "" {
			_ = c.tracker.MarkFailed(requestID, err)
		}
		return nil, err
	}

	if requestID != "" {
		if err := c.tracker.MarkSubmitted(requestID, tx.Hash, tx.Synthetic); err != nil {
			c.logger.Warn("submitted analysis for untracked request", map[string]interface{}{
				"requestId": requestID,
			})
		}
	}

	_ = c.markers.MarkAnalyzed(ctx, proposalID)
	c.writeBack(proposalID, result, c.logger)

	return &Result{
		RequestID:       requestID,
		Status:          models.StatusSubmitted,
		TransactionHash: tx.Hash,
		SyntheticHash:   tx.Synthetic,
		Analysis:        result,
	}, nil
}

// Status looks up a tracked request.
func (c *Coordinator) Status(requestID string) (*models.AnalysisRequest, error) {
	return c.tracker.Get(requestID)
}

// InFlight reports whether a proposal has an active request.
func (c *Coordinator) InFlight(proposalID int64) bool {
	return c.tracker.InFlight(proposalID)
}

// IsMarkedAnalyzed consults the marker cache.
func (c *Coordinator) IsMarkedAnalyzed(ctx context.Context, proposalID int64) bool {
	marked, _ := c.markers.IsAnalyzed(ctx, proposalID)
	return marked
}

// Enqueue hands a proposal to the background workers. Returns QUEUE_FULL
// when the buffer is exhausted.
func (c *Coordinator) Enqueue(proposal models.Proposal) error {
	select {
	case c.queue <- proposal:
		return nil
	default:
		return stderrors.NewQueueFullError()
	}
}

// Start launches the background worker pool.
func (c *Coordinator) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case proposal := <-c.queue:
					c.ProcessBackground(ctx, proposal, "webhook")
				}
			}
		}()
	}

	c.logger.Info("background workers started", map[string]interface{}{
		"workers":   c.workers,
		"queueSize": cap(c.queue),
	})
}

// Stop shuts the worker pool down and waits for in-flight work.
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}
