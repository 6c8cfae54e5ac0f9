// internal/oracle/tracker/tracker.go
package tracker

import (
	"sync"
	"time"

	"oracle-service/internal/common/metrics"
	"oracle-service/internal/models"

	stderrors "oracle-service/internal/common/errors"
)

// Tracker is the in-memory registry of analysis requests. It enforces the
// one-active-request-per-proposal rule: while a request for a proposal is
// Pending or Analyzed, a second Create for the same proposal is rejected.
//
// Terminal requests are kept for status lookups and never evicted; memory
// grows with the number of requests served over the process lifetime.
type Tracker struct {
	mu       sync.Mutex
	requests map[string]*models.AnalysisRequest
	active   map[int64]string
}

func New() *Tracker {
	return &Tracker{
		requests: make(map[string]*models.AnalysisRequest),
		active:   make(map[int64]string),
	}
}

// Create registers a new Pending request for the proposal. If another
// request for the same proposal is still active, it returns
// ANALYSIS_IN_FLIGHT carrying the active request's id.
func (t *Tracker) Create(proposal models.Proposal) (*models.AnalysisRequest, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if activeID, ok := t.active[proposal.ID]; ok {
		return nil, stderrors.NewAnalysisInFlightError(proposal.ID, activeID)
	}

	req := models.NewAnalysisRequest(proposal)
	t.requests[req.RequestID] = req
	t.active[proposal.ID] = req.RequestID
	metrics.TrackedRequests.Set(float64(len(t.requests)))

	snapshot := *req
	return &snapshot, nil
}

// Get returns a copy of the request, or REQUEST_NOT_FOUND.
func (t *Tracker) Get(requestID string) (*models.AnalysisRequest, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	req, ok := t.requests[requestID]
	if !ok {
		return nil, stderrors.NewRequestNotFoundError(requestID)
	}

	snapshot := *req
	return &snapshot, nil
}

// MarkAnalyzed attaches the analysis result and moves the request to
// Analyzed. The request stays active.
func (t *Tracker) MarkAnalyzed(requestID string, result *models.AnalysisResult) error {
	return t.update(requestID, func(req *models.AnalysisRequest) {
		req.Status = models.StatusAnalyzed
		req.Analysis = result
	})
}

// MarkSubmitted records the ledger outcome and moves the request to its
// terminal Submitted state, releasing the proposal for future requests.
func (t *Tracker) MarkSubmitted(requestID, txHash string, synthetic bool) error {
	return t.update(requestID, func(req *models.AnalysisRequest) {
		req.Status = models.StatusSubmitted
		req.TransactionHash = txHash
		req.SyntheticHash = synthetic
	})
}

// MarkFailed moves the request to its terminal Failed state with the error
// message, releasing the proposal for future requests.
func (t *Tracker) MarkFailed(requestID string, cause error) error {
	return t.update(requestID, func(req *models.AnalysisRequest) {
		req.Status = models.StatusFailed
		req.Error = cause.Error()
	})
}

func (t *Tracker) update(requestID string, apply func(*models.AnalysisRequest)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	req, ok := t.requests[requestID]
	if !ok {
		return stderrors.NewRequestNotFoundError(requestID)
	}

	apply(req)
	req.UpdatedAt = time.Now().UTC()

	if req.Status.IsTerminal() {
		if t.active[req.ProposalID] == requestID {
			delete(t.active, req.ProposalID)
		}
	}

	return nil
}

// InFlight reports whether the proposal has an active request.
func (t *Tracker) InFlight(proposalID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[proposalID]
	return ok
}

// Len returns the number of tracked requests, terminal ones included.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.requests)
}
