// internal/server/router.go
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"oracle-service/internal/common/logger"
	"oracle-service/internal/common/validation"
	"oracle-service/internal/models"
	"oracle-service/internal/oracle/coordinator"

	stderrors "oracle-service/internal/common/errors"
)

// Oracle is the coordinator surface the HTTP layer needs.
type Oracle interface {
	RequestAnalysis(ctx context.Context, proposal models.Proposal) (*coordinator.Result, error)
	SubmitAnalysis(ctx context.Context, proposalID int64, requestID string, result *models.AnalysisResult) (*coordinator.Result, error)
	Status(requestID string) (*models.AnalysisRequest, error)
	Enqueue(proposal models.Proposal) error
}

type Config struct {
	ServiceName    string
	Version        string
	RequestTimeout time.Duration
	CORSOrigins    []string
}

type Router struct {
	config Config
	oracle Oracle
	logger logger.Logger
}

func NewRouter(config Config, oracle Oracle, log logger.Logger) http.Handler {
	r := &Router{
		config: config,
		oracle: oracle,
		logger: log.With(map[string]interface{}{
			"component": "http",
		}),
	}

	origins := config.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	mux.Get("/health", r.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	mux.Route("/api/oracle", func(rt chi.Router) {
		rt.Use(middleware.Timeout(config.RequestTimeout))
		rt.Post("/request-analysis", r.wrap(r.handleRequestAnalysis))
		rt.Post("/submit-analysis", r.wrap(r.handleSubmitAnalysis))
		rt.Get("/analysis/{requestId}", r.wrap(r.handleGetAnalysis))
		rt.Post("/webhook/new-proposal", r.wrap(r.handleNewProposalWebhook))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// wrap translates pipeline errors into the response envelope and status
// codes callers rely on.
func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		status := http.StatusInternalServerError
		switch stderrors.CodeOf(err) {
		case stderrors.ErrCodeInvalidRequest:
			status = http.StatusBadRequest
		case stderrors.ErrCodeRequestNotFound, stderrors.ErrCodeProposalNotFound:
			status = http.StatusNotFound
		case stderrors.ErrCodeAnalysisInFlight:
			status = http.StatusConflict
		case stderrors.ErrCodeLedgerRejected, stderrors.ErrCodeDeadlineExceeded:
			status = http.StatusBadGateway
		case stderrors.ErrCodeQueueFull:
			status = http.StatusServiceUnavailable
		}

		r.logger.Warn("request failed", map[string]interface{}{
			"path":   req.URL.Path,
			"status": status,
			"error":  err.Error(),
		})

		writeJSON(w, status, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
			"code":    string(stderrors.CodeOf(err)),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// GET /health
// Liveness only. Downstream systems are deliberately not probed here: the
// oracle stays alive and degrades when they are down.
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   r.config.ServiceName,
		"version":   r.config.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type proposalBody struct {
	ProposalID       int64   `json:"proposalId"`
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	ProposalType     string  `json:"proposalType"`
	RequestedAmount  float64 `json:"requestedAmount"`
	SubmitterAddress string  `json:"submitterAddress"`
}

func (b proposalBody) toProposal() models.Proposal {
	return models.Proposal{
		ID:               b.ProposalID,
		Title:            b.Title,
		Description:      b.Description,
		ProposalType:     b.ProposalType,
		RequestedAmount:  b.RequestedAmount,
		SubmitterAddress: b.SubmitterAddress,
		Status:           models.ProposalStatusPending,
	}
}

func decodeProposal(req *http.Request) (models.Proposal, error) {
	raw, err := io.ReadAll(io.LimitReader(req.Body, 1<<20))
	if err != nil {
		return models.Proposal{}, stderrors.NewInvalidRequestError(err.Error())
	}

	if err := validation.ValidateAnalyzeRequest(raw); err != nil {
		return models.Proposal{}, err
	}

	var body proposalBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return models.Proposal{}, stderrors.NewInvalidRequestError(err.Error())
	}

	return body.toProposal(), nil
}

// POST /api/oracle/request-analysis
func (r *Router) handleRequestAnalysis(w http.ResponseWriter, req *http.Request) error {
	proposal, err := decodeProposal(req)
	if err != nil {
		return err
	}

	result, err := r.oracle.RequestAnalysis(req.Context(), proposal)
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"requestId": result.RequestID,
		"message":   "Analysis completed and attested",
		"data":      result,
	})
	return nil
}

type submitAnalysisBody struct {
	ProposalID int64                  `json:"proposalId"`
	RequestID  string                 `json:"requestId"`
	Analysis   *models.AnalysisResult `json:"analysis"`
}

// POST /api/oracle/submit-analysis
// Attests an analysis computed elsewhere without running the AI stage.
func (r *Router) handleSubmitAnalysis(w http.ResponseWriter, req *http.Request) error {
	var body submitAnalysisBody
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return stderrors.NewInvalidRequestError(err.Error())
	}
	if body.ProposalID <= 0 || body.Analysis == nil {
		return stderrors.NewInvalidRequestError("proposalId and analysis are required")
	}

	result, err := r.oracle.SubmitAnalysis(req.Context(), body.ProposalID, body.RequestID, body.Analysis)
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"transactionHash": result.TransactionHash,
		"status":          result.Status,
	})
	return nil
}

// GET /api/oracle/analysis/{requestId}
func (r *Router) handleGetAnalysis(w http.ResponseWriter, req *http.Request) error {
	requestID := chi.URLParam(req, "requestId")

	request, err := r.oracle.Status(requestID)
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    request,
	})
	return nil
}

// POST /api/oracle/webhook/new-proposal
// Enqueues only; the background outcome never reaches the webhook caller.
func (r *Router) handleNewProposalWebhook(w http.ResponseWriter, req *http.Request) error {
	proposal, err := decodeProposal(req)
	if err != nil {
		return err
	}

	if err := r.oracle.Enqueue(proposal); err != nil {
		return err
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Proposal queued for analysis",
	})
	return nil
}
