// test/e2e/e2e_test.go
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oracle-service/internal/common/logger"
	"oracle-service/internal/common/observability"
	"oracle-service/internal/models"
	"oracle-service/internal/oracle/ai"
	"oracle-service/internal/oracle/coordinator"
	"oracle-service/internal/oracle/ledger"
	"oracle-service/internal/oracle/scanner"
	"oracle-service/internal/oracle/store"
	"oracle-service/internal/oracle/tracker"
	"oracle-service/internal/server"
)

// ==========================
// Fake Governance Store
// ==========================

// governanceStore mimics the backend API the store gateway talks to.
type governanceStore struct {
	mu        sync.Mutex
	proposals map[int64]*models.Proposal
	analyses  map[int64]map[string]interface{}
	saveCalls int
}

func newGovernanceStore(proposals ...models.Proposal) *governanceStore {
	s := &governanceStore{
		proposals: make(map[int64]*models.Proposal),
		analyses:  make(map[int64]map[string]interface{}),
	}
	for i := range proposals {
		p := proposals[i]
		s.proposals[p.ID] = &p
	}
	return s
}

func (s *governanceStore) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/proposals", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		out := make([]models.Proposal, 0, len(s.proposals))
		for _, p := range s.proposals {
			if p.Status == models.ProposalStatusPending {
				out = append(out, *p)
			}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"proposals": out})
	})

	mux.HandleFunc("/api/aianalysis/save", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.saveCalls++
		id := int64(body["proposalId"].(float64))
		s.analyses[id] = body
		if p, ok := s.proposals[id]; ok {
			risk := body["riskScore"].(float64)
			p.RiskScore = &risk
		}
		w.WriteHeader(http.StatusCreated)
	})

	mux.HandleFunc("/api/proposals/", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/api/proposals/"), 10, 64)
		s.mu.Lock()
		defer s.mu.Unlock()
		p, ok := s.proposals[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(p)
	})

	return mux
}

func (s *governanceStore) savedAnalysis(id int64) map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analyses[id]
}

// ==========================
// Fake Ledger Gateway
// ==========================

// ledgerGateway is a JSON-RPC oracle gateway that confirms immediately.
type ledgerGateway struct {
	mu           sync.Mutex
	attestations map[int64][]interface{}
	submitCalls  int
}

func newLedgerGateway() *ledgerGateway {
	return &ledgerGateway{attestations: make(map[int64][]interface{})}
}

func (g *ledgerGateway) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string        `json:"method"`
			Params []interface{} `json:"params"`
			ID     int64         `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		g.mu.Lock()
		defer g.mu.Unlock()

		reply := func(result interface{}) {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"jsonrpc": "2.0", "id": req.ID, "result": result,
			})
		}

		switch req.Method {
		case "oracle_submitAnalysis":
			g.submitCalls++
			proposalID := int64(req.Params[1].(float64))
			g.attestations[proposalID] = append([]interface{}{}, req.Params...)
			reply(fmt.Sprintf("0x%064x", g.submitCalls))
		case "oracle_getTransactionReceipt":
			reply(map[string]interface{}{"status": "confirmed", "block_number": int64(1000 + g.submitCalls)})
		case "oracle_getLatestAnalysis":
			proposalID := int64(req.Params[0].(float64))
			att, ok := g.attestations[proposalID]
			if !ok {
				json.NewEncoder(w).Encode(map[string]interface{}{
					"jsonrpc": "2.0", "id": req.ID,
					"error": map[string]interface{}{"code": -32001, "message": "no analysis recorded"},
				})
				return
			}
			reply(map[string]interface{}{
				"request_id":         att[0],
				"proposal_id":        proposalID,
				"risk_score":         att[2],
				"fraud_probability":  att[3],
				"sentiment_score":    att[4],
				"recommended_action": att[5],
				"confidence_level":   att[6],
				"model_used":         att[7],
				"timestamp":          time.Now().Unix(),
			})
		default:
			http.Error(w, "unknown method", http.StatusBadRequest)
		}
	}
}

// ==========================
// Environment Wiring
// ==========================

type env struct {
	coordinator *coordinator.Coordinator
	ledger      *ledger.Client
	gateway     store.Gateway
	storeSrv    *governanceStore
	ledgerSrv   *ledgerGateway
	api         *httptest.Server
	aiCalls     *atomic.Int32
}

func newEnv(t *testing.T, aiHandler http.HandlerFunc, proposals ...models.Proposal) *env {
	t.Helper()

	var aiCalls atomic.Int32
	aiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		aiCalls.Add(1)
		aiHandler(w, r)
	}))
	t.Cleanup(aiSrv.Close)

	lg := newLedgerGateway()
	ledgerSrv := httptest.NewServer(lg.handler())
	t.Cleanup(ledgerSrv.Close)

	gs := newGovernanceStore(proposals...)
	storeSrv := httptest.NewServer(gs.handler())
	t.Cleanup(storeSrv.Close)

	log := logger.NewTestLogger(t)

	aiClient := ai.NewClient(ai.Config{BaseURL: aiSrv.URL, Timeout: 5 * time.Second}, log)
	ledgerClient := ledger.NewClient(ledger.Config{
		RPCURL:              ledgerSrv.URL,
		OracleAddress:       "0x000000000000000000000000000000000000dEaD",
		SubmitTimeout:       5 * time.Second,
		ConfirmTimeout:      5 * time.Second,
		ConfirmPollInterval: 10 * time.Millisecond,
	}, log)
	gateway := store.NewHTTPGateway(store.Config{
		Mode:    "http",
		BaseURL: storeSrv.URL,
		Timeout: 5 * time.Second,
	}, log)

	coord := coordinator.New(aiClient, ledgerClient, gateway, tracker.New(),
		coordinator.NoopMarkers{}, observability.New("oracle-e2e"), log,
		coordinator.Options{QueueSize: 8, Workers: 1})

	api := httptest.NewServer(server.NewRouter(server.Config{
		ServiceName:    "oracle-service",
		Version:        "test",
		RequestTimeout: 10 * time.Second,
		CORSOrigins:    []string{"*"},
	}, coord, log))
	t.Cleanup(api.Close)

	return &env{
		coordinator: coord,
		ledger:      ledgerClient,
		gateway:     gateway,
		storeSrv:    gs,
		ledgerSrv:   lg,
		api:         api,
		aiCalls:     &aiCalls,
	}
}

func solarGrant() models.Proposal {
	return models.Proposal{
		ID:               42,
		Title:            "Solar Grant",
		Description:      "Fund rooftop solar for the community center",
		ProposalType:     "Grant",
		RequestedAmount:  75000,
		SubmitterAddress: "0xAbC0000000000000000000000000000000000042",
		Status:           models.ProposalStatusPending,
	}
}

func fullAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"risk_score":         42.5,
		"fraud_probability":  12.4,
		"sentiment_score":    65.5,
		"recommended_action": "Approve",
		"confidence_level":   87.6,
		"model_used":         "AI-Hybrid",
		"key_insights":       "• Clear budget\n• Known submitter",
		"detailed_analysis":  "Well scoped grant with a verifiable budget.",
		"processing_time":    1.8,
	})
}

func postJSON(t *testing.T, url string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

// ==========================
// Scenarios
// ==========================

func TestSolarGrantEndToEnd(t *testing.T) {
	e := newEnv(t, fullAnalysisHandler, solarGrant())

	resp, body := postJSON(t, e.api.URL+"/api/oracle/request-analysis", map[string]interface{}{
		"proposalId":       42,
		"title":            "Solar Grant",
		"description":      "Fund rooftop solar for the community center",
		"proposalType":     "Grant",
		"requestedAmount":  75000,
		"submitterAddress": "0xAbC0000000000000000000000000000000000042",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["success"])

	requestID := body["requestId"].(string)
	require.NotEmpty(t, requestID)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "Submitted", data["status"])
	assert.Equal(t, false, data["syntheticHash"])
	assert.Len(t, data["transactionHash"], 66)

	analysis := data["analysis"].(map[string]interface{})
	assert.Equal(t, "AI-Hybrid", analysis["model_used"])
	assert.Equal(t, int32(1), e.aiCalls.Load())

	// Attestation on the ledger carries the quantized scores.
	att, err := e.ledger.GetLatest(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(43), att.RiskScore)
	assert.Equal(t, int64(12), att.FraudProbability)
	assert.Equal(t, int64(66), att.SentimentScore)
	assert.Equal(t, int64(88), att.ConfidenceLevel)
	assert.Equal(t, "Approve", att.RecommendedAction)
	assert.Equal(t, "AI-Hybrid", att.ModelUsed)

	// Write-back reached the store with the raw scores.
	saved := e.storeSrv.savedAnalysis(42)
	require.NotNil(t, saved)
	assert.Equal(t, 42.5, saved["riskScore"])
	assert.Equal(t, "Full", saved["analysisType"])

	// The tracked request is visible and terminal.
	resp2, err := http.Get(e.api.URL + "/api/oracle/analysis/" + requestID)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	var tracked map[string]interface{}
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&tracked))
	assert.Equal(t, "Submitted", tracked["data"].(map[string]interface{})["status"])
}

func TestScannerPicksUpPendingAndIsIdempotent(t *testing.T) {
	e := newEnv(t, fullAnalysisHandler, solarGrant())

	scan := scanner.New(scanner.Config{
		Interval:  time.Minute,
		BatchSize: 50,
		ItemDelay: time.Millisecond,
	}, e.gateway, e.coordinator, logger.NewTestLogger(t))

	dispatched, err := scan.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, dispatched)
	assert.Equal(t, int32(1), e.aiCalls.Load())
	require.NotNil(t, e.storeSrv.savedAnalysis(42))

	// The write-back set riskScore, so the next sweep finds nothing to do.
	dispatched, err = scan.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, dispatched)
	assert.Equal(t, int32(1), e.aiCalls.Load())
}

func TestAIOutageFallsBackAndStillAttests(t *testing.T) {
	e := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model backend down", http.StatusInternalServerError)
	}, solarGrant())

	resp, body := postJSON(t, e.api.URL+"/api/oracle/request-analysis", map[string]interface{}{
		"proposalId":      42,
		"title":           "Solar Grant",
		"requestedAmount": 75000,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data := body["data"].(map[string]interface{})
	assert.Equal(t, "Submitted", data["status"])

	analysis := data["analysis"].(map[string]interface{})
	assert.Equal(t, models.FallbackModel, analysis["model_used"])

	// 75000 sits in the >50000 bucket.
	att, err := e.ledger.GetLatest(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(60), att.RiskScore)
	assert.Equal(t, int64(20), att.FraudProbability)
}

func TestDuplicateRequestRejectedWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	e := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		fullAnalysisHandler(w, r)
	}, solarGrant())

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		resp, _ := postJSON(t, e.api.URL+"/api/oracle/request-analysis", map[string]interface{}{
			"proposalId": 42, "title": "Solar Grant", "requestedAmount": 75000,
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}()

	require.Eventually(t, func() bool {
		return e.coordinator.InFlight(42)
	}, 2*time.Second, 5*time.Millisecond)

	resp, body := postJSON(t, e.api.URL+"/api/oracle/request-analysis", map[string]interface{}{
		"proposalId": 42, "title": "Solar Grant", "requestedAmount": 75000,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "ANALYSIS_IN_FLIGHT", body["code"])

	close(release)
	<-firstDone
	assert.Equal(t, 1, e.ledgerSrv.submitCalls)
}
