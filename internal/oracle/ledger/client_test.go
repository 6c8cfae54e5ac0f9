// internal/oracle/ledger/client_test.go
package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oracle-service/internal/common/logger"
	"oracle-service/internal/models"

	stderrors "oracle-service/internal/common/errors"
)

// ==========================
// Test Gateway Implementation
// ==========================

// fakeGateway is an in-memory JSON-RPC oracle gateway.
type fakeGateway struct {
	mu            sync.Mutex
	attestations  map[int64]models.LedgerAttestation
	pendingPolls  int
	rejectSubmits bool
	revertTxs     bool
	neverConfirm  bool
	submitCalls   int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{attestations: make(map[int64]models.LedgerAttestation)}
}

func (g *fakeGateway) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
			ID     int64             `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		g.mu.Lock()
		defer g.mu.Unlock()

		writeResult := func(result interface{}) {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"jsonrpc": "2.0", "id": req.ID, "result": result,
			})
		}
		writeError := func(code int, msg string) {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"jsonrpc": "2.0", "id": req.ID,
				"error": map[string]interface{}{"code": code, "message": msg},
			})
		}

		switch req.Method {
		case "oracle_submitAnalysis":
			g.submitCalls++
			if g.rejectSubmits {
				writeError(-32000, "execution reverted: scores out of range")
				return
			}

			var requestID string
			var proposalID, risk, fraud, sentiment, confidence int64
			var action, model string
			json.Unmarshal(req.Params[0], &requestID)
			json.Unmarshal(req.Params[1], &proposalID)
			json.Unmarshal(req.Params[2], &risk)
			json.Unmarshal(req.Params[3], &fraud)
			json.Unmarshal(req.Params[4], &sentiment)
			json.Unmarshal(req.Params[5], &action)
			json.Unmarshal(req.Params[6], &confidence)
			json.Unmarshal(req.Params[7], &model)

			g.attestations[proposalID] = models.LedgerAttestation{
				RequestID:         requestID,
				ProposalID:        proposalID,
				RiskScore:         risk,
				FraudProbability:  fraud,
				SentimentScore:    sentiment,
				RecommendedAction: action,
				ConfidenceLevel:   confidence,
				ModelUsed:         model,
				Timestamp:         time.Now().Unix(),
			}
			writeResult("0x" + strings.Repeat("ab", 32))

		case "oracle_getTransactionReceipt":
			if g.neverConfirm {
				writeResult(map[string]interface{}{"status": "pending"})
				return
			}
			if g.revertTxs {
				writeResult(map[string]interface{}{"status": "reverted"})
				return
			}
			if g.pendingPolls > 0 {
				g.pendingPolls--
				writeResult(map[string]interface{}{"status": "pending"})
				return
			}
			writeResult(map[string]interface{}{"status": "confirmed", "block_number": 1234})

		case "oracle_getLatestAnalysis":
			var proposalID int64
			json.Unmarshal(req.Params[0], &proposalID)
			attestation, ok := g.attestations[proposalID]
			if !ok {
				writeError(-32001, "no analysis recorded")
				return
			}
			writeResult(attestation)

		default:
			writeError(-32601, "method not found")
		}
	}
}

// ==========================
// Test Helper Functions
// ==========================

func newTestClient(t *testing.T, url string) *Client {
	return NewClient(Config{
		RPCURL:              url,
		OracleAddress:       "0xoracle",
		SubmitTimeout:       5 * time.Second,
		ConfirmTimeout:      2 * time.Second,
		ConfirmPollInterval: 10 * time.Millisecond,
	}, logger.NewTestLogger(t))
}

func testResult() *models.AnalysisResult {
	return &models.AnalysisResult{
		RiskScore:         65.5,
		FraudProbability:  12.4,
		SentimentScore:    30.0,
		RecommendedAction: "Approve",
		ConfidenceLevel:   87.6,
		ModelUsed:         "AI-Hybrid",
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestSubmitAndConfirm(t *testing.T) {
	gateway := newFakeGateway()
	gateway.pendingPolls = 2
	server := httptest.NewServer(gateway.handler())
	defer server.Close()

	client := newTestClient(t, server.URL)
	tx, err := client.Submit(context.Background(), 42, testResult())

	require.NoError(t, err)
	assert.False(t, tx.Synthetic)
	assert.Equal(t, int64(1234), tx.BlockNumber)
	assert.Len(t, tx.Hash, 66)
}

func TestGetLatestMatchesSubmittedQuantizedScores(t *testing.T) {
	gateway := newFakeGateway()
	server := httptest.NewServer(gateway.handler())
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Submit(context.Background(), 42, testResult())
	require.NoError(t, err)

	attestation, err := client.GetLatest(context.Background(), 42)
	require.NoError(t, err)

	// Fractional scores land as nearest integers.
	assert.Equal(t, int64(66), attestation.RiskScore)
	assert.Equal(t, int64(12), attestation.FraudProbability)
	assert.Equal(t, int64(30), attestation.SentimentScore)
	assert.Equal(t, int64(88), attestation.ConfidenceLevel)
	assert.Equal(t, "Approve", attestation.RecommendedAction)
	assert.Equal(t, "AI-Hybrid", attestation.ModelUsed)
	assert.Equal(t, int64(42), attestation.ProposalID)
	assert.NotEmpty(t, attestation.RequestID)
}

func TestGetLatestNoAttestation(t *testing.T) {
	gateway := newFakeGateway()
	server := httptest.NewServer(gateway.handler())
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.GetLatest(context.Background(), 999)

	assert.ErrorIs(t, err, ErrNoAttestation)
}

func TestSubmitRejected(t *testing.T) {
	gateway := newFakeGateway()
	gateway.rejectSubmits = true
	server := httptest.NewServer(gateway.handler())
	defer server.Close()

	client := newTestClient(t, server.URL)
	tx, err := client.Submit(context.Background(), 42, testResult())

	require.Error(t, err)
	assert.Nil(t, tx)
	assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeLedgerRejected))
}

func TestSubmitReverted(t *testing.T) {
	gateway := newFakeGateway()
	gateway.revertTxs = true
	server := httptest.NewServer(gateway.handler())
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Submit(context.Background(), 42, testResult())

	require.Error(t, err)
	assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeLedgerRejected))
}

func TestSubmitConfirmDeadlineExceeded(t *testing.T) {
	gateway := newFakeGateway()
	gateway.neverConfirm = true
	server := httptest.NewServer(gateway.handler())
	defer server.Close()

	client := NewClient(Config{
		RPCURL:              server.URL,
		OracleAddress:       "0xoracle",
		SubmitTimeout:       5 * time.Second,
		ConfirmTimeout:      100 * time.Millisecond,
		ConfirmPollInterval: 10 * time.Millisecond,
	}, logger.NewTestLogger(t))

	_, err := client.Submit(context.Background(), 42, testResult())

	require.Error(t, err)
	assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeDeadlineExceeded))
	// The tx hash travels with the error so operators can chase it down.
	var stdErr *stderrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Contains(t, stdErr.Details, "0x")
}

// ==========================
// Synthetic Hash Tests
// ==========================

func TestSubmitUnconfiguredReturnsSynthetic(t *testing.T) {
	client := NewClient(Config{
		SubmitTimeout:       time.Second,
		ConfirmTimeout:      time.Second,
		ConfirmPollInterval: 10 * time.Millisecond,
	}, logger.NewTestLogger(t))

	tx, err := client.Submit(context.Background(), 42, testResult())

	require.NoError(t, err)
	assert.True(t, tx.Synthetic)
	assert.Len(t, tx.Hash, 66)
	assert.True(t, strings.HasPrefix(tx.Hash, "0x"))
}

func TestSubmitUnreachableReturnsSynthetic(t *testing.T) {
	client := NewClient(Config{
		RPCURL:              "http://127.0.0.1:1",
		OracleAddress:       "0xoracle",
		SubmitTimeout:       time.Second,
		ConfirmTimeout:      time.Second,
		ConfirmPollInterval: 10 * time.Millisecond,
	}, logger.NewTestLogger(t))

	tx, err := client.Submit(context.Background(), 42, testResult())

	require.NoError(t, err)
	assert.True(t, tx.Synthetic)
}

// ==========================
// Helper Tests
// ==========================

func TestDeriveRequestID(t *testing.T) {
	at := time.Now()
	first := DeriveRequestID(42, at)
	second := DeriveRequestID(42, at)
	later := DeriveRequestID(42, at.Add(time.Nanosecond))

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, later)
	assert.Len(t, first, 64)
}

func TestQuantize(t *testing.T) {
	assert.Equal(t, int64(66), Quantize(65.5))
	assert.Equal(t, int64(65), Quantize(65.4))
	assert.Equal(t, int64(0), Quantize(0))
	assert.Equal(t, int64(-30), Quantize(-29.7))
}
