// internal/oracle/ledger/client.go
package ledger

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"oracle-service/internal/common/logger"
	"oracle-service/internal/common/metrics"
	"oracle-service/internal/models"

	stderrors "oracle-service/internal/common/errors"
)

// ErrNoAttestation is returned by GetLatest when the contract holds no
// analysis for the proposal.
var ErrNoAttestation = errors.New("no attestation recorded for proposal")

const (
	methodSubmitAnalysis        = "oracle_submitAnalysis"
	methodGetTransactionReceipt = "oracle_getTransactionReceipt"
	methodGetLatestAnalysis     = "oracle_getLatestAnalysis"

	receiptStatusConfirmed = "confirmed"
	receiptStatusReverted  = "reverted"
)

// Client submits analysis attestations to the oracle contract through a
// JSON-RPC gateway. An unconfigured or unreachable gateway degrades to
// synthetic hashes so the rest of the pipeline keeps moving.
type Client struct {
	config Config
	client *http.Client
	logger logger.Logger
	nextID atomic.Int64
}

func NewClient(config Config, log logger.Logger) *Client {
	return &Client{
		config: config,
		client: &http.Client{Timeout: config.SubmitTimeout},
		logger: log.With(map[string]interface{}{
			"component": "ledger-client",
		}),
	}
}

// DeriveRequestID builds the on-ledger request identifier from the proposal
// and submission time. Resubmitting the same proposal later yields a new id.
func DeriveRequestID(proposalID int64, submittedAt time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("proposal_%d_%d", proposalID, submittedAt.UnixNano())))
	return hex.EncodeToString(sum[:])
}

// Quantize rounds a fractional score to the nearest whole number for the
// contract, which stores integers only.
func Quantize(score float64) int64 {
	return int64(math.Round(score))
}

// Submit records an analysis on the ledger and waits for confirmation.
//
// Returned errors: LEDGER_REJECTED when the gateway refuses the call,
// DEADLINE_EXCEEDED when the confirmation wait runs out. Transport failures
// and an unconfigured gateway do not error; they yield a synthetic result.
func (c *Client) Submit(ctx context.Context, proposalID int64, result *models.AnalysisResult) (*TxResult, error) {
	requestID := DeriveRequestID(proposalID, time.Now())

	if !c.config.Configured() {
		c.logger.Warn("ledger not configured, returning synthetic hash", map[string]interface{}{
			"proposalId": proposalID,
		})
		return c.synthetic(), nil
	}

	params := []interface{}{
		requestID,
		proposalID,
		Quantize(result.RiskScore),
		Quantize(result.FraudProbability),
		Quantize(result.SentimentScore),
		result.RecommendedAction,
		Quantize(result.ConfidenceLevel),
		result.ModelUsed,
	}

	var txHash string
	raw, err := c.call(ctx, methodSubmitAnalysis, params)
	if err != nil {
		var stdErr *stderrors.StandardError
		if errors.As(err, &stdErr) && stdErr.Code == stderrors.ErrCodeLedgerRejected {
			return nil, err
		}
		c.logger.Warn("ledger gateway unreachable, returning synthetic hash", map[string]interface{}{
			"proposalId": proposalID,
			"error":      err.Error(),
		})
		return c.synthetic(), nil
	}

	if err := json.Unmarshal(raw, &txHash); err != nil || txHash == "" {
		return nil, stderrors.NewLedgerRejectedError(fmt.Sprintf("unexpected submit result: %s", string(raw)))
	}

	c.logger.Info("attestation submitted, awaiting confirmation", map[string]interface{}{
		"proposalId":      proposalID,
		"requestId":       requestID,
		"transactionHash": txHash,
	})

	return c.waitConfirmed(ctx, proposalID, txHash)
}

// waitConfirmed polls the transaction receipt until the transaction is
// confirmed, reverted, or the confirm deadline passes.
func (c *Client) waitConfirmed(ctx context.Context, proposalID int64, txHash string) (*TxResult, error) {
	deadline := time.NewTimer(c.config.ConfirmTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.config.ConfirmPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logConfirmationAmbiguity(proposalID, txHash, ctx.Err())
			return nil, stderrors.NewDeadlineExceededError(txHash)
		case <-deadline.C:
			c.logConfirmationAmbiguity(proposalID, txHash, errors.New("confirm timeout elapsed"))
			return nil, stderrors.NewDeadlineExceededError(txHash)
		case <-ticker.C:
			raw, err := c.call(ctx, methodGetTransactionReceipt, []interface{}{txHash})
			if err != nil {
				// Receipt polling errors are transient, keep waiting.
				continue
			}

			var receipt receiptResult
			if err := json.Unmarshal(raw, &receipt); err != nil {
				continue
			}

			switch receipt.Status {
			case receiptStatusConfirmed:
				return &TxResult{Hash: txHash, BlockNumber: receipt.BlockNumber}, nil
			case receiptStatusReverted:
				return nil, stderrors.NewLedgerRejectedError(fmt.Sprintf("transaction reverted: %s", txHash))
			}
			// Still pending, poll again.
		}
	}
}

// logConfirmationAmbiguity makes the unresolved outcome loud: the
// transaction may still confirm on the ledger after we stop waiting, and a
// later retry of this proposal would attest a second time.
func (c *Client) logConfirmationAmbiguity(proposalID int64, txHash string, cause error) {
	c.logger.Error("confirmation wait exhausted, ledger outcome UNKNOWN", map[string]interface{}{
		"proposalId":      proposalID,
		"transactionHash": txHash,
		"cause":           cause.Error(),
		"action":          "verify transaction state on the ledger before retrying this proposal",
	})
}

// GetLatest fetches the most recent attestation recorded for a proposal.
func (c *Client) GetLatest(ctx context.Context, proposalID int64) (*models.LedgerAttestation, error) {
	if !c.config.Configured() {
		return nil, ErrNoAttestation
	}

	raw, err := c.call(ctx, methodGetLatestAnalysis, []interface{}{proposalID})
	if err != nil {
		var stdErr *stderrors.StandardError
		if errors.As(err, &stdErr) && stdErr.Code == stderrors.ErrCodeLedgerRejected {
			return nil, ErrNoAttestation
		}
		return nil, err
	}

	var attestation models.LedgerAttestation
	if err := json.Unmarshal(raw, &attestation); err != nil {
		return nil, fmt.Errorf("decode attestation: %w", err)
	}

	return &attestation, nil
}

// call performs one JSON-RPC round trip. An RPC-level error becomes
// LEDGER_REJECTED; transport errors come back as plain errors for the caller
// to classify.
func (c *Client) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}

	body, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.RPCURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway status %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("decode rpc response: %w", err)
	}

	if rpcResp.Error != nil {
		return nil, stderrors.NewLedgerRejectedError(
			fmt.Sprintf("%s: rpc error %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message))
	}

	return rpcResp.Result, nil
}

// synthetic builds a tagged placeholder result carrying a random 32-byte
// hash. The tag keeps it from being mistaken for a real attestation.
func (c *Client) synthetic() *TxResult {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	metrics.SyntheticAttestations.Inc()
	return &TxResult{
		Hash:      "0x" + hex.EncodeToString(buf),
		Synthetic: true,
	}
}
