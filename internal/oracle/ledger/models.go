// internal/oracle/ledger/models.go
package ledger

import "encoding/json"

// JSON-RPC 2.0 envelope for the oracle contract gateway.

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int64         `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	ID      int64           `json:"id"`
}

type receiptResult struct {
	Status      string `json:"status"`
	BlockNumber int64  `json:"block_number"`
}

// TxResult is the outcome of one attestation submission.
type TxResult struct {
	Hash        string `json:"hash"`
	BlockNumber int64  `json:"blockNumber"`
	Synthetic   bool   `json:"synthetic"`
}
