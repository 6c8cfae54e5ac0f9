// internal/oracle/ledger/config.go
package ledger

import "time"

// Config holds the oracle contract gateway settings. Leaving RPCURL or
// OracleAddress empty disables real attestation: Submit then returns
// synthetic hashes.
type Config struct {
	RPCURL              string
	OracleAddress       string
	SubmitTimeout       time.Duration
	ConfirmTimeout      time.Duration
	ConfirmPollInterval time.Duration
}

// Configured reports whether a real ledger gateway is wired.
func (c Config) Configured() bool {
	return c.RPCURL != "" && c.OracleAddress != ""
}
