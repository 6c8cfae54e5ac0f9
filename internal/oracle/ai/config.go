// internal/oracle/ai/config.go
package ai

import "time"

// Config holds the AI backend client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}
