// internal/oracle/store/config.go
package store

import "time"

// Config holds the store gateway settings. Mode selects the wiring:
// "http" goes through the backend API, "postgres" queries the database
// directly.
type Config struct {
	Mode    string
	BaseURL string
	Timeout time.Duration
}
