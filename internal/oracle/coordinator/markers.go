// internal/oracle/coordinator/markers.go
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"oracle-service/internal/common/database"
	"oracle-service/internal/common/logger"
)

// Markers remembers which proposals already have a ledger attestation. The
// scanner consults it so a proposal whose store write-back failed is not
// re-attested on every tick. Losing markers is safe but wasteful: the worst
// case is a duplicate attestation attempt, not data corruption.
type Markers interface {
	MarkAnalyzed(ctx context.Context, proposalID int64) error
	IsAnalyzed(ctx context.Context, proposalID int64) (bool, error)
}

const markerTTL = 24 * time.Hour

// RedisMarkers keeps analyzed markers in Redis with a TTL. A Redis outage
// degrades to "not marked", which only costs extra scanner work.
type RedisMarkers struct {
	client *database.RedisClient
	logger logger.Logger
}

func NewRedisMarkers(client *database.RedisClient, log logger.Logger) *RedisMarkers {
	return &RedisMarkers{
		client: client,
		logger: log.With(map[string]interface{}{
			"component": "analyzed-markers",
		}),
	}
}

func markerKey(proposalID int64) string {
	return fmt.Sprintf("analysis:done:%d", proposalID)
}

func (m *RedisMarkers) MarkAnalyzed(ctx context.Context, proposalID int64) error {
	if err := m.client.Set(ctx, markerKey(proposalID), "1", markerTTL); err != nil {
		m.logger.Warn("failed to set analyzed marker", map[string]interface{}{
			"proposalId": proposalID,
			"error":      err.Error(),
		})
		return err
	}
	return nil
}

func (m *RedisMarkers) IsAnalyzed(ctx context.Context, proposalID int64) (bool, error) {
	_, err := m.client.Get(ctx, markerKey(proposalID))
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		m.logger.Warn("failed to read analyzed marker", map[string]interface{}{
			"proposalId": proposalID,
			"error":      err.Error(),
		})
		return false, err
	}
	return true, nil
}

// NoopMarkers is used when Redis is not deployed.
type NoopMarkers struct{}

func (NoopMarkers) MarkAnalyzed(ctx context.Context, proposalID int64) error { return nil }

func (NoopMarkers) IsAnalyzed(ctx context.Context, proposalID int64) (bool, error) {
	return false, nil
}
