package plagiarism

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RishiKendai/aegis-local/internal/infra/redis"
	"github.com/RishiKendai/aegis-local/internal/models"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const statusKeyPrefix = "overlap_check_status:"

// ErrUnknownCheck is returned when no status is recorded for a check id.
var ErrUnknownCheck = errors.New("unknown check")

// StatusTracker stores check progress in Redis
type StatusTracker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStatusTracker(client *redis.Client, ttl time.Duration) *StatusTracker {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &StatusTracker{
		client: client,
		ttl:    ttl,
	}
}

func (t *StatusTracker) UpdateStatus(ctx context.Context, checkID string, step models.Step) error {
	if !step.Valid() {
		return fmt.Errorf("unknown step: %s", step)
	}

	rkey := statusKey(checkID)

	err := t.client.Set(ctx, rkey, string(step), t.ttl).Err()
	if err != nil {
		log.Error().Err(err).
			Str("step", string(step)).
			Str("checkId", checkID).
			Str("redisKey", rkey).
			Msg("Failed to update status in Redis")
		return fmt.Errorf("failed to update status in Redis: %w", err)
	}

	log.Trace().
		Str("step", string(step)).
		Str("checkId", checkID).
		Msg("Status updated in Redis")

	return nil
}

func (t *StatusTracker) GetStatus(ctx context.Context, checkID string) (models.Step, error) {
	value, err := t.client.Get(ctx, statusKey(checkID)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", ErrUnknownCheck
	}
	if err != nil {
		return "", fmt.Errorf("failed to read status from Redis: %w", err)
	}

	return models.Step(value), nil
}

func statusKey(checkID string) string {
	return statusKeyPrefix + checkID
}
