package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RishiKendai/aegis-local/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// SubmissionProcessor scores one submission read from the stream
type SubmissionProcessor interface {
	ProcessSubmission(ctx context.Context, submission *models.Submission) error
}

// ConsumerConfig names the stream, group and consumer identity
type ConsumerConfig struct {
	StreamKey         string
	Group             string
	Name              string
	RetentionDuration time.Duration
	BatchSize         int64
	BlockTimeout      time.Duration
	ClaimMinIdle      time.Duration
	ClaimInterval     time.Duration
	TrimInterval      time.Duration
}

func (c *ConsumerConfig) setDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.BlockTimeout <= 0 {
		c.BlockTimeout = time.Second
	}
	if c.ClaimMinIdle <= 0 {
		c.ClaimMinIdle = time.Minute
	}
	if c.ClaimInterval <= 0 {
		c.ClaimInterval = 30 * time.Second
	}
	if c.TrimInterval <= 0 {
		c.TrimInterval = time.Hour
	}
}

// Consumer reads check requests from a Redis stream consumer group
type Consumer struct {
	client       redis.Cmdable
	cfg          ConsumerConfig
	processor    SubmissionProcessor
	retryHandler *RetryHandler
	lastClaim    time.Time
}

func NewConsumer(
	client redis.Cmdable,
	cfg ConsumerConfig,
	processor SubmissionProcessor,
	retryHandler *RetryHandler,
) *Consumer {
	cfg.setDefaults()
	return &Consumer{
		client:       client,
		cfg:          cfg,
		processor:    processor,
		retryHandler: retryHandler,
	}
}

// Start consumes until ctx is cancelled. Messages left pending by a crashed
// consumer are claimed on startup and periodically afterwards.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.ensureGroup(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to create consumer group")
	}

	c.claimPending(ctx)

	if c.cfg.RetentionDuration > 0 {
		go c.trimLoop(ctx)
	}

	log.Info().
		Str("stream", c.cfg.StreamKey).
		Str("group", c.cfg.Group).
		Str("consumer", c.cfg.Name).
		Msg("Stream consumer started")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if time.Since(c.lastClaim) > c.cfg.ClaimInterval {
			c.claimPending(ctx)
		}

		if err := c.readBatch(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("Error consuming messages")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}
}

func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.StreamKey, c.cfg.Group, "$").Err()
	if err != nil && strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	log.Info().
		Str("group", c.cfg.Group).
		Str("stream", c.cfg.StreamKey).
		Msg("Created consumer group")
	return nil
}

// claimPending takes over messages idle in other consumers' pending lists
func (c *Consumer) claimPending(ctx context.Context) {
	c.lastClaim = time.Now()

	start := "0-0"
	for {
		messages, next, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   c.cfg.StreamKey,
			Group:    c.cfg.Group,
			Consumer: c.cfg.Name,
			MinIdle:  c.cfg.ClaimMinIdle,
			Start:    start,
			Count:    100,
		}).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				log.Warn().Err(err).Msg("Failed to claim pending messages")
			}
			return
		}

		if len(messages) > 0 {
			log.Info().Int("claimed", len(messages)).Msg("Claimed pending messages")
		}
		for i := range messages {
			c.handle(ctx, &messages[i])
		}

		if next == "0-0" || next == "" || len(messages) == 0 {
			return
		}
		start = next
	}
}

func (c *Consumer) readBatch(ctx context.Context) error {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Name,
		Streams:  []string{c.cfg.StreamKey, ">"},
		Count:    c.cfg.BatchSize,
		Block:    c.cfg.BlockTimeout,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, stream := range streams {
		if stream.Stream != c.cfg.StreamKey {
			continue
		}
		for i := range stream.Messages {
			c.handle(ctx, &stream.Messages[i])
		}
	}

	return nil
}

// handle processes one message and acknowledges it. Unparseable messages are
// acknowledged right away; failing ones are acknowledged after the retry
// handler has moved them to the dead letter stream.
func (c *Consumer) handle(ctx context.Context, msg *redis.XMessage) {
	fields := make(map[string]string, len(msg.Values))
	raw := make(map[string]interface{}, len(msg.Values))
	for key, val := range msg.Values {
		raw[key] = val
		if value, ok := val.(string); ok {
			fields[key] = value
		}
	}

	submission, err := ParseSubmission(&StreamMessage{ID: msg.ID, Fields: fields})
	if err != nil {
		log.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to parse submission")
		c.acknowledge(ctx, msg.ID)
		return
	}

	log.Debug().
		Str("message_id", msg.ID).
		Str("checkId", submission.CheckID).
		Msg("Processing check from stream")

	err = c.retryHandler.RetryWithBackoff(ctx, func() error {
		return c.processor.ProcessSubmission(ctx, submission)
	}, msg.ID, raw)
	if err != nil {
		if ctx.Err() != nil {
			// leave it pending for the next claim
			return
		}
		log.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to process message")
	}

	c.acknowledge(ctx, msg.ID)
}

// trimLoop drops stream entries older than the retention window
func (c *Consumer) trimLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.TrimInterval)
	defer ticker.Stop()

	for {
		c.trim(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *Consumer) trim(ctx context.Context) {
	cutoff := time.Now().Add(-c.cfg.RetentionDuration)
	minID := fmt.Sprintf("%d-0", cutoff.UnixMilli())

	trimmed, err := c.client.XTrimMinID(ctx, c.cfg.StreamKey, minID).Result()
	if err != nil {
		log.Error().Err(err).Msg("Failed to trim stream")
		return
	}

	if trimmed > 0 {
		log.Debug().
			Int64("trimmed", trimmed).
			Str("cutoff_time", cutoff.Format(time.RFC3339)).
			Msg("Trimmed old messages from stream")
	}
}

func (c *Consumer) acknowledge(ctx context.Context, messageID string) {
	if err := c.client.XAck(ctx, c.cfg.StreamKey, c.cfg.Group, messageID).Err(); err != nil {
		log.Error().Err(err).Str("message_id", messageID).Msg("Failed to acknowledge message")
	}
}
