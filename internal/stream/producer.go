package stream

import (
	"context"
	"fmt"

	"github.com/RishiKendai/aegis-local/internal/models"
	"github.com/redis/go-redis/v9"
)

// Producer appends check requests to the stream read by Consumer
type Producer struct {
	client    redis.Cmdable
	streamKey string
}

func NewProducer(client redis.Cmdable, streamKey string) *Producer {
	return &Producer{
		client:    client,
		streamKey: streamKey,
	}
}

func (p *Producer) Enqueue(ctx context.Context, submission *models.Submission) error {
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.streamKey,
		Values: submissionFields(submission),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to enqueue check %s: %w", submission.CheckID, err)
	}
	return nil
}

func submissionFields(submission *models.Submission) map[string]interface{} {
	return map[string]interface{}{
		"checkId":      submission.CheckID,
		"submissionId": submission.SubmissionID,
		"text":         submission.Text,
	}
}
