// Package mailer queues and delivers account verification emails.
package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rollcall/rollcall/internal/metrics"
	"github.com/rollcall/rollcall/internal/model"
)

const (
	// StreamKey is the Redis stream for verification email jobs.
	StreamKey = "stream:verification_emails"

	// DeadLetterStreamKey is the Redis stream for poison or undeliverable jobs.
	DeadLetterStreamKey = "stream:verification_emails:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 10000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 500 * time.Millisecond
)

// Publisher enqueues verification jobs to a Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new verification email publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "mailer.publisher"),
		metrics: recorder,
	}
}

// Publish adds a job to the stream synchronously.
// A missing JobID is filled with a fresh ULID.
func (p *Publisher) Publish(ctx context.Context, job model.VerificationEmail) (string, error) {
	if job.JobID == "" {
		job.JobID = ulid.Make().String()
	}
	if err := ValidateJob(job); err != nil {
		return "", err
	}

	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// EnqueueAsync publishes without blocking the caller.
// Errors are logged but not returned (fire-and-forget).
func (p *Publisher) EnqueueAsync(job model.VerificationEmail) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, job)
		if err != nil {
			p.logger.Warn("failed to publish verification email",
				"user_id", job.UserID,
				"error", err,
			)
			p.metrics.IncVerificationEmailPublished(metrics.EmailStatusDropped)
			return
		}

		p.logger.Debug("verification email queued",
			"user_id", job.UserID,
			"stream_id", streamID,
		)
		p.metrics.IncVerificationEmailPublished(metrics.EmailStatusSuccess)
	}()
}
