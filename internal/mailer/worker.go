package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rollcall/rollcall/internal/metrics"
	"github.com/rollcall/rollcall/internal/model"
)

const (
	// ConsumerGroup is the Redis consumer group name.
	ConsumerGroup = "verification_mailers"

	// DefaultBatchSize is the max jobs per read.
	DefaultBatchSize = 50

	// DefaultBlockTimeout is how long to block waiting for messages.
	DefaultBlockTimeout = 5 * time.Second

	// DefaultClaimInterval is how often to scan pending messages.
	DefaultClaimInterval = 30 * time.Second

	// DefaultClaimIdle is the idle time before reclaiming pending messages.
	DefaultClaimIdle = 2 * time.Minute

	// DefaultMetricsInterval is how often to refresh queue depth metrics.
	DefaultMetricsInterval = 10 * time.Second

	// DefaultSendTimeout bounds a single delivery attempt.
	DefaultSendTimeout = 30 * time.Second

	// VerifyEmailPath is the API route that consumes verification tokens.
	VerifyEmailPath = "/api/v1/auth/verify-email"

	verificationSubject = "Confirm your email address"
)

// TokenIssuer signs purpose-bound tokens.
type TokenIssuer interface {
	IssueFor(userID int64, purpose model.TokenPurpose, ttl time.Duration) (string, error)
}

// WorkerConfig holds the delivery settings of a Worker.
type WorkerConfig struct {
	BaseURL  string
	From     string
	TokenTTL time.Duration
	// SendTimeout bounds each delivery attempt. Zero means DefaultSendTimeout.
	SendTimeout time.Duration
}

// Worker consumes verification jobs and delivers the emails.
type Worker struct {
	redis           *redis.Client
	tokens          TokenIssuer
	sender          Sender
	cfg             WorkerConfig
	logger          *slog.Logger
	metrics         metrics.Recorder
	consumerID      string
	batchSize       int
	blockTimeout    time.Duration
	retryDelays     []time.Duration
	claimInterval   time.Duration
	claimIdle       time.Duration
	metricsInterval time.Duration
	claimStartID    string
	lastClaim       time.Time
	lastMetrics     time.Time

	started  bool
	draining bool
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
}

// NewWorker creates a new verification email worker.
func NewWorker(client *redis.Client, tokens TokenIssuer, sender Sender, cfg WorkerConfig, logger *slog.Logger, consumerID string, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	return &Worker{
		redis:           client,
		tokens:          tokens,
		sender:          sender,
		cfg:             cfg,
		logger:          logger.With("component", "mailer.worker", "consumer_id", consumerID),
		metrics:         recorder,
		consumerID:      consumerID,
		batchSize:       DefaultBatchSize,
		blockTimeout:    DefaultBlockTimeout,
		retryDelays:     defaultRetryDelays,
		claimInterval:   DefaultClaimInterval,
		claimIdle:       DefaultClaimIdle,
		metricsInterval: DefaultMetricsInterval,
		claimStartID:    "0-0",
	}
}

// SetBlockTimeout overrides the default blocking timeout.
func (w *Worker) SetBlockTimeout(timeout time.Duration) {
	if timeout > 0 {
		w.blockTimeout = timeout
	}
}

// SetRetryDelays overrides the delays between delivery attempts.
// The number of delays bounds the retries after the first attempt.
func (w *Worker) SetRetryDelays(delays []time.Duration) {
	w.retryDelays = append([]time.Duration(nil), delays...)
}

// SetClaimIdle overrides the default pending idle threshold.
func (w *Worker) SetClaimIdle(idle time.Duration) {
	if idle > 0 {
		w.claimIdle = idle
	}
}

// Run starts the worker loop. Blocks until context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	w.started = true
	w.done = make(chan struct{})
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	defer close(w.done)

	if err := w.ensureConsumerGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	w.logger.Info("mailer worker started")

	for {
		w.mu.Lock()
		draining := w.draining
		w.mu.Unlock()

		if draining {
			w.logger.Info("mailer worker draining, stopping")
			return nil
		}

		select {
		case <-ctx.Done():
			w.logger.Info("mailer worker stopping")
			return nil
		default:
			if err := w.processOnce(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.logger.Error("process error", "error", err)
				sleep(ctx, time.Second)
			}
		}
	}
}

// Shutdown stops the worker and waits for the in-flight batch.
// It matches server.ShutdownFunc.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	w.draining = true
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	w.logger.Info("mailer worker shutdown initiated")
	if cancel != nil {
		cancel()
	}

	select {
	case <-done:
		w.logger.Info("mailer worker shutdown complete")
		return nil
	case <-ctx.Done():
		w.logger.Warn("mailer worker shutdown timed out")
		return ctx.Err()
	}
}

func (w *Worker) ensureConsumerGroup(ctx context.Context) error {
	err := w.redis.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err()
	if err != nil && !isConsumerGroupExistsError(err) {
		return err
	}
	return nil
}

// processOnce reads one batch and handles every message in it.
func (w *Worker) processOnce(ctx context.Context) error {
	w.maybeUpdateQueueDepth(ctx)

	messages, err := w.maybeClaimPending(ctx)
	if err != nil {
		w.logger.Warn("failed to claim pending messages", "error", err)
	}
	if len(messages) == 0 {
		messages, err = w.readBatch(ctx)
		if err != nil {
			return err
		}
	}

	for _, msg := range messages {
		if err := w.handleMessage(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// handleMessage delivers one job. Poison and undeliverable jobs are
// dead-lettered and acknowledged; cancellation leaves the job pending.
func (w *Worker) handleMessage(ctx context.Context, msg redis.XMessage) error {
	job, reason, err := parseMessage(msg)
	if err != nil {
		w.deadLetterMessage(ctx, msg, reason, err.Error())
		w.metrics.IncVerificationEmailProcessed(metrics.EmailStatusSkipped)
		return w.ack(ctx, msg.ID)
	}

	if err := w.deliverWithRetry(ctx, job); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.logger.Error("verification email undeliverable",
			"job_id", job.JobID,
			"user_id", job.UserID,
			"error", err,
		)
		w.deadLetterMessage(ctx, msg, "delivery_failed", err.Error())
		w.metrics.IncVerificationEmailProcessed(metrics.EmailStatusFailed)
		return w.ack(ctx, msg.ID)
	}

	w.metrics.IncVerificationEmailProcessed(metrics.EmailStatusSuccess)
	return w.ack(ctx, msg.ID)
}

// parseMessage decodes and validates a stream entry. On failure it also
// returns the dead-letter reason.
func parseMessage(msg redis.XMessage) (model.VerificationEmail, string, error) {
	var job model.VerificationEmail

	payload, ok := msg.Values["payload"].(string)
	if !ok {
		return job, "invalid_format", errors.New("payload field missing or not a string")
	}
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return job, "unmarshal_error", err
	}
	if err := ValidateJob(job); err != nil {
		return job, "validation_error", err
	}
	return job, "", nil
}

// deliverWithRetry sends the email, retrying with jittered backoff.
func (w *Worker) deliverWithRetry(ctx context.Context, job model.VerificationEmail) error {
	var lastErr error
	for attempt := 0; attempt <= len(w.retryDelays); attempt++ {
		if attempt > 0 {
			delay := nextRetryDelay(w.retryDelays, attempt-1)
			w.logger.Warn("delivery failed, retrying",
				"job_id", job.JobID,
				"attempt", attempt,
				"backoff_seconds", delay.Seconds(),
				"error", lastErr,
			)
			if err := sleep(ctx, delay); err != nil {
				return err
			}
		}

		if lastErr = w.deliver(ctx, job); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

// deliver issues a verification token and sends the link.
func (w *Worker) deliver(ctx context.Context, job model.VerificationEmail) error {
	token, err := w.tokens.IssueFor(job.UserID, model.PurposeEmailVerification, w.cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("issue verification token: %w", err)
	}

	msg := VerificationMessage(w.cfg.From, job.Email, VerificationLink(w.cfg.BaseURL, token))

	sendCtx, cancel := context.WithTimeout(ctx, w.cfg.SendTimeout)
	defer cancel()
	if err := w.sender.Send(sendCtx, msg); err != nil {
		return err
	}

	w.logger.Info("verification email sent", "job_id", job.JobID, "user_id", job.UserID)
	return nil
}

// VerificationLink builds the URL a user follows to verify their email.
func VerificationLink(baseURL, token string) string {
	return strings.TrimSuffix(baseURL, "/") + VerifyEmailPath + "?token=" + url.QueryEscape(token)
}

// VerificationMessage composes the verification email.
func VerificationMessage(from, to, link string) Message {
	body := "Welcome!\n\n" +
		"Please confirm your email address by opening the link below:\n\n" +
		link + "\n\n" +
		"If you did not create an account, you can ignore this message.\n"
	return Message{From: from, To: to, Subject: verificationSubject, Body: body}
}

func (w *Worker) maybeClaimPending(ctx context.Context) ([]redis.XMessage, error) {
	if w.claimInterval <= 0 || w.claimIdle <= 0 {
		return nil, nil
	}
	if !w.lastClaim.IsZero() && time.Since(w.lastClaim) < w.claimInterval {
		return nil, nil
	}

	w.lastClaim = time.Now()
	messages, start, err := w.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamKey,
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		MinIdle:  w.claimIdle,
		Start:    w.claimStartID,
		Count:    int64(w.batchSize),
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	if start != "" {
		w.claimStartID = start
	}
	return messages, nil
}

func (w *Worker) maybeUpdateQueueDepth(ctx context.Context) {
	if w.metricsInterval <= 0 {
		return
	}
	if !w.lastMetrics.IsZero() && time.Since(w.lastMetrics) < w.metricsInterval {
		return
	}
	w.lastMetrics = time.Now()

	groups, err := w.redis.XInfoGroups(ctx, StreamKey).Result()
	if err != nil && err != redis.Nil {
		w.logger.Warn("failed to read stream group info", "error", err)
		return
	}
	for _, group := range groups {
		if group.Name == ConsumerGroup {
			w.metrics.SetVerificationQueueDepth(group.Pending + group.Lag)
			return
		}
	}
}

func (w *Worker) readBatch(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		Streams:  []string{StreamKey, ">"},
		Count:    int64(w.batchSize),
		Block:    w.blockTimeout,
	}).Result()

	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}
	if len(streams) == 0 {
		return nil, nil
	}
	return streams[0].Messages, nil
}

func (w *Worker) deadLetterMessage(ctx context.Context, msg redis.XMessage, reason, detail string) {
	w.logger.Warn("dead-lettering verification job",
		"message_id", msg.ID,
		"reason", reason,
		"detail", detail,
	)

	_, err := w.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"original_id":      msg.ID,
			"original_stream":  StreamKey,
			"reason":           reason,
			"detail":           detail,
			"payload":          msg.Values["payload"],
			"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Result()
	if err != nil {
		w.logger.Error("failed to write to dead-letter queue",
			"message_id", msg.ID,
			"error", err,
		)
	}
}

func (w *Worker) ack(ctx context.Context, messageID string) error {
	if err := w.redis.XAck(ctx, StreamKey, ConsumerGroup, messageID).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

// isConsumerGroupExistsError checks if the error is "BUSYGROUP" (group exists).
func isConsumerGroupExistsError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
