package uplink

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/fleetedge/inspection-agent/internal/queue"
	"github.com/fleetedge/inspection-agent/internal/retry"
)

// SendFunc hands one payload to the cloud-facing transport. The
// transport itself (MQTT client, credential provisioning) is an
// external collaborator, out of scope per spec §1; Publisher only
// knows it as this function type.
type SendFunc func(ctx context.Context, payload CollectionPayload) error

// Publisher drains a queue of CollectionPayloads, handing each to
// SendFunc behind a retry.Executor so transient delivery failures are
// retried with backoff rather than dropped. Publisher implements
// retry.Retryable itself: one executor run carries exactly one
// payload through to success or Stop, and Run restarts the executor
// for the next queued payload once the current one finishes.
type Publisher struct {
	queue    *queue.Queue[CollectionPayload]
	send     SendFunc
	executor *retry.Executor
	logger   zerolog.Logger

	current  CollectionPayload
	finished chan retry.Outcome

	sent   atomic.Uint64
	failed atomic.Uint64
}

// NewPublisher creates a Publisher pulling from q, delivering via
// send, with retries governed by cfg.
func NewPublisher(q *queue.Queue[CollectionPayload], send SendFunc, cfg retry.Config, logger zerolog.Logger) *Publisher {
	return &Publisher{
		queue:    q,
		send:     send,
		executor: retry.NewExecutor(cfg),
		logger:   logger.With().Str("component", "uplink").Logger(),
		finished: make(chan retry.Outcome, 1),
	}
}

// Attempt implements retry.Retryable: it attempts delivery of the
// payload Run most recently pulled off the queue.
func (p *Publisher) Attempt(ctx context.Context) retry.Outcome {
	if err := p.send(ctx, p.current); err != nil {
		p.logger.Warn().Err(err).Str("campaign_id", p.current.CampaignID).Msg("uplink send failed, retrying")
		return retry.Retry
	}
	return retry.Success
}

// OnFinished implements retry.Retryable, tallying the terminal
// outcome of one payload's delivery and waking Run to pull the next.
func (p *Publisher) OnFinished(outcome retry.Outcome) {
	if outcome == retry.Success {
		p.sent.Add(1)
	} else {
		p.failed.Add(1)
	}
	p.finished <- outcome
}

// Run drains the queue until ctx is cancelled, carrying each payload
// through the retry executor before pulling the next so only one
// delivery is ever in flight.
func (p *Publisher) Run(ctx context.Context) {
	for {
		payload, ok := p.queue.Pop(ctx)
		if !ok {
			return
		}
		p.current = payload

		if err := p.executor.Start(p); err != nil {
			p.logger.Error().Err(err).Msg("uplink executor unexpectedly busy, dropping payload")
			continue
		}

		select {
		case <-p.finished:
		case <-ctx.Done():
			p.executor.Stop()
			return
		}
	}
}

// Stop halts any in-flight delivery sequence immediately.
func (p *Publisher) Stop() { p.executor.Stop() }

// Counters returns the cumulative sent/failed payload counts.
func (p *Publisher) Counters() (sent, failed uint64) {
	return p.sent.Load(), p.failed.Load()
}
