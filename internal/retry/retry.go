// Package retry drives a retryable unit of work with exponential backoff
// on a dedicated worker goroutine.
//
// This package implements the uplink boundary's retry strategy: a
// Retryable is attempted repeatedly, with the backoff doubling
// (saturating) after every retry outcome, until it reports success or
// abort. The worker is long-lived — Start is rejected while one attempt
// sequence is already running, and Stop is idempotent and wakes any
// in-progress backoff sleep immediately.
//
// # Backoff strategy
//
// The backoff duration doubles after each retry, starting at
// Config.InitialBackoff and saturating at Config.MaxBackoff:
//
//	attempt 1: InitialBackoff
//	attempt 2: InitialBackoff * 2
//	attempt 3: InitialBackoff * 4 (capped at MaxBackoff)
package retry

import (
	"context"
	"time"
)

// Outcome is the result of one Retryable.Attempt call.
type Outcome int

const (
	// Success ends the retry loop; OnFinished(Success) is called.
	Success Outcome = iota
	// Retry schedules another attempt after the current backoff.
	Retry
	// Abort ends the retry loop without further attempts;
	// OnFinished(Abort) is called.
	Abort
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Retry:
		return "retry"
	case Abort:
		return "abort"
	default:
		return "unknown"
	}
}

// Retryable is one unit of retryable work. Attempt runs on the
// executor's worker goroutine and must not block beyond the operation
// itself; OnFinished is called exactly once, after the last Attempt,
// with the terminal outcome (Success, Abort, or Abort via external Stop).
type Retryable interface {
	Attempt(ctx context.Context) Outcome
	OnFinished(outcome Outcome)
}

// Config bounds the backoff used between retry attempts.
type Config struct {
	// InitialBackoff is the wait before the second attempt. Must be > 0.
	InitialBackoff time.Duration
	// MaxBackoff caps the backoff. Zero means no cap.
	MaxBackoff time.Duration
}

// Executor runs a Retryable to completion on its own worker goroutine,
// applying exponential backoff between Retry outcomes.
type Executor struct {
	cfg     Config
	running chan struct{} // non-nil while a worker is active; closed signals "not running"
	stop    chan struct{}
	done    chan struct{}
}

// NewExecutor creates an Executor bound to cfg. cfg.InitialBackoff must
// be positive.
func NewExecutor(cfg Config) *Executor {
	return &Executor{cfg: cfg}
}

// Start launches r on a new worker goroutine. It returns an error if a
// previous run is still active; the caller must Stop (and wait for it to
// return) before starting again.
func (e *Executor) Start(r Retryable) error {
	if e.running != nil {
		select {
		case <-e.running:
			// previous worker already finished; fall through and restart.
		default:
			return errAlreadyRunning
		}
	}

	running := make(chan struct{})
	stop := make(chan struct{})
	done := make(chan struct{})
	e.running = running
	e.stop = stop
	e.done = done

	go e.run(r, stop, done, running)
	return nil
}

// Stop requests the current attempt sequence to end. If a backoff sleep
// is in progress it is woken immediately. Stop is idempotent and safe to
// call even if no run is active.
func (e *Executor) Stop() {
	if e.stop == nil {
		return
	}
	select {
	case <-e.stop:
		// already stopped
	default:
		close(e.stop)
	}
	<-e.done
}

func (e *Executor) run(r Retryable, stop, done, running chan struct{}) {
	// OnFinished runs last, after running is closed, so the Retryable
	// can Start the executor again from inside or right after it.
	final := Abort
	defer func() { r.OnFinished(final) }()
	defer close(running)
	defer close(done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	finished := make(chan struct{})
	defer close(finished)

	go func() {
		select {
		case <-stop:
			cancel()
		case <-finished:
		}
	}()

	backoff := e.cfg.InitialBackoff
	for {
		outcome := r.Attempt(ctx)

		select {
		case <-stop:
			return
		default:
		}

		switch outcome {
		case Success, Abort:
			final = outcome
			return
		case Retry:
			select {
			case <-stop:
				return
			case <-time.After(backoff):
			}
			backoff = nextBackoff(backoff, e.cfg.MaxBackoff)
		}
	}
}

// nextBackoff doubles d, saturating at max (max <= 0 means unbounded).
func nextBackoff(d, max time.Duration) time.Duration {
	doubled := d * 2
	if doubled < d {
		// overflow
		doubled = time.Duration(1<<63 - 1)
	}
	if max > 0 && doubled > max {
		return max
	}
	return doubled
}

var errAlreadyRunning = retryError("retry: executor already running")

type retryError string

func (e retryError) Error() string { return string(e) }
