package retry_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetedge/inspection-agent/internal/retry"
)

// fakeRetryable replays a fixed outcome script and records timings and
// the final outcome delivered to OnFinished.
type fakeRetryable struct {
	mu          sync.Mutex
	script      []retry.Outcome
	attempts    int
	attemptAt   []time.Time
	finished    chan retry.Outcome
	attemptDone chan struct{}
}

func newFakeRetryable(script []retry.Outcome) *fakeRetryable {
	return &fakeRetryable{script: script, finished: make(chan retry.Outcome, 1), attemptDone: make(chan struct{}, len(script)+1)}
}

func (f *fakeRetryable) Attempt(ctx context.Context) retry.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attemptAt = append(f.attemptAt, time.Now())
	out := f.script[f.attempts]
	f.attempts++
	f.attemptDone <- struct{}{}
	return out
}

func (f *fakeRetryable) OnFinished(outcome retry.Outcome) {
	f.finished <- outcome
}

// S6: a retryable returning retry, retry, success with start=10ms,
// max=40ms produces waits approximately 10ms, 20ms before success, and
// OnFinished(Success) is called exactly once.
func TestExecutor_S6RetryThenSuccess(t *testing.T) {
	r := newFakeRetryable([]retry.Outcome{retry.Retry, retry.Retry, retry.Success})
	exec := retry.NewExecutor(retry.Config{InitialBackoff: 10 * time.Millisecond, MaxBackoff: 40 * time.Millisecond})

	start := time.Now()
	require.NoError(t, exec.Start(r))

	select {
	case outcome := <-r.finished:
		assert.Equal(t, retry.Success, outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion")
	}

	elapsed := time.Since(start)
	// Two backoffs of ~10ms and ~20ms elapse before the third (successful) attempt.
	assert.GreaterOrEqual(t, elapsed, 25*time.Millisecond)
	assert.Equal(t, 3, r.attempts)

	// Only one OnFinished call: the channel had capacity 1 and received exactly once.
	select {
	case <-r.finished:
		t.Fatal("OnFinished called more than once")
	default:
	}
}

func TestExecutor_StartRejectedWhileRunning(t *testing.T) {
	block := make(chan struct{})
	r := &blockingRetryable{block: block}
	exec := retry.NewExecutor(retry.Config{InitialBackoff: time.Millisecond})

	require.NoError(t, exec.Start(r))
	err := exec.Start(r)
	assert.Error(t, err)

	close(block)
	exec.Stop()
}

func TestExecutor_StopIsIdempotentAndAborts(t *testing.T) {
	r := newFakeRetryable([]retry.Outcome{retry.Retry, retry.Retry, retry.Retry, retry.Retry, retry.Success})
	exec := retry.NewExecutor(retry.Config{InitialBackoff: time.Hour})

	require.NoError(t, exec.Start(r))
	<-r.attemptDone // wait for the first attempt to have been made

	exec.Stop()
	exec.Stop() // idempotent, must not panic or block forever

	outcome := <-r.finished
	assert.Equal(t, retry.Abort, outcome)
}

type blockingRetryable struct {
	block chan struct{}
}

func (b *blockingRetryable) Attempt(ctx context.Context) retry.Outcome {
	select {
	case <-b.block:
	case <-ctx.Done():
	}
	return retry.Success
}

func (b *blockingRetryable) OnFinished(retry.Outcome) {}
