package dash

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWorkerPool_runsSubmittedJobs(t *testing.T) {
	var ran atomic.Int64
	pool := NewWorkerPool(2, 8, 1, time.Millisecond, func(_ context.Context, id int64) error {
		ran.Add(1)
		return nil
	}, testLogger())

	pool.Start(context.Background())
	defer pool.Stop()

	for i := int64(1); i <= 5; i++ {
		pool.Submit(i)
	}
	waitFor(t, 2*time.Second, func() bool { return ran.Load() == 5 })
}

func TestWorkerPool_retriesUntilSuccess(t *testing.T) {
	var calls atomic.Int64
	pool := NewWorkerPool(1, 4, 5, time.Millisecond, func(_ context.Context, id int64) error {
		if calls.Add(1) < 3 {
			return errors.New("transient failure")
		}
		return nil
	}, testLogger())

	pool.Start(context.Background())
	defer pool.Stop()

	pool.Submit(1)
	waitFor(t, 2*time.Second, func() bool { return calls.Load() == 3 })

	// No further attempts after success.
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts total, got %d", calls.Load())
	}
}

func TestWorkerPool_exhaustsRetryBudget(t *testing.T) {
	var calls atomic.Int64
	pool := NewWorkerPool(1, 4, 3, time.Millisecond, func(_ context.Context, id int64) error {
		calls.Add(1)
		return errors.New("permanent failure")
	}, testLogger())

	pool.Start(context.Background())
	defer pool.Stop()

	pool.Submit(7)
	waitFor(t, 2*time.Second, func() bool { return calls.Load() == 3 })

	time.Sleep(20 * time.Millisecond)
	if calls.Load() != 3 {
		t.Errorf("retry budget is 3, got %d attempts", calls.Load())
	}
}

func TestWorkerPool_stopReturns(t *testing.T) {
	pool := NewWorkerPool(2, 4, 1, time.Millisecond, func(_ context.Context, id int64) error {
		return nil
	}, testLogger())
	pool.Start(context.Background())

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestSubmitterFunc(t *testing.T) {
	var got int64
	SubmitterFunc(func(id int64) { got = id }).Submit(42)
	if got != 42 {
		t.Errorf("SubmitterFunc passed %d", got)
	}
}
