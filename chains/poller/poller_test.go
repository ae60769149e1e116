package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flow-hydraulics/wallet-orchestrator/adapters"
	"github.com/flow-hydraulics/wallet-orchestrator/events"
	"github.com/sirupsen/logrus/hooks/test"
	"go.uber.org/goleak"
)

func nextState(t *testing.T, sub *events.Subscription[adapters.State]) adapters.State {
	t.Helper()
	select {
	case s := <-sub.C():
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for state")
	}
	return adapters.State{}
}

func expectKinds(t *testing.T, sub *events.Subscription[adapters.State], kinds ...adapters.StateKind) {
	t.Helper()
	for _, k := range kinds {
		if s := nextState(t, sub); s.Kind != k {
			t.Fatalf("expected state %s, got %s", k, s)
		}
	}
}

func TestPollerReportsSynced(t *testing.T) {
	defer goleak.VerifyNone(t)

	logger, _ := test.NewNullLogger()
	var calls int32
	p := New("test", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, WithLogger(logger), WithInterval(time.Hour))

	sub := p.Subscribe()
	defer sub.Unsubscribe()

	p.Start()
	defer p.Stop()

	expectKinds(t, sub, adapters.KindSyncing, adapters.KindSynced)

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected one pass, got %d", got)
	}
}

func TestPollerRetriesFailedPass(t *testing.T) {
	defer goleak.VerifyNone(t)

	logger, hook := test.NewNullLogger()
	var calls int32
	p := New("test", func(ctx context.Context) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return errors.New("node unreachable")
		}
		return nil
	}, WithLogger(logger), WithInterval(time.Hour), WithBackoff(time.Millisecond, 10*time.Millisecond))

	sub := p.Subscribe()
	defer sub.Unsubscribe()

	p.Start()
	defer p.Stop()

	expectKinds(t, sub, adapters.KindSyncing)
	failed := nextState(t, sub)
	if failed.Kind != adapters.KindNotSynced || failed.Err.Error() != "node unreachable" {
		t.Fatalf("expected not synced, got %s", failed)
	}
	expectKinds(t, sub, adapters.KindSynced)

	if len(hook.AllEntries()) != 1 {
		t.Fatalf("expected one warning, got %d", len(hook.AllEntries()))
	}
}

func TestPollerRefreshRunsPass(t *testing.T) {
	defer goleak.VerifyNone(t)

	logger, _ := test.NewNullLogger()
	var calls int32
	p := New("test", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, WithLogger(logger), WithInterval(time.Hour))

	sub := p.Subscribe()
	defer sub.Unsubscribe()

	p.Start()
	defer p.Stop()

	expectKinds(t, sub, adapters.KindSyncing, adapters.KindSynced)

	if err := p.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	expectKinds(t, sub, adapters.KindSyncing, adapters.KindSynced)

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected two passes, got %d", got)
	}
}

func TestPollerStopCancelsPass(t *testing.T) {
	defer goleak.VerifyNone(t)

	logger, _ := test.NewNullLogger()
	started := make(chan struct{})
	p := New("test", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, WithLogger(logger))

	p.Start()
	<-started

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not return")
	}

	if err := p.Refresh(context.Background()); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}

	// Subscriptions of a stopped poller are closed
	sub := p.Subscribe()
	if _, ok := <-sub.C(); ok {
		t.Fatal("expected closed subscription")
	}
}

func TestPollerWaitsIntervalAfterNonRetryableError(t *testing.T) {
	defer goleak.VerifyNone(t)

	logger, _ := test.NewNullLogger()
	var calls int32
	hooked := make(chan adapters.State, 10)
	p := New("test", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("account not found")
	},
		WithLogger(logger),
		WithInterval(time.Hour),
		WithBackoff(time.Millisecond, time.Millisecond),
		WithRetryable(func(error) bool { return false }),
		WithStateHook(func(s adapters.State) { hooked <- s }),
	)

	p.Start()
	defer p.Stop()

	select {
	case s := <-hooked:
		if s.Kind != adapters.KindNotSynced {
			t.Fatalf("expected not synced, got %s", s)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for state hook")
	}

	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected no early retry, got %d passes", got)
	}
}
