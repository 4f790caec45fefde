package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/garyjia/tripflow/internal/domain/event"
)

// mockLogger implements Logger for testing
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func statusEvent() *event.Event {
	return event.StatusChanged(event.TypeTripStatusChanged, 1, 2, "PENDING_FINANCE_APPROVAL", "APPROVED", "", time.Now())
}

func TestDispatch_RunsHandlersInOrder(t *testing.T) {
	d := NewDispatcher()
	var order []string

	d.Subscribe(event.TypeTripStatusChanged, "first", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "first")
		return nil
	})
	d.Subscribe(event.TypeTripStatusChanged, "second", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "second")
		return nil
	})
	d.Subscribe(event.TypeAdminStatusChanged, "other", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "other")
		return nil
	})

	if err := d.Dispatch(context.Background(), statusEvent()); err != nil {
		t.Fatalf("Dispatch() failed: %v", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("handler order = %v, want [first second]", order)
	}
}

func TestDispatch_StopsAtFirstError(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))
	boom := errors.New("boom")
	var laterCalled bool

	d.Subscribe(event.TypeTripStatusChanged, "failing", func(ctx context.Context, evt *event.Event) error {
		return boom
	})
	d.Subscribe(event.TypeTripStatusChanged, "later", func(ctx context.Context, evt *event.Event) error {
		laterCalled = true
		return nil
	})

	err := d.Dispatch(context.Background(), statusEvent())
	if !errors.Is(err, boom) {
		t.Fatalf("Dispatch() error = %v, want %v", err, boom)
	}
	if laterCalled {
		t.Error("handlers after a failure should not run")
	}
	if logger.ErrorCount() != 1 {
		t.Errorf("error count = %d, want 1", logger.ErrorCount())
	}
}

func TestDispatch_RecoversPanics(t *testing.T) {
	d := NewDispatcher()
	d.Subscribe(event.TypeTripStatusChanged, "panicky", func(ctx context.Context, evt *event.Event) error {
		panic("unexpected")
	})

	if err := d.Dispatch(context.Background(), statusEvent()); err == nil {
		t.Fatal("Dispatch() should report a panicking handler")
	}
}

func TestSubscribe_ReplacesSameName(t *testing.T) {
	d := NewDispatcher()
	var calls atomic.Int32

	d.Subscribe(event.TypeTripStatusChanged, "log", func(ctx context.Context, evt *event.Event) error {
		t.Error("replaced handler should not run")
		return nil
	})
	d.Subscribe(event.TypeTripStatusChanged, "log", func(ctx context.Context, evt *event.Event) error {
		calls.Add(1)
		return nil
	})

	if got := d.Handlers(event.TypeTripStatusChanged); len(got) != 1 || got[0] != "log" {
		t.Fatalf("Handlers() = %v, want [log]", got)
	}
	if err := d.Dispatch(context.Background(), statusEvent()); err != nil {
		t.Fatalf("Dispatch() failed: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestDispatchAsync_SurvivesCallerCancellation(t *testing.T) {
	d := NewDispatcher()
	release := make(chan struct{})
	var sawCancel atomic.Bool
	var calls atomic.Int32

	d.Subscribe(event.TypeTripStatusChanged, "slow", func(ctx context.Context, evt *event.Event) error {
		<-release
		if ctx.Err() != nil {
			sawCancel.Store(true)
		}
		calls.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	d.DispatchAsync(ctx, statusEvent())
	cancel()
	close(release)

	if err := d.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	if sawCancel.Load() {
		t.Error("async handlers should not inherit the caller's cancellation")
	}
}

func TestClose(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))

	if err := d.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := d.Close(); err == nil {
		t.Error("second Close() should fail")
	}
	if err := d.Dispatch(context.Background(), statusEvent()); err == nil {
		t.Error("Dispatch() after Close() should fail")
	}

	d.DispatchAsync(context.Background(), statusEvent())
	if logger.ErrorCount() != 1 {
		t.Errorf("error count = %d, want 1 dropped event", logger.ErrorCount())
	}
}
