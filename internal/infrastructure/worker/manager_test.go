package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubWorker struct {
	name     string
	startErr error
	stopErr  error
	started  bool
	stopped  bool
}

func (w *stubWorker) Start(ctx context.Context) error {
	if w.startErr != nil {
		return w.startErr
	}
	w.started = true
	return nil
}

func (w *stubWorker) Stop() error {
	w.stopped = true
	return w.stopErr
}

func (w *stubWorker) Name() string { return w.name }

func TestWorkerManager_Lifecycle(t *testing.T) {
	m := NewWorkerManager(zap.NewNop())
	a := &stubWorker{name: "a"}
	b := &stubWorker{name: "b", startErr: errors.New("no")}
	m.Register(a)
	m.Register(b)

	assert.Equal(t, 2, m.GetWorkerCount())
	assert.False(t, m.IsRunning())

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.IsRunning())
	assert.Error(t, m.StartAll(context.Background()))

	require.NoError(t, m.StopAll())
	assert.True(t, a.stopped)
	assert.False(t, b.stopped, "a worker that never started is not stopped")
	assert.False(t, m.IsRunning())

	assert.NoError(t, m.StopAll())
}

func TestWorkerManager_StopAllJoinsErrors(t *testing.T) {
	m := NewWorkerManager(zap.NewNop())
	m.Register(&stubWorker{name: "a", stopErr: errors.New("stuck")})
	m.Register(&stubWorker{name: "b", stopErr: errors.New("busy")})

	require.NoError(t, m.StartAll(context.Background()))
	err := m.StopAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a: stuck")
	assert.Contains(t, err.Error(), "b: busy")
}
