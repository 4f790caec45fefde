package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/garyjia/tripflow/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAuditRepo struct {
	appendFunc func(ctx context.Context, entry *entity.AuditLogEntry) error
	entries    []*entity.AuditLogEntry
	lastLimit  int
	lastActor  *int64
}

func (m *mockAuditRepo) Append(ctx context.Context, entry *entity.AuditLogEntry) error {
	if m.appendFunc != nil {
		return m.appendFunc(ctx, entry)
	}
	entry.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) List(ctx context.Context, actorID *int64, limit int) ([]*entity.AuditLogEntry, error) {
	m.lastActor = actorID
	m.lastLimit = limit
	return m.entries, nil
}

type recordingLogger struct {
	errors []string
}

func (l *recordingLogger) Info(msg string, keysAndValues ...interface{}) {}

func (l *recordingLogger) Error(msg string, keysAndValues ...interface{}) {
	l.errors = append(l.errors, msg)
}

func fixedClock() time.Time {
	return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
}

func TestAuditService_Record(t *testing.T) {
	repo := &mockAuditRepo{}
	svc := NewAuditService(repo, fixedClock, &recordingLogger{})

	err := svc.Record(context.Background(), 7, entity.ActionTripCreated, entity.EntityTripRequest, 42, map[string]interface{}{
		"cost": "10.00",
	})
	require.NoError(t, err)

	require.Len(t, repo.entries, 1)
	entry := repo.entries[0]
	assert.Equal(t, int64(7), entry.ActorID)
	assert.Equal(t, entity.ActionTripCreated, entry.Action)
	assert.Equal(t, entity.EntityTripRequest, entry.EntityType)
	assert.Equal(t, int64(42), entry.EntityID)
	assert.Equal(t, "10.00", entry.Details["cost"])
	assert.Equal(t, fixedClock(), entry.CreatedAt)
}

func TestAuditService_RecordPropagatesFailure(t *testing.T) {
	boom := errors.New("disk full")
	repo := &mockAuditRepo{appendFunc: func(ctx context.Context, entry *entity.AuditLogEntry) error {
		return boom
	}}
	svc := NewAuditService(repo, fixedClock, &recordingLogger{})

	err := svc.Record(context.Background(), 1, entity.ActionTripPaid, entity.EntityTripRequest, 1, nil)
	assert.ErrorIs(t, err, boom)
}

func TestAuditService_RecordBestEffortSwallowsFailure(t *testing.T) {
	repo := &mockAuditRepo{appendFunc: func(ctx context.Context, entry *entity.AuditLogEntry) error {
		return errors.New("disk full")
	}}
	logger := &recordingLogger{}
	svc := NewAuditService(repo, fixedClock, logger)

	svc.RecordBestEffort(context.Background(), 1, entity.ActionTripPaid, entity.EntityTripRequest, 1, nil)
	assert.Len(t, logger.errors, 1)
}

func TestAuditService_GetAuditTrailDefaultLimit(t *testing.T) {
	repo := &mockAuditRepo{}
	svc := NewAuditService(repo, fixedClock, &recordingLogger{})

	_, err := svc.GetAuditTrail(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultAuditLimit, repo.lastLimit)
	assert.Nil(t, repo.lastActor)

	actor := int64(3)
	_, err = svc.GetAuditTrail(context.Background(), &actor, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, repo.lastLimit)
	assert.Equal(t, &actor, repo.lastActor)
}
