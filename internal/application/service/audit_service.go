package service

import (
	"context"
	"fmt"

	"github.com/garyjia/tripflow/internal/application/port"
	"github.com/garyjia/tripflow/internal/domain/entity"
)

// DefaultAuditLimit caps audit trail queries without an explicit limit
const DefaultAuditLimit = 500

// AuditService records and queries the audit log
type AuditService interface {
	// Record appends an entry. Called inside the mutation's transaction, its error aborts the mutation.
	Record(ctx context.Context, actorID int64, action, entityType string, entityID int64, details map[string]interface{}) error

	// RecordBestEffort appends an entry outside any business transaction and only logs failures
	RecordBestEffort(ctx context.Context, actorID int64, action, entityType string, entityID int64, details map[string]interface{})

	GetAuditTrail(ctx context.Context, actorID *int64, limit int) ([]*entity.AuditLogEntry, error)
}

type auditServiceImpl struct {
	auditRepo port.AuditRepository
	clock     Clock
	logger    Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(auditRepo port.AuditRepository, clock Clock, logger Logger) AuditService {
	return &auditServiceImpl{
		auditRepo: auditRepo,
		clock:     nowOr(clock),
		logger:    logger,
	}
}

// Record appends an audit entry
func (s *auditServiceImpl) Record(ctx context.Context, actorID int64, action, entityType string, entityID int64, details map[string]interface{}) error {
	entry := &entity.AuditLogEntry{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		CreatedAt:  s.clock(),
	}

	if err := s.auditRepo.Append(ctx, entry); err != nil {
		return fmt.Errorf("record audit %s: %w", action, err)
	}
	return nil
}

// RecordBestEffort appends an audit entry and swallows failures
func (s *auditServiceImpl) RecordBestEffort(ctx context.Context, actorID int64, action, entityType string, entityID int64, details map[string]interface{}) {
	if err := s.Record(ctx, actorID, action, entityType, entityID, details); err != nil {
		s.logger.Error("Failed to record audit entry", "error", err, "action", action, "entity_id", entityID)
	}
}

// GetAuditTrail returns audit entries newest first, optionally for one actor
func (s *auditServiceImpl) GetAuditTrail(ctx context.Context, actorID *int64, limit int) ([]*entity.AuditLogEntry, error) {
	if limit <= 0 {
		limit = DefaultAuditLimit
	}

	entries, err := s.auditRepo.List(ctx, actorID, limit)
	if err != nil {
		s.logger.Error("Failed to get audit trail", "error", err)
		return nil, fmt.Errorf("get audit trail: %w", err)
	}
	return entries, nil
}
