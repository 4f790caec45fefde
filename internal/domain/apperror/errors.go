// Package apperror defines the typed failures surfaced by the approval core.
// Every error carries a stable Code so transports can map it without string matching.
package apperror

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Code identifies an error category
type Code string

const (
	CodeValidation             Code = "VALIDATION_ERROR"
	CodeNotFound               Code = "NOT_FOUND"
	CodeNotAuthorized          Code = "NOT_AUTHORIZED"
	CodeNoPendingStep          Code = "NO_PENDING_STEP"
	CodeSelfApproval           Code = "SELF_APPROVAL"
	CodeNoApproverConfigured   Code = "NO_APPROVER_CONFIGURED"
	CodeBudgetExceeded         Code = "BUDGET_EXCEEDED"
	CodeConcurrencyConflict    Code = "CONCURRENCY_CONFLICT"
	CodeRateNotFound           Code = "RATE_NOT_FOUND"
	CodeInvalidStateTransition Code = "INVALID_STATE_TRANSITION"
)

// Coded is implemented by every error in this package
type Coded interface {
	error
	Code() Code
	Details() map[string]interface{}
}

// ValidationError reports malformed or missing input
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Code() Code { return CodeValidation }

func (e *ValidationError) Details() map[string]interface{} {
	return map[string]interface{}{"field": e.Field, "reason": e.Reason}
}

// Validation is a shorthand constructor
func Validation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports a missing entity
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Code() Code { return CodeNotFound }

func (e *NotFoundError) Details() map[string]interface{} {
	return map[string]interface{}{"entity": e.Entity, "id": e.ID}
}

// NotFound is a shorthand constructor
func NotFound(entity string, id int64) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// NotAuthorizedError reports an actor acting outside their capability
type NotAuthorizedError struct {
	ActorID      int64
	RequiredRole string
	Reason       string
}

func (e *NotAuthorizedError) Error() string {
	return fmt.Sprintf("actor %d not authorized: %s", e.ActorID, e.Reason)
}

func (e *NotAuthorizedError) Code() Code { return CodeNotAuthorized }

func (e *NotAuthorizedError) Details() map[string]interface{} {
	return map[string]interface{}{
		"actor_id":      e.ActorID,
		"required_role": e.RequiredRole,
		"reason":        e.Reason,
	}
}

// NoPendingStepError reports a decision against a request with nothing left to decide
type NoPendingStepError struct {
	RequestID int64
}

func (e *NoPendingStepError) Error() string {
	return fmt.Sprintf("trip request %d has no pending workflow step", e.RequestID)
}

func (e *NoPendingStepError) Code() Code { return CodeNoPendingStep }

func (e *NoPendingStepError) Details() map[string]interface{} {
	return map[string]interface{}{"request_id": e.RequestID}
}

// SelfApprovalError reports a requester who would approve their own trip
type SelfApprovalError struct {
	UserID   int64
	StepType string
}

func (e *SelfApprovalError) Error() string {
	return fmt.Sprintf("user %d cannot approve own request as %s", e.UserID, e.StepType)
}

func (e *SelfApprovalError) Code() Code { return CodeSelfApproval }

func (e *SelfApprovalError) Details() map[string]interface{} {
	return map[string]interface{}{"user_id": e.UserID, "step_type": e.StepType}
}

// NoApproverConfiguredError reports a mandatory step with nobody assigned
type NoApproverConfiguredError struct {
	StepType string
}

func (e *NoApproverConfiguredError) Error() string {
	return fmt.Sprintf("no approver configured for mandatory step %s", e.StepType)
}

func (e *NoApproverConfiguredError) Code() Code { return CodeNoApproverConfigured }

func (e *NoApproverConfiguredError) Details() map[string]interface{} {
	return map[string]interface{}{"step_type": e.StepType}
}

// BudgetExceededError carries the exact shortfall
type BudgetExceededError struct {
	OwnerKind string
	OwnerID   int64
	Available decimal.Decimal
	Requested decimal.Decimal
	Excess    decimal.Decimal
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget exceeded for %s %d: requested %s, available %s, excess %s",
		e.OwnerKind, e.OwnerID, e.Requested.StringFixed(2), e.Available.StringFixed(2), e.Excess.StringFixed(2))
}

func (e *BudgetExceededError) Code() Code { return CodeBudgetExceeded }

func (e *BudgetExceededError) Details() map[string]interface{} {
	return map[string]interface{}{
		"owner_kind": e.OwnerKind,
		"owner_id":   e.OwnerID,
		"available":  e.Available.StringFixed(2),
		"requested":  e.Requested.StringFixed(2),
		"excess":     e.Excess.StringFixed(2),
	}
}

// ConcurrencyConflictError is transient; the caller retries the whole operation
type ConcurrencyConflictError struct {
	Resource string
	Cause    error
}

func (e *ConcurrencyConflictError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("concurrent modification of %s: %v", e.Resource, e.Cause)
	}
	return fmt.Sprintf("concurrent modification of %s", e.Resource)
}

func (e *ConcurrencyConflictError) Unwrap() error { return e.Cause }

func (e *ConcurrencyConflictError) Code() Code { return CodeConcurrencyConflict }

func (e *ConcurrencyConflictError) Details() map[string]interface{} {
	return map[string]interface{}{"resource": e.Resource}
}

// RateNotFoundError reports that no kilometer rate covers a date
type RateNotFoundError struct {
	Date string
}

func (e *RateNotFoundError) Error() string {
	return fmt.Sprintf("no kilometer rate configured for %s", e.Date)
}

func (e *RateNotFoundError) Code() Code { return CodeRateNotFound }

func (e *RateNotFoundError) Details() map[string]interface{} {
	return map[string]interface{}{"date": e.Date}
}

// InvalidTransitionError reports a request-level status change the workflow does not allow
type InvalidTransitionError struct {
	From  string
	To    string
	Cause error
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move request from %s to %s: %v", e.From, e.To, e.Cause)
}

func (e *InvalidTransitionError) Unwrap() error { return e.Cause }

func (e *InvalidTransitionError) Code() Code { return CodeInvalidStateTransition }

func (e *InvalidTransitionError) Details() map[string]interface{} {
	return map[string]interface{}{"from": e.From, "to": e.To}
}

// CodeOf returns the code of err, or "" when err is not a coded error
func CodeOf(err error) Code {
	var coded Coded
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return ""
}

// IsConflict reports whether err is a retryable concurrency conflict
func IsConflict(err error) bool {
	var conflict *ConcurrencyConflictError
	return errors.As(err, &conflict)
}
