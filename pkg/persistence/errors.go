// Package persistence provides standardized error types for persistence
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrTriggerNotFound indicates a trigger was not found by the given identifier.
	ErrTriggerNotFound = errors.New("trigger not found")

	// ErrProviderNotFound indicates no provider exists for the given reference.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrWebhookNotFound indicates no incoming webhook exists for the given path or trigger.
	ErrWebhookNotFound = errors.New("webhook not found")

	// ErrRecurringTaskNotFound indicates no recurring task exists for the given trigger.
	ErrRecurringTaskNotFound = errors.New("recurring task not found")

	// ErrDeploymentNotFound indicates a workflow has no matching deployment record.
	ErrDeploymentNotFound = errors.New("deployment not found")
)

// TriggerError wraps trigger-related persistence errors with additional context.
type TriggerError struct {
	Op        string // Operation being performed (e.g. "GetByID", "Save", "Delete")
	TriggerID string
	Err       error
}

func (e *TriggerError) Error() string {
	return fmt.Sprintf("%s operation failed for trigger %s: %v", e.Op, e.TriggerID, e.Err)
}

func (e *TriggerError) Unwrap() error {
	return e.Err
}

func (e *TriggerError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewTriggerError creates a new trigger error with context.
func NewTriggerError(op, triggerID string, err error) *TriggerError {
	return &TriggerError{Op: op, TriggerID: triggerID, Err: err}
}

func IsTriggerNotFound(err error) bool {
	return errors.Is(err, ErrTriggerNotFound)
}

func IsProviderNotFound(err error) bool {
	return errors.Is(err, ErrProviderNotFound)
}

func IsWebhookNotFound(err error) bool {
	return errors.Is(err, ErrWebhookNotFound)
}

func IsDeploymentNotFound(err error) bool {
	return errors.Is(err, ErrDeploymentNotFound)
}
