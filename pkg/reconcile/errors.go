// Package reconcile brings persisted trigger records in line with a
// workflow's desired trigger set.
package reconcile

import (
	"fmt"
	"strings"
)

// TriggerFailure describes one trigger that could not be fully provisioned
// during a sync.
type TriggerFailure struct {
	ProviderType  string `json:"provider_type"`
	ProviderAlias string `json:"provider_alias"`
	TriggerType   string `json:"trigger_type"`
	Error         string `json:"error"`
}

// SyncError aggregates every per-trigger failure of one reconciliation. It
// is raised once, after all other mutations have been applied: callers must
// not assume atomicity, since a sync reporting failure may still have
// applied most of its intended changes.
type SyncError struct {
	WorkflowID string           `json:"workflow_id"`
	Failures   []TriggerFailure `json:"failed_triggers"`
}

func (e *SyncError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, failure := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s/%s: %s", failure.ProviderType, failure.TriggerType, failure.Error))
	}

	return fmt.Sprintf("trigger sync for workflow %s failed for %d trigger(s): %s",
		e.WorkflowID, len(e.Failures), strings.Join(parts, "; "))
}
