// Package events defines the messages flowhook hands to workflow execution.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic is the kafka topic trigger firings are published to. Workflow
// execution consumes it; flowhook only produces.
const Topic = "flowhook.triggers"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// TriggerFiredEvent is published once per matched trigger. A single
	// inbound webhook delivery or schedule tick can fan out into several of
	// these, one per trigger whose filters matched.
	TriggerFiredEvent EventType = "trigger.fired"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id"`
}

type TriggerFired struct {
	BaseEvent

	TriggerID    string         `json:"trigger_id"`
	ProviderType string         `json:"provider_type"`
	TriggerType  string         `json:"trigger_type"`
	TriggerData  map[string]any `json:"trigger_data,omitempty"`
}

func (t TriggerFired) GetType() EventType {
	return TriggerFiredEvent
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}
