package events

import (
	"time"

	"contentforge/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events.
// Events represent something that has happened in the past.
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }

// ContentPlanned is raised when the planner persisted an outline for a node
type ContentPlanned struct {
	BaseEvent
	Path           valueobjects.NodePath `json:"path"`
	PrimaryKeyword string                `json:"primary_keyword"`
	WorkflowID     string                `json:"workflow_id"`
}

// NewContentPlanned creates a ContentPlanned event
func NewContentPlanned(path valueobjects.NodePath, primaryKeyword, workflowID string, timestamp time.Time) ContentPlanned {
	return ContentPlanned{
		BaseEvent: BaseEvent{
			AggregateID: path.String(),
			EventType:   "content.planned",
			Timestamp:   timestamp,
		},
		Path:           path,
		PrimaryKeyword: primaryKeyword,
		WorkflowID:     workflowID,
	}
}

// ContentWritten is raised when the writer persisted a generated article
type ContentWritten struct {
	BaseEvent
	Path       valueobjects.NodePath      `json:"path"`
	Status     valueobjects.ContentStatus `json:"status"`
	WorkflowID string                     `json:"workflow_id"`
}

// NewContentWritten creates a ContentWritten event
func NewContentWritten(path valueobjects.NodePath, status valueobjects.ContentStatus, workflowID string, timestamp time.Time) ContentWritten {
	return ContentWritten{
		BaseEvent: BaseEvent{
			AggregateID: path.String(),
			EventType:   "content.written",
			Timestamp:   timestamp,
		},
		Path:       path,
		Status:     status,
		WorkflowID: workflowID,
	}
}

// ContentGenerationFailed is raised when a generation run exhausted its
// retries and the failure was recorded on the node.
type ContentGenerationFailed struct {
	BaseEvent
	Path       valueobjects.NodePath `json:"path"`
	Reason     string                `json:"reason"`
	WorkflowID string                `json:"workflow_id"`
}

// NewContentGenerationFailed creates a ContentGenerationFailed event
func NewContentGenerationFailed(path valueobjects.NodePath, reason, workflowID string, timestamp time.Time) ContentGenerationFailed {
	return ContentGenerationFailed{
		BaseEvent: BaseEvent{
			AggregateID: path.String(),
			EventType:   "content.generation_failed",
			Timestamp:   timestamp,
		},
		Path:       path,
		Reason:     reason,
		WorkflowID: workflowID,
	}
}
