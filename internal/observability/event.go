// Package observability fans out kernel lifecycle events to interested
// observers: structured logs, a live websocket hub, and Prometheus metrics.
package observability

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies an Event.
type EventType string

const (
	EventAgentSpawned     EventType = "agent_spawned"
	EventAgentStarted     EventType = "agent_started"
	EventAgentCompleted   EventType = "agent_completed"
	EventAgentFailed      EventType = "agent_failed"
	EventAgentTerminated  EventType = "agent_terminated"
	EventMessageSent      EventType = "message_sent"
	EventMessageDelivered EventType = "message_delivered"
	EventGraphStarted     EventType = "graph_started"
	EventGraphCompleted   EventType = "graph_completed"
	EventGraphFailed      EventType = "graph_failed"
	EventNodeStarted      EventType = "node_started"
	EventNodeCompleted    EventType = "node_completed"
	EventNodeFailed       EventType = "node_failed"
)

// Event is a single observable occurrence within the kernel, carrying enough
// identifying information for an observer to correlate it without needing
// to look anything back up.
type Event struct {
	Type     EventType
	AgentID  uuid.UUID
	GraphID  uuid.UUID
	NodeID   uuid.UUID
	Message  string
	Err      error
	Duration time.Duration
	At       time.Time
}
