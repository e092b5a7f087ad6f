package observability

import (
	"log/slog"

	"github.com/google/uuid"
)

// LogObserver writes every Event to a structured logger at a level derived
// from the event's type.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver constructs a LogObserver writing through logger.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

// Notify logs event.
func (o *LogObserver) Notify(event Event) {
	attrs := []any{
		slog.String("event", string(event.Type)),
		slog.String("agent_id", event.AgentID.String()),
	}
	if event.GraphID != uuid.Nil {
		attrs = append(attrs, slog.String("graph_id", event.GraphID.String()))
	}
	if event.NodeID != uuid.Nil {
		attrs = append(attrs, slog.String("node_id", event.NodeID.String()))
	}
	if event.Duration > 0 {
		attrs = append(attrs, slog.Duration("duration", event.Duration))
	}

	switch event.Type {
	case EventAgentFailed, EventGraphFailed, EventNodeFailed:
		if event.Err != nil {
			attrs = append(attrs, slog.String("error", event.Err.Error()))
		}
		o.logger.Error(event.Message, attrs...)
	default:
		o.logger.Info(event.Message, attrs...)
	}
}

var _ Observer = (*LogObserver)(nil)
