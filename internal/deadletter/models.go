package deadletter

import (
	"time"

	"cardassist/pkg/models"
)

// Record is one archived dead letter. Payload is the message as it sat on
// the dead-letter queue, dead-letter metadata included.
type Record struct {
	ID             string               `json:"id"`
	MessageID      string               `json:"message_id"`
	RoutingKey     string               `json:"routing_key"`
	SourceQueue    string               `json:"source_queue"`
	Reason         string               `json:"reason"`
	Attempts       int                  `json:"attempts"`
	Payload        models.RoutedMessage `json:"payload"`
	DeadLetteredAt time.Time            `json:"dead_lettered_at"`
	ArchivedAt     time.Time            `json:"archived_at"`
	ReplayedAt     *time.Time           `json:"replayed_at,omitempty"`
	ReplayedBy     string               `json:"replayed_by,omitempty"`
}

func (r Record) Replayed() bool {
	return r.ReplayedAt != nil
}

type ListFilter struct {
	PendingOnly bool
	Limit       int
	Offset      int
}

type ReplayRequest struct {
	Actor string `json:"actor" binding:"required"`
}
