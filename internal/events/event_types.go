package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/itsm-platform/ticketing-service/internal/domain"
)

// ErrMalformed marks a message that can never be processed.
var ErrMalformed = errors.New("malformed ticket event")

// TicketEvent is the queue wire format, discriminated by Event.
type TicketEvent struct {
	Event        domain.TicketEventType `json:"event"`
	TicketID     string                 `json:"ticketId"`
	TicketNumber string                 `json:"ticketNumber,omitempty"`
	Message      string                 `json:"message,omitempty"`
	CategoryName string                 `json:"categoryName,omitempty"`
	PriorityName string                 `json:"priorityName,omitempty"`
	OldStatus    string                 `json:"oldStatus,omitempty"`
	NewStatus    string                 `json:"newStatus,omitempty"`
	ActorID      string                 `json:"actorId,omitempty"`
	OccurredAt   time.Time              `json:"occurredAt"`
}

// Encode serializes the event.
func Encode(event TicketEvent) ([]byte, error) {
	if err := event.validate(); err != nil {
		return nil, err
	}
	return json.Marshal(event)
}

// Decode parses a queue body. Any failure wraps ErrMalformed.
func Decode(body []byte) (TicketEvent, error) {
	var event TicketEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return TicketEvent{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := event.validate(); err != nil {
		return TicketEvent{}, err
	}
	return event, nil
}

func (e TicketEvent) validate() error {
	if !e.Event.Valid() {
		return fmt.Errorf("%w: unknown event %q", ErrMalformed, e.Event)
	}
	if e.TicketID == "" {
		return fmt.Errorf("%w: missing ticketId", ErrMalformed)
	}
	return nil
}

// IsResolvedTransition reports a status change into Resolved.
func (e TicketEvent) IsResolvedTransition() bool {
	return e.Event == domain.EventStatusChange && e.NewStatus == domain.StatusResolved
}
