package domain

import "time"

// ChangeType captures what changed in a history entry.
type ChangeType string

const (
	ChangeCreated         ChangeType = "created"
	ChangeUpdated         ChangeType = "updated"
	ChangeStatusChanged   ChangeType = "status_changed"
	ChangeAssigned        ChangeType = "assigned"
	ChangePriorityChanged ChangeType = "priority_changed"
	ChangeCommentAdded    ChangeType = "comment_added"
	ChangeAttachmentAdded ChangeType = "attachment_added"
	ChangeResolved        ChangeType = "resolved"
	ChangeClosed          ChangeType = "closed"
	ChangeCancelled       ChangeType = "cancelled"
)

// ChangeTypes lists every change type in declaration order.
var ChangeTypes = []ChangeType{
	ChangeCreated,
	ChangeUpdated,
	ChangeStatusChanged,
	ChangeAssigned,
	ChangePriorityChanged,
	ChangeCommentAdded,
	ChangeAttachmentAdded,
	ChangeResolved,
	ChangeClosed,
	ChangeCancelled,
}

// Valid reports whether c is a known change type.
func (c ChangeType) Valid() bool {
	for _, ct := range ChangeTypes {
		if ct == c {
			return true
		}
	}
	return false
}

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID          string
	TicketID    string
	ChangeType  ChangeType
	FieldName   *string
	OldValue    *string
	NewValue    *string
	ChangedByID *string
	CreatedAt   time.Time
}

// TicketHistoryGroup is every history row of one ticket.
type TicketHistoryGroup struct {
	TicketID     string
	TicketNumber string
	Title        string
	Histories    []TicketHistory
}
