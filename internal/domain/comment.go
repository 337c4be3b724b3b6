package domain

import "time"

// Comment is a note on a ticket. Internal comments are meant for staff.
type Comment struct {
	ID         string
	TicketID   string
	AuthorID   string
	Content    string
	IsInternal bool
	CreatedAt  time.Time
}
