package domain

import "time"

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID                    string
	TicketNumber          string
	Title                 string
	Description           string
	DepartmentID          string
	CategoryID            string
	PriorityID            string
	StatusID              string
	CreatedByID           string
	CreatedForID          string
	AssignedToManagerID   *string
	AssignedToExecutiveID *string
	ConversationContext   map[string]any
	Summary               map[string]any
	SLAResponseDue        *time.Time
	SLAResolutionDue      *time.Time
	SLAResponseBreached   bool
	SLAResolutionBreached bool
	ResolvedAt            *time.Time
	ClosedAt              *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time

	// Refs carries display names joined on read.
	Refs TicketRefs
}

// TicketRefs holds names of the rows a ticket points at.
type TicketRefs struct {
	DepartmentName string
	CategoryName   string
	CategoryCode   string
	PriorityName   string
	StatusName     string
	CreatedByName  string
	CreatedByEmail string
	CreatedForName string
	CreatedForMail string
	ManagerName    string
	ExecutiveName  string
}

// VisibleTo reports whether a caller may read the ticket: creator, beneficiary,
// or holder of a role whose assignment slot points at them.
func (t *Ticket) VisibleTo(userID string, roles []RoleKey) bool {
	if t.CreatedByID == userID || t.CreatedForID == userID {
		return true
	}
	for _, role := range roles {
		slot, ok := SlotForRole(role)
		if !ok {
			continue
		}
		if assignee := slot.Assignee(t); assignee != nil && *assignee == userID {
			return true
		}
	}
	return false
}

// MarkStatus records first-time resolution/closure timestamps for statusName.
func (t *Ticket) MarkStatus(statusID, statusName string, now time.Time) {
	t.StatusID = statusID
	switch statusName {
	case StatusResolved:
		if t.ResolvedAt == nil {
			t.ResolvedAt = &now
		}
	case StatusClosed:
		if t.ClosedAt == nil {
			t.ClosedAt = &now
		}
	}
}

// AssignmentSlot names one of the two assignee tiers of a ticket.
type AssignmentSlot int

const (
	SlotManager AssignmentSlot = iota + 1
	SlotExecutive
)

// SlotForRole returns the slot a role is assigned through.
func SlotForRole(role RoleKey) (AssignmentSlot, bool) {
	switch role {
	case RoleManager:
		return SlotManager, true
	case RoleITExecutive:
		return SlotExecutive, true
	}
	return 0, false
}

// Role is the role a user must hold to occupy the slot.
func (s AssignmentSlot) Role() RoleKey {
	switch s {
	case SlotManager:
		return RoleManager
	case SlotExecutive:
		return RoleITExecutive
	}
	panic("domain: unknown assignment slot")
}

// FieldName is the history field recorded for changes to the slot.
func (s AssignmentSlot) FieldName() string {
	switch s {
	case SlotManager:
		return "assignedToManager"
	case SlotExecutive:
		return "assignedToExecutive"
	}
	panic("domain: unknown assignment slot")
}

// Assignee returns the ticket's user id in this slot.
func (s AssignmentSlot) Assignee(t *Ticket) *string {
	switch s {
	case SlotManager:
		return t.AssignedToManagerID
	case SlotExecutive:
		return t.AssignedToExecutiveID
	}
	return nil
}

// Assign stores userID in this slot.
func (s AssignmentSlot) Assign(t *Ticket, userID string) {
	id := userID
	switch s {
	case SlotManager:
		t.AssignedToManagerID = &id
	case SlotExecutive:
		t.AssignedToExecutiveID = &id
	}
}
