package domain

import "time"

// Catalog names the lifecycle logic depends on.
const (
	StatusNew        = "New"
	StatusAssigned   = "Assigned"
	StatusInProgress = "In Progress"
	StatusResolved   = "Resolved"
	StatusClosed     = "Closed"
	StatusCancelled  = "Cancelled"

	PriorityMedium = "Medium"
)

// ActiveStatusNames are the statuses counted as a manager's open workload.
var ActiveStatusNames = []string{StatusNew, StatusAssigned, StatusInProgress}

// TicketCategory classifies tickets within a department.
type TicketCategory struct {
	ID           string
	DepartmentID string
	Name         string
	Code         string
	Description  string
	IsActive     bool
	CreatedAt    time.Time
}

// TicketPriority is a catalog row ordered by SortOrder.
type TicketPriority struct {
	ID        string
	Name      string
	SortOrder int
}

// TicketStatus is a catalog row.
type TicketStatus struct {
	ID   string
	Name string
}
