package domain

import "time"

// TicketEventType identifies a lifecycle event that can trigger notifications.
type TicketEventType string

const (
	EventCreate       TicketEventType = "CREATE"
	EventUpdate       TicketEventType = "UPDATE"
	EventAssign       TicketEventType = "ASSIGN"
	EventStatusChange TicketEventType = "STATUS_CHANGE"
)

// Valid reports whether e is a known event.
func (e TicketEventType) Valid() bool {
	switch e {
	case EventCreate, EventUpdate, EventAssign, EventStatusChange:
		return true
	}
	return false
}

// RecipientType selects who a rule notifies.
type RecipientType string

const (
	RecipientCreatedBy            RecipientType = "CREATED_BY"
	RecipientAssignedTo           RecipientType = "ASSIGNED_TO"
	RecipientDepartmentITManagers RecipientType = "DEPARTMENT_IT_MANAGERS"
	// RecipientCategoryITManagers resolves managers through user_categories.
	RecipientCategoryITManagers RecipientType = "CATEGORY_IT_MANAGERS"
)

// Valid reports whether r is a known recipient type.
func (r RecipientType) Valid() bool {
	switch r {
	case RecipientCreatedBy, RecipientAssignedTo, RecipientDepartmentITManagers, RecipientCategoryITManagers:
		return true
	}
	return false
}

// NotificationRule declares the recipients of an event.
type NotificationRule struct {
	ID             string
	Event          TicketEventType
	RecipientTypes []RecipientType
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NotificationStatus tracks whether the recipient has seen a notification.
type NotificationStatus string

const (
	NotificationUnread NotificationStatus = "unread"
	NotificationRead   NotificationStatus = "read"
)

// Notification is an in-app message for one recipient.
type Notification struct {
	ID          string
	UserID      string
	ManagerID   *string
	ExecutiveID *string
	Message     string
	Status      NotificationStatus
	TicketID    *string
	ReadAt      *time.Time
	CreatedAt   time.Time
}

// OutboxEvent is a lifecycle event persisted with the mutation that produced it.
type OutboxEvent struct {
	ID           string
	EventType    TicketEventType
	Payload      []byte
	Attempts     int
	LastError    *string
	CreatedAt    time.Time
	DispatchedAt *time.Time
}
