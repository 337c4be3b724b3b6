package dto

import (
	"time"

	"github.com/itsm-platform/ticketing-service/internal/domain"
)

// CreateTicketRequest payload. createdForId files the ticket on someone else's behalf.
type CreateTicketRequest struct {
	Title               string         `json:"title" validate:"required,max=255"`
	Description         string         `json:"description" validate:"required"`
	DepartmentID        string         `json:"departmentId" validate:"required"`
	CategoryID          string         `json:"categoryId" validate:"required"`
	PriorityID          *string        `json:"priorityId"`
	CreatedForID        *string        `json:"createdForId"`
	ConversationContext map[string]any `json:"conversationContext"`
	Summary             map[string]any `json:"summary"`
	SLAResponseDue      *time.Time     `json:"slaResponseDue"`
	SLAResolutionDue    *time.Time     `json:"slaResolutionDue"`
}

// UpdateTicketRequest carries a partial update. Omitted fields are left alone.
type UpdateTicketRequest struct {
	StatusID            *string        `json:"statusId"`
	PriorityID          *string        `json:"priorityId"`
	CategoryID          *string        `json:"categoryId"`
	Title               *string        `json:"title" validate:"omitempty,max=255"`
	Description         *string        `json:"description"`
	SLAResponseDue      *time.Time     `json:"slaResponseDue"`
	SLAResolutionDue    *time.Time     `json:"slaResolutionDue"`
	ConversationContext map[string]any `json:"conversationContext"`
}

// UpdateStatusRequest changes status and records a comment.
type UpdateStatusRequest struct {
	StatusID   string `json:"statusId" validate:"required"`
	Comment    string `json:"comment" validate:"required"`
	IsInternal bool   `json:"isInternal"`
}

// AssignToManagerRequest is a manager claiming a ticket.
type AssignToManagerRequest struct {
	TicketID string `json:"ticketId" validate:"required"`
}

// AssignToExecutiveRequest hands a ticket to an IT executive.
type AssignToExecutiveRequest struct {
	TicketID    string `json:"ticketId" validate:"required"`
	ExecutiveID string `json:"executiveId" validate:"required"`
}

// TicketListQuery filters the ticket listings.
type TicketListQuery struct {
	StatusID     string `query:"statusId"`
	DepartmentID string `query:"departmentId"`
	CategoryID   string `query:"categoryId"`
	PriorityID   string `query:"priorityId"`
	Page         int    `query:"page" validate:"omitempty,min=1"`
	Limit        int    `query:"limit" validate:"omitempty,min=1,max=100"`
}

// HistoryQuery filters GET /tickets/ticket-histories.
type HistoryQuery struct {
	TicketID     string `query:"ticketId"`
	TicketNumber string `query:"ticketNumber"`
	AssignedTo   string `query:"assignedTo"`
	ChangeType   string `query:"changeType" validate:"omitempty,oneof=created updated status_changed assigned priority_changed comment_added attachment_added resolved closed cancelled"`
	From         string `query:"from"`
	To           string `query:"to"`
	Order        string `query:"order" validate:"omitempty,oneof=ASC DESC"`
	Page         int    `query:"page" validate:"omitempty,min=1"`
	Limit        int    `query:"limit" validate:"omitempty,min=1,max=100"`
}

// TicketResponse is a ticket with the display names of its references.
type TicketResponse struct {
	ID                    string         `json:"id"`
	TicketNumber          string         `json:"ticketNumber"`
	Title                 string         `json:"title"`
	Description           string         `json:"description"`
	DepartmentID          string         `json:"departmentId"`
	DepartmentName        string         `json:"departmentName,omitempty"`
	CategoryID            string         `json:"categoryId"`
	CategoryName          string         `json:"categoryName,omitempty"`
	PriorityID            string         `json:"priorityId"`
	PriorityName          string         `json:"priorityName,omitempty"`
	StatusID              string         `json:"statusId"`
	StatusName            string         `json:"statusName,omitempty"`
	CreatedByID           string         `json:"createdById"`
	CreatedByName         string         `json:"createdByName,omitempty"`
	CreatedForID          string         `json:"createdForId"`
	CreatedForName        string         `json:"createdForName,omitempty"`
	AssignedToManagerID   *string        `json:"assignedToManagerId"`
	AssignedToManagerName string         `json:"assignedToManagerName,omitempty"`
	AssignedToExecutiveID *string        `json:"assignedToExecutiveId"`
	AssignedToExecName    string         `json:"assignedToExecutiveName,omitempty"`
	ConversationContext   map[string]any `json:"conversationContext,omitempty"`
	Summary               map[string]any `json:"summary,omitempty"`
	SLAResponseDue        *time.Time     `json:"slaResponseDue"`
	SLAResolutionDue      *time.Time     `json:"slaResolutionDue"`
	SLAResponseBreached   bool           `json:"slaResponseBreached"`
	SLAResolutionBreached bool           `json:"slaResolutionBreached"`
	ResolvedAt            *time.Time     `json:"resolvedAt"`
	ClosedAt              *time.Time     `json:"closedAt"`
	CreatedAt             time.Time      `json:"createdAt"`
	UpdatedAt             time.Time      `json:"updatedAt"`
}

// NewTicketResponse maps a ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:                    t.ID,
		TicketNumber:          t.TicketNumber,
		Title:                 t.Title,
		Description:           t.Description,
		DepartmentID:          t.DepartmentID,
		DepartmentName:        t.Refs.DepartmentName,
		CategoryID:            t.CategoryID,
		CategoryName:          t.Refs.CategoryName,
		PriorityID:            t.PriorityID,
		PriorityName:          t.Refs.PriorityName,
		StatusID:              t.StatusID,
		StatusName:            t.Refs.StatusName,
		CreatedByID:           t.CreatedByID,
		CreatedByName:         t.Refs.CreatedByName,
		CreatedForID:          t.CreatedForID,
		CreatedForName:        t.Refs.CreatedForName,
		AssignedToManagerID:   t.AssignedToManagerID,
		AssignedToManagerName: t.Refs.ManagerName,
		AssignedToExecutiveID: t.AssignedToExecutiveID,
		AssignedToExecName:    t.Refs.ExecutiveName,
		ConversationContext:   t.ConversationContext,
		Summary:               t.Summary,
		SLAResponseDue:        t.SLAResponseDue,
		SLAResolutionDue:      t.SLAResolutionDue,
		SLAResponseBreached:   t.SLAResponseBreached,
		SLAResolutionBreached: t.SLAResolutionBreached,
		ResolvedAt:            t.ResolvedAt,
		ClosedAt:              t.ClosedAt,
		CreatedAt:             t.CreatedAt,
		UpdatedAt:             t.UpdatedAt,
	}
}

// NewTicketResponses maps a page of tickets.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// CommentResponse is a ticket comment.
type CommentResponse struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticketId"`
	AuthorID   string    `json:"authorId"`
	Content    string    `json:"content"`
	IsInternal bool      `json:"isInternal"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewCommentResponses maps comments.
func NewCommentResponses(comments []domain.Comment) []CommentResponse {
	out := make([]CommentResponse, 0, len(comments))
	for _, c := range comments {
		out = append(out, CommentResponse{
			ID:         c.ID,
			TicketID:   c.TicketID,
			AuthorID:   c.AuthorID,
			Content:    c.Content,
			IsInternal: c.IsInternal,
			CreatedAt:  c.CreatedAt,
		})
	}
	return out
}

// HistoryEntryResponse is one audit row.
type HistoryEntryResponse struct {
	ID          string            `json:"id"`
	ChangeType  domain.ChangeType `json:"changeType"`
	FieldName   *string           `json:"fieldName"`
	OldValue    *string           `json:"oldValue"`
	NewValue    *string           `json:"newValue"`
	ChangedByID *string           `json:"changedById"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// HistoryGroupResponse is every history row of one ticket.
type HistoryGroupResponse struct {
	TicketID     string                 `json:"ticketId"`
	TicketNumber string                 `json:"ticketNumber"`
	Title        string                 `json:"title"`
	Histories    []HistoryEntryResponse `json:"histories"`
}

// NewHistoryGroupResponses maps grouped histories.
func NewHistoryGroupResponses(groups []domain.TicketHistoryGroup) []HistoryGroupResponse {
	out := make([]HistoryGroupResponse, 0, len(groups))
	for _, g := range groups {
		entries := make([]HistoryEntryResponse, 0, len(g.Histories))
		for _, h := range g.Histories {
			entries = append(entries, HistoryEntryResponse{
				ID:          h.ID,
				ChangeType:  h.ChangeType,
				FieldName:   h.FieldName,
				OldValue:    h.OldValue,
				NewValue:    h.NewValue,
				ChangedByID: h.ChangedByID,
				CreatedAt:   h.CreatedAt,
			})
		}
		out = append(out, HistoryGroupResponse{
			TicketID:     g.TicketID,
			TicketNumber: g.TicketNumber,
			Title:        g.Title,
			Histories:    entries,
		})
	}
	return out
}
