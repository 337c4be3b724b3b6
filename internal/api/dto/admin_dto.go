package dto

import (
	"time"

	"github.com/itsm-platform/ticketing-service/internal/domain"
)

// UserRoleRequest grants or revokes a role.
type UserRoleRequest struct {
	UserID string `json:"userId" validate:"required"`
	RoleID string `json:"roleId" validate:"required"`
}

// UserCategoryRequest maps or unmaps a manager to a category.
type UserCategoryRequest struct {
	UserID     string `json:"userId" validate:"required"`
	CategoryID string `json:"categoryId" validate:"required"`
}

// AdminAssignTicketRequest routes a ticket to a category manager.
type AdminAssignTicketRequest struct {
	TicketID  string `json:"ticketId" validate:"required"`
	ManagerID string `json:"managerId" validate:"required"`
}

// NotificationRuleRequest replaces the rule for an event.
type NotificationRuleRequest struct {
	Event          string   `json:"event" validate:"required,oneof=CREATE UPDATE ASSIGN STATUS_CHANGE"`
	RecipientTypes []string `json:"recipientTypes" validate:"required,min=1,dive,oneof=CREATED_BY ASSIGNED_TO DEPARTMENT_IT_MANAGERS CATEGORY_IT_MANAGERS"`
	IsActive       *bool    `json:"isActive"`
}

// UserCategoryResponse is a manager-category mapping.
type UserCategoryResponse struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	CategoryID string    `json:"categoryId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewUserCategoryResponse maps a mapping row.
func NewUserCategoryResponse(uc *domain.UserCategory) UserCategoryResponse {
	return UserCategoryResponse{ID: uc.ID, UserID: uc.UserID, CategoryID: uc.CategoryID, CreatedAt: uc.CreatedAt}
}

// RuleResponse is a notification rule.
type RuleResponse struct {
	ID             string                 `json:"id"`
	Event          domain.TicketEventType `json:"event"`
	RecipientTypes []domain.RecipientType `json:"recipientTypes"`
	IsActive       bool                   `json:"isActive"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

// NewRuleResponse maps a rule.
func NewRuleResponse(r *domain.NotificationRule) RuleResponse {
	return RuleResponse{
		ID:             r.ID,
		Event:          r.Event,
		RecipientTypes: r.RecipientTypes,
		IsActive:       r.IsActive,
		UpdatedAt:      r.UpdatedAt,
	}
}

// NewRuleResponses maps rules.
func NewRuleResponses(rules []domain.NotificationRule) []RuleResponse {
	out := make([]RuleResponse, 0, len(rules))
	for i := range rules {
		out = append(out, NewRuleResponse(&rules[i]))
	}
	return out
}

// NotificationResponse is an in-app notification.
type NotificationResponse struct {
	ID        string                    `json:"id"`
	Message   string                    `json:"message"`
	Status    domain.NotificationStatus `json:"status"`
	TicketID  *string                   `json:"ticketId"`
	ReadAt    *time.Time                `json:"readAt"`
	CreatedAt time.Time                 `json:"createdAt"`
}

// NewNotificationResponse maps a notification.
func NewNotificationResponse(n *domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Message:   n.Message,
		Status:    n.Status,
		TicketID:  n.TicketID,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}

// NewNotificationResponses maps notifications.
func NewNotificationResponses(items []domain.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for i := range items {
		out = append(out, NewNotificationResponse(&items[i]))
	}
	return out
}

// CategoryResponse is a catalog category.
type CategoryResponse struct {
	ID           string `json:"id"`
	DepartmentID string `json:"departmentId"`
	Name         string `json:"name"`
	Code         string `json:"code"`
	Description  string `json:"description,omitempty"`
	IsActive     bool   `json:"isActive"`
}

// StatusResponse is a catalog status.
type StatusResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PriorityResponse is a catalog priority.
type PriorityResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sortOrder"`
}

// NewCategoryResponses maps categories.
func NewCategoryResponses(items []domain.TicketCategory) []CategoryResponse {
	out := make([]CategoryResponse, 0, len(items))
	for _, c := range items {
		out = append(out, CategoryResponse{
			ID:           c.ID,
			DepartmentID: c.DepartmentID,
			Name:         c.Name,
			Code:         c.Code,
			Description:  c.Description,
			IsActive:     c.IsActive,
		})
	}
	return out
}

// NewStatusResponses maps statuses.
func NewStatusResponses(items []domain.TicketStatus) []StatusResponse {
	out := make([]StatusResponse, 0, len(items))
	for _, s := range items {
		out = append(out, StatusResponse{ID: s.ID, Name: s.Name})
	}
	return out
}

// NewPriorityResponses maps priorities.
func NewPriorityResponses(items []domain.TicketPriority) []PriorityResponse {
	out := make([]PriorityResponse, 0, len(items))
	for _, p := range items {
		out = append(out, PriorityResponse{ID: p.ID, Name: p.Name, SortOrder: p.SortOrder})
	}
	return out
}
