package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/itsm-platform/ticketing-service/internal/api/dto"
	"github.com/itsm-platform/ticketing-service/internal/service"
)

// NotificationsHandler serves the caller's in-app notifications.
type NotificationsHandler struct {
	notifications *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notifications *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications}
}

// List GET /notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	items, err := h.notifications.FindAll(c.UserContext(), p.UserID)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewNotificationResponses(items))
}

// Unread GET /notifications/unread.
func (h *NotificationsHandler) Unread(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	items, err := h.notifications.FindAllUnread(c.UserContext(), p.UserID)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewNotificationResponses(items))
}

// MarkRead PATCH /notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	n, err := h.notifications.MarkAsRead(c.UserContext(), c.Params("id"), p.UserID)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewNotificationResponse(n))
}
