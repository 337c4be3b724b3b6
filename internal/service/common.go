package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/itsm-platform/ticketing-service/internal/domain"
	"github.com/itsm-platform/ticketing-service/internal/events"
	"github.com/itsm-platform/ticketing-service/internal/repository"
	apperrors "github.com/itsm-platform/ticketing-service/pkg/util/errorutil"
)

// Pagination is the 1-based page request accepted by list operations.
type Pagination struct {
	Page  int
	Limit int
}

// Meta describes the page returned by a list operation.
type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func (p Pagination) normalized() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 10
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	return p
}

func (p Pagination) repoPage() repository.Page {
	p = p.normalized()
	return repository.Page{Limit: p.Limit, Offset: (p.Page - 1) * p.Limit}
}

func (p Pagination) meta(total int) Meta {
	p = p.normalized()
	pages := 0
	if total > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Meta{Page: p.Page, Limit: p.Limit, Total: total, TotalPages: pages}
}

// notFound turns a missing row into a NotFound error for resource.
func notFound(err error, resource string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, nil)
	}
	return err
}

// eventPublisher writes lifecycle events to the outbox inside the caller's
// transaction when an active rule subscribes to the event.
type eventPublisher struct {
	lookup *LookupService
	logger *zap.Logger
	now    func() time.Time
}

func (p eventPublisher) publishEvent(ctx context.Context, outbox repository.OutboxRepository, event events.TicketEvent) error {
	rule, err := p.lookup.ActiveRule(ctx, event.Event)
	if err != nil {
		p.logger.Warn("notification rule lookup failed; event skipped",
			zap.String("event", string(event.Event)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
		return nil
	}
	if rule == nil {
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = p.now()
	}
	payload, err := events.Encode(event)
	if err != nil {
		p.logger.Error("encode ticket event", zap.String("ticket_id", event.TicketID), zap.Error(err))
		return nil
	}
	if err := outbox.Enqueue(ctx, &domain.OutboxEvent{EventType: event.Event, Payload: payload}); err != nil {
		return fmt.Errorf("enqueue %s event: %w", event.Event, err)
	}
	return nil
}

const ticketSuffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateTicketNumber builds TKT-{code}-{base36 millis}-{4 random chars}.
func generateTicketNumber(categoryCode string, now time.Time) string {
	stamp := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	return fmt.Sprintf("TKT-%s-%s-%s", strings.ToUpper(categoryCode), stamp, randomSuffix(4))
}

func randomSuffix(n int) string {
	var b strings.Builder
	size := big.NewInt(int64(len(ticketSuffixAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, size)
		if err != nil {
			idx = big.NewInt(time.Now().UnixNano() % size.Int64())
		}
		b.WriteByte(ticketSuffixAlphabet[idx.Int64()])
	}
	return b.String()
}

func strPtr(s string) *string { return &s }

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	return strPtr(t.UTC().Format(time.RFC3339))
}
