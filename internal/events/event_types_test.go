package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsm-platform/ticketing-service/internal/domain"
)

func TestEncodeDecodeStatusChange(t *testing.T) {
	occurred := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	body, err := Encode(TicketEvent{
		Event:      domain.EventStatusChange,
		TicketID:   "t-1",
		OldStatus:  "New",
		NewStatus:  "Resolved",
		OccurredAt: occurred,
	})
	require.NoError(t, err)
	assert.Contains(t, string(body), `"event":"STATUS_CHANGE"`)

	event, err := Decode(body)
	require.NoError(t, err)
	assert.Equal(t, "t-1", event.TicketID)
	assert.True(t, event.IsResolvedTransition())
	assert.True(t, occurred.Equal(event.OccurredAt))
}

func TestDecodeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"event":`},
		{"unknown event", `{"event":"DELETE","ticketId":"t-1"}`},
		{"missing ticket", `{"event":"CREATE"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestEncodeRejectsInvalidEvent(t *testing.T) {
	_, err := Encode(TicketEvent{Event: domain.EventCreate})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestIsResolvedTransitionOnlyForStatusChange(t *testing.T) {
	assert.False(t, TicketEvent{Event: domain.EventUpdate, NewStatus: domain.StatusResolved}.IsResolvedTransition())
	assert.False(t, TicketEvent{Event: domain.EventStatusChange, NewStatus: domain.StatusClosed}.IsResolvedTransition())
}
