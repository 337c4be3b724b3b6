package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"domain error passes through", NewForbidden("nope"), "FORBIDDEN", http.StatusForbidden},
		{"wrapped domain error", fmt.Errorf("load: %w", NewNotFound("ticket", nil)), "NOT_FOUND", http.StatusNotFound},
		{"no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), "NOT_FOUND", http.StatusNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}, "CONFLICT", http.StatusConflict},
		{"fk violation", &pgconn.PgError{Code: "23503"}, "INVALID_REFERENCE", http.StatusBadRequest},
		{"malformed uuid", &pgconn.PgError{Code: "22P02"}, "VALIDATION_FAILED", http.StatusBadRequest},
		{"unknown", errors.New("boom"), "INTERNAL_ERROR", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			de := ToDomainError(tt.err)
			require.NotNil(t, de)
			assert.Equal(t, tt.wantCode, de.Code)
			assert.Equal(t, tt.wantStatus, de.HTTPStatus)
		})
	}
}

func TestMapErrorNil(t *testing.T) {
	assert.NoError(t, MapError(nil))
	assert.Nil(t, ToDomainError(nil))
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("create: %w", NewBadRequest("INVALID_CATEGORY_FOR_DEPARTMENT", "mismatch", nil))
	assert.True(t, IsCode(err, "INVALID_CATEGORY_FOR_DEPARTMENT"))
	assert.False(t, IsCode(err, "NOT_FOUND"))
	assert.False(t, IsCode(errors.New("plain"), "NOT_FOUND"))
}
