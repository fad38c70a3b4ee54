package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/reveralabs/revera/pkg/services"
)

func TestWriteServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "validation error",
			err:        services.NewValidationError("title", "required"),
			wantStatus: http.StatusBadRequest,
			wantBody:   "validation error on field 'title': required",
		},
		{
			name:       "wrapped validation error",
			err:        fmt.Errorf("update chat: %w", services.NewValidationError("title", "required")),
			wantStatus: http.StatusBadRequest,
			wantBody:   "title",
		},
		{
			name:       "not found",
			err:        services.ErrNotFound,
			wantStatus: http.StatusNotFound,
			wantBody:   "resource not found",
		},
		{
			name:       "already exists",
			err:        services.ErrAlreadyExists,
			wantStatus: http.StatusConflict,
			wantBody:   "resource already exists",
		},
		{
			name:       "invalid input",
			err:        fmt.Errorf("%w: bad status", services.ErrInvalidInput),
			wantStatus: http.StatusBadRequest,
			wantBody:   "bad status",
		},
		{
			name:       "unexpected error is opaque",
			err:        errors.New("pq: connection reset"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)

			writeServiceError(c, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}
