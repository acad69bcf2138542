package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"projecthub-service/internal/repository"
	"projecthub-service/pkg/apperr"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
		code    string
	}{
		{"not found", apperr.NotFound("Project"), http.StatusNotFound, "Project not found", ""},
		{"quota", apperr.Forbidden(apperr.ReasonQuotaExceeded, "User limit reached"), http.StatusForbidden, "User limit reached", "QuotaExceeded"},
		{"conflict", apperr.Conflict("Subdomain already taken"), http.StatusConflict, "Subdomain already taken", ""},
		{"echo error", echo.NewHTTPError(http.StatusMethodNotAllowed, "Method Not Allowed"), http.StatusMethodNotAllowed, "Method Not Allowed", ""},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "An internal error has occurred.", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			ErrorHandler(tt.err, c)

			require.Equal(t, tt.status, rec.Code)
			var body Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.message, body.Message)
		})
	}
}

func TestErrorHandlerHead(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodHead, "/", nil), rec)

	ErrorHandler(apperr.NotFound("Task"), c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestNewPage(t *testing.T) {
	p := newPage[string](nil, 41, repository.NewPage(2, 20, 10))

	assert.Equal(t, []string{}, p.Items)
	assert.Equal(t, int64(41), p.Total)
	assert.Equal(t, Pagination{CurrentPage: 2, TotalPages: 3, Limit: 20}, p.Pagination)
}
