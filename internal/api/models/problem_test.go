package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qoomy/notifier/internal/api/models"
)

func TestProblem_Write(t *testing.T) {
	p := models.NewBadRequest("req_test123", "invalid device registration", []models.FieldError{
		{Field: "platform", Message: "must be ios or android", Code: models.FieldCodeInvalid},
	})
	p.Instance = "/v1/me/devices"

	w := httptest.NewRecorder()
	p.Write(w)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req_test123", w.Header().Get("X-Request-Id"))

	var result models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))

	assert.Equal(t, models.ProblemTypeValidation, result.Type)
	assert.Equal(t, "Validation error", result.Title)
	assert.Equal(t, http.StatusBadRequest, result.Status)
	assert.Equal(t, "invalid device registration", result.Detail)
	assert.Equal(t, "/v1/me/devices", result.Instance)
	assert.Equal(t, "req_test123", result.TraceID)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "platform", result.Errors[0].Field)
	assert.Equal(t, models.FieldCodeInvalid, result.Errors[0].Code)
}

func TestProblem_Constructors(t *testing.T) {
	tests := []struct {
		name       string
		problem    *models.Problem
		wantType   string
		wantTitle  string
		wantStatus int
		wantDetail string
	}{
		{"bad request", models.NewBadRequest("req_1", "invalid data", nil), models.ProblemTypeValidation, "Validation error", http.StatusBadRequest, "invalid data"},
		{"unauthorized", models.NewUnauthorized("req_1", "token expired"), models.ProblemTypeUnauthorized, "Unauthorized", http.StatusUnauthorized, "token expired"},
		{"forbidden", models.NewForbidden("req_1", "admin only"), models.ProblemTypeForbidden, "Forbidden", http.StatusForbidden, "admin only"},
		{"tls required", models.NewTLSRequired("req_1"), models.ProblemTypeTLSRequired, "TLS required", http.StatusForbidden, "This endpoint requires HTTPS"},
		{"not found", models.NewNotFound("req_1", "room not found"), models.ProblemTypeNotFound, "Not found", http.StatusNotFound, "room not found"},
		{"unsupported media type", models.NewUnsupportedMediaType("req_1", "json only"), models.ProblemTypeUnsupportedType, "Unsupported media type", http.StatusUnsupportedMediaType, "json only"},
		{"too many requests", models.NewTooManyRequests("req_1", "slow down"), models.ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests, "slow down"},
		{"internal", models.NewInternalError("req_1", "boom"), models.ProblemTypeInternal, "Internal server error", http.StatusInternalServerError, "boom"},
		{"unavailable", models.NewServiceUnavailable("req_1", "push gateway down"), models.ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable, "push gateway down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.problem.Type)
			assert.Equal(t, tt.wantTitle, tt.problem.Title)
			assert.Equal(t, tt.wantStatus, tt.problem.Status)
			assert.Equal(t, tt.wantDetail, tt.problem.Detail)
			assert.Equal(t, "req_1", tt.problem.TraceID)
		})
	}
}
