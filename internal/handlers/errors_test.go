package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"familytasks/internal/apperr"
	"familytasks/internal/logger"
)

func TestRespondWithErrorStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{name: "validation", err: apperr.Validation("name: required"), wantStatus: http.StatusBadRequest, wantBody: "name: required"},
		{name: "not found", err: apperr.NotFound("task not found"), wantStatus: http.StatusNotFound, wantBody: "task not found"},
		{name: "unauthenticated", err: apperr.ErrUnauthenticated, wantStatus: http.StatusUnauthorized, wantBody: "no active session"},
		{name: "forbidden", err: apperr.Wrap(apperr.KindForbidden, "create invitation", errors.New("policy")), wantStatus: http.StatusForbidden, wantBody: "create invitation"},
		{name: "remote", err: apperr.Remote("failed to list tasks", errors.New("db down")), wantStatus: http.StatusBadGateway, wantBody: ErrUpstreamFailure},
		{name: "unclassified", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantBody: ErrInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)

			respondWithError(recorder, req, nil, tt.err)

			if recorder.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, recorder.Code)
			}
			var body errorResponse
			if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON body %q: %v", recorder.Body.String(), err)
			}
			if body.Error != tt.wantBody {
				t.Errorf("expected error %q, got %q", tt.wantBody, body.Error)
			}
		})
	}
}

func TestRespondWithErrorLogsServerFailures(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req = req.WithContext(logger.ContextWithRequestID(req.Context(), "req-1"))

	respondWithError(httptest.NewRecorder(), req, log, errors.New("boom"))
	respondWithError(httptest.NewRecorder(), req, log, apperr.Validation("bad input"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "req-1" {
		t.Errorf("expected request_id req-1, got %v", fields["request_id"])
	}
	if !strings.Contains(fields["error"].(string), "boom") {
		t.Errorf("expected log to include error, got %v", fields["error"])
	}
}

func TestDecodeJSON(t *testing.T) {
	var req createGroupRequest

	empty := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	if err := decodeJSON(empty, &req); err != nil {
		t.Errorf("empty body error = %v", err)
	}

	unknown := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"x"}`))
	if err := decodeJSON(unknown, &req); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("unknown field error = %v, want validation", err)
	}

	ok := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Smiths"}`))
	if err := decodeJSON(ok, &req); err != nil || req.Name != "Smiths" {
		t.Errorf("decodeJSON() = %v, name %q", err, req.Name)
	}
}
