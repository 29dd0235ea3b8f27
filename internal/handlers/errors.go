package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"familytasks/internal/apperr"
	"familytasks/internal/logger"
)

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// statusForKind maps an error classification to its HTTP status
func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindRemote:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondWithError writes err as a JSON error body. Messages of client
// errors are returned as-is; server-side failures are logged and replaced
// by a generic message.
func respondWithError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	status := statusForKind(kind)

	body := errorResponse{Kind: string(kind), RequestID: logger.RequestID(r.Context())}
	var appErr *apperr.Error
	switch {
	case status >= http.StatusInternalServerError:
		if status == http.StatusBadGateway {
			body.Error = ErrUpstreamFailure
		} else {
			body.Error = ErrInternalServerError
		}
		logger.WithRequestID(r.Context(), orNop(log)).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	case errors.As(err, &appErr):
		body.Error = appErr.Message
	default:
		body.Error = err.Error()
	}

	respondJSON(w, status, body)
}

func orNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a JSON request body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.Wrap(apperr.KindValidation, fmt.Sprintf("%s: %v", ErrInvalidJSON, err), err)
	}
	return nil
}
