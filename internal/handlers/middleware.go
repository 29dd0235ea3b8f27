package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"familytasks/internal/apperr"
	"familytasks/internal/logger"
	"familytasks/internal/models"
	"familytasks/internal/security"
	"familytasks/internal/service"
)

// Authenticator resolves the user behind a bearer token
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// Middleware holds dependencies for middleware functions
type Middleware struct {
	auth    Authenticator
	limiter *security.RateLimiter
	logger  *zap.Logger
}

// NewMiddleware creates a new middleware instance. limiter may be nil.
func NewMiddleware(auth Authenticator, limiter *security.RateLimiter, log *zap.Logger) *Middleware {
	return &Middleware{auth: auth, limiter: limiter, logger: orNop(log).Named("http")}
}

// RequestID attaches the caller's request ID, or a new one, to the context
// and the response
func (m *Middleware) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.ContextWithRequestID(r.Context(), id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Logging logs one line per request
func (m *Middleware) Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		logger.WithRequestID(r.Context(), m.logger).Info("Request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// Recover turns a panicking handler into a 500 response
func (m *Middleware) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				logger.WithRequestID(r.Context(), m.logger).Error("Handler panic",
					zap.Any("panic", p),
					zap.Stack("stack"),
				)
				respondJSON(w, http.StatusInternalServerError, errorResponse{Error: ErrInternalServerError})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// RequireAuth authenticates the bearer token and throttles per user
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondWithError(w, r, m.logger, apperr.ErrUnauthenticated)
			return
		}

		user, err := m.auth.Authenticate(r.Context(), token)
		if err != nil {
			respondWithError(w, r, m.logger, err)
			return
		}

		if !m.limiter.Allow(user.ID) {
			respondJSON(w, http.StatusTooManyRequests, errorResponse{
				Error:     ErrTooManyRequests,
				RequestID: logger.RequestID(r.Context()),
			})
			return
		}

		next.ServeHTTP(w, r.WithContext(service.WithUser(r.Context(), user)))
	})
}

// RateLimitByIP throttles unauthenticated endpoints per client address
func (m *Middleware) RateLimitByIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.limiter.Allow("ip:" + security.ClientIP(r)) {
			respondJSON(w, http.StatusTooManyRequests, errorResponse{Error: ErrTooManyRequests})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// currentUser returns the user RequireAuth stored in the request context
func currentUser(r *http.Request) (*models.User, error) {
	return service.UserFromContext(r.Context())
}
