package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"familytasks/internal/apperr"
	"familytasks/internal/models"
	"familytasks/internal/validation"
)

// SessionClaims are the claims carried by access tokens of the external
// auth service
type SessionClaims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// SessionProvider resolves the authenticated identity behind an access
// token. Tokens are HS256 JWTs signed with a secret shared with the auth
// service; the subject is the user ID.
type SessionProvider struct {
	secret   []byte
	issuer   string
	profiles ProfileStore
	logger   *zap.Logger
}

// NewSessionProvider creates a session provider
func NewSessionProvider(secret, issuer string, profiles ProfileStore, logger *zap.Logger) *SessionProvider {
	return &SessionProvider{
		secret:   []byte(secret),
		issuer:   issuer,
		profiles: profiles,
		logger:   orNop(logger).Named("session"),
	}
}

// Authenticate verifies token and returns the user it identifies. The
// user's local profile is created or refreshed from the token claims.
func (p *SessionProvider) Authenticate(ctx context.Context, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperr.ErrUnauthenticated
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	}, opts...)
	if err != nil {
		p.logger.Debug("Rejected access token", zap.Error(err))
		return nil, apperr.Wrap(apperr.KindUnauthenticated, apperr.ErrUnauthenticated.Message, err)
	}

	email := validation.NormalizeEmail(claims.Email)
	if claims.Subject == "" || email == "" {
		return nil, apperr.ErrUnauthenticated
	}

	user := &models.User{ID: claims.Subject, Email: email, FullName: strings.TrimSpace(claims.Name)}
	if err := p.profiles.UpsertProfile(ctx, user); err != nil {
		return nil, classify("store profile", err, nil)
	}
	return user, nil
}

// IssueToken signs a token for user that Authenticate accepts. It is used
// by development tooling; production tokens come from the auth service.
func (p *SessionProvider) IssueToken(user *models.User, ttl time.Duration) (string, error) {
	if user == nil || user.ID == "" || user.Email == "" {
		return "", errors.New("user id and email are required")
	}
	now := time.Now()
	claims := SessionClaims{
		Email: user.Email,
		Name:  user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

type userCtxKey struct{}

// WithUser stores the authenticated user in ctx
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, user)
}

// UserFromContext returns the authenticated user stored in ctx
func UserFromContext(ctx context.Context) (*models.User, error) {
	user, ok := ctx.Value(userCtxKey{}).(*models.User)
	if !ok || user == nil {
		return nil, apperr.ErrUnauthenticated
	}
	return user, nil
}
