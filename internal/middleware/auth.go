package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const ctxUserKey contextKey = "user"

// User is the authenticated caller identity, carried per request. Token
// issuance and refresh happen elsewhere; this middleware only consumes the
// already-issued bearer token.
type User struct {
	ID   uuid.UUID
	Role string
}

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

func parseBearer(r *http.Request, secret []byte) (*User, error) {
	raw := extractBearer(r)
	if raw == "" {
		return nil, errors.New("missing bearer token")
	}
	tok, err := jwt.ParseWithClaims(raw, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return nil, errors.New("invalid token")
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return nil, err
	}
	return &User{ID: id, Role: c.Role}, nil
}

// Auth rejects requests without a valid bearer token and puts the caller
// identity into the request context.
func Auth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := parseBearer(r, secret)
			if err != nil {
				http.Error(w, `{"error":"missing or invalid bearer token"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// OptionalAuth sets the caller identity when a valid token is present and
// lets anonymous requests through. Used for routes that serve a redacted
// view to unauthenticated viewers.
func OptionalAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if u, err := parseBearer(r, secret); err == nil {
				r = r.WithContext(WithUser(r.Context(), u))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserFromCtx returns the authenticated user or nil.
func UserFromCtx(ctx context.Context) *User {
	u, _ := ctx.Value(ctxUserKey).(*User)
	return u
}

// WithUser returns a context carrying the given user.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, ctxUserKey, u)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
