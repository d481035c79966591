// Package auth verifies the OIDC tokens Cloud Tasks attaches to task
// deliveries. Only the internal task handler is authenticated; the document
// API itself is fronted elsewhere.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/api/idtoken"
)

// TokenValidator validates a bearer token against an audience. idtoken.Validate
// satisfies it; tests substitute fakes.
type TokenValidator func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// TaskAuth authenticates Cloud Tasks push deliveries.
type TaskAuth struct {
	// Audience is the handler URL the OIDC token was minted for.
	Audience string
	// InvokerEmail, when set, additionally pins the token's email claim to
	// the expected invoker service account.
	InvokerEmail string
	// Disabled skips verification entirely, for local development and
	// synchronous mode.
	Disabled bool

	validate TokenValidator
}

// NewTaskAuth builds a verifier for the task handler endpoint.
func NewTaskAuth(audience, invokerEmail string, disabled bool) *TaskAuth {
	return &TaskAuth{
		Audience:     audience,
		InvokerEmail: invokerEmail,
		Disabled:     disabled,
		validate:     idtoken.Validate,
	}
}

// NewTaskAuthWithValidator injects a validator, for tests.
func NewTaskAuthWithValidator(audience, invokerEmail string, validate TokenValidator) *TaskAuth {
	return &TaskAuth{Audience: audience, InvokerEmail: invokerEmail, validate: validate}
}

// Verify checks the request's Authorization header. It returns nil when the
// delivery is authentic (or verification is disabled).
func (a *TaskAuth) Verify(r *http.Request) error {
	if a.Disabled {
		return nil
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return fmt.Errorf("missing Authorization header")
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return fmt.Errorf("malformed Authorization header")
	}

	payload, err := a.validate(r.Context(), token, a.Audience)
	if err != nil {
		return fmt.Errorf("invalid OIDC token: %w", err)
	}
	if a.InvokerEmail != "" {
		email, _ := payload.Claims["email"].(string)
		if email != a.InvokerEmail {
			return fmt.Errorf("token issued for %q, want invoker %q", email, a.InvokerEmail)
		}
	}
	return nil
}

// Middleware wraps a handler with Verify, rejecting unauthenticated requests
// with 401 so Cloud Tasks does not retry them as transient failures.
func (a *TaskAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := a.Verify(r); err != nil {
			log.WithField("error", err.Error()).Warn("rejected task delivery")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
