// Package server connection gate: the per-connection handshake check. A
// connection is admitted to the hub only after its credential verifies and
// resolves to a stored user; every failure path rejects before any state is
// created.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/codeinmyveins/chatverse/internal/auth"
	"github.com/codeinmyveins/chatverse/internal/logging"
	"github.com/codeinmyveins/chatverse/internal/storage"
	"github.com/codeinmyveins/chatverse/internal/storage/users"
)

// ConnectionGate authenticates handshakes against the token verifier and the
// user store.
type ConnectionGate struct {
	secret []byte
	users  users.Repository
	logger logging.Logger
}

// NewConnectionGate builds a gate verifying tokens with secret and resolving
// identities through the given repository.
func NewConnectionGate(secret []byte, users users.Repository, logger logging.Logger) *ConnectionGate {
	return &ConnectionGate{secret: secret, users: users, logger: logger}
}

// Authenticate extracts the bearer credential from the handshake request,
// verifies it, and resolves the durable user record. Every failure is an
// *AuthError; the caller must refuse the connection on any error.
func (g *ConnectionGate) Authenticate(ctx context.Context, r *http.Request) (*users.User, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, &AuthError{Reason: MissingToken}
	}

	userID, err := auth.UserIDFromToken(token, g.secret)
	if err != nil {
		g.logger.Debug(ctx, "token verification failed", "addr", r.RemoteAddr)
		return nil, &AuthError{Reason: InvalidToken}
	}

	user, err := g.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			g.logger.Debug(ctx, "token subject has no user record", "user_id", userID)
			return nil, &AuthError{Reason: UnknownUser}
		}
		// Store trouble is indistinguishable from an unknown user to the
		// client; the connection is refused either way.
		g.logger.Error(ctx, "identity lookup failed", "user_id", userID, "error", err)
		return nil, &AuthError{Reason: UnknownUser}
	}

	return user, nil
}

// bearerToken pulls the credential from the handshake: the explicit token
// query parameter first, then a token= entry in the raw Cookie header. The
// first non-empty value wins.
func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return tokenFromCookieHeader(r.Header.Get("Cookie"))
}

// tokenFromCookieHeader parses a raw Cookie header string for a token=value
// entry.
func tokenFromCookieHeader(header string) string {
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if value, ok := strings.CutPrefix(part, "token="); ok && value != "" {
			return value
		}
	}
	return ""
}
