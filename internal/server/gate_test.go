package server

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/codeinmyveins/chatverse/internal/auth"
	"github.com/codeinmyveins/chatverse/internal/logging"
	"github.com/codeinmyveins/chatverse/internal/storage"
	"github.com/codeinmyveins/chatverse/internal/storage/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsersRepo struct {
	byID map[int64]*users.User
	err  error
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id int64) (*users.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, storage.ErrNotFound
}

const gateSecret = "gate-test-secret"

func newTestGate(repo users.Repository) *ConnectionGate {
	return NewConnectionGate([]byte(gateSecret), repo, logging.Nop())
}

func signToken(t *testing.T, userID int64) string {
	t.Helper()
	token, err := auth.GenerateToken(userID, []byte(gateSecret), time.Hour)
	require.NoError(t, err)
	return token
}

func TestGateAcceptsQueryToken(t *testing.T) {
	repo := &fakeUsersRepo{byID: map[int64]*users.User{7: {ID: 7, Username: "alice"}}}
	gate := newTestGate(repo)

	r := httptest.NewRequest("GET", "/ws?token="+signToken(t, 7), nil)
	user, err := gate.Authenticate(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)
	assert.Equal(t, "alice", user.Username)
}

func TestGateAcceptsCookieToken(t *testing.T) {
	repo := &fakeUsersRepo{byID: map[int64]*users.User{7: {ID: 7, Username: "alice"}}}
	gate := newTestGate(repo)

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Cookie", "session=abc; token="+signToken(t, 7)+"; theme=dark")
	user, err := gate.Authenticate(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)
}

func TestGateQueryTokenWinsOverCookie(t *testing.T) {
	repo := &fakeUsersRepo{byID: map[int64]*users.User{
		1: {ID: 1, Username: "alice"},
		2: {ID: 2, Username: "bob"},
	}}
	gate := newTestGate(repo)

	r := httptest.NewRequest("GET", "/ws?token="+signToken(t, 1), nil)
	r.Header.Set("Cookie", "token="+signToken(t, 2))
	user, err := gate.Authenticate(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
}

func TestGateMissingToken(t *testing.T) {
	gate := newTestGate(&fakeUsersRepo{})

	r := httptest.NewRequest("GET", "/ws", nil)
	_, err := gate.Authenticate(context.Background(), r)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, MissingToken, authErr.Reason)
}

func TestGateInvalidToken(t *testing.T) {
	gate := newTestGate(&fakeUsersRepo{})

	r := httptest.NewRequest("GET", "/ws?token=not-a-jwt", nil)
	_, err := gate.Authenticate(context.Background(), r)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, InvalidToken, authErr.Reason)
}

func TestGateUnknownUser(t *testing.T) {
	gate := newTestGate(&fakeUsersRepo{})

	r := httptest.NewRequest("GET", "/ws?token="+signToken(t, 404), nil)
	_, err := gate.Authenticate(context.Background(), r)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, UnknownUser, authErr.Reason)
}

func TestGateStoreFailureRefusesConnection(t *testing.T) {
	gate := newTestGate(&fakeUsersRepo{err: errors.New("db down")})

	r := httptest.NewRequest("GET", "/ws?token="+signToken(t, 7), nil)
	_, err := gate.Authenticate(context.Background(), r)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestTokenFromCookieHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"single", "token=abc", "abc"},
		{"among others", "a=1; token=abc; b=2", "abc"},
		{"absent", "a=1; b=2", ""},
		{"empty value", "token=", ""},
		{"empty header", "", ""},
		{"prefix does not match", "mytoken=abc", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tokenFromCookieHeader(tc.header))
		})
	}
}
