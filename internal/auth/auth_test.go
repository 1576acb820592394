package auth

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bidmaster/auction-api/internal/gateway"
	"github.com/bidmaster/auction-api/internal/types"
)

func newTestService(t *testing.T) (*Service, *gateway.Gateway) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	g, err := gateway.New(dsn, 100)
	require.NoError(t, err)
	return NewService(g, "test-secret", time.Hour), g
}

func TestLogin_Success(t *testing.T) {
	svc, g := newTestService(t)

	token, err := svc.Login(Credentials{UserID: "U002", Secret: "user123"})
	require.NoError(t, err)
	require.NotEmpty(t, token.Token)
	require.Equal(t, "U002", token.User.UserID)
	require.Equal(t, "John Doe", token.User.Name)
	require.Equal(t, types.RoleBidder, token.User.Role)
	require.True(t, token.Expiration.After(time.Now()))

	snap, err := g.Fetch()
	require.NoError(t, err)
	require.Equal(t, types.ActionLogin, snap.Logs[0].Action)
	require.Equal(t, "U002", snap.Logs[0].UserID)
}

func TestLogin_UserIDIsCaseInsensitive(t *testing.T) {
	svc, _ := newTestService(t)

	token, err := svc.Login(Credentials{UserID: "u001", Secret: "password"})
	require.NoError(t, err)
	require.Equal(t, "U001", token.User.UserID)
	require.Equal(t, types.RoleAdmin, token.User.Role)
}

func TestLogin_RejectsBadCredentials(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name  string
		creds Credentials
	}{
		{name: "unknown_user", creds: Credentials{UserID: "U999", Secret: "password"}},
		{name: "wrong_secret", creds: Credentials{UserID: "U002", Secret: "PASSWORD"}},
		{name: "secret_is_case_sensitive", creds: Credentials{UserID: "U002", Secret: "USER123"}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			token, err := svc.Login(tc.creds)
			require.Nil(t, token)
			require.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestValidateToken_RoundTrip(t *testing.T) {
	svc, _ := newTestService(t)

	token, err := svc.Login(Credentials{UserID: "U003", Secret: "user123"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token.Token)
	require.NoError(t, err)
	require.Equal(t, "U003", claims.UserID)
	require.Equal(t, "Jane Smith", claims.UserName)
	require.Equal(t, types.RoleBidder, claims.Role)
}

func TestValidateToken_RejectsWrongSecret(t *testing.T) {
	svc, g := newTestService(t)

	token, err := svc.Login(Credentials{UserID: "U003", Secret: "user123"})
	require.NoError(t, err)

	other := NewService(g, "different-secret", time.Hour)
	_, err = other.ValidateToken(token.Token)
	require.Error(t, err)
}

func TestLogout_AppendsAuditEntry(t *testing.T) {
	svc, g := newTestService(t)

	require.NoError(t, svc.Logout("U004", "Alice Wong"))

	snap, err := g.Fetch()
	require.NoError(t, err)
	require.Equal(t, types.ActionLogout, snap.Logs[0].Action)
	require.Equal(t, "U004", snap.Logs[0].UserID)
}
