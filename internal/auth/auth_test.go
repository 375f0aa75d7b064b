package auth

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mwantia/folio/pkg/db/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	ctx := context.Background()

	s, err := store.NewSQLiteStore(store.SQLiteConfig{Path: filepath.Join(t.TempDir(), "folio.db")})
	require.NoError(t, err)
	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { s.Close() })

	a, err := NewAuthenticator(s, testSecret, time.Hour)
	require.NoError(t, err)
	return a
}

func TestNewAuthenticatorRejectsShortSecret(t *testing.T) {
	_, err := NewAuthenticator(nil, []byte("short"), time.Hour)
	assert.Error(t, err)
}

func TestProvisionHashesPassword(t *testing.T) {
	a := newTestAuthenticator(t)

	user, err := a.Provision(context.Background(), " admin ", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Username)
	assert.NotContains(t, user.PasswordHash, "correct horse")
	assert.True(t, strings.HasPrefix(user.PasswordHash, "$2"))
}

func TestProvisionRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	a := newTestAuthenticator(t)

	_, err := a.Provision(ctx, "", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidUser)

	_, err = a.Provision(ctx, "admin", "short")
	assert.ErrorIs(t, err, ErrInvalidUser)

	_, err = a.Provision(ctx, "admin", strings.Repeat("p", 73))
	assert.ErrorIs(t, err, ErrInvalidUser)

	_, err = a.Provision(ctx, "admin", "correct horse")
	require.NoError(t, err)
	_, err = a.Provision(ctx, "admin", "battery staple")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestLoginAndVerify(t *testing.T) {
	ctx := context.Background()
	a := newTestAuthenticator(t)

	provisioned, err := a.Provision(ctx, "admin", "correct horse")
	require.NoError(t, err)

	token, user, err := a.Login(ctx, "admin", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, provisioned.ID, user.ID)

	principal, err := a.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, provisioned.ID, principal.UserID)
	assert.Equal(t, "admin", principal.Username)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	a := newTestAuthenticator(t)

	_, err := a.Provision(ctx, "admin", "correct horse")
	require.NoError(t, err)

	_, _, err = a.Login(ctx, "admin", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = a.Login(ctx, "nobody", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	ctx := context.Background()
	a := newTestAuthenticator(t)

	_, err := a.Provision(ctx, "admin", "correct horse")
	require.NoError(t, err)

	issued := time.Now().Add(-2 * time.Hour)
	a.now = func() time.Time { return issued }
	token, _, err := a.Login(ctx, "admin", "correct horse")
	require.NoError(t, err)

	a.now = time.Now
	_, err = a.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsForeignTokens(t *testing.T) {
	a := newTestAuthenticator(t)

	_, err := a.Verify("")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	claims := &Claims{UserID: 1, RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("another-secret-another-secret-xx"))
	require.NoError(t, err)

	_, err = a.Verify(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFrom(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), &Principal{UserID: 3, Username: "admin"})
	p, ok := PrincipalFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, uint(3), p.UserID)
}
