package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/Dan9191/ledger-service/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterOpensDefaultAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.Register(ctx, " Alice@Example.com ", "password")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, models.RoleUser, u.Role)
	assert.True(t, u.IsActive)
	assert.NotEqual(t, "password", u.PasswordHash)

	account, err := f.svc.MyAccount(ctx, u.Principal())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultAccountName, account.Name)
	assert.Equal(t, "USD", account.Currency)
	assert.True(t, account.Balance.IsZero())

	_, err = f.svc.Register(ctx, "alice@example.com", "other")
	assert.ErrorIs(t, err, models.ErrEmailTaken)
}

func TestLoginAndAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u, err := f.svc.Register(ctx, "alice@example.com", "password")
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "nobody@example.com", "password")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	pair, err := f.svc.Login(ctx, "alice@example.com", "password")
	require.NoError(t, err)
	token := pair.AccessToken
	assert.NotEmpty(t, pair.RefreshToken)

	p, err := f.svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.ID)
	assert.Equal(t, models.RoleUser, p.Role)
	assert.True(t, p.IsActive)

	_, err = f.svc.Authenticate(ctx, token+"x")
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = f.svc.Disable(ctx, p)
	require.NoError(t, err)
	_, err = f.svc.Disable(ctx, p)
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAuthenticateRejectsExpiredAndForeignTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u, err := f.svc.Register(ctx, "alice@example.com", "password")
	require.NoError(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Type: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, signed)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Type:             tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{Subject: strconv.FormatInt(u.ID, 10)},
	})
	signed, err = foreign.SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, signed)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	unknown := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Type:             tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "999"},
	})
	signed, err = unknown.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, signed)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestRefreshIssuesNewPair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u, err := f.svc.Register(ctx, "alice@example.com", "password")
	require.NoError(t, err)
	pair, err := f.svc.Login(ctx, "alice@example.com", "password")
	require.NoError(t, err)

	// Clocks move on so the new tokens differ from the old ones.
	f.svc.now = func() time.Time { return time.Now().Add(time.Minute) }
	renewed, err := f.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, renewed.AccessToken)

	p, err := f.svc.Authenticate(ctx, renewed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.ID)

	_, err = f.svc.Refresh(ctx, renewed.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshAndAccessTokensAreNotInterchangeable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, "alice@example.com", "password")
	require.NoError(t, err)
	pair, err := f.svc.Login(ctx, "alice@example.com", "password")
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	_, err = f.svc.Authenticate(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	_, err = f.svc.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestRefreshRejectsDisabledAndExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u, err := f.svc.Register(ctx, "alice@example.com", "password")
	require.NoError(t, err)
	pair, err := f.svc.Login(ctx, "alice@example.com", "password")
	require.NoError(t, err)

	f.svc.now = func() time.Time { return time.Now().Add(f.svc.config.JWTRefreshTTL + time.Minute) }
	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	f.svc.now = time.Now
	_, err = f.svc.Disable(ctx, u.Principal())
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAdminUserOperations(t *testing.T) {
	f := newFixture(t)
	alice, a := f.user(t, "alice@example.com", "10")
	bob, b := f.user(t, "bob@example.com", "0")
	carol, _ := f.user(t, "carol@example.com", "0")
	admin := f.admin(t)
	ctx := context.Background()

	_, err := f.svc.ListUsers(ctx, alice)
	assert.ErrorIs(t, err, models.ErrForbidden)
	_, err = f.svc.GetUserByEmail(ctx, alice, "bob@example.com")
	assert.ErrorIs(t, err, models.ErrForbidden)
	assert.ErrorIs(t, f.svc.DeleteUser(ctx, alice, bob.ID), models.ErrForbidden)

	users, err := f.svc.ListUsers(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, users, 4)

	found, err := f.svc.GetUserByEmail(ctx, admin, "BOB@example.com")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, found.ID)

	_, err = f.svc.Transfer(ctx, TransferRequest{SenderAccountID: a.ID, RecipientAccountID: b.ID, Amount: amount("1")})
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.DeleteUser(ctx, admin, bob.ID), models.ErrConflict)

	require.NoError(t, f.svc.DeleteUser(ctx, admin, carol.ID))
	_, err = f.svc.Me(ctx, carol)
	assert.ErrorIs(t, err, models.ErrUserNotFound)
	assert.ErrorIs(t, f.svc.DeleteUser(ctx, admin, carol.ID), models.ErrUserNotFound)
}

func TestPromoteAdmins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, _ := f.user(t, "alice@example.com", "0")

	require.NoError(t, f.svc.PromoteAdmins(ctx, []string{"ALICE@example.com", "ghost@example.com"}))
	u, err := f.svc.Me(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)

	users, err := f.svc.ListUsers(ctx, u.Principal())
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
