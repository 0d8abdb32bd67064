package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Dan9191/ledger-service/internal/config"
	"github.com/Dan9191/ledger-service/internal/models"
	"github.com/Dan9191/ledger-service/internal/notification"
	"github.com/Dan9191/ledger-service/internal/receipt"
	"github.com/Dan9191/ledger-service/internal/repository"
	"github.com/Dan9191/ledger-service/internal/repository/memory"
	"github.com/Dan9191/ledger-service/internal/service"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type discardNotifier struct{}

func (discardNotifier) Notify(notification.Event, int64) {}

type testServer struct {
	t      *testing.T
	store  *memory.Store
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg := &config.Config{JWTSecret: "test-secret", JWTTTL: time.Hour, JWTRefreshTTL: 24 * time.Hour, DefaultCurrency: "USD"}
	store := memory.NewStore()
	svc := service.NewService(store, discardNotifier{}, receipt.NewXMLRenderer(), log, cfg)
	return &testServer{t: t, store: store, router: NewHandler(svc, log).Routes()}
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// signup registers a user, funds its account and returns a token and account id.
func (s *testServer) signup(email, balance string) (string, int64) {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/users/register", "", map[string]string{"email": email, "password": "secret"})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var user models.User
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &user))

	account, err := s.store.GetAccountByUser(context.Background(), user.ID)
	require.NoError(s.t, err)
	if d := decimal.RequireFromString(balance); !d.IsZero() {
		require.NoError(s.t, s.store.WithinTx(context.Background(), func(tx repository.Tx) error {
			_, err := tx.ApplyDelta(context.Background(), account.ID, d)
			return err
		}))
	}

	rec = s.do(http.MethodPost, "/auth/token", "", map[string]string{"email": email, "password": "secret"})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	var tok tokenResponse
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &tok))
	assert.Equal(s.t, "bearer", tok.TokenType)
	return tok.AccessToken, account.ID
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/users/register", "", map[string]string{"email": "not-an-email", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/users/register", "", map[string]string{"email": "a@example.com", "password": "x", "role": "ADMIN"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.signup("a@example.com", "0")
	rec = s.do(http.MethodPost, "/users/register", "", map[string]string{"email": "a@example.com", "password": "x"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/auth/token", "", map[string]string{"email": "a@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/users/me", "/accounts/me", "/transactions", "/reports/summary", "/categories"} {
		rec := s.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	rec := s.do(http.MethodGet, "/accounts/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshToken(t *testing.T) {
	s := newTestServer(t)
	s.signup("a@example.com", "0")

	rec := s.do(http.MethodPost, "/auth/token", "", map[string]string{"email": "a@example.com", "password": "secret"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tok tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
	require.NotEmpty(t, tok.RefreshToken)

	rec = s.do(http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": tok.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var renewed tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &renewed))
	assert.Equal(t, "bearer", renewed.TokenType)
	assert.NotEmpty(t, renewed.RefreshToken)

	rec = s.do(http.MethodGet, "/users/me", renewed.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Refresh tokens are not bearer credentials and access tokens cannot refresh.
	rec = s.do(http.MethodGet, "/users/me", tok.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.do(http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": tok.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.do(http.MethodPost, "/auth/refresh", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransferFlow(t *testing.T) {
	s := newTestServer(t)
	alice, aliceAccount := s.signup("alice@example.com", "100")
	bob, bobAccount := s.signup("bob@example.com", "50")

	rec := s.do(http.MethodPost, "/transactions", alice, map[string]interface{}{
		"recipient_account_id": bobAccount,
		"amount":               "30",
		"description":          "rent share",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tr models.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tr))
	assert.Equal(t, aliceAccount, tr.SenderAccountID)
	assert.Equal(t, "bob@example.com", tr.Recipient.Email)

	rec = s.do(http.MethodGet, "/accounts/me", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var account models.Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &account))
	assert.True(t, account.Balance.Equal(decimal.NewFromInt(70)))

	path := fmt.Sprintf("/transactions/%d", tr.ID)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, path, alice, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, path, bob, nil).Code)

	rec = s.do(http.MethodGet, path+"/receipt", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), fmt.Sprintf("receipt_%d.xml", tr.ID))
	assert.Contains(t, rec.Body.String(), "rent share")

	rec = s.do(http.MethodGet, "/reports/summary", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary models.ReportSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.True(t, summary.TotalExpense.Equal(decimal.NewFromInt(30)))
	assert.True(t, summary.StartingBalance.Equal(decimal.NewFromInt(100)))

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/transactions", alice, nil).Code)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, path, alice, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, path, alice, nil).Code)
}

func TestTransferErrors(t *testing.T) {
	s := newTestServer(t)
	alice, aliceAccount := s.signup("alice@example.com", "10")
	_, bobAccount := s.signup("bob@example.com", "0")

	tests := []struct {
		name string
		body map[string]interface{}
		want string
	}{
		{"negative amount", map[string]interface{}{"recipient_account_id": bobAccount, "amount": "-1"}, models.ErrInvalidAmount.Error()},
		{"missing amount", map[string]interface{}{"recipient_account_id": bobAccount}, models.ErrInvalidAmount.Error()},
		{"unknown recipient", map[string]interface{}{"recipient_account_id": 999, "amount": "1"}, models.ErrRecipientNotFound.Error()},
		{"self transfer", map[string]interface{}{"recipient_account_id": aliceAccount, "amount": "1"}, models.ErrSelfTransfer.Error()},
		{"insufficient funds", map[string]interface{}{"recipient_account_id": bobAccount, "amount": "10.01"}, models.ErrInsufficientFunds.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/transactions", alice, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, decodeError(t, rec))
		})
	}

	rec := s.do(http.MethodPost, "/transactions", alice, map[string]interface{}{"amount": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummaryRejectsBadPeriod(t *testing.T) {
	s := newTestServer(t)
	alice, _ := s.signup("alice@example.com", "0")

	rec := s.do(http.MethodGet, "/reports/summary?start_date=2026-02-10&end_date=2026-02-01", alice, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, models.ErrInvalidPeriod.Error(), decodeError(t, rec))

	rec = s.do(http.MethodGet, "/reports/summary?start_date=yesterday", alice, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUsersAndCategories(t *testing.T) {
	s := newTestServer(t)
	alice, _ := s.signup("alice@example.com", "0")

	rec := s.do(http.MethodGet, "/users/me", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/users", alice, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/users/by-email/alice@example.com", alice, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodDelete, "/users/1", alice, nil).Code)

	rec = s.do(http.MethodPost, "/categories", alice, map[string]string{"name": "Groceries"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = s.do(http.MethodPost, "/categories", alice, map[string]string{"name": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/categories", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var categories []models.Category
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &categories))
	require.Len(t, categories, 1)
	assert.Equal(t, "Groceries", categories[0].Name)

	assert.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/users/me", alice, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/users/me", alice, nil).Code)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	s.signup("alice@example.com", "0")

	rec := s.do(http.MethodPost, "/users/register", "", map[string]string{"email": "root@example.com", "password": "secret"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var root models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &root))
	require.NoError(t, s.store.SetUserRole(context.Background(), root.ID, models.RoleAdmin))

	rec = s.do(http.MethodPost, "/auth/token", "", map[string]string{"email": "root@example.com", "password": "secret"})
	require.Equal(t, http.StatusOK, rec.Code)
	var tok tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))

	rec = s.do(http.MethodGet, "/users", tok.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	assert.Len(t, users, 2)

	rec = s.do(http.MethodGet, "/users/by-email/alice@example.com", tok.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var alice models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alice))

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/transactions?skip=0&limit=5", tok.AccessToken, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/transactions?limit=500", tok.AccessToken, nil).Code)

	path := fmt.Sprintf("/users/%d", alice.ID)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, path, tok.AccessToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, path, tok.AccessToken, nil).Code)
}
