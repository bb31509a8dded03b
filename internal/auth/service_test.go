package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"papertrade/internal/accounts"
	"papertrade/internal/apperr"
	"papertrade/internal/model"
	"papertrade/internal/types"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testSecret = []byte("test-secret")

func seedAccount(t *testing.T, store accounts.Store, email, password string, blocked bool) *model.Account {
	t.Helper()
	hash, err := accounts.HashPassword(password)
	require.NoError(t, err)
	acc, err := store.Create(context.Background(), &model.Account{
		Name:         "Holder",
		Email:        email,
		PasswordHash: hash,
		IsBlocked:    blocked,
		Role:         types.RoleUser,
	})
	require.NoError(t, err)
	return acc
}

func newTestService(store accounts.Store, google IdentityProvider, allowed ...string) *Service {
	return NewService(store, google, Options{
		Issuer:        "papertrade",
		Secret:        testSecret,
		TTL:           time.Hour,
		AllowedEmails: allowed,
	}, zap.NewNop())
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	store := accounts.NewMemoryStore()
	acc := seedAccount(t, store, "trader@example.com", "secret", false)
	seedAccount(t, store, "blocked@example.com", "secret", true)
	svc := newTestService(store, nil)

	token, got, err := svc.Login(ctx, "Trader@Example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)
	sub, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, sub)

	_, _, err = svc.Login(ctx, "trader@example.com", "wrong")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, _, err = svc.Login(ctx, "nobody@example.com", "secret")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, _, err = svc.Login(ctx, "blocked@example.com", "secret")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, _, err = svc.Login(ctx, "", "secret")
	assert.Equal(t, "email", apperr.FieldOf(err))
}

func TestParseTokenRejectsForeignTokens(t *testing.T) {
	svc := newTestService(accounts.NewMemoryStore(), nil)

	other := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "someone-else",
		Subject:   "a1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := other.SignedString(testSecret)
	require.NoError(t, err)
	_, err = svc.ParseToken(signed)
	assert.Error(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "papertrade",
		Subject:   "a1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	signed, err = expired.SignedString(testSecret)
	require.NoError(t, err)
	_, err = svc.ParseToken(signed)
	assert.Error(t, err)

	wrongKey := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "papertrade",
		Subject:   "a1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err = wrongKey.SignedString([]byte("other"))
	require.NoError(t, err)
	_, err = svc.ParseToken(signed)
	assert.Error(t, err)

	_, err = svc.ParseToken("garbage")
	assert.Error(t, err)
}

// fakeGoogle serves the userinfo endpoint for one known access token.
func fakeGoogle(t *testing.T, token, email string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") != token || r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_token"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(GoogleUser{ID: "g-1", Email: email, VerifiedEmail: true, Name: "Holder"})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGoogleClientUserInfo(t *testing.T) {
	srv := fakeGoogle(t, "good", "holder@example.com")
	client := NewGoogleClient(srv.URL, 5*time.Second)

	user, err := client.UserInfo(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "holder@example.com", user.Email)

	_, err = client.UserInfo(context.Background(), "bad")
	assert.Error(t, err)

	_, err = client.UserInfo(context.Background(), "")
	assert.Error(t, err)
}

func TestGoogleLoginAllowList(t *testing.T) {
	ctx := context.Background()
	store := accounts.NewMemoryStore()
	acc := seedAccount(t, store, "holder@example.com", "pw", false)
	seedAccount(t, store, "stranger@example.com", "pw", false)

	allowed := newTestService(store, NewGoogleClient(fakeGoogle(t, "good", "Holder@example.com").URL, 5*time.Second), "holder@example.com")
	token, got, err := allowed.GoogleLogin(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)
	sub, err := allowed.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, sub)

	_, _, err = allowed.GoogleLogin(ctx, "bad")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	refused := newTestService(store, NewGoogleClient(fakeGoogle(t, "good", "stranger@example.com").URL, 5*time.Second), "holder@example.com")
	_, _, err = refused.GoogleLogin(ctx, "good")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestGoogleLoginRefusesBlocked(t *testing.T) {
	store := accounts.NewMemoryStore()
	seedAccount(t, store, "holder@example.com", "pw", true)
	svc := newTestService(store, NewGoogleClient(fakeGoogle(t, "good", "holder@example.com").URL, 5*time.Second), "holder@example.com")

	_, _, err := svc.GoogleLogin(context.Background(), "good")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestGoogleLoginNotConfigured(t *testing.T) {
	svc := newTestService(accounts.NewMemoryStore(), nil)

	_, _, err := svc.GoogleLogin(context.Background(), "good")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}
