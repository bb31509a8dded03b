package accounts

import (
	"context"
	"os"
	"testing"

	"papertrade/internal/apperr"
	"papertrade/internal/db"
	"papertrade/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a disposable database named by PAPERTRADE_TEST_DSN.
func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("PAPERTRADE_TEST_DSN")
	if dsn == "" {
		t.Skip("PAPERTRADE_TEST_DSN not set")
	}
	require.NoError(t, db.Migrate(dsn))
	pool, err := db.NewPool(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return NewPostgresStore(pool)
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newPostgresStore(t)
	email := uuid.NewString() + "@example.com"

	created, err := s.Create(ctx, newAccount(email))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Delete(context.Background(), created.ID) })

	loaded, err := s.FindByEmail(ctx, email)
	require.NoError(t, err)
	price := decimal.RequireFromString("0.1")
	loaded.CapitalPrice = decimal.RequireFromString("99.7")
	loaded.Trades = append(loaded.Trades, model.Trade{ID: "t1", BuyPrice: price, BuyAmount: decimal.NewFromInt(3), BuyTotal: decimal.RequireFromString("0.3"), Status: "OPEN"})
	saved, err := s.Save(ctx, loaded)
	require.NoError(t, err)
	assert.Equal(t, created.Version+1, saved.Version)

	again, err := s.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "99.7", again.CapitalPrice.String())
	require.Len(t, again.Trades, 1)
	assert.Equal(t, "0.3", again.Trades[0].BuyTotal.String())

	_, err = s.Save(ctx, loaded)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = s.Create(ctx, newAccount(email))
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}
