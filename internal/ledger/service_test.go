package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"papertrade/internal/accounts"
	"papertrade/internal/apperr"
	"papertrade/internal/events"
	"papertrade/internal/ledger"
	"papertrade/internal/model"
	"papertrade/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func nd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func seed(t *testing.T, store accounts.Store, capital string) *model.Account {
	t.Helper()
	acc, err := store.Create(context.Background(), &model.Account{
		Name:         "Trader",
		Email:        "trader@example.com",
		CapitalPrice: decimal.RequireFromString(capital),
		Role:         types.RoleUser,
	})
	require.NoError(t, err)
	return acc
}

func openReq(accountID, price, amount string) ledger.OpenPositionRequest {
	return ledger.OpenPositionRequest{
		AccountID: accountID,
		OpenRequest: ledger.OpenRequest{
			CoinName:      "Ethereum",
			CoinShortName: "ETH",
			CoinImage:     "https://img.example/eth.png",
			BuyPrice:      nd(price),
			BuyAmount:     nd(amount),
		},
	}
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(accountID string, evt events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, evt)
}

func TestServiceOpenClosePersists(t *testing.T) {
	ctx := context.Background()
	store := accounts.NewMemoryStore()
	bus := &recordingBus{}
	svc := ledger.NewService(store, bus, zap.NewNop())
	acc := seed(t, store, "100")

	opened, err := svc.OpenPosition(ctx, openReq(acc.ID, "10", "2"))
	require.NoError(t, err)
	assert.Equal(t, "80", opened.RemainingCapital.String())

	closed, err := svc.ClosePosition(ctx, ledger.ClosePositionRequest{
		AccountID:    acc.ID,
		CloseRequest: ledger.CloseRequest{TradeID: opened.Trade.ID, SellPrice: nd("15"), SellAmount: nd("2")},
	})
	require.NoError(t, err)
	assert.Equal(t, "110", closed.CapitalPrice.String())
	assert.Equal(t, "10", closed.ProfitPrice.String())
	assert.Equal(t, "0", closed.LossPrice.String())

	stored, err := store.FindByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "110", stored.CapitalPrice.String())
	require.Len(t, stored.Trades, 1)
	assert.Equal(t, types.TradeStatusClosed, stored.Trades[0].Status)

	require.Len(t, bus.events, 2)
	assert.Equal(t, types.EventTradeOpened, bus.events[0].Type)
	assert.Equal(t, types.EventTradeClosed, bus.events[1].Type)
}

func TestServiceRejectsMissingAccountID(t *testing.T) {
	svc := ledger.NewService(accounts.NewMemoryStore(), nil, zap.NewNop())

	_, err := svc.OpenPosition(context.Background(), openReq("", "1", "1"))
	assert.Equal(t, "user_id", apperr.FieldOf(err))

	_, err = svc.ListTrades(context.Background(), "")
	assert.Equal(t, "user_id", apperr.FieldOf(err))
}

func TestServiceUnknownAccount(t *testing.T) {
	svc := ledger.NewService(accounts.NewMemoryStore(), nil, zap.NewNop())

	_, err := svc.OpenPosition(context.Background(), openReq("ghost", "1", "1"))
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestServiceInsufficientBalancePublishesNothing(t *testing.T) {
	ctx := context.Background()
	store := accounts.NewMemoryStore()
	bus := &recordingBus{}
	svc := ledger.NewService(store, bus, zap.NewNop())
	acc := seed(t, store, "50")

	_, err := svc.OpenPosition(ctx, openReq(acc.ID, "60", "1"))
	assert.True(t, apperr.Is(err, apperr.KindInsufficientBalance))

	list, err := svc.ListTrades(ctx, acc.ID)
	require.NoError(t, err)
	assert.Empty(t, list.Trades)
	assert.Equal(t, "50", list.Balance.String())
	assert.Empty(t, bus.events)
}

func TestServiceListTradesKeepsOpenOrder(t *testing.T) {
	ctx := context.Background()
	store := accounts.NewMemoryStore()
	svc := ledger.NewService(store, nil, zap.NewNop())
	acc := seed(t, store, "100")

	var ids []string
	for i := 0; i < 3; i++ {
		res, err := svc.OpenPosition(ctx, openReq(acc.ID, "1", "1"))
		require.NoError(t, err)
		ids = append(ids, res.Trade.ID)
	}

	list, err := svc.ListTrades(ctx, acc.ID)
	require.NoError(t, err)
	require.Len(t, list.Trades, 3)
	for i, tr := range list.Trades {
		assert.Equal(t, ids[i], tr.ID)
	}
	assert.Equal(t, "97", list.Balance.String())
}

func TestServiceConcurrentBuysNeverOverspend(t *testing.T) {
	ctx := context.Background()
	store := accounts.NewMemoryStore()
	svc := ledger.NewService(store, nil, zap.NewNop())
	acc := seed(t, store, "100")

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		rejected int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.OpenPosition(ctx, openReq(acc.ID, "10", "1"))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
				return
			}
			if apperr.Is(err, apperr.KindInsufficientBalance) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assert.Equal(t, 10, rejected)
	stored, err := store.FindByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, stored.CapitalPrice.IsZero())
	assert.Len(t, stored.Trades, 10)
}

type failingSaveStore struct {
	*accounts.MemoryStore
}

func (s failingSaveStore) Save(ctx context.Context, acc *model.Account) (*model.Account, error) {
	return nil, apperr.Store("save account", errors.New("connection reset"))
}

func TestServiceSaveFailureDiscardsMutation(t *testing.T) {
	ctx := context.Background()
	mem := accounts.NewMemoryStore()
	bus := &recordingBus{}
	svc := ledger.NewService(failingSaveStore{mem}, bus, zap.NewNop())
	acc := seed(t, mem, "100")

	_, err := svc.OpenPosition(ctx, openReq(acc.ID, "10", "1"))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStore))

	stored, err := mem.FindByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "100", stored.CapitalPrice.String())
	assert.Empty(t, stored.Trades)
	assert.Empty(t, bus.events)
}

func TestServiceStaleSaveIsConflict(t *testing.T) {
	ctx := context.Background()
	store := accounts.NewMemoryStore()
	svc := ledger.NewService(store, nil, zap.NewNop())
	acc := seed(t, store, "100")

	// A concurrent writer outside the ledger bumps the version first.
	stale, err := store.FindByID(ctx, acc.ID)
	require.NoError(t, err)
	_, err = svc.OpenPosition(ctx, openReq(acc.ID, "1", "1"))
	require.NoError(t, err)

	stale.IsOnline = true
	_, err = store.Save(ctx, stale)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestServicePublishesToSubscribers(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	store := accounts.NewMemoryStore()
	bus := events.NewBus()
	svc := ledger.NewService(store, bus, zap.NewNop())
	acc := seed(t, store, "100")
	sub := bus.Subscribe(acc.ID)
	defer bus.Unsubscribe(acc.ID, sub)

	_, err := svc.OpenPosition(ctx, openReq(acc.ID, "5", "2"))
	require.NoError(t, err)

	select {
	case evt := <-sub:
		assert.Equal(t, types.EventTradeOpened, evt.Type)
		res, ok := evt.Data.(ledger.OpenPositionResult)
		require.True(t, ok)
		assert.Equal(t, "90", res.RemainingCapital.String())
	case <-ctx.Done():
		t.Fatal("no event received")
	}
}

// presenceRaceStore lets a presence write land between the ledger's load and
// its first save, the way a websocket connect can.
type presenceRaceStore struct {
	*accounts.MemoryStore
	raced bool
}

func (s *presenceRaceStore) Save(ctx context.Context, acc *model.Account) (*model.Account, error) {
	if !s.raced {
		s.raced = true
		if _, err := accounts.NewService(s.MemoryStore, zap.NewNop()).SetOnline(ctx, acc.ID, true); err != nil {
			return nil, err
		}
	}
	return s.MemoryStore.Save(ctx, acc)
}

func TestServiceRetriesAfterPresenceWrite(t *testing.T) {
	ctx := context.Background()
	mem := accounts.NewMemoryStore()
	store := &presenceRaceStore{MemoryStore: mem}
	svc := ledger.NewService(store, nil, zap.NewNop())
	acc := seed(t, mem, "100")

	res, err := svc.OpenPosition(ctx, openReq(acc.ID, "10", "1"))
	require.NoError(t, err)
	assert.Equal(t, "90", res.RemainingCapital.String())

	stored, err := mem.FindByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "90", stored.CapitalPrice.String())
	assert.Len(t, stored.Trades, 1)
	assert.True(t, stored.IsOnline)
}

// alwaysStaleStore loses every version race.
type alwaysStaleStore struct {
	*accounts.MemoryStore
	saves int
}

func (s *alwaysStaleStore) Save(ctx context.Context, acc *model.Account) (*model.Account, error) {
	s.saves++
	return nil, apperr.Conflict("account was modified concurrently")
}

func TestServiceGivesUpAfterRepeatedConflicts(t *testing.T) {
	ctx := context.Background()
	mem := accounts.NewMemoryStore()
	store := &alwaysStaleStore{MemoryStore: mem}
	svc := ledger.NewService(store, nil, zap.NewNop())
	acc := seed(t, mem, "100")

	_, err := svc.OpenPosition(ctx, openReq(acc.ID, "10", "1"))
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, 3, store.saves)

	stored, err := mem.FindByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "100", stored.CapitalPrice.String())
	assert.Empty(t, stored.Trades)
}
