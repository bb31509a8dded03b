package ledger

import (
	"context"

	"papertrade/internal/apperr"
	"papertrade/internal/events"
	"papertrade/internal/model"
	"papertrade/internal/types"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AccountStore is the slice of the account store the ledger needs.
type AccountStore interface {
	FindByID(ctx context.Context, id string) (*model.Account, error)
	Save(ctx context.Context, acc *model.Account) (*model.Account, error)
}

type Publisher interface {
	Publish(accountID string, evt events.Event)
}

// Trade saves share the account document with presence, inbox and profile
// writes, which do not take the ledger lock. A save that loses the version
// race is re-run against a fresh load, up to maxSaveAttempts times.
const maxSaveAttempts = 3

type Service struct {
	store  AccountStore
	engine *Engine
	bus    Publisher
	locks  *accountLocks
	log    *zap.Logger
}

func NewService(store AccountStore, bus Publisher, log *zap.Logger) *Service {
	return &Service{
		store:  store,
		engine: NewEngine(),
		bus:    bus,
		locks:  newAccountLocks(),
		log:    log,
	}
}

type OpenPositionRequest struct {
	AccountID string
	OpenRequest
}

type OpenPositionResult struct {
	RemainingCapital decimal.Decimal `json:"remaining_capital"`
	Trade            model.Trade     `json:"trade"`
}

type ClosePositionRequest struct {
	AccountID string
	CloseRequest
}

type ClosePositionResult struct {
	Trade        model.Trade     `json:"trade"`
	CapitalPrice decimal.Decimal `json:"capital_price"`
	ProfitPrice  decimal.Decimal `json:"profit_price"`
	LossPrice    decimal.Decimal `json:"loss_price"`
}

type TradeList struct {
	Trades  []model.Trade   `json:"trades"`
	Balance decimal.Decimal `json:"balance"`
}

func (s *Service) OpenPosition(ctx context.Context, req OpenPositionRequest) (OpenPositionResult, error) {
	if req.AccountID == "" {
		return OpenPositionResult{}, apperr.Validation("user_id", "user_id is required")
	}
	unlock := s.locks.lock(req.AccountID)
	defer unlock()

	var trade model.Trade
	saved, err := s.apply(ctx, req.AccountID, func(acc *model.Account) (err error) {
		trade, err = s.engine.Open(acc, req.OpenRequest)
		return err
	})
	if err != nil {
		return OpenPositionResult{}, err
	}
	s.log.Info("position opened",
		zap.String("account_id", saved.ID),
		zap.String("trade_id", trade.ID),
		zap.String("coin", trade.CoinShortName),
		zap.String("buy_total", trade.BuyTotal.String()),
	)
	res := OpenPositionResult{RemainingCapital: saved.CapitalPrice, Trade: trade}
	s.publish(saved.ID, types.EventTradeOpened, res)
	return res, nil
}

func (s *Service) ClosePosition(ctx context.Context, req ClosePositionRequest) (ClosePositionResult, error) {
	if req.AccountID == "" {
		return ClosePositionResult{}, apperr.Validation("user_id", "user_id is required")
	}
	unlock := s.locks.lock(req.AccountID)
	defer unlock()

	var trade model.Trade
	saved, err := s.apply(ctx, req.AccountID, func(acc *model.Account) (err error) {
		trade, err = s.engine.Close(acc, req.CloseRequest)
		return err
	})
	if err != nil {
		return ClosePositionResult{}, err
	}
	s.log.Info("position closed",
		zap.String("account_id", saved.ID),
		zap.String("trade_id", trade.ID),
		zap.String("pnl", trade.PnL.String()),
	)
	res := ClosePositionResult{
		Trade:        trade,
		CapitalPrice: saved.CapitalPrice,
		ProfitPrice:  saved.ProfitPrice,
		LossPrice:    saved.LossPrice,
	}
	s.publish(saved.ID, types.EventTradeClosed, res)
	return res, nil
}

func (s *Service) ListTrades(ctx context.Context, accountID string) (TradeList, error) {
	if accountID == "" {
		return TradeList{}, apperr.Validation("user_id", "user_id is required")
	}
	acc, err := s.store.FindByID(ctx, accountID)
	if err != nil {
		return TradeList{}, err
	}
	trades := acc.Trades
	if trades == nil {
		trades = []model.Trade{}
	}
	return TradeList{Trades: trades, Balance: acc.CapitalPrice}, nil
}

// apply loads the account, runs fn on it and saves the whole document. The
// engine never touches storage, so re-running fn on a fresh load after a
// version conflict applies the trade exactly once.
func (s *Service) apply(ctx context.Context, accountID string, fn func(acc *model.Account) error) (*model.Account, error) {
	var lastErr error
	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		acc, err := s.store.FindByID(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if err := fn(acc); err != nil {
			return nil, err
		}
		saved, err := s.store.Save(ctx, acc)
		if err == nil {
			return saved, nil
		}
		if !apperr.Is(err, apperr.KindConflict) {
			return nil, err
		}
		s.log.Debug("account save conflict, retrying", zap.String("account_id", accountID), zap.Int("attempt", attempt+1))
		lastErr = err
	}
	return nil, lastErr
}

func (s *Service) publish(accountID string, typ types.EventType, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(accountID, events.Event{Type: typ, Data: data})
}
