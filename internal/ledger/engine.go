package ledger

import (
	"time"

	"papertrade/internal/apperr"
	"papertrade/internal/model"
	"papertrade/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

type OpenRequest struct {
	CoinName      string
	CoinShortName string
	CoinImage     string
	BuyPrice      decimal.NullDecimal
	BuyAmount     decimal.NullDecimal
}

type CloseRequest struct {
	TradeID    string
	SellPrice  decimal.NullDecimal
	SellAmount decimal.NullDecimal
}

// Engine computes trade mutations over an in-memory account snapshot. It
// never touches storage; a failed call leaves the account untouched.
type Engine struct {
	now   func() time.Time
	newID func() string
}

func NewEngine() *Engine {
	return &Engine{now: time.Now, newID: uuid.NewString}
}

func (e *Engine) stamp() (string, string) {
	now := e.now().UTC()
	return now.Format(dateLayout), now.Format(timeLayout)
}

// Open debits price × amount from the account's capital and appends a new
// OPEN trade.
func (e *Engine) Open(acc *model.Account, req OpenRequest) (model.Trade, error) {
	name, err := requireText("coin_name", req.CoinName)
	if err != nil {
		return model.Trade{}, err
	}
	short, err := requireText("coin_short_name", req.CoinShortName)
	if err != nil {
		return model.Trade{}, err
	}
	image, err := requireText("coin_image", req.CoinImage)
	if err != nil {
		return model.Trade{}, err
	}
	price, err := requirePositive("buy_price", req.BuyPrice)
	if err != nil {
		return model.Trade{}, err
	}
	amount, err := requirePositive("buy_amount", req.BuyAmount)
	if err != nil {
		return model.Trade{}, err
	}

	total := price.Mul(amount)
	if acc.CapitalPrice.LessThan(total) {
		return model.Trade{}, apperr.InsufficientBalance("insufficient balance to buy this coin")
	}

	date, clock := e.stamp()
	trade := model.Trade{
		ID:            e.newID(),
		CoinName:      name,
		CoinShortName: short,
		CoinImage:     image,
		BuyDate:       date,
		BuyTime:       clock,
		BuyPrice:      price,
		BuyAmount:     amount,
		BuyTotal:      total,
		Status:        types.TradeStatusOpen,
	}
	acc.Trades = append(acc.Trades, trade)
	acc.CapitalPrice = acc.CapitalPrice.Sub(total)
	return trade, nil
}

// Close settles an OPEN trade. Capital is credited with the full sell total;
// the signed PnL goes to the profit or the loss accumulator.
func (e *Engine) Close(acc *model.Account, req CloseRequest) (model.Trade, error) {
	tradeID, err := requireText("trade_id", req.TradeID)
	if err != nil {
		return model.Trade{}, err
	}
	price, err := requirePositive("sell_price", req.SellPrice)
	if err != nil {
		return model.Trade{}, err
	}
	amount, err := requirePositive("sell_amount", req.SellAmount)
	if err != nil {
		return model.Trade{}, err
	}
	idx := acc.TradeIndex(tradeID)
	if idx < 0 {
		return model.Trade{}, apperr.NotFound("trade not found")
	}
	trade := acc.Trades[idx]
	if !trade.IsOpen() {
		return model.Trade{}, apperr.InvalidState("trade already closed")
	}

	sellTotal := price.Mul(amount)
	pnl := sellTotal.Sub(trade.BuyTotal)
	ret := decimal.Zero
	if !trade.BuyTotal.IsZero() {
		// Rounded half away from zero to decimal.DivisionPrecision (16) places.
		ret = pnl.Mul(hundred).Div(trade.BuyTotal)
	}

	date, clock := e.stamp()
	trade.SellDate = date
	trade.SellTime = clock
	trade.SellPrice = &price
	trade.SellAmount = &amount
	trade.SellTotal = &sellTotal
	trade.PnL = &pnl
	trade.ReturnPercentage = &ret
	trade.Status = types.TradeStatusClosed

	acc.Trades[idx] = trade
	acc.CapitalPrice = acc.CapitalPrice.Add(sellTotal)
	if pnl.IsNegative() {
		acc.LossPrice = acc.LossPrice.Add(pnl.Abs())
	} else {
		acc.ProfitPrice = acc.ProfitPrice.Add(pnl)
	}
	return trade, nil
}
