package model

import (
	"papertrade/internal/types"

	"github.com/shopspring/decimal"
)

// Trade is a simulated position owned by exactly one Account. The close
// fields stay empty until the trade transitions to CLOSED.
type Trade struct {
	ID            string            `json:"id"`
	CoinName      string            `json:"coin_name"`
	CoinShortName string            `json:"coin_short_name"`
	CoinImage     string            `json:"coin_image"`
	BuyDate       string            `json:"buy_date"`
	BuyTime       string            `json:"buy_time"`
	BuyPrice      decimal.Decimal   `json:"buy_price"`
	BuyAmount     decimal.Decimal   `json:"buy_amount"`
	BuyTotal      decimal.Decimal   `json:"buy_total"`
	Status        types.TradeStatus `json:"status"`

	SellDate         string           `json:"sell_date,omitempty"`
	SellTime         string           `json:"sell_time,omitempty"`
	SellPrice        *decimal.Decimal `json:"sell_price,omitempty"`
	SellAmount       *decimal.Decimal `json:"sell_amount,omitempty"`
	SellTotal        *decimal.Decimal `json:"sell_total,omitempty"`
	PnL              *decimal.Decimal `json:"pnl,omitempty"`
	ReturnPercentage *decimal.Decimal `json:"return_percentage,omitempty"`
}

func (t Trade) IsOpen() bool {
	return t.Status == types.TradeStatusOpen
}

func (t Trade) clone() Trade {
	out := t
	out.SellPrice = cloneDecimal(t.SellPrice)
	out.SellAmount = cloneDecimal(t.SellAmount)
	out.SellTotal = cloneDecimal(t.SellTotal)
	out.PnL = cloneDecimal(t.PnL)
	out.ReturnPercentage = cloneDecimal(t.ReturnPercentage)
	return out
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
