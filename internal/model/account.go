package model

import (
	"time"

	"papertrade/internal/types"

	"github.com/shopspring/decimal"
)

type Message struct {
	ID     string    `json:"id"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

// Account is the aggregate persisted as one document: balances plus the
// owned trade and message collections. Version guards whole-document saves.
type Account struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"-"`
	Avatar       string          `json:"avatar"`
	CapitalPrice decimal.Decimal `json:"capital_price"`
	ProfitPrice  decimal.Decimal `json:"profit_price"`
	LossPrice    decimal.Decimal `json:"loss_price"`
	IsBlocked    bool            `json:"is_blocked"`
	IsOnline     bool            `json:"is_online"`
	Role         types.Role      `json:"role"`
	Messages     []Message       `json:"messages"`
	Trades       []Trade         `json:"trades"`
	Version      int64           `json:"-"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (a *Account) IsAdmin() bool {
	return a.Role == types.RoleAdmin
}

// TradeIndex returns the position of the trade with the given id, or -1.
func (a *Account) TradeIndex(tradeID string) int {
	for i := range a.Trades {
		if a.Trades[i].ID == tradeID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so stores never share slices with callers.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := *a
	if a.Messages != nil {
		out.Messages = append(make([]Message, 0, len(a.Messages)), a.Messages...)
	}
	if a.Trades != nil {
		out.Trades = make([]Trade, len(a.Trades))
		for i, t := range a.Trades {
			out.Trades[i] = t.clone()
		}
	}
	return &out
}
