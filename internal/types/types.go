package types

type TradeStatus string

type Role string

type EventType string

const (
	TradeStatusOpen   TradeStatus = "OPEN"
	TradeStatusClosed TradeStatus = "CLOSED"
)

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

const (
	EventTradeOpened EventType = "trade_opened"
	EventTradeClosed EventType = "trade_closed"
	EventMessage     EventType = "message"
	EventPresence    EventType = "presence"
)
