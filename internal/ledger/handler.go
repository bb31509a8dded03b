package ledger

import (
	"net/http"

	"papertrade/internal/httputil"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Handler struct {
	svc *Service
	log *zap.Logger
}

func NewHandler(svc *Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Prices and amounts accept JSON numbers or decimal strings.
type buyRequest struct {
	CoinName      string              `json:"coin_name"`
	CoinShortName string              `json:"coin_short_name"`
	CoinImage     string              `json:"coin_image"`
	BuyPrice      decimal.NullDecimal `json:"buy_price"`
	BuyAmount     decimal.NullDecimal `json:"buy_amount"`
}

type sellRequest struct {
	TradeID    string              `json:"trade_id"`
	SellPrice  decimal.NullDecimal `json:"sell_price"`
	SellAmount decimal.NullDecimal `json:"sell_amount"`
}

func (h *Handler) Buy(w http.ResponseWriter, r *http.Request, userID string) {
	var req buyRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error(), Kind: "validation"})
		return
	}
	res, err := h.svc.OpenPosition(r.Context(), OpenPositionRequest{
		AccountID: userID,
		OpenRequest: OpenRequest{
			CoinName:      req.CoinName,
			CoinShortName: req.CoinShortName,
			CoinImage:     req.CoinImage,
			BuyPrice:      req.BuyPrice,
			BuyAmount:     req.BuyAmount,
		},
	})
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) Sell(w http.ResponseWriter, r *http.Request, userID string) {
	var req sellRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error(), Kind: "validation"})
		return
	}
	res, err := h.svc.ClosePosition(r.Context(), ClosePositionRequest{
		AccountID: userID,
		CloseRequest: CloseRequest{
			TradeID:    req.TradeID,
			SellPrice:  req.SellPrice,
			SellAmount: req.SellAmount,
		},
	})
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request, userID string) {
	res, err := h.svc.ListTrades(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}
