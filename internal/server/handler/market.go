package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/alanyoungcy/ppmclient/internal/view"
	"github.com/ethereum/go-ethereum/common"
)

// MarketReader is what the market endpoints read through.
type MarketReader interface {
	Cards(ctx context.Context, wallet common.Address) ([]view.MarketCard, error)
	Card(ctx context.Context, id uint64, wallet common.Address) (view.MarketCard, error)
	GetMarket(ctx context.Context, id uint64) (domain.Market, error)
	UserStatus(ctx context.Context, id uint64, wallet common.Address) (domain.UserStatus, error)
	CreatorPanel(ctx context.Context, id uint64, wallet common.Address) (view.CreatorPanel, error)
}

// MarketHandler serves market reads for the configured wallet.
type MarketHandler struct {
	markets MarketReader
	wallet  common.Address
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler. wallet may be zero.
func NewMarketHandler(markets MarketReader, wallet common.Address, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{markets: markets, wallet: wallet, logger: logger}
}

// viewer is the ?wallet= override or the configured wallet.
func (h *MarketHandler) viewer(r *http.Request) (common.Address, error) {
	v := r.URL.Query().Get("wallet")
	if v == "" {
		return h.wallet, nil
	}
	if !common.IsHexAddress(v) {
		return common.Address{}, &domain.InputError{Field: "wallet", Message: "Invalid wallet address"}
	}
	return common.HexToAddress(v), nil
}

type listMarketsResponse struct {
	Markets []view.MarketCard `json:"markets"`
	Total   int               `json:"total"`
}

// ListMarkets renders every market as a card.
// GET /api/markets
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	viewer, err := h.viewer(r)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	cards, err := h.markets.Cards(r.Context(), viewer)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list markets failed",
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "Failed to load markets.")
		return
	}
	if cards == nil {
		cards = []view.MarketCard{}
	}
	writeJSON(w, http.StatusOK, listMarketsResponse{Markets: cards, Total: len(cards)})
}

type marketResponse struct {
	Market domain.Market   `json:"market"`
	Card   view.MarketCard `json:"card"`
}

// GetMarket returns one market and its card.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	viewer, err := h.viewer(r)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	m, err := h.markets.GetMarket(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "Failed to load market.")
		return
	}
	card, err := h.markets.Card(r.Context(), id, viewer)
	if err != nil {
		writeDomainError(w, err, "Failed to load market.")
		return
	}
	writeJSON(w, http.StatusOK, marketResponse{Market: m, Card: card})
}

// UserStatus returns hasCommitted/hasRevealed for the viewer.
// GET /api/markets/{id}/status
func (h *MarketHandler) UserStatus(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	viewer, err := h.viewer(r)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	st, err := h.markets.UserStatus(r.Context(), id, viewer)
	if err != nil {
		writeDomainError(w, err, "Failed to load status.")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// CreatorPanel returns the creator's panel for the viewer.
// GET /api/markets/{id}/panel
func (h *MarketHandler) CreatorPanel(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	viewer, err := h.viewer(r)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	p, err := h.markets.CreatorPanel(r.Context(), id, viewer)
	if err != nil {
		writeDomainError(w, err, "Failed to load creator panel.")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
