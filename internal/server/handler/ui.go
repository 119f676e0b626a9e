package handler

import (
	"net/http"
	"strconv"

	"github.com/alanyoungcy/ppmclient/internal/domain"
	"github.com/alanyoungcy/ppmclient/internal/ui"
)

// UIHandler exposes the shared interaction state.
type UIHandler struct {
	store *ui.Store
}

// NewUIHandler creates a UIHandler.
func NewUIHandler(store *ui.Store) *UIHandler {
	return &UIHandler{store: store}
}

// GetState returns a snapshot of the UI state.
// GET /api/ui
func (h *UIHandler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Snapshot())
}

type uiActionRequest struct {
	MarketID *uint64 `json:"market_id,omitempty"`
	Mode     string  `json:"mode,omitempty"`
	Message  string  `json:"message,omitempty"`
	Type     string  `json:"type,omitempty"`
}

// Apply runs a named UI action and returns the new state.
// POST /api/ui/{action}
func (h *UIHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req uiActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err, "")
		return
	}

	switch r.PathValue("action") {
	case "open-login":
		h.store.OpenLogin()
	case "close-login":
		h.store.CloseLogin()
	case "open-create-market":
		h.store.OpenCreateMarket()
	case "close-create-market":
		h.store.CloseCreateMarket()
	case "open-trade":
		if req.MarketID == nil {
			writeDomainError(w, &domain.InputError{Field: "market_id", Message: "market_id is required"}, "")
			return
		}
		mode := ui.TradeMode(req.Mode)
		if mode != ui.ModeCommit && mode != ui.ModeReveal {
			writeDomainError(w, &domain.InputError{Field: "mode", Message: `mode must be "commit" or "reveal"`}, "")
			return
		}
		h.store.OpenTrade(*req.MarketID, mode)
	case "close-trade":
		h.store.CloseTrade()
	case "open-creator-panel":
		if req.MarketID == nil {
			writeDomainError(w, &domain.InputError{Field: "market_id", Message: "market_id is required"}, "")
			return
		}
		h.store.OpenCreatorPanel(*req.MarketID)
	case "close-creator-panel":
		h.store.CloseCreatorPanel()
	case "toast":
		typ := ui.ToastType(req.Type)
		switch typ {
		case "":
			typ = ui.ToastInfo
		case ui.ToastSuccess, ui.ToastError, ui.ToastInfo:
		default:
			writeDomainError(w, &domain.InputError{Field: "type", Message: "Unknown toast type"}, "")
			return
		}
		if req.Message == "" {
			writeDomainError(w, &domain.InputError{Field: "message", Message: "message is required"}, "")
			return
		}
		h.store.AddToast(req.Message, typ)
	default:
		writeError(w, http.StatusNotFound, "unknown ui action "+strconv.Quote(r.PathValue("action")))
		return
	}
	writeJSON(w, http.StatusOK, h.store.Snapshot())
}

// RemoveToast drops a toast by id. Unknown ids are a no-op.
// DELETE /api/ui/toasts/{id}
func (h *UIHandler) RemoveToast(w http.ResponseWriter, r *http.Request) {
	h.store.RemoveToast(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}
