package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/efreitasn/marketboard/internal/domain"
	"github.com/efreitasn/marketboard/internal/service"
)

// MarketHandler handles HTTP requests for listing and trade history
// endpoints.
type MarketHandler struct {
	marketSvc *service.MarketService
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(marketSvc *service.MarketService) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc}
}

// postingResponse is a listing as served by GET /postings.
type postingResponse struct {
	ID           string  `json:"_id"`
	ItemName     string  `json:"itemName"`
	ItemPrice    float64 `json:"itemPrice"`
	ItemQuantity int64   `json:"itemQuantity"`
	Timestamp    string  `json:"timestamp"`
}

// historyResponse is a trade as served by GET /history.
type historyResponse struct {
	ID           string  `json:"_id"`
	Timestamp    string  `json:"timestamp"`
	ItemName     string  `json:"itemName"`
	ItemPrice    float64 `json:"itemPrice"`
	AmountSold   int64   `json:"amountSold"`
	UserCustomer string  `json:"userCustomer"`
}

type deletePostingRequest struct {
	ItemID string `json:"itemID"`
}

type deleteHistoryRequest struct {
	EntryID string `json:"entryID"`
}

// ListPostings handles GET /postings.
func (h *MarketHandler) ListPostings(w http.ResponseWriter, r *http.Request) {
	listings, err := h.marketSvc.ListListings(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		mapMarketError(w, err)
		return
	}

	out := make([]postingResponse, 0, len(listings))
	for _, l := range listings {
		out = append(out, postingResponse{
			ID:           l.ID,
			ItemName:     l.ItemName,
			ItemPrice:    l.ItemPrice,
			ItemQuantity: l.Quantity,
			Timestamp:    l.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	WriteJSON(w, http.StatusOK, out)
}

// AddPosting handles POST /add.
func (h *MarketHandler) AddPosting(w http.ResponseWriter, r *http.Request) {
	var req service.AddListingRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteResult(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.marketSvc.AddListing(r.Context(), req); err != nil {
		mapMarketError(w, err)
		return
	}
	WriteResult(w, http.StatusOK, "")
}

// DeletePosting handles POST /delete.
func (h *MarketHandler) DeletePosting(w http.ResponseWriter, r *http.Request) {
	var req deletePostingRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteResult(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.marketSvc.DeleteListing(r.Context(), req.ItemID); err != nil {
		mapMarketError(w, err)
		return
	}
	WriteResult(w, http.StatusOK, "")
}

// Buy handles POST /buy.
func (h *MarketHandler) Buy(w http.ResponseWriter, r *http.Request) {
	var req service.BuyRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteResult(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.marketSvc.Buy(r.Context(), req); err != nil {
		mapMarketError(w, err)
		return
	}
	WriteResult(w, http.StatusOK, "")
}

// History handles GET /history.
func (h *MarketHandler) History(w http.ResponseWriter, r *http.Request) {
	trades, err := h.marketSvc.History(r.Context())
	if err != nil {
		mapMarketError(w, err)
		return
	}

	out := make([]historyResponse, 0, len(trades))
	for _, t := range trades {
		out = append(out, historyResponse{
			ID:           t.ID,
			Timestamp:    t.Timestamp.UTC().Format(time.RFC3339Nano),
			ItemName:     t.ItemName,
			ItemPrice:    t.ItemPrice,
			AmountSold:   t.AmountSold,
			UserCustomer: t.Buyer,
		})
	}
	WriteJSON(w, http.StatusOK, out)
}

// AddHistory handles POST /add_history.
func (h *MarketHandler) AddHistory(w http.ResponseWriter, r *http.Request) {
	var req service.RecordTradeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteResult(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.marketSvc.RecordTrade(r.Context(), req); err != nil {
		mapMarketError(w, err)
		return
	}
	WriteResult(w, http.StatusOK, "")
}

// DeleteHistory handles POST /delete_history.
func (h *MarketHandler) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	var req deleteHistoryRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteResult(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.marketSvc.DeleteTrade(r.Context(), req.EntryID); err != nil {
		mapMarketError(w, err)
		return
	}
	WriteResult(w, http.StatusOK, "")
}

// mapMarketError maps marketplace errors to HTTP responses.
func mapMarketError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		WriteResult(w, http.StatusBadRequest, ve.Message)
	case errors.Is(err, domain.ErrInsufficientQuantity):
		WriteResult(w, http.StatusBadRequest, "Not enough quantity")
	case errors.Is(err, domain.ErrListingNotFound):
		WriteResult(w, http.StatusNotFound, "Listing not found")
	case errors.Is(err, domain.ErrTradeNotFound):
		WriteResult(w, http.StatusNotFound, "History entry not found")
	default:
		WriteResult(w, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
