package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/predictlabs/marketd/internal/domain"
)

// QuoteService defines what the quote handler requires from the session
// layer.
type QuoteService interface {
	Request(ctx context.Context, side domain.Side, outcome domain.Outcome, quantity *big.Int) (domain.Quote, error)
}

// QuoteHandler serves quantity-to-quote conversion.
type QuoteHandler struct {
	quotes QuoteService
	logger *slog.Logger
}

// NewQuoteHandler creates a QuoteHandler with the given service and logger.
func NewQuoteHandler(quotes QuoteService, logger *slog.Logger) *QuoteHandler {
	return &QuoteHandler{
		quotes: quotes,
		logger: logHandler(logger, "quote"),
	}
}

type quoteRequest struct {
	Side     string `json:"side"`     // "buy" or "sell"
	Outcome  *uint8 `json:"outcome"`  // 0 or 1
	Quantity string `json:"quantity"` // human-decimal token amount
}

type quoteResponse struct {
	ID               string                 `json:"id"`
	Side             string                 `json:"side"`
	Outcome          uint8                  `json:"outcome"`
	Quantity         string                 `json:"quantity"`
	QuantityDec      string                 `json:"quantityDec"`
	Price            string                 `json:"price"`
	PriceDec         string                 `json:"priceDec"`
	FetchedAtVersion domain.SnapshotVersion `json:"fetchedAtVersion"`
	FetchedAt        string                 `json:"fetchedAt"`
}

// RequestQuote converts a desired quantity into a priced quote. The returned
// quote ID is what a buy submission must carry; it pins side, outcome,
// quantity and snapshot version.
// POST /api/quotes
func (h *QuoteHandler) RequestQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var side domain.Side
	switch req.Side {
	case string(domain.SideBuy):
		side = domain.SideBuy
	case string(domain.SideSell):
		side = domain.SideSell
	default:
		writeError(w, http.StatusBadRequest, "side must be buy or sell")
		return
	}

	if req.Outcome == nil || !domain.Outcome(*req.Outcome).Valid() {
		writeError(w, http.StatusBadRequest, "outcome must be 0 or 1")
		return
	}

	quantity, err := parseAmount(req.Quantity)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q, err := h.quotes.Request(r.Context(), side, domain.Outcome(*req.Outcome), quantity)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidQuantity):
			writeError(w, http.StatusBadRequest, "quantity must be a positive amount")
		case errors.Is(err, domain.ErrQuoteSuperseded):
			writeError(w, http.StatusConflict, "superseded by a newer quote request")
		case errors.Is(err, domain.ErrEngineUnavailable):
			writeError(w, http.StatusServiceUnavailable, "pricing unavailable")
		default:
			h.logger.ErrorContext(r.Context(), "handler: quote request failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to fetch quote")
		}
		return
	}

	writeJSON(w, http.StatusOK, quoteResponse{
		ID:               q.ID,
		Side:             string(q.Side),
		Outcome:          uint8(q.Outcome),
		Quantity:         baseUnits(q.Quantity),
		QuantityDec:      formatAmount(q.Quantity),
		Price:            baseUnits(q.Price),
		PriceDec:         formatAmount(q.Price),
		FetchedAtVersion: q.FetchedAtVersion,
		FetchedAt:        q.FetchedAt.UTC().Format(time.RFC3339),
	})
}
