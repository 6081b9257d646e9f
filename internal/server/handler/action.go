package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/predictlabs/marketd/internal/domain"
)

// ActionService defines what the action handler requires from the session
// controller.
type ActionService interface {
	Submit(ctx context.Context, action domain.Action, quoteID string) (domain.TransactionHandle, error)
	Dismiss(ctx context.Context, id string) error
}

// ActionHandler serves action submission and the handle journal.
type ActionHandler struct {
	actions ActionService
	journal domain.HandleStore
	logger  *slog.Logger
}

// NewActionHandler creates an ActionHandler with the given controller and
// journal.
func NewActionHandler(actions ActionService, journal domain.HandleStore, logger *slog.Logger) *ActionHandler {
	return &ActionHandler{
		actions: actions,
		journal: journal,
		logger:  logHandler(logger, "action"),
	}
}

type actionRequest struct {
	Type     string `json:"type"`
	Outcome  *uint8 `json:"outcome,omitempty"`
	Quantity string `json:"quantity,omitempty"` // human-decimal amount
	QuoteID  string `json:"quoteId,omitempty"`  // required for buys
}

// handleView is the JSON shape of a transaction handle.
type handleView struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Outcome      uint8  `json:"outcome"`
	Quantity     string `json:"quantity,omitempty"`
	QuantityDec  string `json:"quantityDec,omitempty"`
	State        string `json:"state"`
	TxHash       string `json:"txHash,omitempty"`
	Value        string `json:"value,omitempty"`
	ValueDec     string `json:"valueDec,omitempty"`
	FailReason   string `json:"failReason,omitempty"`
	StillWaiting bool   `json:"stillWaiting"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
	SettledAt    string `json:"settledAt,omitempty"`
}

func viewOf(h domain.TransactionHandle) handleView {
	v := handleView{
		ID:           h.ID,
		Type:         string(h.Action.Type),
		Outcome:      uint8(h.Action.Outcome),
		Quantity:     baseUnits(h.Action.Quantity),
		QuantityDec:  formatAmount(h.Action.Quantity),
		State:        string(h.State),
		TxHash:       h.TxHash,
		Value:        baseUnits(h.Value),
		ValueDec:     formatAmount(h.Value),
		FailReason:   h.FailReason,
		StillWaiting: h.StillWaiting,
		CreatedAt:    h.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    h.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if h.SettledAt != nil {
		v.SettledAt = h.SettledAt.UTC().Format(time.RFC3339)
	}
	return v
}

var actionTypes = map[string]domain.ActionType{
	string(domain.ActionBuy):                domain.ActionBuy,
	string(domain.ActionSell):               domain.ActionSell,
	string(domain.ActionAddLiquidity):       domain.ActionAddLiquidity,
	string(domain.ActionRemoveLiquidity):    domain.ActionRemoveLiquidity,
	string(domain.ActionRedeem):             domain.ActionRedeem,
	string(domain.ActionReport):             domain.ActionReport,
	string(domain.ActionResolveAndWithdraw): domain.ActionResolveAndWithdraw,
}

// SubmitAction converts a request body into a domain action and hands it to
// the controller. Blocking errors (bad quantity, missing or stale quote,
// engine gating) never create a handle; everything past broadcast is
// reported through the returned handle instead.
// POST /api/actions
func (h *ActionHandler) SubmitAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	actionType, ok := actionTypes[req.Type]
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown action type: "+req.Type)
		return
	}

	action := domain.Action{Type: actionType}

	if action.NeedsOutcome() {
		if req.Outcome == nil || !domain.Outcome(*req.Outcome).Valid() {
			writeError(w, http.StatusBadRequest, "outcome must be 0 or 1")
			return
		}
		action.Outcome = domain.Outcome(*req.Outcome)
	}

	if action.NeedsQuantity() {
		quantity, err := parseAmount(req.Quantity)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		action.Quantity = quantity
	}

	handle, err := h.actions.Submit(r.Context(), action, req.QuoteID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidQuantity):
			writeError(w, http.StatusBadRequest, "quantity must be a positive amount")
		case errors.Is(err, domain.ErrInsufficientQuote):
			writeError(w, http.StatusConflict, "a fresh quote is required before buying")
		case errors.Is(err, domain.ErrStaleQuote):
			writeError(w, http.StatusConflict, "quote is stale, request a new one")
		case errors.Is(err, domain.ErrEngineUnavailable):
			writeError(w, http.StatusServiceUnavailable, "market state unavailable")
		case errors.Is(err, domain.ErrEngineError):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			h.logger.ErrorContext(r.Context(), "handler: submit action failed",
				slog.String("action", string(action.Type)),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to submit action")
		}
		return
	}

	writeJSON(w, http.StatusCreated, viewOf(handle))
}

// listActionsResponse wraps the journal list endpoint output.
type listActionsResponse struct {
	Actions []handleView `json:"actions"`
	Total   int64        `json:"total"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
}

// ListActions returns journaled handles newest first.
// GET /api/actions?limit=50&offset=0
func (h *ActionHandler) ListActions(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	handles, err := h.journal.ListRecent(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list actions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list actions")
		return
	}

	total, err := h.journal.Count(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: count actions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to count actions")
		return
	}

	views := make([]handleView, 0, len(handles))
	for _, handle := range handles {
		views = append(views, viewOf(handle))
	}

	writeJSON(w, http.StatusOK, listActionsResponse{
		Actions: views,
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetAction returns a single handle by ID.
// GET /api/actions/{id}
func (h *ActionHandler) GetAction(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing action id")
		return
	}

	handle, err := h.journal.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "action not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get action failed",
			slog.String("action_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get action")
		return
	}

	writeJSON(w, http.StatusOK, viewOf(handle))
}

// DismissAction removes a terminal handle from the journal.
// DELETE /api/actions/{id}
func (h *ActionHandler) DismissAction(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing action id")
		return
	}

	if err := h.actions.Dismiss(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "action not found")
		case errors.Is(err, domain.ErrHandleInFlight):
			writeError(w, http.StatusConflict, "action is still in flight")
		default:
			h.logger.ErrorContext(r.Context(), "handler: dismiss action failed",
				slog.String("action_id", id),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to dismiss action")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "dismissed",
		"action_id": id,
	})
}
