package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/predictlabs/marketd/internal/domain"
)

// SnapshotSource defines what the market handler needs from the snapshot
// reader. Declared locally so the handler package does not depend on the
// concrete reader.
type SnapshotSource interface {
	Current() (domain.MarketSnapshot, bool)
	Refresh(ctx context.Context) (domain.MarketSnapshot, error)
}

// MarketHandler serves the market snapshot endpoints.
type MarketHandler struct {
	snapshots SnapshotSource
	logger    *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given snapshot source.
func NewMarketHandler(snapshots SnapshotSource, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		snapshots: snapshots,
		logger:    logHandler(logger, "market"),
	}
}

// outcomeView is one side of the market in the snapshot response.
type outcomeView struct {
	Index       int     `json:"index"`
	Label       string  `json:"label"`
	Token       string  `json:"token"`
	Reserve     string  `json:"reserve"`
	ReserveDec  string  `json:"reserveDec"`
	Probability float64 `json:"probability"`
	Winning     bool    `json:"winning"`
}

// viewerView carries advisory role flags for the requesting address. The
// engine remains authoritative; these only drive UI gating.
type viewerView struct {
	Address  string `json:"address"`
	IsOwner  bool   `json:"isOwner"`
	IsOracle bool   `json:"isOracle"`
}

// marketResponse is the JSON shape of GET /api/market.
type marketResponse struct {
	Version            domain.SnapshotVersion `json:"version"`
	FetchedAt          string                 `json:"fetchedAt"`
	Question           string                 `json:"question"`
	Outcomes           [2]outcomeView         `json:"outcomes"`
	IsResolved         bool                   `json:"isResolved"`
	Oracle             string                 `json:"oracle"`
	Owner              string                 `json:"owner"`
	Collateral         string                 `json:"collateral"`
	CollateralDec      string                 `json:"collateralDec"`
	LiquidityRevenue   string                 `json:"liquidityRevenue"`
	InitialTokenValue  string                 `json:"initialTokenValue"`
	InitialProbability uint64                 `json:"initialProbability"`
	PercentageLocked   uint64                 `json:"percentageLocked"`
	Viewer             *viewerView            `json:"viewer,omitempty"`
}

func marketView(snap domain.MarketSnapshot, viewer string) marketResponse {
	probs := snap.Probabilities()
	winner, resolved := snap.WinningOutcome()

	var outcomes [2]outcomeView
	for i := range outcomes {
		o := domain.Outcome(i)
		outcomes[i] = outcomeView{
			Index:       i,
			Label:       snap.OutcomeLabels[i],
			Token:       snap.OutcomeTokens[i],
			Reserve:     baseUnits(snap.Reserves[i]),
			ReserveDec:  formatAmount(snap.Reserves[i]),
			Probability: probs[i],
			Winning:     resolved && winner == o,
		}
	}

	resp := marketResponse{
		Version:            snap.Version,
		FetchedAt:          snap.FetchedAt.UTC().Format(time.RFC3339),
		Question:           snap.Question,
		Outcomes:           outcomes,
		IsResolved:         snap.IsResolved,
		Oracle:             snap.Oracle,
		Owner:              snap.Owner,
		Collateral:         baseUnits(snap.Collateral),
		CollateralDec:      formatAmount(snap.Collateral),
		LiquidityRevenue:   baseUnits(snap.LiquidityRevenue),
		InitialTokenValue:  baseUnits(snap.InitialTokenValue),
		InitialProbability: snap.InitialProbability,
		PercentageLocked:   snap.PercentageLocked,
	}

	if viewer != "" {
		resp.Viewer = &viewerView{
			Address:  viewer,
			IsOwner:  strings.EqualFold(viewer, snap.Owner),
			IsOracle: strings.EqualFold(viewer, snap.Oracle),
		}
	}
	return resp
}

// GetMarket returns the current snapshot with derived probabilities. The
// optional viewer query parameter adds advisory role flags for that address.
// GET /api/market?viewer=0x...
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshots.Current()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "market state unavailable")
		return
	}
	writeJSON(w, http.StatusOK, marketView(snap, r.URL.Query().Get("viewer")))
}

// RefreshMarket forces a snapshot refresh and returns the result. A failed
// refresh leaves the previous snapshot in place.
// POST /api/market/refresh
func (h *MarketHandler) RefreshMarket(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.Refresh(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: market refresh failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusServiceUnavailable, "market state unavailable")
		return
	}
	writeJSON(w, http.StatusOK, marketView(snap, r.URL.Query().Get("viewer")))
}
