// Package session implements the trading-session controller: converting
// user-entered quantities into engine-priced quotes, sequencing a quote into
// a committed write with the correct value bound, and tracking each submitted
// action through its lifecycle to a terminal outcome. One generic engine
// serves every action type.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/predictlabs/marketd/internal/domain"
)

// quoteTTL bounds how long an issued quote stays resolvable by ID. Freshness
// for submission is checked separately (snapshot version + quantity match);
// the TTL only caps registry growth.
const quoteTTL = 2 * time.Minute

// SnapshotSource is the read side of the snapshot reader that the session
// layer needs: the current snapshot and its version.
type SnapshotSource interface {
	Current() (domain.MarketSnapshot, bool)
	Version() domain.SnapshotVersion
}

// QuoteService prices prospective trades against the engine. Quotes are
// non-binding; each result records the snapshot version and exact quantity
// it priced, and a later request for the same side and outcome supersedes
// any in-flight one (its result is discarded on arrival, not cancelled).
type QuoteService struct {
	engine    domain.EngineReader
	snapshots SnapshotSource
	logger    *slog.Logger

	mu     sync.Mutex
	quotes map[string]issuedQuote
	gens   map[genKey]uint64
}

type issuedQuote struct {
	quote     domain.Quote
	expiresAt time.Time
}

type genKey struct {
	side    domain.Side
	outcome domain.Outcome
}

// NewQuoteService creates a QuoteService.
func NewQuoteService(engine domain.EngineReader, snapshots SnapshotSource, logger *slog.Logger) *QuoteService {
	return &QuoteService{
		engine:    engine,
		snapshots: snapshots,
		logger:    logger.With(slog.String("component", "quotes")),
		quotes:    make(map[string]issuedQuote),
		gens:      make(map[genKey]uint64),
	}
}

// Request prices quantity outcome tokens for the given side. It fails with
// ErrInvalidQuantity before touching the engine when quantity is nil or not
// positive: callers display no price rather than a zero one. If a newer
// request for the same side and outcome starts while this one is in flight,
// the result is discarded with ErrQuoteSuperseded.
func (s *QuoteService) Request(ctx context.Context, side domain.Side, outcome domain.Outcome, quantity *big.Int) (domain.Quote, error) {
	if quantity == nil || quantity.Sign() <= 0 {
		return domain.Quote{}, fmt.Errorf("session: quote %s: %w", side, domain.ErrInvalidQuantity)
	}
	if !outcome.Valid() {
		return domain.Quote{}, fmt.Errorf("session: quote %s: invalid outcome %d", side, outcome)
	}

	key := genKey{side: side, outcome: outcome}
	gen := s.nextGen(key)
	version := s.snapshots.Version()

	var (
		price *big.Int
		err   error
	)
	switch side {
	case domain.SideBuy:
		price, err = s.engine.BuyPrice(ctx, outcome, quantity)
	case domain.SideSell:
		price, err = s.engine.SellPrice(ctx, outcome, quantity)
	default:
		return domain.Quote{}, fmt.Errorf("session: unknown quote side %q", side)
	}
	if err != nil {
		return domain.Quote{}, fmt.Errorf("session: quote %s: %w", side, err)
	}

	if s.currentGen(key) != gen {
		// The user edited the inputs while this request was in flight.
		s.logger.DebugContext(ctx, "quote result discarded",
			slog.String("side", string(side)),
			slog.Uint64("generation", gen),
		)
		return domain.Quote{}, domain.ErrQuoteSuperseded
	}

	q := domain.Quote{
		ID:               uuid.NewString(),
		Side:             side,
		Outcome:          outcome,
		Quantity:         new(big.Int).Set(quantity),
		Price:            price,
		FetchedAtVersion: version,
		FetchedAt:        time.Now().UTC(),
	}
	s.register(q)
	return q, nil
}

// Lookup resolves a previously issued quote by ID. Expired or unknown IDs
// return false; submission then fails with ErrInsufficientQuote.
func (s *QuoteService) Lookup(id string) (domain.Quote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	iq, ok := s.quotes[id]
	if !ok || time.Now().After(iq.expiresAt) {
		delete(s.quotes, id)
		return domain.Quote{}, false
	}
	return iq.quote, true
}

func (s *QuoteService) register(q domain.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Opportunistically drop expired entries; the registry stays small.
	now := time.Now()
	for id, iq := range s.quotes {
		if now.After(iq.expiresAt) {
			delete(s.quotes, id)
		}
	}
	s.quotes[q.ID] = issuedQuote{quote: q, expiresAt: now.Add(quoteTTL)}
}

func (s *QuoteService) nextGen(key genKey) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[key]++
	return s.gens[key]
}

func (s *QuoteService) currentGen(key genKey) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[key]
}
