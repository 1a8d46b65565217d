package inventory

import (
	"sort"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

// AllocationStrategyType selects the batch ordering used for deductions.
type AllocationStrategyType string

const (
	// AllocationStrategyExpiryFirst draws near-expiry stock first, then by expiry
	// date, then by acquisition date.
	AllocationStrategyExpiryFirst AllocationStrategyType = "EXPIRY_FIRST"
	// AllocationStrategyAcquisitionFIFO draws the oldest acquired stock first.
	AllocationStrategyAcquisitionFIFO AllocationStrategyType = "ACQUISITION_FIFO"
)

// DefaultNearExpiryHorizon is how far ahead a batch counts as near-expiry.
const DefaultNearExpiryHorizon = 30 * 24 * time.Hour

// StockCandidate pairs a cell with its batch and the kind of its location.
type StockCandidate struct {
	Cell  LocationCell
	Batch *Batch
	Kind  LocationKind
}

// Draw is a planned deduction from one cell.
type Draw struct {
	Candidate StockCandidate
	Quantity  int64
}

// AllocationPlan is the greedy result of walking ordered candidates.
type AllocationPlan struct {
	Draws     []Draw
	Requested int64
	Allocated int64
	Shortfall int64
}

// Fulfilled reports whether the whole request is covered.
func (p *AllocationPlan) Fulfilled() bool {
	return p.Shortfall == 0
}

// AllocationStrategy orders sellable candidates for drawing.
type AllocationStrategy interface {
	Type() AllocationStrategyType
	// Order returns the sellable candidates (quantity > 0, not expired at now)
	// in draw order. The input slice is not modified.
	Order(candidates []StockCandidate, now time.Time) []StockCandidate
}

// ExpiryFirstStrategy is the default sale ordering.
type ExpiryFirstStrategy struct {
	Horizon time.Duration
}

// NewExpiryFirstStrategy creates the strategy; a non-positive horizon falls
// back to DefaultNearExpiryHorizon.
func NewExpiryFirstStrategy(horizon time.Duration) *ExpiryFirstStrategy {
	if horizon <= 0 {
		horizon = DefaultNearExpiryHorizon
	}
	return &ExpiryFirstStrategy{Horizon: horizon}
}

func (s *ExpiryFirstStrategy) Type() AllocationStrategyType {
	return AllocationStrategyExpiryFirst
}

func (s *ExpiryFirstStrategy) Order(candidates []StockCandidate, now time.Time) []StockCandidate {
	sorted := sellable(candidates, now)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Batch, sorted[j].Batch
		aNear, bNear := a.ExpiresWithin(now, s.Horizon), b.ExpiresWithin(now, s.Horizon)
		if aNear != bNear {
			return aNear
		}
		switch {
		case a.ExpiryDate != nil && b.ExpiryDate != nil:
			if !a.ExpiryDate.Equal(*b.ExpiryDate) {
				return a.ExpiryDate.Before(*b.ExpiryDate)
			}
		case a.ExpiryDate != nil:
			return true
		case b.ExpiryDate != nil:
			return false
		}
		return acquiredBefore(sorted[i], sorted[j])
	})
	return sorted
}

// AcquisitionFIFOStrategy draws the oldest acquisitions first regardless of expiry.
type AcquisitionFIFOStrategy struct{}

func (AcquisitionFIFOStrategy) Type() AllocationStrategyType {
	return AllocationStrategyAcquisitionFIFO
}

func (AcquisitionFIFOStrategy) Order(candidates []StockCandidate, now time.Time) []StockCandidate {
	sorted := sellable(candidates, now)
	sort.SliceStable(sorted, func(i, j int) bool {
		return acquiredBefore(sorted[i], sorted[j])
	})
	return sorted
}

// NewAllocationStrategy resolves a configured strategy name.
func NewAllocationStrategy(t AllocationStrategyType, horizon time.Duration) (AllocationStrategy, error) {
	switch t {
	case "", AllocationStrategyExpiryFirst:
		return NewExpiryFirstStrategy(horizon), nil
	case AllocationStrategyAcquisitionFIFO:
		return AcquisitionFIFOStrategy{}, nil
	}
	return nil, shared.InvalidInput("Unknown allocation strategy: "+string(t))
}

// acquiredBefore is the shared tie-break: acquisition date, batch creation,
// batch id, then cell id so a batch split across locations orders stably.
func acquiredBefore(x, y StockCandidate) bool {
	a, b := x.Batch, y.Batch
	if !a.AcquisitionDate.Equal(b.AcquisitionDate) {
		return a.AcquisitionDate.Before(b.AcquisitionDate)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	if a.ID != b.ID {
		return lessUUID(a.ID, b.ID)
	}
	return lessUUID(x.Cell.ID, y.Cell.ID)
}

func lessUUID(a, b uuid.UUID) bool {
	return a.String() < b.String()
}

func sellable(candidates []StockCandidate, now time.Time) []StockCandidate {
	out := make([]StockCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Cell.CurrentQuantity <= 0 || c.Batch == nil || c.Batch.IsExpired(now) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// PlanDraws walks ordered candidates greedily until requested is covered.
func PlanDraws(ordered []StockCandidate, requested int64) AllocationPlan {
	plan := AllocationPlan{Requested: requested, Draws: make([]Draw, 0)}
	remaining := requested
	for _, c := range ordered {
		if remaining <= 0 {
			break
		}
		take := min(c.Cell.CurrentQuantity, remaining)
		if take <= 0 {
			continue
		}
		plan.Draws = append(plan.Draws, Draw{Candidate: c, Quantity: take})
		plan.Allocated += take
		remaining -= take
	}
	plan.Shortfall = remaining
	return plan
}

// PlanSale plans a sale deduction: display stock first, then warehouse stock,
// each tier in strategy order. Online stock is never drawn for in-store sales.
// The plan is all or nothing: an unfulfillable request returns
// InsufficientStockError and no draws.
func PlanSale(strategy AllocationStrategy, productID uuid.UUID, candidates []StockCandidate, requested int64, now time.Time) (AllocationPlan, error) {
	if requested < 0 {
		return AllocationPlan{}, shared.ErrInvalidQuantity
	}
	if requested == 0 {
		return AllocationPlan{Draws: make([]Draw, 0)}, nil
	}
	var display, warehouse []StockCandidate
	for _, c := range candidates {
		switch c.Kind {
		case LocationKindDisplay:
			display = append(display, c)
		case LocationKindWarehouse:
			warehouse = append(warehouse, c)
		}
	}
	ordered := append(strategy.Order(display, now), strategy.Order(warehouse, now)...)
	plan := PlanDraws(ordered, requested)
	if !plan.Fulfilled() {
		return AllocationPlan{}, &InsufficientStockError{
			ProductID: productID,
			Available: plan.Allocated,
			Requested: requested,
		}
	}
	return plan, nil
}

// SellableQuantity totals non-expired stock across candidates.
func SellableQuantity(candidates []StockCandidate, now time.Time) int64 {
	var total int64
	for _, c := range sellable(candidates, now) {
		total += c.Cell.CurrentQuantity
	}
	return total
}
