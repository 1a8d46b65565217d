package inventory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

// LocationLedger is the transaction-scoped view of one product's cells. It is
// opened after the product lock is taken and holds every cell of the product
// row-locked until the transaction ends. All quantity changes go through
// Mutate so the non-negative and capacity invariants are checked in one place.
type LocationLedger struct {
	repos      TransactionalRepositories
	productID  uuid.UUID
	profile    *inventory.StockProfile
	cells      []*inventory.LocationCell
	batches    map[uuid.UUID]*inventory.Batch
	locations  map[uuid.UUID]*inventory.Location
	placements map[uuid.UUID]*inventory.Placement
	builder    *inventory.MovementBuilder
	movements  []inventory.StockMovement
	now        time.Time
}

// OpenLedger locks the product and loads its cells, batches, placements and
// the locations they reference.
func OpenLedger(ctx context.Context, repos TransactionalRepositories, productID uuid.UUID, builder *inventory.MovementBuilder, now time.Time) (*LocationLedger, error) {
	profile, err := repos.Profiles().LockOrCreate(ctx, productID)
	if err != nil {
		return nil, err
	}
	cells, err := repos.Cells().FindByProductForUpdate(ctx, productID)
	if err != nil {
		return nil, err
	}
	l := &LocationLedger{
		repos:      repos,
		productID:  productID,
		profile:    profile,
		cells:      make([]*inventory.LocationCell, 0, len(cells)),
		batches:    make(map[uuid.UUID]*inventory.Batch),
		locations:  make(map[uuid.UUID]*inventory.Location),
		placements: make(map[uuid.UUID]*inventory.Placement),
		builder:    builder,
		now:        now,
	}

	batchIDs := make([]uuid.UUID, 0, len(cells))
	locationIDs := make(map[uuid.UUID]struct{})
	for i := range cells {
		l.cells = append(l.cells, &cells[i])
		batchIDs = append(batchIDs, cells[i].BatchID)
		locationIDs[cells[i].LocationID] = struct{}{}
	}
	if len(batchIDs) > 0 {
		batches, err := repos.Batches().FindByIDs(ctx, batchIDs)
		if err != nil {
			return nil, err
		}
		for i := range batches {
			l.batches[batches[i].ID] = &batches[i]
		}
	}

	placements, err := repos.Placements().FindByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	for i := range placements {
		l.placements[placements[i].LocationID] = &placements[i]
		locationIDs[placements[i].LocationID] = struct{}{}
	}

	if len(locationIDs) > 0 {
		ids := make([]uuid.UUID, 0, len(locationIDs))
		for id := range locationIDs {
			ids = append(ids, id)
		}
		locations, err := repos.Locations().FindByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for i := range locations {
			l.locations[locations[i].ID] = &locations[i]
		}
	}
	return l, nil
}

// Profile returns the locked product profile.
func (l *LocationLedger) Profile() *inventory.StockProfile {
	return l.profile
}

// Location resolves a location, loading it if the product has never touched it.
func (l *LocationLedger) Location(ctx context.Context, id uuid.UUID) (*inventory.Location, error) {
	if loc, ok := l.locations[id]; ok {
		return loc, nil
	}
	loc, err := l.repos.Locations().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	l.locations[id] = loc
	return loc, nil
}

// Limits returns the effective capacity and trigger of the product at loc.
func (l *LocationLedger) Limits(loc *inventory.Location) inventory.Limits {
	return inventory.EffectiveLimits(loc, l.placements[loc.ID])
}

// GetQuantity sums on-hand quantity at a location, expired stock included.
func (l *LocationLedger) GetQuantity(locationID uuid.UUID) int64 {
	var total int64
	for _, c := range l.cells {
		if c.LocationID == locationID {
			total += c.CurrentQuantity
		}
	}
	return total
}

// SellableAt sums non-expired quantity at a location.
func (l *LocationLedger) SellableAt(locationID uuid.UUID) int64 {
	return inventory.SellableQuantity(l.Candidates(func(c *inventory.LocationCell, _ inventory.LocationKind) bool {
		return c.LocationID == locationID
	}), l.now)
}

// TotalQuantity sums on-hand quantity across all locations.
func (l *LocationLedger) TotalQuantity() int64 {
	var total int64
	for _, c := range l.cells {
		total += c.CurrentQuantity
	}
	return total
}

// Candidates returns the cells accepted by keep, joined with batch and kind.
func (l *LocationLedger) Candidates(keep func(*inventory.LocationCell, inventory.LocationKind) bool) []inventory.StockCandidate {
	out := make([]inventory.StockCandidate, 0, len(l.cells))
	for _, c := range l.cells {
		loc, ok := l.locations[c.LocationID]
		if !ok {
			continue
		}
		if keep != nil && !keep(c, loc.Kind) {
			continue
		}
		out = append(out, inventory.StockCandidate{Cell: *c, Batch: l.batches[c.BatchID], Kind: loc.Kind})
	}
	return out
}

// DisplayLocations returns the display locations the product is placed at or
// stocked in, ordered by code.
func (l *LocationLedger) DisplayLocations() []*inventory.Location {
	out := make([]*inventory.Location, 0)
	for _, loc := range l.locations {
		if loc.Kind == inventory.LocationKindDisplay {
			out = append(out, loc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (l *LocationLedger) cell(id uuid.UUID) (*inventory.LocationCell, error) {
	for _, c := range l.cells {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, shared.NotFound("Location cell")
}

// cellFor returns the cell of batch at locationID, creating an empty one.
func (l *LocationLedger) cellFor(ctx context.Context, batch *inventory.Batch, loc *inventory.Location) (*inventory.LocationCell, error) {
	for _, c := range l.cells {
		if c.BatchID == batch.ID && c.LocationID == loc.ID {
			return c, nil
		}
	}
	c := inventory.NewLocationCell(batch, loc.ID, l.Limits(loc))
	if err := l.repos.Cells().Create(ctx, c); err != nil {
		return nil, err
	}
	l.cells = append(l.cells, c)
	l.batches[batch.ID] = batch
	return c, nil
}

// Mutate applies a signed delta to one cell. It fails with
// InsufficientStockError below zero and CapacityExceededError when a display
// location would hold more of the product than its capacity.
func (l *LocationLedger) Mutate(ctx context.Context, c *inventory.LocationCell, delta int64) error {
	if delta == 0 {
		return nil
	}
	loc, err := l.Location(ctx, c.LocationID)
	if err != nil {
		return err
	}
	if delta > 0 {
		limits := l.Limits(loc)
		if err := inventory.CheckCapacity(l.productID, loc.ID, loc.Kind, limits.Capacity, l.GetQuantity(loc.ID), delta); err != nil {
			return err
		}
	}
	if err := c.Apply(delta); err != nil {
		return err
	}
	return l.repos.Cells().UpdateQuantity(ctx, c)
}

// Withdraw removes quantity from a cell and journals a movement with no destination.
func (l *LocationLedger) Withdraw(ctx context.Context, cellID uuid.UUID, quantity int64, t inventory.MovementType) (inventory.StockMovement, error) {
	c, err := l.cell(cellID)
	if err != nil {
		return inventory.StockMovement{}, err
	}
	if err := l.Mutate(ctx, c, -quantity); err != nil {
		return inventory.StockMovement{}, err
	}
	from := c.LocationID
	m := l.builder.Build(t, c.BatchID, &from, nil, quantity)
	l.movements = append(l.movements, m)
	return m, nil
}

// Deposit adds quantity of batch at loc and journals a movement with no source.
func (l *LocationLedger) Deposit(ctx context.Context, batch *inventory.Batch, loc *inventory.Location, quantity int64, t inventory.MovementType) (inventory.StockMovement, error) {
	c, err := l.cellFor(ctx, batch, loc)
	if err != nil {
		return inventory.StockMovement{}, err
	}
	if err := l.Mutate(ctx, c, quantity); err != nil {
		return inventory.StockMovement{}, err
	}
	to := loc.ID
	m := l.builder.Build(t, batch.ID, nil, &to, quantity)
	l.movements = append(l.movements, m)
	return m, nil
}

// Move relocates quantity of one cell's batch to another location.
func (l *LocationLedger) Move(ctx context.Context, cellID uuid.UUID, to *inventory.Location, quantity int64, t inventory.MovementType) (inventory.StockMovement, error) {
	src, err := l.cell(cellID)
	if err != nil {
		return inventory.StockMovement{}, err
	}
	batch, ok := l.batches[src.BatchID]
	if !ok {
		return inventory.StockMovement{}, fmt.Errorf("batch %s of cell %s not loaded", src.BatchID, src.ID)
	}
	if err := l.Mutate(ctx, src, -quantity); err != nil {
		return inventory.StockMovement{}, err
	}
	dst, err := l.cellFor(ctx, batch, to)
	if err != nil {
		return inventory.StockMovement{}, err
	}
	if err := l.Mutate(ctx, dst, quantity); err != nil {
		return inventory.StockMovement{}, err
	}
	from, dest := src.LocationID, to.ID
	m := l.builder.Build(t, batch.ID, &from, &dest, quantity)
	l.movements = append(l.movements, m)
	return m, nil
}

// Replenish tops up one display location from warehouse stock when its
// sellable quantity is at or below the trigger. Expired units still occupy
// shelf space, so the room left is measured against on-hand quantity.
func (l *LocationLedger) Replenish(ctx context.Context, strategy inventory.AllocationStrategy, display *inventory.Location) ([]inventory.StockMovement, error) {
	limits := l.Limits(display)
	if limits.Capacity <= 0 {
		return nil, nil
	}
	backing := strategy.Order(l.Candidates(func(_ *inventory.LocationCell, kind inventory.LocationKind) bool {
		return kind == inventory.LocationKindWarehouse
	}), l.now)
	available := inventory.SellableQuantity(backing, l.now)

	onHand := l.GetQuantity(display.ID)
	sellable := l.SellableAt(display.ID)
	expired := onHand - sellable
	plan := inventory.PlanReplenishment(sellable, limits.MinThreshold, limits.Capacity-expired, available)
	if !plan.Triggered || plan.Quantity <= 0 {
		return nil, nil
	}

	draws := inventory.PlanDraws(backing, plan.Quantity)
	moved := make([]inventory.StockMovement, 0, len(draws.Draws))
	for _, d := range draws.Draws {
		m, err := l.Move(ctx, d.Candidate.Cell.ID, display, d.Quantity, inventory.MovementTypeWarehouseToDisplay)
		if err != nil {
			return nil, err
		}
		moved = append(moved, m)
	}
	return moved, nil
}

// Movements returns the movements journaled so far.
func (l *LocationLedger) Movements() []inventory.StockMovement {
	return l.movements
}

// Commit writes the journaled movements and the updated profile.
func (l *LocationLedger) Commit(ctx context.Context) error {
	if len(l.movements) > 0 {
		if err := l.repos.Movements().CreateBatch(ctx, l.movements); err != nil {
			return err
		}
	}
	if l.profile.ObserveTotal(l.TotalQuantity()) {
		if err := l.repos.Profiles().Save(ctx, l.profile); err != nil {
			return err
		}
	}
	return nil
}
