package inventory

import (
	"context"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/google/uuid"
)

// stockSnapshot is an unlocked read of one product's ledger state.
type stockSnapshot struct {
	cells      []inventory.LocationCell
	batches    map[uuid.UUID]*inventory.Batch
	locations  map[uuid.UUID]*inventory.Location
	placements map[uuid.UUID]*inventory.Placement
}

func loadSnapshot(ctx context.Context, repos TransactionalRepositories, productID uuid.UUID) (*stockSnapshot, error) {
	cells, err := repos.Cells().FindByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	snap := &stockSnapshot{
		cells:      cells,
		batches:    make(map[uuid.UUID]*inventory.Batch),
		locations:  make(map[uuid.UUID]*inventory.Location),
		placements: make(map[uuid.UUID]*inventory.Placement),
	}

	locationIDs := make(map[uuid.UUID]struct{})
	batchIDs := make([]uuid.UUID, 0, len(cells))
	for _, c := range cells {
		batchIDs = append(batchIDs, c.BatchID)
		locationIDs[c.LocationID] = struct{}{}
	}
	if len(batchIDs) > 0 {
		batches, err := repos.Batches().FindByIDs(ctx, batchIDs)
		if err != nil {
			return nil, err
		}
		for i := range batches {
			snap.batches[batches[i].ID] = &batches[i]
		}
	}

	placements, err := repos.Placements().FindByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	for i := range placements {
		snap.placements[placements[i].LocationID] = &placements[i]
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
			snap.locations[locations[i].ID] = &locations[i]
		}
	}
	return snap, nil
}

// sellableTotal sums non-expired units across every location.
func (s *stockSnapshot) sellableTotal(now time.Time) int64 {
	var total int64
	for _, c := range s.cells {
		if b := s.batches[c.BatchID]; b != nil && b.IsExpired(now) {
			continue
		}
		total += c.CurrentQuantity
	}
	return total
}

// displayCapacity sums the effective capacity of display locations the
// product is placed at or stocked in.
func (s *stockSnapshot) displayCapacity() int64 {
	var total int64
	for _, loc := range s.locations {
		if loc.Kind != inventory.LocationKindDisplay {
			continue
		}
		total += inventory.EffectiveLimits(loc, s.placements[loc.ID]).Capacity
	}
	return total
}
