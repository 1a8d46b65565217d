package inventory

import (
	"context"

	"github.com/erp/stockledger/internal/domain/inventory"
)

// TransactionScope runs a unit of work atomically. Every repository handed to
// fn shares one transaction; an error from fn rolls all of it back. fn must use
// the ctx it is given, which carries the operation deadline.
//
// Implementations bound the time spent waiting for row locks and report
// contention as *inventory.ResourceBusyError and lost connections as
// *inventory.StoreUnavailableError.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(ctx context.Context, repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes the ledger repositories bound to one
// transaction. The same interface, bound to no transaction, serves reads.
type TransactionalRepositories interface {
	Locations() inventory.LocationRepository
	Placements() inventory.PlacementRepository
	Batches() inventory.BatchRepository
	Cells() inventory.LocationCellRepository
	Movements() inventory.StockMovementRepository
	Profiles() inventory.StockProfileRepository
	Alerts() inventory.ReorderAlertRepository
}
