package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StockService runs the stock mutations: sale deductions with display
// replenishment, transfers, receipts and expiry write-offs. Each mutation is
// one transaction. Reorder evaluation, cache invalidation, events and metrics
// happen after commit and never fail the mutation.
type StockService struct {
	scope    TransactionScope
	reads    TransactionalRepositories
	strategy inventory.AllocationStrategy
	logger   *zap.Logger
	clock    shared.Clock

	reorder   *ReorderService
	publisher shared.EventPublisher
	metrics   StockMetrics
}

// NewStockService creates a StockService. reads must not be bound to a transaction.
func NewStockService(scope TransactionScope, reads TransactionalRepositories, strategy inventory.AllocationStrategy, logger *zap.Logger) *StockService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strategy == nil {
		strategy = inventory.NewExpiryFirstStrategy(inventory.DefaultNearExpiryHorizon)
	}
	return &StockService{
		scope:    scope,
		reads:    reads,
		strategy: strategy,
		logger:   logger.Named("stock"),
		clock:    shared.SystemClock,
		metrics:  noopStockMetrics{},
	}
}

// SetReorderService wires post-commit reorder evaluation.
func (s *StockService) SetReorderService(r *ReorderService) {
	s.reorder = r
}

// SetEventPublisher sets the publisher for stock events.
func (s *StockService) SetEventPublisher(p shared.EventPublisher) {
	s.publisher = p
}

// SetMetrics sets the metrics sink.
func (s *StockService) SetMetrics(m StockMetrics) {
	if m != nil {
		s.metrics = m
	}
}

// SetClock overrides the time source.
func (s *StockService) SetClock(c shared.Clock) {
	if c != nil {
		s.clock = c
	}
}

// Deduct removes sold units. Display stock is drawn first, then warehouse
// stock, each in allocation strategy order; expired and online stock is never
// drawn. If the request cannot be met in full nothing changes and an
// *inventory.InsufficientStockError is returned. After the draws every display
// location of the product is checked for replenishment in the same transaction.
func (s *StockService) Deduct(ctx context.Context, req DeductRequest) (*DeductResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock", "deduct",
		telemetry.WithAttribute("product_id", req.ProductID.String()),
		telemetry.WithAttribute("quantity", req.Quantity),
	)
	defer span.End()

	if req.ProductID == uuid.Nil {
		return nil, shared.InvalidInput("Product is required")
	}
	if req.Quantity < 0 {
		return nil, shared.ErrInvalidQuantity
	}
	if req.Quantity == 0 {
		return &DeductResult{Movements: []inventory.StockMovement{}, Replenishments: []inventory.StockMovement{}}, nil
	}

	now := s.clock()
	builder := inventory.NewMovementBuilder(req.ProductID, req.Actor, req.Reference, "", now)
	result := &DeductResult{OperationID: builder.OperationID()}

	err := s.scope.Execute(ctx, func(ctx context.Context, repos TransactionalRepositories) error {
		ledger, err := OpenLedger(ctx, repos, req.ProductID, builder, now)
		if err != nil {
			return err
		}

		if req.Reference != "" {
			replayed, err := s.replay(ctx, repos, req)
			if err != nil {
				return err
			}
			if replayed != nil {
				*result = *replayed
				return nil
			}
		}

		plan, err := inventory.PlanSale(s.strategy, req.ProductID, ledger.Candidates(nil), req.Quantity, now)
		if err != nil {
			return err
		}
		for _, d := range plan.Draws {
			m, err := ledger.Withdraw(ctx, d.Candidate.Cell.ID, d.Quantity, inventory.MovementTypeSaleDeduction)
			if err != nil {
				return err
			}
			result.Movements = append(result.Movements, m)
		}

		for _, display := range ledger.DisplayLocations() {
			moved, err := ledger.Replenish(ctx, s.strategy, display)
			if err != nil {
				return err
			}
			result.Replenishments = append(result.Replenishments, moved...)
		}
		return ledger.Commit(ctx)
	})
	if err != nil {
		s.reject(ctx, "deduct", req.ProductID, err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetOK(span)

	if result.Replayed {
		s.logger.Info("Deduction replayed",
			zap.String("product_id", req.ProductID.String()),
			zap.String("reference", req.Reference),
		)
		return result, nil
	}

	s.logger.Info("Stock deducted",
		zap.String("product_id", req.ProductID.String()),
		zap.Int64("quantity", req.Quantity),
		zap.String("reference", req.Reference),
		zap.Int("replenishments", len(result.Replenishments)),
	)
	events := []shared.DomainEvent{inventory.NewStockMovedEvent(inventory.EventTypeStockDeducted, req.ProductID, result.Movements)}
	if len(result.Replenishments) > 0 {
		events = append(events, inventory.NewStockMovedEvent(inventory.EventTypeDisplayReplenished, req.ProductID, result.Replenishments))
	}
	s.afterCommit(ctx, req.ProductID, primaryLocation(result.Movements), append(result.Movements, result.Replenishments...), events...)
	return result, nil
}

// replay returns the recorded result of a deduction already applied under the
// same reference, or nil. A reference reused for a different quantity is a
// conflict.
func (s *StockService) replay(ctx context.Context, repos TransactionalRepositories, req DeductRequest) (*DeductResult, error) {
	sales, err := repos.Movements().FindByReference(ctx, req.ProductID, inventory.MovementTypeSaleDeduction, req.Reference)
	if err != nil || len(sales) == 0 {
		return nil, err
	}
	operation, err := repos.Movements().FindByOperation(ctx, sales[0].OperationID)
	if err != nil {
		return nil, err
	}
	res := &DeductResult{
		OperationID:    sales[0].OperationID,
		Movements:      []inventory.StockMovement{},
		Replenishments: []inventory.StockMovement{},
		Replayed:       true,
	}
	var sold int64
	for _, m := range operation {
		switch m.MovementType {
		case inventory.MovementTypeSaleDeduction:
			res.Movements = append(res.Movements, m)
			sold += m.Quantity
		case inventory.MovementTypeWarehouseToDisplay:
			res.Replenishments = append(res.Replenishments, m)
		}
	}
	if sold != req.Quantity {
		return nil, shared.NewDomainError(shared.CodeAlreadyExists,
			fmt.Sprintf("Sale reference %s was already recorded for %d units", req.Reference, sold))
	}
	return res, nil
}

// Transfer moves sellable units of a product between two locations, drawing
// batches in allocation strategy order.
func (s *StockService) Transfer(ctx context.Context, req TransferRequest) ([]inventory.StockMovement, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock", "transfer",
		telemetry.WithAttribute("product_id", req.ProductID.String()),
		telemetry.WithAttribute("quantity", req.Quantity),
	)
	defer span.End()

	if req.ProductID == uuid.Nil {
		return nil, shared.InvalidInput("Product is required")
	}
	if req.FromLocationID == req.ToLocationID {
		return nil, &inventory.InvalidTransferError{Reason: "source and destination are the same location"}
	}
	if req.Quantity <= 0 {
		return nil, &inventory.InvalidTransferError{Reason: "quantity must be positive"}
	}

	now := s.clock()
	builder := inventory.NewMovementBuilder(req.ProductID, req.Actor, "", req.Note, now)
	var movements []inventory.StockMovement

	err := s.scope.Execute(ctx, func(ctx context.Context, repos TransactionalRepositories) error {
		ledger, err := OpenLedger(ctx, repos, req.ProductID, builder, now)
		if err != nil {
			return err
		}
		if _, err := ledger.Location(ctx, req.FromLocationID); err != nil {
			return err
		}
		dest, err := ledger.Location(ctx, req.ToLocationID)
		if err != nil {
			return err
		}

		source := s.strategy.Order(ledger.Candidates(func(c *inventory.LocationCell, _ inventory.LocationKind) bool {
			return c.LocationID == req.FromLocationID
		}), now)
		available := inventory.SellableQuantity(source, now)
		if req.Quantity > available {
			from := req.FromLocationID
			return &inventory.InsufficientStockError{
				ProductID:  req.ProductID,
				LocationID: &from,
				Available:  available,
				Requested:  req.Quantity,
			}
		}
		limits := ledger.Limits(dest)
		if err := inventory.CheckCapacity(req.ProductID, dest.ID, dest.Kind, limits.Capacity, ledger.GetQuantity(dest.ID), req.Quantity); err != nil {
			return err
		}

		plan := inventory.PlanDraws(source, req.Quantity)
		for _, d := range plan.Draws {
			m, err := ledger.Move(ctx, d.Candidate.Cell.ID, dest, d.Quantity, inventory.MovementTypeTransfer)
			if err != nil {
				return err
			}
			movements = append(movements, m)
		}
		return ledger.Commit(ctx)
	})
	if err != nil {
		s.reject(ctx, "transfer", req.ProductID, err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetOK(span)

	s.logger.Info("Stock transferred",
		zap.String("product_id", req.ProductID.String()),
		zap.String("from", req.FromLocationID.String()),
		zap.String("to", req.ToLocationID.String()),
		zap.Int64("quantity", req.Quantity),
	)
	s.afterCommit(ctx, req.ProductID, uuid.Nil, movements,
		inventory.NewStockMovedEvent(inventory.EventTypeStockTransferred, req.ProductID, movements))
	return movements, nil
}

// ReceiveBatch records a new batch and stocks it at its initial location.
func (s *StockService) ReceiveBatch(ctx context.Context, req ReceiveBatchRequest) (*inventory.Batch, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock", "receive_batch",
		telemetry.WithAttribute("product_id", req.ProductID.String()),
		telemetry.WithAttribute("quantity", req.Quantity),
	)
	defer span.End()

	batch, err := inventory.NewBatch(req.ProductID, req.BatchNumber, req.ExpiryDate, req.AcquisitionDate, req.Quantity, req.UnitSellPrice)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	builder := inventory.NewMovementBuilder(req.ProductID, req.Actor, req.Reference, "batch "+batch.BatchNumber, now)
	var movements []inventory.StockMovement

	err = s.scope.Execute(ctx, func(ctx context.Context, repos TransactionalRepositories) error {
		ledger, err := OpenLedger(ctx, repos, req.ProductID, builder, now)
		if err != nil {
			return err
		}
		loc, err := ledger.Location(ctx, req.LocationID)
		if err != nil {
			return err
		}
		if err := repos.Batches().Create(ctx, batch); err != nil {
			return err
		}
		m, err := ledger.Deposit(ctx, batch, loc, req.Quantity, inventory.MovementTypeReceipt)
		if err != nil {
			return err
		}
		movements = append(movements, m)
		return ledger.Commit(ctx)
	})
	if err != nil {
		s.reject(ctx, "receive_batch", req.ProductID, err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetOK(span)

	s.logger.Info("Batch received",
		zap.String("product_id", req.ProductID.String()),
		zap.String("batch_id", batch.ID.String()),
		zap.String("batch_number", batch.BatchNumber),
		zap.Int64("quantity", req.Quantity),
	)
	s.afterCommit(ctx, req.ProductID, req.LocationID, movements,
		inventory.NewStockMovedEvent(inventory.EventTypeBatchReceived, req.ProductID, movements))
	return batch, nil
}

// WriteOffExpired zeroes every expired cell of a product in place. The cells
// and batches stay on the ledger.
func (s *StockService) WriteOffExpired(ctx context.Context, productID uuid.UUID, actor string) (*WriteOffResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock", "write_off_expired",
		telemetry.WithAttribute("product_id", productID.String()),
	)
	defer span.End()

	now := s.clock()
	builder := inventory.NewMovementBuilder(productID, actor, "", "expired", now)
	result := &WriteOffResult{OperationID: builder.OperationID(), Movements: []inventory.StockMovement{}}

	err := s.scope.Execute(ctx, func(ctx context.Context, repos TransactionalRepositories) error {
		ledger, err := OpenLedger(ctx, repos, productID, builder, now)
		if err != nil {
			return err
		}
		expired := ledger.Candidates(func(c *inventory.LocationCell, _ inventory.LocationKind) bool {
			return c.CurrentQuantity > 0
		})
		for _, c := range expired {
			if c.Batch == nil || !c.Batch.IsExpired(now) {
				continue
			}
			m, err := ledger.Withdraw(ctx, c.Cell.ID, c.Cell.CurrentQuantity, inventory.MovementTypeExpiryWriteOff)
			if err != nil {
				return err
			}
			result.Movements = append(result.Movements, m)
			result.Quantity += m.Quantity
		}
		return ledger.Commit(ctx)
	})
	if err != nil {
		s.reject(ctx, "write_off_expired", productID, err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetOK(span)

	if len(result.Movements) == 0 {
		return result, nil
	}
	s.logger.Info("Expired stock written off",
		zap.String("product_id", productID.String()),
		zap.Int64("quantity", result.Quantity),
	)
	s.afterCommit(ctx, productID, primaryLocation(result.Movements), result.Movements,
		inventory.NewStockMovedEvent(inventory.EventTypeExpiredWrittenOff, productID, result.Movements))
	return result, nil
}

// GetQuantity returns on-hand quantity of a product at one location.
func (s *StockService) GetQuantity(ctx context.Context, productID, locationID uuid.UUID) (int64, error) {
	return s.reads.Cells().SumQuantity(ctx, productID, locationID)
}

// GetStockSummary reports on-hand, sellable and expired quantity per location.
func (s *StockService) GetStockSummary(ctx context.Context, productID uuid.UUID) (*StockSummary, error) {
	snap, err := loadSnapshot(ctx, s.reads, productID)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	summary := &StockSummary{ProductID: productID, Locations: make([]LocationStock, 0)}
	rows := make(map[uuid.UUID]*LocationStock)
	order := make([]uuid.UUID, 0)

	row := func(loc *inventory.Location) *LocationStock {
		if r, ok := rows[loc.ID]; ok {
			return r
		}
		limits := inventory.EffectiveLimits(loc, snap.placements[loc.ID])
		r := &LocationStock{
			LocationID:   loc.ID,
			Code:         loc.Code,
			Kind:         loc.Kind,
			Capacity:     limits.Capacity,
			MinThreshold: limits.MinThreshold,
		}
		rows[loc.ID] = r
		order = append(order, loc.ID)
		return r
	}

	for _, c := range snap.cells {
		loc, ok := snap.locations[c.LocationID]
		if !ok {
			continue
		}
		r := row(loc)
		r.OnHand += c.CurrentQuantity
		if b := snap.batches[c.BatchID]; b != nil && b.IsExpired(now) {
			r.Expired += c.CurrentQuantity
		} else {
			r.Sellable += c.CurrentQuantity
		}
	}
	for locID := range snap.placements {
		if loc, ok := snap.locations[locID]; ok {
			row(loc)
		}
	}

	for _, id := range order {
		r := rows[id]
		summary.Locations = append(summary.Locations, *r)
		summary.TotalQuantity += r.OnHand
		summary.SellableQuantity += r.Sellable
		summary.ExpiredQuantity += r.Expired
	}
	return summary, nil
}

// ListMovements returns the movement history of a product, newest first.
func (s *StockService) ListMovements(ctx context.Context, filter inventory.MovementFilter) ([]inventory.StockMovement, error) {
	if filter.Limit <= 0 || filter.Limit > 1000 {
		filter.Limit = inventory.DefaultMovementLimit
	}
	return s.reads.Movements().Find(ctx, filter)
}

func (s *StockService) reject(ctx context.Context, operation string, productID uuid.UUID, err error) {
	code := inventory.ErrorCode(err)
	var domainErr *shared.DomainError
	if code == "" && errors.As(err, &domainErr) {
		code = domainErr.Code
	}
	if code == "" {
		s.logger.Error("Stock operation failed",
			zap.String("operation", operation),
			zap.String("product_id", productID.String()),
			zap.Error(err),
		)
		code = "INTERNAL"
	} else {
		s.logger.Warn("Stock operation rejected",
			zap.String("operation", operation),
			zap.String("product_id", productID.String()),
			zap.String("code", code),
			zap.Error(err),
		)
	}
	s.metrics.RecordRejection(ctx, operation, code)
}

// afterCommit runs the best-effort follow-ups of a committed mutation.
// A nil alertLocation skips reorder evaluation.
func (s *StockService) afterCommit(ctx context.Context, productID, alertLocation uuid.UUID, movements []inventory.StockMovement, events ...shared.DomainEvent) {
	recordMovements(ctx, s.metrics, movements)

	if s.reorder != nil {
		s.reorder.Invalidate(ctx, productID)
		if alertLocation != uuid.Nil {
			if _, err := s.reorder.Evaluate(ctx, productID, alertLocation); err != nil {
				s.logger.Warn("Reorder evaluation failed",
					zap.String("product_id", productID.String()),
					zap.Error(err),
				)
			}
		}
	}

	if s.publisher != nil && len(events) > 0 {
		if err := s.publisher.Publish(ctx, events...); err != nil {
			s.logger.Warn("Failed to publish stock events",
				zap.String("product_id", productID.String()),
				zap.Error(err),
			)
		}
	}
}

func primaryLocation(movements []inventory.StockMovement) uuid.UUID {
	for _, m := range movements {
		if m.FromLocationID != nil {
			return *m.FromLocationID
		}
		if m.ToLocationID != nil {
			return *m.ToLocationID
		}
	}
	return uuid.Nil
}
