package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReorderStatusCache caches computed reorder statuses. Misses report false
// with a nil error.
type ReorderStatusCache interface {
	Get(ctx context.Context, productID uuid.UUID) (*ReorderStatus, bool, error)
	Set(ctx context.Context, status *ReorderStatus) error
	Invalidate(ctx context.Context, productID uuid.UUID) error
}

// ReorderService combines the demand classifier and the reorder calculator
// into a per-product reorder status, and feeds warranted alerts to the alert ledger.
type ReorderService struct {
	scope      TransactionScope
	reads      TransactionalRepositories
	sales      inventory.SalesSampleReader
	calculator *inventory.ReorderCalculator
	window     time.Duration
	logger     *zap.Logger
	clock      shared.Clock

	alerts *AlertLedger
	cache  ReorderStatusCache
}

// NewReorderService creates a ReorderService sampling sales over window.
func NewReorderService(scope TransactionScope, reads TransactionalRepositories, sales inventory.SalesSampleReader, calculator *inventory.ReorderCalculator, window time.Duration, logger *zap.Logger) *ReorderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if window <= 0 {
		window = inventory.DefaultSalesWindow
	}
	return &ReorderService{
		scope:      scope,
		reads:      reads,
		sales:      sales,
		calculator: calculator,
		window:     window,
		logger:     logger.Named("reorder"),
		clock:      shared.SystemClock,
	}
}

// SetAlertLedger wires alert recording into Evaluate.
func (s *ReorderService) SetAlertLedger(a *AlertLedger) {
	s.alerts = a
}

// SetCache sets the status cache.
func (s *ReorderService) SetCache(c ReorderStatusCache) {
	s.cache = c
}

// SetClock overrides the time source.
func (s *ReorderService) SetClock(c shared.Clock) {
	if c != nil {
		s.clock = c
	}
}

// GetReorderStatus returns the product's reorder status, from cache when fresh.
func (s *ReorderService) GetReorderStatus(ctx context.Context, productID uuid.UUID) (*ReorderStatus, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, productID)
		if err != nil {
			s.logger.Warn("Reorder cache read failed", zap.String("product_id", productID.String()), zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	status, err := s.compute(ctx, productID)
	if err != nil {
		return nil, err
	}
	s.store(ctx, status)
	return status, nil
}

// Evaluate recomputes the status and records an alert at locationID when one
// is warranted. Alert ledger failures are logged, not returned.
func (s *ReorderService) Evaluate(ctx context.Context, productID, locationID uuid.UUID) (*ReorderStatus, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reorder", "evaluate",
		telemetry.WithAttribute("product_id", productID.String()),
	)
	defer span.End()

	status, err := s.compute(ctx, productID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.store(ctx, status)
	telemetry.SetOK(span)

	if status.AlertWarranted && s.alerts != nil {
		if _, _, err := s.alerts.RecordAlert(ctx, productID, locationID, status.TotalQuantity, status.Threshold, status.AlertKind); err != nil {
			s.logger.Warn("Failed to record reorder alert",
				zap.String("product_id", productID.String()),
				zap.String("location_id", locationID.String()),
				zap.Error(err),
			)
		}
	}
	return status, nil
}

// Invalidate drops the cached status of a product.
func (s *ReorderService) Invalidate(ctx context.Context, productID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, productID); err != nil {
		s.logger.Warn("Reorder cache invalidation failed", zap.String("product_id", productID.String()), zap.Error(err))
	}
}

// SetConfiguredCapacity pins the capacity used for reorder sizing. A nil or
// non-positive capacity returns the product to estimated capacity.
func (s *ReorderService) SetConfiguredCapacity(ctx context.Context, productID uuid.UUID, capacity *int64) (*inventory.StockProfile, error) {
	if capacity != nil && *capacity <= 0 {
		capacity = nil
	}
	var profile *inventory.StockProfile
	err := s.scope.Execute(ctx, func(ctx context.Context, repos TransactionalRepositories) error {
		p, err := repos.Profiles().LockOrCreate(ctx, productID)
		if err != nil {
			return err
		}
		p.ConfiguredCapacity = capacity
		p.UpdatedAt = s.clock().UTC()
		if err := repos.Profiles().Save(ctx, p); err != nil {
			return err
		}
		profile = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx, productID)
	return profile, nil
}

func (s *ReorderService) compute(ctx context.Context, productID uuid.UUID) (*ReorderStatus, error) {
	now := s.clock().UTC()
	snap, err := loadSnapshot(ctx, s.reads, productID)
	if err != nil {
		return nil, err
	}

	var (
		configured *int64
		peak       int64
	)
	profile, err := s.reads.Profiles().Find(ctx, productID)
	switch {
	case err == nil:
		configured = profile.ConfiguredCapacity
		peak = profile.PeakQuantity
	case errors.Is(err, shared.ErrNotFound):
	default:
		return nil, err
	}

	sample, err := s.sales.SampleSales(ctx, productID, now.Add(-s.window), now)
	if err != nil {
		return nil, err
	}

	total := snap.sellableTotal(now)
	capacity := s.calculator.EstimateCapacity(configured, peak, snap.displayCapacity())
	class := inventory.ClassifyDemand(sample)
	decision := s.calculator.Evaluate(total, capacity, class)

	return &ReorderStatus{
		ProductID:         productID,
		Sample:            sample,
		VelocityClass:     decision.Class,
		Threshold:         decision.Threshold,
		AlertWarranted:    decision.AlertWarranted,
		AlertKind:         decision.Kind,
		TotalQuantity:     total,
		EstimatedCapacity: capacity,
		EvaluatedAt:       now,
	}, nil
}

func (s *ReorderService) store(ctx context.Context, status *ReorderStatus) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, status); err != nil {
		s.logger.Warn("Reorder cache write failed", zap.String("product_id", status.ProductID.String()), zap.Error(err))
	}
}
