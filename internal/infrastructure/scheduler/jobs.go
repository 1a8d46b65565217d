package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	JobNameAlertRetraction = "alert_retraction"
	JobNameExpiryWriteOff  = "expiry_write_off"

	// writeOffActor is recorded on movements created by the write-off job
	writeOffActor = "scheduler"
)

// AlertRetractor deletes alerts whose product has recovered
type AlertRetractor interface {
	RetractResolved(ctx context.Context) (int64, error)
}

// AlertRetractionJob periodically retracts resolved reorder alerts
type AlertRetractionJob struct {
	alerts AlertRetractor
	logger *zap.Logger
}

// NewAlertRetractionJob creates the job
func NewAlertRetractionJob(alerts AlertRetractor, logger *zap.Logger) *AlertRetractionJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertRetractionJob{alerts: alerts, logger: logger}
}

func (j *AlertRetractionJob) Name() string { return JobNameAlertRetraction }

func (j *AlertRetractionJob) Run(ctx context.Context) error {
	n, err := j.alerts.RetractResolved(ctx)
	if err != nil {
		return fmt.Errorf("retract resolved alerts: %w", err)
	}
	if n > 0 {
		j.logger.Info("Retracted resolved alerts", zap.Int64("count", n))
	}
	return nil
}

// ExpiredStockFinder lists products still holding expired units
type ExpiredStockFinder interface {
	ProductsWithExpiredStock(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// ExpiredStockWriter zeroes a product's expired cells
type ExpiredStockWriter interface {
	WriteOffExpired(ctx context.Context, productID uuid.UUID, actor string) (*appinv.WriteOffResult, error)
}

// ExpiryWriteOffJob writes off expired stock product by product. A product
// that fails with a retryable error is left for the next run; the job keeps
// going with the remaining products.
type ExpiryWriteOffJob struct {
	finder ExpiredStockFinder
	writer ExpiredStockWriter
	now    func() time.Time
	logger *zap.Logger
}

// NewExpiryWriteOffJob creates the job
func NewExpiryWriteOffJob(finder ExpiredStockFinder, writer ExpiredStockWriter, logger *zap.Logger) *ExpiryWriteOffJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpiryWriteOffJob{
		finder: finder,
		writer: writer,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

func (j *ExpiryWriteOffJob) Name() string { return JobNameExpiryWriteOff }

func (j *ExpiryWriteOffJob) Run(ctx context.Context) error {
	products, err := j.finder.ProductsWithExpiredStock(ctx, j.now())
	if err != nil {
		return fmt.Errorf("find expired stock: %w", err)
	}

	var (
		units int64
		errs  []error
	)
	for _, productID := range products {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := j.writer.WriteOffExpired(ctx, productID, writeOffActor)
		if err != nil {
			if inventory.IsRetryable(err) {
				j.logger.Warn("Write-off deferred",
					zap.String("product_id", productID.String()),
					zap.Error(err),
				)
				continue
			}
			errs = append(errs, fmt.Errorf("product %s: %w", productID, err))
			continue
		}
		units += res.Quantity
	}

	if units > 0 {
		j.logger.Info("Expired stock written off",
			zap.Int("products", len(products)),
			zap.Int64("units", units),
		)
	}
	return errors.Join(errs...)
}

var (
	_ Job = (*AlertRetractionJob)(nil)
	_ Job = (*ExpiryWriteOffJob)(nil)
)
