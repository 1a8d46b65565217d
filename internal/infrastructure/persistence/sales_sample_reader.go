package persistence

import (
	"context"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSalesSampleReader derives sales samples from the movement journal. A
// transaction is one sale deduction operation; units are the quantities it drew.
type GormSalesSampleReader struct {
	db *gorm.DB
}

// NewGormSalesSampleReader creates a new GormSalesSampleReader
func NewGormSalesSampleReader(db *gorm.DB) *GormSalesSampleReader {
	return &GormSalesSampleReader{db: db}
}

// SampleSales aggregates sale deductions of a product in [since, until]
func (r *GormSalesSampleReader) SampleSales(ctx context.Context, productID uuid.UUID, since, until time.Time) (inventory.SalesSample, error) {
	var agg struct {
		Transactions int64 `gorm:"column:transactions"`
		Units        int64 `gorm:"column:units"`
	}
	err := r.db.WithContext(ctx).
		Model(&models.StockMovementModel{}).
		Select("COUNT(DISTINCT operation_id) AS transactions, COALESCE(SUM(quantity), 0) AS units").
		Where("product_id = ? AND movement_type = ? AND created_at >= ? AND created_at <= ?",
			productID, string(inventory.MovementTypeSaleDeduction), since.UTC(), until.UTC()).
		Scan(&agg).Error
	if err != nil {
		return inventory.SalesSample{}, err
	}
	return inventory.SalesSample{
		ProductID:        productID,
		TransactionCount: agg.Transactions,
		UnitsSold:        agg.Units,
		WindowStart:      since.UTC(),
		WindowEnd:        until.UTC(),
	}, nil
}

var _ inventory.SalesSampleReader = (*GormSalesSampleReader)(nil)
