package persistence

import (
	"context"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLocationCellRepository implements LocationCellRepository using GORM
type GormLocationCellRepository struct {
	db *gorm.DB
}

// NewGormLocationCellRepository creates a new GormLocationCellRepository
func NewGormLocationCellRepository(db *gorm.DB) *GormLocationCellRepository {
	return &GormLocationCellRepository{db: db}
}

// FindByProductForUpdate loads every cell of a product with SELECT ... FOR UPDATE, in id order
func (r *GormLocationCellRepository) FindByProductForUpdate(ctx context.Context, productID uuid.UUID) ([]inventory.LocationCell, error) {
	var rows []models.LocationCellModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ?", productID).
		Order("id").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toCells(rows), nil
}

// FindByProduct loads every cell of a product without locking
func (r *GormLocationCellRepository) FindByProduct(ctx context.Context, productID uuid.UUID) ([]inventory.LocationCell, error) {
	var rows []models.LocationCellModel
	if err := r.db.WithContext(ctx).Where("product_id = ?", productID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toCells(rows), nil
}

// FindByProductAndLocation loads a product's cells at one location
func (r *GormLocationCellRepository) FindByProductAndLocation(ctx context.Context, productID, locationID uuid.UUID) ([]inventory.LocationCell, error) {
	var rows []models.LocationCellModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND location_id = ?", productID, locationID).
		Order("id").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toCells(rows), nil
}

// SumQuantity totals on-hand quantity of a product at a location
func (r *GormLocationCellRepository) SumQuantity(ctx context.Context, productID, locationID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.LocationCellModel{}).
		Select("COALESCE(SUM(current_quantity), 0)").
		Where("product_id = ? AND location_id = ?", productID, locationID).
		Scan(&total).Error
	return total, err
}

// ProductsWithExpiredStock lists products that still hold units of a batch expired at now
func (r *GormLocationCellRepository) ProductsWithExpiredStock(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.LocationCellModel{}).
		Distinct("location_cells.product_id").
		Joins("JOIN batches ON batches.id = location_cells.batch_id").
		Where("location_cells.current_quantity > 0 AND batches.expiry_date IS NOT NULL AND batches.expiry_date <= ?", now.UTC()).
		Pluck("location_cells.product_id", &ids).Error
	return ids, err
}

// Create inserts a new cell
func (r *GormLocationCellRepository) Create(ctx context.Context, cell *inventory.LocationCell) error {
	return r.db.WithContext(ctx).Create(models.LocationCellModelFromDomain(cell)).Error
}

// UpdateQuantity writes a cell's current quantity
func (r *GormLocationCellRepository) UpdateQuantity(ctx context.Context, cell *inventory.LocationCell) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.LocationCellModel{}).
		Where("id = ?", cell.ID).
		Updates(map[string]any{
			"current_quantity": cell.CurrentQuantity,
			"updated_at":       now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NotFound("Location cell")
	}
	cell.UpdatedAt = now
	return nil
}

func toCells(rows []models.LocationCellModel) []inventory.LocationCell {
	out := make([]inventory.LocationCell, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

var _ inventory.LocationCellRepository = (*GormLocationCellRepository)(nil)
