package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStockProfileRepository implements StockProfileRepository using GORM
type GormStockProfileRepository struct {
	db *gorm.DB
}

// NewGormStockProfileRepository creates a new GormStockProfileRepository
func NewGormStockProfileRepository(db *gorm.DB) *GormStockProfileRepository {
	return &GormStockProfileRepository{db: db}
}

// LockOrCreate inserts the profile if missing, then selects it FOR UPDATE.
// Concurrent mutations of the same product queue on this row.
func (r *GormStockProfileRepository) LockOrCreate(ctx context.Context, productID uuid.UUID) (*inventory.StockProfile, error) {
	seed := &models.StockProfileModel{ProductID: productID, UpdatedAt: time.Now().UTC()}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(seed).Error; err != nil {
		return nil, err
	}

	var model models.StockProfileModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ?", productID).
		First(&model).Error; err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// Find returns a product's profile without locking
func (r *GormStockProfileRepository) Find(ctx context.Context, productID uuid.UUID) (*inventory.StockProfile, error) {
	var model models.StockProfileModel
	if err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save writes the profile
func (r *GormStockProfileRepository) Save(ctx context.Context, profile *inventory.StockProfile) error {
	return r.db.WithContext(ctx).
		Model(&models.StockProfileModel{}).
		Where("product_id = ?", profile.ProductID).
		Updates(map[string]any{
			"peak_quantity":       profile.PeakQuantity,
			"configured_capacity": profile.ConfiguredCapacity,
			"updated_at":          profile.UpdatedAt.UTC(),
		}).Error
}

var _ inventory.StockProfileRepository = (*GormStockProfileRepository)(nil)
