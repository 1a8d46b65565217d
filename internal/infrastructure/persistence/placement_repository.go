package persistence

import (
	"context"
	"errors"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPlacementRepository implements PlacementRepository using GORM
type GormPlacementRepository struct {
	db *gorm.DB
}

// NewGormPlacementRepository creates a new GormPlacementRepository
func NewGormPlacementRepository(db *gorm.DB) *GormPlacementRepository {
	return &GormPlacementRepository{db: db}
}

// Find returns the placement of a product at a location
func (r *GormPlacementRepository) Find(ctx context.Context, productID, locationID uuid.UUID) (*inventory.Placement, error) {
	var model models.PlacementModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND location_id = ?", productID, locationID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByProduct lists every placement of a product
func (r *GormPlacementRepository) FindByProduct(ctx context.Context, productID uuid.UUID) ([]inventory.Placement, error) {
	var rows []models.PlacementModel
	if err := r.db.WithContext(ctx).Where("product_id = ?", productID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]inventory.Placement, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Upsert inserts the placement or overwrites its limits
func (r *GormPlacementRepository) Upsert(ctx context.Context, placement *inventory.Placement) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}, {Name: "location_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"capacity", "min_threshold", "updated_at"}),
		}).
		Create(models.PlacementModelFromDomain(placement)).Error
}

var _ inventory.PlacementRepository = (*GormPlacementRepository)(nil)
