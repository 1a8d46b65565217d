package persistence

import (
	"context"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormReorderAlertRepository implements ReorderAlertRepository using GORM
type GormReorderAlertRepository struct {
	db *gorm.DB
}

// NewGormReorderAlertRepository creates a new GormReorderAlertRepository
func NewGormReorderAlertRepository(db *gorm.DB) *GormReorderAlertRepository {
	return &GormReorderAlertRepository{db: db}
}

// CreateIfAbsent inserts the alert unless (product, location, alert_date) exists
func (r *GormReorderAlertRepository) CreateIfAbsent(ctx context.Context, alert *inventory.ReorderAlert) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}, {Name: "location_id"}, {Name: "alert_date"}},
			DoNothing: true,
		}).
		Create(models.ReorderAlertModelFromDomain(alert))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindCreatedBefore lists alerts created at or before cutoff
func (r *GormReorderAlertRepository) FindCreatedBefore(ctx context.Context, cutoff time.Time) ([]inventory.ReorderAlert, error) {
	var rows []models.ReorderAlertModel
	if err := r.db.WithContext(ctx).
		Where("created_at <= ?", cutoff.UTC()).
		Order("created_at").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toAlerts(rows), nil
}

// FindByProduct lists a product's alerts, newest first
func (r *GormReorderAlertRepository) FindByProduct(ctx context.Context, productID uuid.UUID) ([]inventory.ReorderAlert, error) {
	var rows []models.ReorderAlertModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toAlerts(rows), nil
}

// FindAll lists alerts, newest first
func (r *GormReorderAlertRepository) FindAll(ctx context.Context, limit int) ([]inventory.ReorderAlert, error) {
	var rows []models.ReorderAlertModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toAlerts(rows), nil
}

// DeleteByIDs deletes alerts by id and returns the number removed
func (r *GormReorderAlertRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.ReorderAlertModel{})
	return result.RowsAffected, result.Error
}

func toAlerts(rows []models.ReorderAlertModel) []inventory.ReorderAlert {
	out := make([]inventory.ReorderAlert, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

var _ inventory.ReorderAlertRepository = (*GormReorderAlertRepository)(nil)
