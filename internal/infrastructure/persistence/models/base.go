// Package models holds the GORM persistence models of the stock ledger. Domain
// entities carry no ORM tags; each model converts with ToDomain/FromDomain.
package models

import (
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

// BaseModel is the key and audit columns of locations and cells
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func baseFromEntity(e shared.BaseEntity) BaseModel {
	return BaseModel{ID: e.ID, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt}
}

func (m BaseModel) entity() shared.BaseEntity {
	// sqlite hands timestamps back in local time
	return shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()}
}

// All lists the models in foreign key order for AutoMigrate.
func All() []any {
	return []any{
		&LocationModel{},
		&PlacementModel{},
		&BatchModel{},
		&LocationCellModel{},
		&StockMovementModel{},
		&StockProfileModel{},
		&ReorderAlertModel{},
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
