package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// VelocityClass buckets a product by recent demand.
type VelocityClass string

const (
	VelocityFast   VelocityClass = "FAST"
	VelocityMedium VelocityClass = "MEDIUM"
	VelocitySlow   VelocityClass = "SLOW"
	VelocityNew    VelocityClass = "NEW"
)

// DefaultSalesWindow is the trailing window used for demand sampling.
const DefaultSalesWindow = 30 * 24 * time.Hour

// SalesSample is the trailing-window sales aggregate for one product.
type SalesSample struct {
	ProductID        uuid.UUID `json:"product_id"`
	TransactionCount int64     `json:"transaction_count"`
	UnitsSold        int64     `json:"units_sold"`
	WindowStart      time.Time `json:"window_start"`
	WindowEnd        time.Time `json:"window_end"`
}

// SalesSampleReader reads sales aggregates. The ledger's own sale movements
// back the default implementation; an external sales system may replace it.
type SalesSampleReader interface {
	SampleSales(ctx context.Context, productID uuid.UUID, since, until time.Time) (SalesSample, error)
}

// ClassifyDemand maps a sample to a velocity class. Either signal alone can
// promote a product; the higher class wins.
func ClassifyDemand(s SalesSample) VelocityClass {
	t, u := s.TransactionCount, s.UnitsSold
	switch {
	case t >= 10 || u >= 50:
		return VelocityFast
	case t >= 3 || u >= 15:
		return VelocityMedium
	case t >= 1 || u >= 1:
		return VelocitySlow
	default:
		return VelocityNew
	}
}
