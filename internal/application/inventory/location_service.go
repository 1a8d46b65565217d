package inventory

import (
	"context"
	"errors"
	"strings"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LocationService manages the location registry and product placements.
type LocationService struct {
	repos  TransactionalRepositories
	logger *zap.Logger
}

// NewLocationService creates a new LocationService
func NewLocationService(repos TransactionalRepositories, logger *zap.Logger) *LocationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocationService{repos: repos, logger: logger.Named("locations")}
}

// CreateLocation registers a location. Codes are unique, case-insensitively.
func (s *LocationService) CreateLocation(ctx context.Context, req CreateLocationRequest) (*inventory.Location, error) {
	loc, err := inventory.NewLocation(req.Code, req.Name, req.Kind, req.DefaultCapacity, req.DefaultMinThreshold)
	if err != nil {
		return nil, err
	}
	_, err = s.repos.Locations().FindByCode(ctx, loc.Code)
	if err == nil {
		return nil, shared.AlreadyExists("Location", loc.Code)
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if err := s.repos.Locations().Save(ctx, loc); err != nil {
		return nil, err
	}
	s.logger.Info("Location created",
		zap.String("location_id", loc.ID.String()),
		zap.String("code", loc.Code),
		zap.String("kind", loc.Kind.String()),
	)
	return loc, nil
}

// GetLocation returns a location by id.
func (s *LocationService) GetLocation(ctx context.Context, id uuid.UUID) (*inventory.Location, error) {
	return s.repos.Locations().FindByID(ctx, id)
}

// ListLocations lists locations, optionally of one kind.
func (s *LocationService) ListLocations(ctx context.Context, kind string) ([]inventory.Location, error) {
	if kind == "" {
		return s.repos.Locations().FindAll(ctx)
	}
	k := inventory.LocationKind(strings.ToUpper(kind))
	if !k.IsValid() {
		return nil, shared.InvalidInput("Unknown location kind: "+kind)
	}
	return s.repos.Locations().FindByKind(ctx, k)
}

// SetPlacement sets a product's capacity and replenishment trigger at a
// location. Lowering capacity below current stock is allowed; the cap only
// blocks further increases.
func (s *LocationService) SetPlacement(ctx context.Context, productID, locationID uuid.UUID, capacity, minThreshold int64) (*inventory.Placement, error) {
	if _, err := s.repos.Locations().FindByID(ctx, locationID); err != nil {
		return nil, err
	}
	p, err := inventory.NewPlacement(productID, locationID, capacity, minThreshold)
	if err != nil {
		return nil, err
	}
	if err := s.repos.Placements().Upsert(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("Placement set",
		zap.String("product_id", productID.String()),
		zap.String("location_id", locationID.String()),
		zap.Int64("capacity", capacity),
		zap.Int64("min_threshold", minThreshold),
	)
	return p, nil
}

// GetPlacements lists a product's placements.
func (s *LocationService) GetPlacements(ctx context.Context, productID uuid.UUID) ([]inventory.Placement, error) {
	return s.repos.Placements().FindByProduct(ctx, productID)
}
