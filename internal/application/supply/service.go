package supply

import (
	"context"
	"fmt"
	"time"

	"github.com/steeldragon666/abfi-nextgen-sub001/internal/domain"
	"github.com/steeldragon666/abfi-nextgen-sub001/internal/pkg/apperrors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Service struct {
	DB *gorm.DB
}

type CreateListingInput struct {
	GrowerOrgID           uuid.UUID
	FeedstockCategory     string
	AvailableVolumeTonnes float64
	AskingPricePerTonne   *float64
	AvailableFrom         *time.Time
	Lat                   float64
	Lng                   float64
	CarbonIntensity       *float64
}

// CreateListing registers a grower's available or projected volume.
func (s *Service) CreateListing(ctx context.Context, in CreateListingInput) (*domain.SupplyListing, error) {
	if in.GrowerOrgID == uuid.Nil {
		return nil, apperrors.Forbidden("User not associated with a grower organisation")
	}
	if in.FeedstockCategory == "" {
		return nil, apperrors.Validation("feedstock_category is required")
	}
	if in.AvailableVolumeTonnes <= 0 {
		return nil, apperrors.Validation("available_volume_tonnes must be a positive number")
	}
	if in.AskingPricePerTonne != nil && *in.AskingPricePerTonne <= 0 {
		return nil, apperrors.Validation("asking_price_per_tonne must be a positive number")
	}

	listing := &domain.SupplyListing{
		GrowerOrgID:           in.GrowerOrgID,
		FeedstockCategory:     in.FeedstockCategory,
		AvailableVolumeTonnes: in.AvailableVolumeTonnes,
		AskingPricePerTonne:   in.AskingPricePerTonne,
		AvailableFrom:         in.AvailableFrom,
		Lat:                   in.Lat,
		Lng:                   in.Lng,
		CarbonIntensity:       in.CarbonIntensity,
		Status:                domain.SupplyStatusActive,
	}
	if err := s.DB.WithContext(ctx).Create(listing).Error; err != nil {
		return nil, fmt.Errorf("Failed to create supply listing: %v", err)
	}
	return listing, nil
}

// GetOrgListings lists the grower org's listings, newest first.
func (s *Service) GetOrgListings(ctx context.Context, orgID uuid.UUID) ([]domain.SupplyListing, error) {
	if orgID == uuid.Nil {
		return nil, apperrors.Forbidden("User not associated with an organisation")
	}
	var listings []domain.SupplyListing
	if err := s.DB.WithContext(ctx).Where("grower_org_id = ?", orgID).Order(`"createdAt" DESC`).Find(&listings).Error; err != nil {
		return nil, err
	}
	return listings, nil
}

// GetActiveListings lists every active listing, optionally by category.
func (s *Service) GetActiveListings(ctx context.Context, category string) ([]domain.SupplyListing, error) {
	q := s.DB.WithContext(ctx).Where("status = ?", domain.SupplyStatusActive)
	if category != "" {
		q = q.Where("feedstock_category = ?", category)
	}
	var listings []domain.SupplyListing
	if err := q.Order(`"createdAt" DESC`).Find(&listings).Error; err != nil {
		return nil, err
	}
	return listings, nil
}

// PauseListing takes a listing off the matching pool without closing it.
func (s *Service) PauseListing(ctx context.Context, orgID uuid.UUID, isAdmin bool, supplyID uuid.UUID) (*domain.SupplyListing, error) {
	var listing domain.SupplyListing
	if err := s.DB.WithContext(ctx).Where("supply_id = ?", supplyID).First(&listing).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("Supply listing not found")
		}
		return nil, err
	}
	if !isAdmin && listing.GrowerOrgID != orgID {
		return nil, apperrors.Forbidden("Caller does not own this supply listing")
	}
	if listing.Status != domain.SupplyStatusActive {
		return nil, apperrors.InvalidState(fmt.Sprintf("Listing cannot be paused from status %s", listing.Status))
	}
	if err := s.DB.WithContext(ctx).Model(&listing).Update("status", domain.SupplyStatusPaused).Error; err != nil {
		return nil, err
	}
	listing.Status = domain.SupplyStatusPaused
	return &listing, nil
}
