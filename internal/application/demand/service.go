package demand

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

type PublishSignalInput struct {
	BuyerOrgID         uuid.UUID
	FeedstockCategory  string
	AnnualVolumeTonnes float64
	DeliveryLat        *float64
	DeliveryLng        *float64
	MaxTransportKm     *float64
	MaxPricePerTonne   *float64
	RequiredStartDate  *time.Time
}

// PublishSignal creates a new active demand signal for the buyer org.
func (s *Service) PublishSignal(ctx context.Context, in PublishSignalInput) (*domain.DemandSignal, error) {
	if in.BuyerOrgID == uuid.Nil {
		return nil, apperrors.Forbidden("User not associated with a buyer organisation")
	}
	if in.FeedstockCategory == "" {
		return nil, apperrors.Validation("feedstock_category is required")
	}
	if in.AnnualVolumeTonnes <= 0 {
		return nil, apperrors.Validation("annual_volume_tonnes must be a positive number")
	}
	if in.MaxTransportKm != nil && *in.MaxTransportKm <= 0 {
		return nil, apperrors.Validation("max_transport_km must be a positive number")
	}
	if in.MaxPricePerTonne != nil && *in.MaxPricePerTonne <= 0 {
		return nil, apperrors.Validation("max_price_per_tonne must be a positive number")
	}

	signal := &domain.DemandSignal{
		BuyerOrgID:         in.BuyerOrgID,
		FeedstockCategory:  in.FeedstockCategory,
		AnnualVolumeTonnes: in.AnnualVolumeTonnes,
		DeliveryLat:        in.DeliveryLat,
		DeliveryLng:        in.DeliveryLng,
		MaxTransportKm:     in.MaxTransportKm,
		MaxPricePerTonne:   in.MaxPricePerTonne,
		RequiredStartDate:  in.RequiredStartDate,
		Status:             domain.DemandStatusActive,
	}
	if err := s.DB.WithContext(ctx).Create(signal).Error; err != nil {
		return nil, fmt.Errorf("Failed to create demand signal: %v", err)
	}
	return signal, nil
}

// GetOrgSignals lists the org's demand signals, newest first.
func (s *Service) GetOrgSignals(ctx context.Context, orgID uuid.UUID) ([]domain.DemandSignal, error) {
	if orgID == uuid.Nil {
		return nil, apperrors.Forbidden("User not associated with an organisation")
	}
	var signals []domain.DemandSignal
	if err := s.DB.WithContext(ctx).Where("buyer_org_id = ?", orgID).Order(`"createdAt" DESC`).Find(&signals).Error; err != nil {
		return nil, err
	}
	return signals, nil
}

// GetSignal fetches one signal; only the owning buyer or an admin may read it.
func (s *Service) GetSignal(ctx context.Context, orgID uuid.UUID, isAdmin bool, signalID uuid.UUID) (*domain.DemandSignal, error) {
	var signal domain.DemandSignal
	if err := s.DB.WithContext(ctx).Where("demand_signal_id = ?", signalID).First(&signal).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("Demand signal not found")
		}
		return nil, err
	}
	if !isAdmin && signal.BuyerOrgID != orgID {
		return nil, apperrors.Forbidden("Caller is not the owning buyer of this demand signal")
	}
	return &signal, nil
}

// WithdrawSignal retires a signal. A signal with generated matches is
// immutable for its owner; only an admin may withdraw it then.
func (s *Service) WithdrawSignal(ctx context.Context, orgID uuid.UUID, isAdmin bool, signalID uuid.UUID) (*domain.DemandSignal, error) {
	var signal domain.DemandSignal
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("demand_signal_id = ?", signalID).First(&signal).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperrors.NotFound("Demand signal not found")
			}
			return err
		}
		if !isAdmin && signal.BuyerOrgID != orgID {
			return apperrors.Forbidden("Caller is not the owning buyer of this demand signal")
		}
		if signal.Status != domain.DemandStatusActive {
			return apperrors.InvalidState("Demand signal is already withdrawn")
		}

		if !isAdmin {
			var matchCount int64
			if err := tx.Model(&domain.Match{}).Where("demand_signal_id = ?", signalID).Count(&matchCount).Error; err != nil {
				return err
			}
			if matchCount > 0 {
				return apperrors.Forbidden("Signal has generated matches; withdrawal requires an administrator")
			}
		}

		if err := tx.Model(&signal).Update("status", domain.DemandStatusWithdrawn).Error; err != nil {
			return err
		}
		signal.Status = domain.DemandStatusWithdrawn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &signal, nil
}
