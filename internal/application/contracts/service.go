package contracts

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/steeldragon666/abfi-nextgen-sub001/internal/domain"
	"github.com/steeldragon666/abfi-nextgen-sub001/internal/pkg/apperrors"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Actor is the session caller as seen by the contracts service.
type Actor struct {
	UserID uuid.UUID
	OrgID  uuid.UUID
	Role   string
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == domain.RoleAdmin
}

// Service tracks contracts and their deliveries.
type Service struct {
	DB *gorm.DB

	// Now is injectable for tests; nil means time.Now.
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) loadContract(tx *gorm.DB, actor Actor, contractNumber string) (*domain.Contract, error) {
	var contract domain.Contract
	if err := tx.Where("contract_number = ?", contractNumber).First(&contract).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("Contract not found")
		}
		return nil, err
	}
	if !actor.IsAdmin() && actor.OrgID != contract.BuyerOrgID && actor.OrgID != contract.GrowerOrgID {
		return nil, apperrors.Forbidden("Caller is not a party to this contract")
	}
	return &contract, nil
}

// SignContract records one party's signature. The grower signs first
// (PENDING_GROWER -> PENDING_BUYER), then the buyer (-> ACTIVE).
func (s *Service) SignContract(ctx context.Context, actor Actor, contractNumber string) (*domain.Contract, error) {
	var contract *domain.Contract
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.loadContract(tx, actor, contractNumber)
		if err != nil {
			return err
		}

		now := s.now()
		switch c.Status {
		case domain.ContractStatusPendingGrower:
			if actor.OrgID != c.GrowerOrgID {
				return apperrors.Forbidden("Contract is awaiting the grower's signature")
			}
			updates := map[string]interface{}{
				"grower_signed_at": now,
				"status":           domain.ContractStatusPendingBuyer,
			}
			if err := tx.Model(c).Updates(updates).Error; err != nil {
				return err
			}
			c.GrowerSignedAt = &now
			c.Status = domain.ContractStatusPendingBuyer
		case domain.ContractStatusPendingBuyer:
			if actor.OrgID != c.BuyerOrgID {
				return apperrors.Forbidden("Contract is awaiting the buyer's signature")
			}
			updates := map[string]interface{}{
				"buyer_signed_at": now,
				"status":          domain.ContractStatusActive,
			}
			if err := tx.Model(c).Updates(updates).Error; err != nil {
				return err
			}
			c.BuyerSignedAt = &now
			c.Status = domain.ContractStatusActive
		default:
			return apperrors.InvalidState(fmt.Sprintf("Contract cannot be signed from status %s", c.Status))
		}
		contract = c
		return nil
	})
	return contract, err
}

// Progress is the derived delivery rollup for a contract. It is computed from
// the delivery rows on every read, never stored.
type Progress struct {
	DeliveredVolumeTonnes float64 `json:"delivered_volume_tonnes"`
	CompletionPct         float64 `json:"completion_pct"`
	DeliveriesTotal       int     `json:"deliveries_total"`
	DeliveriesSettled     int     `json:"deliveries_settled"`
}

func computeProgress(contract *domain.Contract, deliveries []domain.Delivery) Progress {
	p := Progress{DeliveriesTotal: len(deliveries)}
	for _, d := range deliveries {
		if d.ActualVolumeTonnes != nil {
			p.DeliveredVolumeTonnes += *d.ActualVolumeTonnes
		}
		if d.Status == domain.DeliveryStatusSettled {
			p.DeliveriesSettled++
		}
	}
	p.DeliveredVolumeTonnes = math.Round(p.DeliveredVolumeTonnes*100) / 100
	if contract.VolumeTonnes > 0 {
		p.CompletionPct = math.Round(p.DeliveredVolumeTonnes/contract.VolumeTonnes*10000) / 100
	}
	return p
}

// ContractView is a contract plus its derived progress.
type ContractView struct {
	domain.Contract
	Progress Progress `json:"progress"`
}

// GetContract returns one contract with its derived progress.
func (s *Service) GetContract(ctx context.Context, actor Actor, contractNumber string) (*ContractView, error) {
	contract, err := s.loadContract(s.DB.WithContext(ctx), actor, contractNumber)
	if err != nil {
		return nil, err
	}
	var deliveries []domain.Delivery
	if err := s.DB.WithContext(ctx).Where("contract_number = ?", contractNumber).Order("sequence ASC").Find(&deliveries).Error; err != nil {
		return nil, err
	}
	return &ContractView{Contract: *contract, Progress: computeProgress(contract, deliveries)}, nil
}

// ListContracts pages through the caller's contracts. role filters to the
// side of the trade ("buyer" or "grower"); admins see everything.
func (s *Service) ListContracts(ctx context.Context, actor Actor, status, role string, limit, offset int) ([]domain.Contract, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	q := s.DB.WithContext(ctx).Model(&domain.Contract{})
	switch {
	case actor.IsAdmin():
	case role == "buyer":
		q = q.Where("buyer_org_id = ?", actor.OrgID)
	case role == "grower":
		q = q.Where("grower_org_id = ?", actor.OrgID)
	default:
		q = q.Where("buyer_org_id = ? OR grower_org_id = ?", actor.OrgID, actor.OrgID)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var contracts []domain.Contract
	if err := q.Order(`"createdAt" DESC`).Limit(limit).Offset(offset).Find(&contracts).Error; err != nil {
		return nil, 0, err
	}
	return contracts, total, nil
}

// GetContractDeliveries returns the contract's deliveries in schedule order
// plus the derived progress.
func (s *Service) GetContractDeliveries(ctx context.Context, actor Actor, contractNumber string) ([]domain.Delivery, Progress, error) {
	contract, err := s.loadContract(s.DB.WithContext(ctx), actor, contractNumber)
	if err != nil {
		return nil, Progress{}, err
	}
	var deliveries []domain.Delivery
	if err := s.DB.WithContext(ctx).Where("contract_number = ?", contractNumber).Order("sequence ASC").Find(&deliveries).Error; err != nil {
		return nil, Progress{}, err
	}
	return deliveries, computeProgress(contract, deliveries), nil
}

// UpdateDeliveryInput carries a delivery status change.
type UpdateDeliveryInput struct {
	DeliveryID         string
	Status             string
	ActualVolumeTonnes *float64
	ActualDate         *time.Time
	QualityResults     map[string]interface{}
	QualityPassed      *bool
	Notes              string
}

// UpdateDeliveryStatus advances one delivery and recomputes the owning
// contract's status from the delivery rows: the first shipment leaving
// SCHEDULED moves an ACTIVE contract to DELIVERING, and the last settled
// shipment completes it.
func (s *Service) UpdateDeliveryStatus(ctx context.Context, actor Actor, in UpdateDeliveryInput) (*domain.Delivery, error) {
	var delivery *domain.Delivery
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d domain.Delivery
		if err := tx.Where("delivery_id = ?", in.DeliveryID).First(&d).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperrors.NotFound("Delivery not found")
			}
			return err
		}
		contract, err := s.loadContract(tx, actor, d.ContractNumber)
		if err != nil {
			return err
		}
		if !domain.ValidDeliveryTransition(d.Status, in.Status) {
			return apperrors.InvalidState(fmt.Sprintf("Delivery cannot move from %s to %s", d.Status, in.Status))
		}

		updates := map[string]interface{}{"status": in.Status}
		if in.Notes != "" {
			updates["notes"] = in.Notes
		}
		switch in.Status {
		case domain.DeliveryStatusDelivered:
			if in.ActualVolumeTonnes == nil || *in.ActualVolumeTonnes <= 0 {
				return apperrors.Validation("actual_volume_tonnes is required when marking a delivery DELIVERED")
			}
			updates["actual_volume_tonnes"] = *in.ActualVolumeTonnes
			actualDate := s.now()
			if in.ActualDate != nil {
				actualDate = *in.ActualDate
			}
			updates["actual_date"] = actualDate
		case domain.DeliveryStatusQualityVerified:
			if in.QualityResults != nil {
				resultsBytes, _ := json.Marshal(in.QualityResults)
				updates["quality_results"] = datatypes.JSON(resultsBytes)
			}
			if in.QualityPassed != nil {
				updates["quality_passed"] = *in.QualityPassed
			}
		}

		if err := tx.Model(&d).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.Where("delivery_id = ?", in.DeliveryID).First(&d).Error; err != nil {
			return err
		}

		if err := s.rollupContract(tx, contract); err != nil {
			return err
		}
		delivery = &d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return delivery, nil
}

// rollupContract re-derives the contract status from its delivery rows.
func (s *Service) rollupContract(tx *gorm.DB, contract *domain.Contract) error {
	var deliveries []domain.Delivery
	if err := tx.Where("contract_number = ?", contract.ContractNumber).Find(&deliveries).Error; err != nil {
		return err
	}
	if len(deliveries) == 0 {
		return nil
	}

	allSettled := true
	anyStarted := false
	for _, d := range deliveries {
		if d.Status != domain.DeliveryStatusSettled {
			allSettled = false
		}
		if d.Status != domain.DeliveryStatusScheduled {
			anyStarted = true
		}
	}

	switch {
	case allSettled && contract.Status != domain.ContractStatusCompleted:
		return tx.Model(contract).Update("status", domain.ContractStatusCompleted).Error
	case anyStarted && contract.Status == domain.ContractStatusActive:
		return tx.Model(contract).Update("status", domain.ContractStatusDelivering).Error
	}
	return nil
}
