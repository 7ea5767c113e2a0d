package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Contract statuses.
const (
	ContractStatusDraft         = "DRAFT"
	ContractStatusPendingGrower = "PENDING_GROWER"
	ContractStatusPendingBuyer  = "PENDING_BUYER"
	ContractStatusActive        = "ACTIVE"
	ContractStatusDelivering    = "DELIVERING"
	ContractStatusCompleted     = "COMPLETED"
	ContractStatusDisputed      = "DISPUTED"
	ContractStatusCancelled     = "CANCELLED"
)

// Payment terms accepted on a contract.
const (
	PaymentUpfront    = "UPFRONT"
	PaymentOnDelivery = "ON_DELIVERY"
	PaymentNet30      = "NET_30"
	PaymentMilestone  = "MILESTONE"
)

// ValidPaymentTerms reports whether terms is one of the accepted values.
func ValidPaymentTerms(terms string) bool {
	switch terms {
	case PaymentUpfront, PaymentOnDelivery, PaymentNet30, PaymentMilestone:
		return true
	}
	return false
}

// DefaultIncoterm is applied when the accept terms leave it unset.
const DefaultIncoterm = "DAP"

// ScheduleEntry is one agreed shipment: a date and a volume. Entry volumes
// must sum to the contract volume.
type ScheduleEntry struct {
	Date         time.Time `json:"date"`
	VolumeTonnes float64   `json:"volume_tonnes"`
}

// DeliverySchedule stores the ordered shipment plan as a json column.
type DeliverySchedule []ScheduleEntry

// Scan implements sql.Scanner for reading from DB (json column).
func (s *DeliverySchedule) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return errors.New("unsupported type for DeliverySchedule")
	}
}

// Value implements driver.Valuer for writing to DB.
func (s DeliverySchedule) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	bs, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(bs), nil
}

// TotalVolume sums the scheduled volumes.
func (s DeliverySchedule) TotalVolume() float64 {
	total := 0.0
	for _, e := range s {
		total += e.VolumeTonnes
	}
	return total
}

// Contract is a binding agreement created from an accepted match.
// TotalValue is always volume x price; delivered volume is derived from the
// Delivery rows, never stored here.
type Contract struct {
	ContractNumber   string           `gorm:"column:contract_number;type:varchar(30);primaryKey" json:"contract_number"`
	MatchID          string           `gorm:"column:match_id;type:varchar(30);not null;uniqueIndex" json:"match_id"`
	BuyerOrgID       uuid.UUID        `gorm:"column:buyer_org_id;type:uuid;not null;index" json:"buyer_org_id"`
	GrowerOrgID      uuid.UUID        `gorm:"column:grower_org_id;type:uuid;not null;index" json:"grower_org_id"`
	SupplyID         uuid.UUID        `gorm:"column:supply_id;type:uuid;not null" json:"supply_id"`
	VolumeTonnes     float64          `gorm:"column:volume_tonnes;type:decimal(18,2);not null" json:"volume_tonnes"`
	PricePerTonne    float64          `gorm:"column:price_per_tonne;type:decimal(18,2);not null" json:"price_per_tonne"`
	TotalValue       float64          `gorm:"column:total_value;type:decimal(18,2);not null" json:"total_value"`
	DeliverySchedule DeliverySchedule `gorm:"column:delivery_schedule;type:json" json:"delivery_schedule"`
	QualitySpecs     datatypes.JSON   `gorm:"column:quality_specs;type:json" json:"quality_specs"`
	PaymentTerms     string           `gorm:"column:payment_terms;type:varchar(20);not null" json:"payment_terms"`
	Incoterm         string           `gorm:"column:incoterm;type:varchar(5);default:'DAP'" json:"incoterm"`
	DeliveryLat      *float64         `gorm:"column:delivery_lat;type:decimal(9,6)" json:"delivery_lat"`
	DeliveryLng      *float64         `gorm:"column:delivery_lng;type:decimal(9,6)" json:"delivery_lng"`
	DeliveryAddress  string           `gorm:"column:delivery_address" json:"delivery_address"`
	GrowerSignedAt   *time.Time       `gorm:"column:grower_signed_at" json:"grower_signed_at"`
	BuyerSignedAt    *time.Time       `gorm:"column:buyer_signed_at" json:"buyer_signed_at"`
	Status           string           `gorm:"column:status;type:varchar(20);default:'DRAFT'" json:"status"`
	CreatedAt        time.Time        `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt        time.Time        `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Contract) TableName() string {
	return "Contracts"
}
