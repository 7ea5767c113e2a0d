package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Demand signal statuses.
const (
	DemandStatusActive    = "ACTIVE"
	DemandStatusWithdrawn = "WITHDRAWN"
)

// DefaultMaxTransportKm applies when a demand signal does not set a radius.
const DefaultMaxTransportKm = 200.0

// DemandSignal is a buyer's published need for a feedstock category, volume,
// location and timeframe. Immutable once matches exist, except administrative
// withdrawal.
type DemandSignal struct {
	DemandSignalID    uuid.UUID  `gorm:"column:demand_signal_id;type:uuid;primaryKey" json:"demand_signal_id"`
	BuyerOrgID        uuid.UUID  `gorm:"column:buyer_org_id;type:uuid;not null;index" json:"buyer_org_id"`
	FeedstockCategory string     `gorm:"column:feedstock_category;not null;index" json:"feedstock_category"`
	AnnualVolumeTonnes float64   `gorm:"column:annual_volume_tonnes;type:decimal(18,2);not null" json:"annual_volume_tonnes"`
	DeliveryLat       *float64   `gorm:"column:delivery_lat;type:decimal(9,6)" json:"delivery_lat"`
	DeliveryLng       *float64   `gorm:"column:delivery_lng;type:decimal(9,6)" json:"delivery_lng"`
	MaxTransportKm    *float64   `gorm:"column:max_transport_km;type:decimal(9,2)" json:"max_transport_km"`
	MaxPricePerTonne  *float64   `gorm:"column:max_price_per_tonne;type:decimal(18,2)" json:"max_price_per_tonne"`
	RequiredStartDate *time.Time `gorm:"column:required_start_date" json:"required_start_date"`
	Status            string     `gorm:"column:status;type:varchar(20);default:'ACTIVE'" json:"status"`
	CreatedAt         time.Time  `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt         time.Time  `gorm:"column:updatedAt" json:"updatedAt"`
}

func (DemandSignal) TableName() string {
	return "DemandSignals"
}

// BeforeCreate sets demand_signal_id if not already set.
func (d *DemandSignal) BeforeCreate(tx *gorm.DB) error {
	if d.DemandSignalID == uuid.Nil {
		d.DemandSignalID = uuid.New()
	}
	return nil
}

// TransportRadiusKm is the effective matching radius (200 km default).
func (d *DemandSignal) TransportRadiusKm() float64 {
	if d.MaxTransportKm != nil && *d.MaxTransportKm > 0 {
		return *d.MaxTransportKm
	}
	return DefaultMaxTransportKm
}
