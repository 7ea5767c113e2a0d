package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Supply listing statuses.
const (
	SupplyStatusActive = "ACTIVE"
	SupplyStatusPaused = "PAUSED"
	SupplyStatusClosed = "CLOSED"
)

// SupplyListing is a grower's available or projected feedstock volume.
// AvailableVolumeTonnes is consumed as matches against it are accepted;
// the decrement happens in the same transaction as contract creation.
type SupplyListing struct {
	SupplyID            uuid.UUID  `gorm:"column:supply_id;type:uuid;primaryKey" json:"supply_id"`
	GrowerOrgID         uuid.UUID  `gorm:"column:grower_org_id;type:uuid;not null;index" json:"grower_org_id"`
	FeedstockCategory   string     `gorm:"column:feedstock_category;not null;index" json:"feedstock_category"`
	AvailableVolumeTonnes float64  `gorm:"column:available_volume_tonnes;type:decimal(18,2);not null" json:"available_volume_tonnes"`
	AskingPricePerTonne *float64   `gorm:"column:asking_price_per_tonne;type:decimal(18,2)" json:"asking_price_per_tonne"`
	AvailableFrom       *time.Time `gorm:"column:available_from" json:"available_from"`
	Lat                 float64    `gorm:"column:lat;type:decimal(9,6);not null" json:"lat"`
	Lng                 float64    `gorm:"column:lng;type:decimal(9,6);not null" json:"lng"`
	CarbonIntensity     *float64   `gorm:"column:carbon_intensity;type:decimal(9,2)" json:"carbon_intensity"`
	Status              string     `gorm:"column:status;type:varchar(20);default:'ACTIVE'" json:"status"`
	CreatedAt           time.Time  `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt           time.Time  `gorm:"column:updatedAt" json:"updatedAt"`
}

func (SupplyListing) TableName() string {
	return "SupplyListings"
}

// BeforeCreate sets supply_id if not already set.
func (s *SupplyListing) BeforeCreate(tx *gorm.DB) error {
	if s.SupplyID == uuid.Nil {
		s.SupplyID = uuid.New()
	}
	return nil
}
