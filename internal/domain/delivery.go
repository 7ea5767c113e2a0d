package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Delivery statuses. SETTLED is terminal; DISPUTED can be raised from any
// non-terminal state.
const (
	DeliveryStatusScheduled       = "SCHEDULED"
	DeliveryStatusLoading         = "LOADING"
	DeliveryStatusInTransit       = "IN_TRANSIT"
	DeliveryStatusDelivered       = "DELIVERED"
	DeliveryStatusQualityVerified = "QUALITY_VERIFIED"
	DeliveryStatusSettled         = "SETTLED"
	DeliveryStatusDisputed        = "DISPUTED"
)

// deliveryNext maps each delivery status to the statuses reachable from it.
var deliveryNext = map[string][]string{
	DeliveryStatusScheduled:       {DeliveryStatusLoading, DeliveryStatusInTransit, DeliveryStatusDisputed},
	DeliveryStatusLoading:         {DeliveryStatusInTransit, DeliveryStatusDisputed},
	DeliveryStatusInTransit:       {DeliveryStatusDelivered, DeliveryStatusDisputed},
	DeliveryStatusDelivered:       {DeliveryStatusQualityVerified, DeliveryStatusDisputed},
	DeliveryStatusQualityVerified: {DeliveryStatusSettled, DeliveryStatusDisputed},
	DeliveryStatusDisputed:        {DeliveryStatusDelivered, DeliveryStatusQualityVerified, DeliveryStatusSettled},
}

// ValidDeliveryTransition reports whether a delivery may move from one status
// to the next.
func ValidDeliveryTransition(from, to string) bool {
	for _, s := range deliveryNext[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Delivery is one scheduled shipment under a contract. Actual volume/date are
// filled when the shipment reaches DELIVERED; quality results when verified.
type Delivery struct {
	DeliveryID         string         `gorm:"column:delivery_id;type:varchar(30);primaryKey" json:"delivery_id"`
	ContractNumber     string         `gorm:"column:contract_number;type:varchar(30);not null;index" json:"contract_number"`
	Sequence           int            `gorm:"column:sequence;not null" json:"sequence"`
	ScheduledDate      time.Time      `gorm:"column:scheduled_date;not null" json:"scheduled_date"`
	ScheduledVolumeTonnes float64     `gorm:"column:scheduled_volume_tonnes;type:decimal(18,2);not null" json:"scheduled_volume_tonnes"`
	ActualDate         *time.Time     `gorm:"column:actual_date" json:"actual_date"`
	ActualVolumeTonnes *float64       `gorm:"column:actual_volume_tonnes;type:decimal(18,2)" json:"actual_volume_tonnes"`
	QualityResults     datatypes.JSON `gorm:"column:quality_results;type:json" json:"quality_results"`
	QualityPassed      *bool          `gorm:"column:quality_passed" json:"quality_passed"`
	Notes              string         `gorm:"column:notes" json:"notes"`
	Status             string         `gorm:"column:status;type:varchar(20);default:'SCHEDULED'" json:"status"`
	CreatedAt          time.Time      `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt          time.Time      `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Delivery) TableName() string {
	return "Deliveries"
}
