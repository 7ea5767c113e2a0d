package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Match statuses. ACCEPTED, REJECTED and EXPIRED are terminal.
const (
	MatchStatusSuggested   = "SUGGESTED"
	MatchStatusViewed      = "VIEWED"
	MatchStatusNegotiating = "NEGOTIATING"
	MatchStatusAccepted    = "ACCEPTED"
	MatchStatusRejected    = "REJECTED"
	MatchStatusExpired     = "EXPIRED"
)

// MatchTTL is how long a generated match stays open before the expiry batch
// moves it to EXPIRED.
const MatchTTL = 30 * 24 * time.Hour

// MatchStatusTerminal reports whether a match can no longer transition.
func MatchStatusTerminal(status string) bool {
	switch status {
	case MatchStatusAccepted, MatchStatusRejected, MatchStatusExpired:
		return true
	}
	return false
}

// FactorScore is one component of a match score: the raw measured value, the
// weight applied and the 0-100 factor score.
type FactorScore struct {
	Raw    float64 `json:"raw"`
	Weight float64 `json:"weight"`
	Score  float64 `json:"score"`
}

// ScoreBreakdown stores the per-factor breakdown as a json column but keeps a
// typed shape in Go (keys: distance, volume, timing, price, quality).
type ScoreBreakdown map[string]FactorScore

// Scan implements sql.Scanner for reading from DB (json column).
func (b *ScoreBreakdown) Scan(value interface{}) error {
	if value == nil {
		*b = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, b)
	case string:
		return json.Unmarshal([]byte(v), b)
	default:
		return errors.New("unsupported type for ScoreBreakdown")
	}
}

// Value implements driver.Valuer for writing to DB.
func (b ScoreBreakdown) Value() (driver.Value, error) {
	if b == nil {
		return "{}", nil
	}
	bs, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return string(bs), nil
}

// Match is a scored, time-bounded pairing of one demand signal with one supply
// listing. The (demand_signal_id, supply_id) pair is unique so regenerating
// matches refreshes rather than duplicates.
type Match struct {
	MatchID          string         `gorm:"column:match_id;type:varchar(30);primaryKey" json:"match_id"`
	DemandSignalID   uuid.UUID      `gorm:"column:demand_signal_id;type:uuid;not null;uniqueIndex:idx_match_pair;index" json:"demand_signal_id"`
	SupplyID         uuid.UUID      `gorm:"column:supply_id;type:uuid;not null;uniqueIndex:idx_match_pair;index" json:"supply_id"`
	BuyerOrgID       uuid.UUID      `gorm:"column:buyer_org_id;type:uuid;not null;index" json:"buyer_org_id"`
	GrowerOrgID      uuid.UUID      `gorm:"column:grower_org_id;type:uuid;not null;index" json:"grower_org_id"`
	DistanceKm       float64        `gorm:"column:distance_km;type:decimal(9,2);not null" json:"distance_km"`
	MatchScore       float64        `gorm:"column:match_score;type:decimal(5,2);not null" json:"match_score"`
	ScoreBreakdown   ScoreBreakdown `gorm:"column:score_breakdown;type:json" json:"score_breakdown"`
	EstTransportCost float64        `gorm:"column:est_transport_cost;type:decimal(18,2);not null" json:"est_transport_cost"`
	VolumeMatchPct   float64        `gorm:"column:volume_match_pct;type:decimal(5,2);not null" json:"volume_match_pct"`
	Status           string         `gorm:"column:status;type:varchar(20);default:'SUGGESTED'" json:"status"`
	InitialOffer     datatypes.JSON `gorm:"column:initial_offer;type:json" json:"initial_offer"`
	ExpiresAt        time.Time      `gorm:"column:expires_at;not null;index" json:"expires_at"`
	CreatedAt        time.Time      `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt        time.Time      `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Match) TableName() string {
	return "Matches"
}
