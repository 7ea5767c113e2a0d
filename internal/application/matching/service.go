package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/steeldragon666/abfi-nextgen-sub001/internal/domain"
	"github.com/steeldragon666/abfi-nextgen-sub001/internal/geo"
	"github.com/steeldragon666/abfi-nextgen-sub001/internal/pkg/apperrors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultMaxMatches caps how many matches one generation run persists.
const DefaultMaxMatches = 20

// Actor is the session caller as seen by the matching service.
type Actor struct {
	UserID uuid.UUID
	OrgID  uuid.UUID
	Role   string
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == domain.RoleAdmin
}

// Service implements match generation and the negotiation lifecycle.
type Service struct {
	DB     *gorm.DB
	Policy ScoringPolicy

	// DefaultLat/DefaultLng are used when a demand signal has no delivery
	// coordinates.
	DefaultLat float64
	DefaultLng float64

	// Now is injectable for tests; nil means time.Now.
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) policy() ScoringPolicy {
	zero := ScoringPolicy{}
	if s.Policy == zero {
		return DefaultScoringPolicy()
	}
	return s.Policy
}

// GenerateResult is the outcome of one generation run.
type GenerateResult struct {
	DemandSignalID   uuid.UUID      `json:"demand_signal_id"`
	MatchesGenerated int            `json:"matches_generated"`
	Matches          []domain.Match `json:"matches"`
}

// GenerateMatches scores active supply listings in the demand's category
// against the signal, keeps candidates inside the transport radius, ranks
// them and persists the top maxMatches. Regenerating refreshes open pairs
// instead of duplicating them; pairs already negotiating or closed are left
// untouched.
func (s *Service) GenerateMatches(ctx context.Context, actor Actor, demandSignalID uuid.UUID, maxMatches int) (*GenerateResult, error) {
	if maxMatches <= 0 {
		maxMatches = DefaultMaxMatches
	}

	var demand domain.DemandSignal
	if err := s.DB.WithContext(ctx).Where("demand_signal_id = ?", demandSignalID).First(&demand).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrDemandSignalNotFound
		}
		return nil, err
	}
	if !actor.IsAdmin() && actor.OrgID != demand.BuyerOrgID {
		return nil, ErrNotSignalOwner
	}
	if demand.Status != domain.DemandStatusActive {
		return nil, apperrors.InvalidState("Demand signal is withdrawn")
	}

	lat, lng := s.DefaultLat, s.DefaultLng
	if demand.DeliveryLat != nil && demand.DeliveryLng != nil {
		lat, lng = *demand.DeliveryLat, *demand.DeliveryLng
	}

	var candidates []domain.SupplyListing
	if err := s.DB.WithContext(ctx).
		Where("feedstock_category = ? AND status = ?", demand.FeedstockCategory, domain.SupplyStatusActive).
		Find(&candidates).Error; err != nil {
		return nil, err
	}

	policy := s.policy()
	radius := demand.TransportRadiusKm()

	type scored struct {
		supply    domain.SupplyListing
		distance  float64
		score     float64
		breakdown domain.ScoreBreakdown
		cost      float64
		volumePct float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		d := geo.Distance(lat, lng, c.Lat, c.Lng)
		if d > radius {
			continue
		}
		score, breakdown := policy.Score(&demand, &c, d)
		volume := math.Min(c.AvailableVolumeTonnes, demand.AnnualVolumeTonnes)
		ranked = append(ranked, scored{
			supply:    c,
			distance:  math.Round(d*100) / 100,
			score:     score,
			breakdown: breakdown,
			cost:      math.Round(EstimateTransportCost(d, volume)*100) / 100,
			volumePct: breakdown[FactorVolume].Score,
		})
	}

	// Descending score, supply ID as the deterministic tie-break.
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].supply.SupplyID.String() < ranked[j].supply.SupplyID.String()
	})
	if len(ranked) > maxMatches {
		ranked = ranked[:maxMatches]
	}

	now := s.now()
	result := &GenerateResult{DemandSignalID: demand.DemandSignalID}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range ranked {
			var existing domain.Match
			err := tx.Where("demand_signal_id = ? AND supply_id = ?", demand.DemandSignalID, r.supply.SupplyID).
				First(&existing).Error

			switch {
			case err == gorm.ErrRecordNotFound:
				m := domain.Match{
					MatchID:          domain.NewMatchID(now),
					DemandSignalID:   demand.DemandSignalID,
					SupplyID:         r.supply.SupplyID,
					BuyerOrgID:       demand.BuyerOrgID,
					GrowerOrgID:      r.supply.GrowerOrgID,
					DistanceKm:       r.distance,
					MatchScore:       r.score,
					ScoreBreakdown:   r.breakdown,
					EstTransportCost: r.cost,
					VolumeMatchPct:   r.volumePct,
					Status:           domain.MatchStatusSuggested,
					ExpiresAt:        now.Add(domain.MatchTTL),
				}
				if err := tx.Create(&m).Error; err != nil {
					return fmt.Errorf("Failed to create match: %v", err)
				}
				result.Matches = append(result.Matches, m)
				result.MatchesGenerated++

			case err != nil:
				return err

			case existing.Status == domain.MatchStatusSuggested || existing.Status == domain.MatchStatusViewed:
				updates := map[string]interface{}{
					"distance_km":        r.distance,
					"match_score":        r.score,
					"score_breakdown":    r.breakdown,
					"est_transport_cost": r.cost,
					"volume_match_pct":   r.volumePct,
					"expires_at":         now.Add(domain.MatchTTL),
				}
				if err := tx.Model(&existing).Updates(updates).Error; err != nil {
					return err
				}
				result.Matches = append(result.Matches, existing)

			default:
				// Negotiating or closed pairs are never regenerated over.
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetMatchesForDemand lists matches for one demand signal, newest score first
// unless sortBy says otherwise (matchScore | distance | price).
func (s *Service) GetMatchesForDemand(ctx context.Context, actor Actor, demandSignalID uuid.UUID, status, sortBy string) ([]domain.Match, int64, error) {
	var demand domain.DemandSignal
	if err := s.DB.WithContext(ctx).Where("demand_signal_id = ?", demandSignalID).First(&demand).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, 0, ErrDemandSignalNotFound
		}
		return nil, 0, err
	}
	if !actor.IsAdmin() && actor.OrgID != demand.BuyerOrgID {
		return nil, 0, ErrNotSignalOwner
	}

	order := `match_score DESC`
	switch sortBy {
	case "", "matchScore":
	case "distance":
		order = `distance_km ASC`
	case "price":
		order = `est_transport_cost ASC`
	default:
		return nil, 0, apperrors.Validation("Invalid sort_by value")
	}

	q := s.DB.WithContext(ctx).Where("demand_signal_id = ?", demandSignalID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var matches []domain.Match
	if err := q.Order(order).Find(&matches).Error; err != nil {
		return nil, 0, err
	}
	return matches, int64(len(matches)), nil
}

// GetMatchesForGrower lists matches targeting the caller's grower org.
func (s *Service) GetMatchesForGrower(ctx context.Context, actor Actor) (uuid.UUID, []domain.Match, error) {
	if actor.OrgID == uuid.Nil {
		return uuid.Nil, nil, ErrNoSupplierProfile
	}
	var matches []domain.Match
	if err := s.DB.WithContext(ctx).
		Where("grower_org_id = ?", actor.OrgID).
		Order("match_score DESC").
		Find(&matches).Error; err != nil {
		return uuid.Nil, nil, err
	}
	return actor.OrgID, matches, nil
}

// loadMatchForTransition fetches a match, checks the actor is a counterparty
// (or admin) and lazily expires it when its deadline has passed.
func (s *Service) loadMatchForTransition(tx *gorm.DB, actor Actor, matchID string) (*domain.Match, error) {
	var match domain.Match
	if err := tx.Where("match_id = ?", matchID).First(&match).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	if !actor.IsAdmin() && actor.OrgID != match.BuyerOrgID && actor.OrgID != match.GrowerOrgID {
		return nil, ErrNotCounterparty
	}
	if !domain.MatchStatusTerminal(match.Status) && s.now().After(match.ExpiresAt) {
		if err := tx.Model(&match).Update("status", domain.MatchStatusExpired).Error; err != nil {
			return nil, err
		}
		return nil, ErrMatchExpired
	}
	return &match, nil
}

// MarkViewed records that a counterparty opened a suggested match.
func (s *Service) MarkViewed(ctx context.Context, actor Actor, matchID string) (*domain.Match, error) {
	var match *domain.Match
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := s.loadMatchForTransition(tx, actor, matchID)
		if err != nil {
			return err
		}
		if m.Status == domain.MatchStatusViewed {
			match = m
			return nil
		}
		if m.Status != domain.MatchStatusSuggested {
			return apperrors.InvalidState(fmt.Sprintf("Match cannot be viewed from status %s", m.Status))
		}
		if err := tx.Model(m).Update("status", domain.MatchStatusViewed).Error; err != nil {
			return err
		}
		m.Status = domain.MatchStatusViewed
		match = m
		return nil
	})
	return match, err
}

// InitialOffer is the opening position recorded when negotiation starts.
type InitialOffer struct {
	PricePerTonne        float64    `json:"price_per_tonne"`
	VolumeTonnes         float64    `json:"volume_tonnes"`
	ProposedDeliveryDate *time.Time `json:"proposed_delivery_date"`
	DeliveryTerms        string     `json:"delivery_terms,omitempty"`
	Notes                string     `json:"notes,omitempty"`
}

// StartNegotiation moves a SUGGESTED or VIEWED match to NEGOTIATING and
// records the initial offer.
func (s *Service) StartNegotiation(ctx context.Context, actor Actor, matchID string, offer InitialOffer) (*domain.Match, error) {
	if offer.PricePerTonne <= 0 {
		return nil, apperrors.Validation("Offer price_per_tonne must be a positive number")
	}
	if offer.VolumeTonnes <= 0 {
		return nil, apperrors.Validation("Offer volume_tonnes must be a positive number")
	}

	var match *domain.Match
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := s.loadMatchForTransition(tx, actor, matchID)
		if err != nil {
			return err
		}
		if m.Status != domain.MatchStatusSuggested && m.Status != domain.MatchStatusViewed {
			return apperrors.InvalidState(fmt.Sprintf("Negotiation cannot start from status %s", m.Status))
		}

		offerBytes, _ := json.Marshal(offer)
		res := tx.Model(&domain.Match{}).
			Where("match_id = ? AND status IN ?", m.MatchID, []string{domain.MatchStatusSuggested, domain.MatchStatusViewed}).
			Updates(map[string]interface{}{
				"status":        domain.MatchStatusNegotiating,
				"initial_offer": datatypes.JSON(offerBytes),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.InvalidState("Match status changed concurrently")
		}
		m.Status = domain.MatchStatusNegotiating
		m.InitialOffer = datatypes.JSON(offerBytes)
		match = m
		return nil
	})
	return match, err
}

// ContractTerms are the agreed terms supplied when a match is accepted.
type ContractTerms struct {
	VolumeTonnes     float64                 `json:"volume_tonnes"`
	PricePerTonne    float64                 `json:"price_per_tonne"`
	DeliverySchedule domain.DeliverySchedule `json:"delivery_schedule"`
	QualitySpecs     map[string]interface{}  `json:"quality_specs"`
	PaymentTerms     string                  `json:"payment_terms"`
	DeliveryLat      *float64                `json:"delivery_lat"`
	DeliveryLng      *float64                `json:"delivery_lng"`
	DeliveryAddress  string                  `json:"delivery_address"`
	Incoterm         string                  `json:"incoterm"`
}

// Validate checks the terms without touching the store.
func (t *ContractTerms) Validate() error {
	if t.VolumeTonnes <= 0 {
		return apperrors.Validation("volume_tonnes must be a positive number")
	}
	if t.PricePerTonne <= 0 {
		return apperrors.Validation("price_per_tonne must be a positive number")
	}
	if len(t.DeliverySchedule) == 0 {
		return apperrors.Validation("delivery_schedule must not be empty")
	}
	for _, e := range t.DeliverySchedule {
		if e.VolumeTonnes <= 0 {
			return apperrors.Validation("delivery_schedule volumes must be positive")
		}
	}
	if math.Abs(t.DeliverySchedule.TotalVolume()-t.VolumeTonnes) > 0.01 {
		return apperrors.Validation("delivery_schedule volumes must sum to volume_tonnes")
	}
	if !domain.ValidPaymentTerms(t.PaymentTerms) {
		return apperrors.Validation("Invalid payment_terms")
	}
	return nil
}

// AcceptMatch creates a contract and its delivery rows from the agreed terms
// and moves the match to ACCEPTED. Accepting is allowed from NEGOTIATING, or
// directly from SUGGESTED/VIEWED when terms are pre-agreed. The status flip,
// the supply volume decrement and the contract insert share one transaction
// so a match cannot be accepted twice or over-commit a listing.
func (s *Service) AcceptMatch(ctx context.Context, actor Actor, matchID string, terms ContractTerms) (*domain.Contract, error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	if terms.Incoterm == "" {
		terms.Incoterm = domain.DefaultIncoterm
	}

	now := s.now()
	var contract *domain.Contract

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := s.loadMatchForTransition(tx, actor, matchID)
		if err != nil {
			return err
		}
		if domain.MatchStatusTerminal(m.Status) {
			return apperrors.InvalidState(fmt.Sprintf("Match cannot be accepted from status %s", m.Status))
		}

		// Optimistic status flip; a concurrent accept or reject loses here.
		res := tx.Model(&domain.Match{}).
			Where("match_id = ? AND status IN ?", m.MatchID,
				[]string{domain.MatchStatusSuggested, domain.MatchStatusViewed, domain.MatchStatusNegotiating}).
			Update("status", domain.MatchStatusAccepted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.InvalidState("Match status changed concurrently")
		}

		// Guarded decrement prevents two accepted matches from committing the
		// same tonnes.
		res = tx.Model(&domain.SupplyListing{}).
			Where("supply_id = ? AND available_volume_tonnes >= ?", m.SupplyID, terms.VolumeTonnes).
			UpdateColumn("available_volume_tonnes", gorm.Expr("available_volume_tonnes - ?", terms.VolumeTonnes))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientSupply
		}
		if err := tx.Model(&domain.SupplyListing{}).
			Where("supply_id = ? AND available_volume_tonnes <= 0", m.SupplyID).
			Update("status", domain.SupplyStatusClosed).Error; err != nil {
			return err
		}

		specsBytes, _ := json.Marshal(terms.QualitySpecs)
		c := domain.Contract{
			ContractNumber:   domain.NewContractNumber(now),
			MatchID:          m.MatchID,
			BuyerOrgID:       m.BuyerOrgID,
			GrowerOrgID:      m.GrowerOrgID,
			SupplyID:         m.SupplyID,
			VolumeTonnes:     terms.VolumeTonnes,
			PricePerTonne:    terms.PricePerTonne,
			TotalValue:       math.Round(terms.VolumeTonnes*terms.PricePerTonne*100) / 100,
			DeliverySchedule: terms.DeliverySchedule,
			QualitySpecs:     datatypes.JSON(specsBytes),
			PaymentTerms:     terms.PaymentTerms,
			Incoterm:         terms.Incoterm,
			DeliveryLat:      terms.DeliveryLat,
			DeliveryLng:      terms.DeliveryLng,
			DeliveryAddress:  terms.DeliveryAddress,
			Status:           domain.ContractStatusPendingGrower,
		}
		if err := tx.Create(&c).Error; err != nil {
			return fmt.Errorf("Failed to create contract: %v", err)
		}

		for i, e := range terms.DeliverySchedule {
			d := domain.Delivery{
				DeliveryID:            domain.NewDeliveryID(now),
				ContractNumber:        c.ContractNumber,
				Sequence:              i + 1,
				ScheduledDate:         e.Date,
				ScheduledVolumeTonnes: e.VolumeTonnes,
				Status:                domain.DeliveryStatusScheduled,
			}
			if err := tx.Create(&d).Error; err != nil {
				return fmt.Errorf("Failed to create delivery: %v", err)
			}
		}

		contract = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return contract, nil
}

// RejectMatch closes a match from any pre-acceptance state.
func (s *Service) RejectMatch(ctx context.Context, actor Actor, matchID string) (*domain.Match, error) {
	var match *domain.Match
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := s.loadMatchForTransition(tx, actor, matchID)
		if err != nil {
			return err
		}
		if domain.MatchStatusTerminal(m.Status) {
			return apperrors.InvalidState(fmt.Sprintf("Match cannot be rejected from status %s", m.Status))
		}
		res := tx.Model(&domain.Match{}).
			Where("match_id = ? AND status IN ?", m.MatchID,
				[]string{domain.MatchStatusSuggested, domain.MatchStatusViewed, domain.MatchStatusNegotiating}).
			Update("status", domain.MatchStatusRejected)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.InvalidState("Match status changed concurrently")
		}
		m.Status = domain.MatchStatusRejected
		match = m
		return nil
	})
	return match, err
}

// ExpireOldMatches moves every non-terminal match past its deadline to
// EXPIRED. One guarded update keeps the operation idempotent: a second run
// finds nothing left to expire.
func (s *Service) ExpireOldMatches(ctx context.Context) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&domain.Match{}).
		Where("expires_at < ? AND status IN ?", s.now(),
			[]string{domain.MatchStatusSuggested, domain.MatchStatusViewed, domain.MatchStatusNegotiating}).
		Update("status", domain.MatchStatusExpired)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		log.Info().Int64("expired", res.RowsAffected).Msg("Expired stale matches")
	}
	return res.RowsAffected, nil
}
