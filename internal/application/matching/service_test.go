package matching

import (
	"context"
	"testing"
	"time"

	"github.com/steeldragon666/abfi-nextgen-sub001/internal/domain"
	"github.com/steeldragon666/abfi-nextgen-sub001/internal/pkg/apperrors"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Approximately one degree of latitude in km.
const degLatKm = 111.19

func setupMatchTest(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.DemandSignal{}, &domain.SupplyListing{}, &domain.Match{},
		&domain.Contract{}, &domain.Delivery{},
	))
	svc := &Service{
		DB:         db,
		Policy:     DefaultScoringPolicy(),
		DefaultLat: -35.1082,
		DefaultLng: 147.3598,
	}
	return svc, db
}

func seedDemand(t *testing.T, db *gorm.DB, radiusKm float64) *domain.DemandSignal {
	d := &domain.DemandSignal{
		BuyerOrgID:         uuid.New(),
		FeedstockCategory:  "wheat_straw",
		AnnualVolumeTonnes: 1000,
		DeliveryLat:        f64(-35.0),
		DeliveryLng:        f64(147.0),
		MaxTransportKm:     f64(radiusKm),
		Status:             domain.DemandStatusActive,
	}
	require.NoError(t, db.Create(d).Error)
	return d
}

func seedSupply(t *testing.T, db *gorm.DB, latOffset, volume float64) *domain.SupplyListing {
	s := &domain.SupplyListing{
		GrowerOrgID:           uuid.New(),
		FeedstockCategory:     "wheat_straw",
		AvailableVolumeTonnes: volume,
		Lat:                   -35.0 + latOffset,
		Lng:                   147.0,
		Status:                domain.SupplyStatusActive,
	}
	require.NoError(t, db.Create(s).Error)
	return s
}

func buyerActor(d *domain.DemandSignal) Actor {
	return Actor{UserID: uuid.New(), OrgID: d.BuyerOrgID, Role: domain.RoleBuyer}
}

func TestGenerateMatches_DistanceCutoff(t *testing.T) {
	svc, db := setupMatchTest(t)
	d := seedDemand(t, db, 150)
	near := seedSupply(t, db, 1.0, 500)  // ~111 km
	seedSupply(t, db, 2.0, 500)          // ~222 km, outside the radius

	result, err := svc.GenerateMatches(context.Background(), buyerActor(d), d.DemandSignalID, 0)
	require.NoError(t, err)
	require.Equal(t, 1, result.MatchesGenerated)
	assert.Equal(t, near.SupplyID, result.Matches[0].SupplyID)
	assert.InDelta(t, degLatKm, result.Matches[0].DistanceKm, 1.0)
}

func TestGenerateMatches_OrderedByScoreWithStableTies(t *testing.T) {
	svc, db := setupMatchTest(t)
	d := seedDemand(t, db, 300)
	seedSupply(t, db, 0.3, 1000)
	seedSupply(t, db, 1.0, 1000)
	// Two identical candidates produce a score tie, broken by supply ID.
	tieA := seedSupply(t, db, 2.0, 400)
	tieB := seedSupply(t, db, 2.0, 400)

	result, err := svc.GenerateMatches(context.Background(), buyerActor(d), d.DemandSignalID, 0)
	require.NoError(t, err)
	require.Equal(t, 4, result.MatchesGenerated)
	for i := 1; i < len(result.Matches); i++ {
		assert.GreaterOrEqual(t, result.Matches[i-1].MatchScore, result.Matches[i].MatchScore)
	}

	wantFirst, wantSecond := tieA.SupplyID.String(), tieB.SupplyID.String()
	if wantSecond < wantFirst {
		wantFirst, wantSecond = wantSecond, wantFirst
	}
	assert.Equal(t, wantFirst, result.Matches[2].SupplyID.String())
	assert.Equal(t, wantSecond, result.Matches[3].SupplyID.String())
}

func TestGenerateMatches_MaxMatchesCap(t *testing.T) {
	svc, db := setupMatchTest(t)
	d := seedDemand(t, db, 300)
	for i := 0; i < 5; i++ {
		seedSupply(t, db, 0.1*float64(i+1), 500)
	}

	result, err := svc.GenerateMatches(context.Background(), buyerActor(d), d.DemandSignalID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, result.MatchesGenerated)
}

func TestGenerateMatches_IdempotentRegeneration(t *testing.T) {
	svc, db := setupMatchTest(t)
	d := seedDemand(t, db, 300)
	seedSupply(t, db, 1.0, 500)
	seedSupply(t, db, 0.5, 800)
	actor := buyerActor(d)

	first, err := svc.GenerateMatches(context.Background(), actor, d.DemandSignalID, 0)
	require.NoError(t, err)
	require.Equal(t, 2, first.MatchesGenerated)

	second, err := svc.GenerateMatches(context.Background(), actor, d.DemandSignalID, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, second.MatchesGenerated, "regeneration must refresh, not duplicate")

	var count int64
	require.NoError(t, db.Model(&domain.Match{}).Where("demand_signal_id = ?", d.DemandSignalID).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestGenerateMatches_NegotiatingPairUntouched(t *testing.T) {
	svc, db := setupMatchTest(t)
	d := seedDemand(t, db, 300)
	seedSupply(t, db, 1.0, 500)
	actor := buyerActor(d)

	first, err := svc.GenerateMatches(context.Background(), actor, d.DemandSignalID, 0)
	require.NoError(t, err)
	matchID := first.Matches[0].MatchID

	_, err = svc.StartNegotiation(context.Background(), actor, matchID, InitialOffer{PricePerTonne: 90, VolumeTonnes: 400})
	require.NoError(t, err)

	_, err = svc.GenerateMatches(context.Background(), actor, d.DemandSignalID, 0)
	require.NoError(t, err)

	var m domain.Match
	require.NoError(t, db.Where("match_id = ?", matchID).First(&m).Error)
	assert.Equal(t, domain.MatchStatusNegotiating, m.Status)
}

func TestGenerateMatches_Authorization(t *testing.T) {
	svc, db := setupMatchTest(t)
	d := seedDemand(t, db, 300)
	seedSupply(t, db, 1.0, 500)

	stranger := Actor{UserID: uuid.New(), OrgID: uuid.New(), Role: domain.RoleBuyer}
	_, err := svc.GenerateMatches(context.Background(), stranger, d.DemandSignalID, 0)
	assert.ErrorIs(t, err, ErrNotSignalOwner)

	admin := Actor{UserID: uuid.New(), Role: domain.RoleAdmin}
	result, err := svc.GenerateMatches(context.Background(), admin, d.DemandSignalID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.MatchesGenerated)
}

func TestGenerateMatches_WithdrawnSignal(t *testing.T) {
	svc, db := setupMatchTest(t)
	d := seedDemand(t, db, 300)
	require.NoError(t, db.Model(d).Update("status", domain.DemandStatusWithdrawn).Error)

	_, err := svc.GenerateMatches(context.Background(), buyerActor(d), d.DemandSignalID, 0)
	assert.Equal(t, apperrors.KindInvalidState, apperrors.KindOf(err))
}

func validTerms(volume float64) ContractTerms {
	day := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	return ContractTerms{
		VolumeTonnes:  volume,
		PricePerTonne: 95,
		DeliverySchedule: domain.DeliverySchedule{
			{Date: day, VolumeTonnes: volume / 2},
			{Date: day.AddDate(0, 1, 0), VolumeTonnes: volume / 2},
		},
		PaymentTerms: domain.PaymentNet30,
	}
}

func generateOne(t *testing.T, svc *Service, db *gorm.DB) (Actor, *domain.SupplyListing, string) {
	d := seedDemand(t, db, 300)
	s := seedSupply(t, db, 1.0, 500)
	actor := buyerActor(d)
	result, err := svc.GenerateMatches(context.Background(), actor, d.DemandSignalID, 0)
	require.NoError(t, err)
	require.Equal(t, 1, result.MatchesGenerated)
	return actor, s, result.Matches[0].MatchID
}

func TestMatchLifecycle_AcceptCreatesContractAndDeliveries(t *testing.T) {
	svc, db := setupMatchTest(t)
	actor, supply, matchID := generateOne(t, svc, db)

	_, err := svc.MarkViewed(context.Background(), actor, matchID)
	require.NoError(t, err)
	_, err = svc.StartNegotiation(context.Background(), actor, matchID, InitialOffer{PricePerTonne: 92, VolumeTonnes: 400})
	require.NoError(t, err)

	contract, err := svc.AcceptMatch(context.Background(), actor, matchID, validTerms(400))
	require.NoError(t, err)
	assert.Equal(t, domain.ContractStatusPendingGrower, contract.Status)
	assert.Equal(t, matchID, contract.MatchID)
	assert.InDelta(t, 400*95, contract.TotalValue, 0.001)
	assert.Equal(t, domain.DefaultIncoterm, contract.Incoterm)

	var m domain.Match
	require.NoError(t, db.Where("match_id = ?", matchID).First(&m).Error)
	assert.Equal(t, domain.MatchStatusAccepted, m.Status)

	var deliveries []domain.Delivery
	require.NoError(t, db.Where("contract_number = ?", contract.ContractNumber).Order("sequence ASC").Find(&deliveries).Error)
	require.Len(t, deliveries, 2)
	assert.Equal(t, 1, deliveries[0].Sequence)
	assert.Equal(t, domain.DeliveryStatusScheduled, deliveries[0].Status)

	var s domain.SupplyListing
	require.NoError(t, db.Where("supply_id = ?", supply.SupplyID).First(&s).Error)
	assert.InDelta(t, 100, s.AvailableVolumeTonnes, 0.001)
	assert.Equal(t, domain.SupplyStatusActive, s.Status)
}

func TestAcceptMatch_FullVolumeClosesListing(t *testing.T) {
	svc, db := setupMatchTest(t)
	actor, supply, matchID := generateOne(t, svc, db)

	_, err := svc.AcceptMatch(context.Background(), actor, matchID, validTerms(500))
	require.NoError(t, err)

	var s domain.SupplyListing
	require.NoError(t, db.Where("supply_id = ?", supply.SupplyID).First(&s).Error)
	assert.Equal(t, domain.SupplyStatusClosed, s.Status)
}

func TestAcceptMatch_ScheduleSumMismatchRejected(t *testing.T) {
	svc, db := setupMatchTest(t)
	actor, _, matchID := generateOne(t, svc, db)

	terms := validTerms(1000)
	terms.DeliverySchedule = domain.DeliverySchedule{
		{Date: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), VolumeTonnes: 900},
	}
	_, err := svc.AcceptMatch(context.Background(), actor, matchID, terms)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestAcceptMatch_InsufficientSupply(t *testing.T) {
	svc, db := setupMatchTest(t)
	actor, _, matchID := generateOne(t, svc, db)

	// The listing only has 500 t available.
	_, err := svc.AcceptMatch(context.Background(), actor, matchID, validTerms(600))
	assert.ErrorIs(t, err, ErrInsufficientSupply)

	var m domain.Match
	require.NoError(t, db.Where("match_id = ?", matchID).First(&m).Error)
	assert.Equal(t, domain.MatchStatusSuggested, m.Status, "failed accept must roll back the status flip")
}

func TestAcceptMatch_DoubleAcceptGuard(t *testing.T) {
	svc, db := setupMatchTest(t)
	actor, _, matchID := generateOne(t, svc, db)

	_, err := svc.AcceptMatch(context.Background(), actor, matchID, validTerms(200))
	require.NoError(t, err)
	_, err = svc.AcceptMatch(context.Background(), actor, matchID, validTerms(200))
	assert.Equal(t, apperrors.KindInvalidState, apperrors.KindOf(err))
}

func TestRejectMatch_ThenAcceptFails(t *testing.T) {
	svc, db := setupMatchTest(t)
	actor, _, matchID := generateOne(t, svc, db)

	_, err := svc.RejectMatch(context.Background(), actor, matchID)
	require.NoError(t, err)
	_, err = svc.AcceptMatch(context.Background(), actor, matchID, validTerms(200))
	assert.Equal(t, apperrors.KindInvalidState, apperrors.KindOf(err))
}

func TestExpiredMatch_CannotBeAccepted(t *testing.T) {
	svc, db := setupMatchTest(t)
	actor, _, matchID := generateOne(t, svc, db)

	// Jump the clock past the 30 day window.
	svc.Now = func() time.Time { return time.Now().Add(domain.MatchTTL + time.Hour) }

	_, err := svc.AcceptMatch(context.Background(), actor, matchID, validTerms(200))
	assert.ErrorIs(t, err, ErrMatchExpired)

	// The batch sweep is what persists the terminal state.
	count, err := svc.ExpireOldMatches(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = svc.AcceptMatch(context.Background(), actor, matchID, validTerms(200))
	assert.Equal(t, apperrors.KindInvalidState, apperrors.KindOf(err))
}

func TestExpireOldMatches_Idempotent(t *testing.T) {
	svc, db := setupMatchTest(t)
	_, _, matchID := generateOne(t, svc, db)

	svc.Now = func() time.Time { return time.Now().Add(domain.MatchTTL + time.Hour) }

	count, err := svc.ExpireOldMatches(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = svc.ExpireOldMatches(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "second sweep expires nothing")

	var m domain.Match
	require.NoError(t, db.Where("match_id = ?", matchID).First(&m).Error)
	assert.Equal(t, domain.MatchStatusExpired, m.Status)
}

func TestMarkViewed_OnlyCounterparty(t *testing.T) {
	svc, db := setupMatchTest(t)
	_, supply, matchID := generateOne(t, svc, db)

	stranger := Actor{UserID: uuid.New(), OrgID: uuid.New(), Role: domain.RoleGrower}
	_, err := svc.MarkViewed(context.Background(), stranger, matchID)
	assert.ErrorIs(t, err, ErrNotCounterparty)

	grower := Actor{UserID: uuid.New(), OrgID: supply.GrowerOrgID, Role: domain.RoleGrower}
	m, err := svc.MarkViewed(context.Background(), grower, matchID)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchStatusViewed, m.Status)
}

func TestGetMatchesForDemand_Sorting(t *testing.T) {
	svc, db := setupMatchTest(t)
	d := seedDemand(t, db, 300)
	seedSupply(t, db, 0.5, 800)
	seedSupply(t, db, 1.5, 300)
	actor := buyerActor(d)

	_, err := svc.GenerateMatches(context.Background(), actor, d.DemandSignalID, 0)
	require.NoError(t, err)

	matches, total, err := svc.GetMatchesForDemand(context.Background(), actor, d.DemandSignalID, "", "distance")
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Less(t, matches[0].DistanceKm, matches[1].DistanceKm)

	_, _, err = svc.GetMatchesForDemand(context.Background(), actor, d.DemandSignalID, "", "bogus")
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}
