package supply

import (
	"context"
	"testing"

	"github.com/steeldragon666/abfi-nextgen-sub001/internal/domain"
	"github.com/steeldragon666/abfi-nextgen-sub001/internal/pkg/apperrors"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func f64(v float64) *float64 { return &v }

func setupSupplyTest(t *testing.T) *Service {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.SupplyListing{}))
	return &Service{DB: db}
}

func TestCreateListing_Valid(t *testing.T) {
	svc := setupSupplyTest(t)
	orgID := uuid.New()

	listing, err := svc.CreateListing(context.Background(), CreateListingInput{
		GrowerOrgID:           orgID,
		FeedstockCategory:     "wheat_straw",
		AvailableVolumeTonnes: 800,
		AskingPricePerTonne:   f64(85),
		Lat:                   -34.5,
		Lng:                   146.2,
		CarbonIntensity:       f64(12.5),
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, listing.SupplyID)
	assert.Equal(t, domain.SupplyStatusActive, listing.Status)
}

func TestCreateListing_Validation(t *testing.T) {
	svc := setupSupplyTest(t)
	orgID := uuid.New()

	_, err := svc.CreateListing(context.Background(), CreateListingInput{
		FeedstockCategory: "x", AvailableVolumeTonnes: 1,
	})
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	_, err = svc.CreateListing(context.Background(), CreateListingInput{
		GrowerOrgID: orgID, AvailableVolumeTonnes: 1,
	})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	_, err = svc.CreateListing(context.Background(), CreateListingInput{
		GrowerOrgID: orgID, FeedstockCategory: "x", AvailableVolumeTonnes: -10,
	})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestGetActiveListings_CategoryFilter(t *testing.T) {
	svc := setupSupplyTest(t)
	orgID := uuid.New()

	for _, cat := range []string{"wheat_straw", "wheat_straw", "forestry_residue"} {
		_, err := svc.CreateListing(context.Background(), CreateListingInput{
			GrowerOrgID: orgID, FeedstockCategory: cat, AvailableVolumeTonnes: 100, Lat: -34, Lng: 146,
		})
		require.NoError(t, err)
	}

	all, err := svc.GetActiveListings(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	straw, err := svc.GetActiveListings(context.Background(), "wheat_straw")
	require.NoError(t, err)
	assert.Len(t, straw, 2)
}

func TestPauseListing(t *testing.T) {
	svc := setupSupplyTest(t)
	orgID := uuid.New()
	listing, err := svc.CreateListing(context.Background(), CreateListingInput{
		GrowerOrgID: orgID, FeedstockCategory: "x", AvailableVolumeTonnes: 100, Lat: -34, Lng: 146,
	})
	require.NoError(t, err)

	_, err = svc.PauseListing(context.Background(), uuid.New(), false, listing.SupplyID)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	paused, err := svc.PauseListing(context.Background(), orgID, false, listing.SupplyID)
	require.NoError(t, err)
	assert.Equal(t, domain.SupplyStatusPaused, paused.Status)

	// Paused listings drop out of the active pool and cannot be paused again.
	active, err := svc.GetActiveListings(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = svc.PauseListing(context.Background(), orgID, false, listing.SupplyID)
	assert.Equal(t, apperrors.KindInvalidState, apperrors.KindOf(err))
}
