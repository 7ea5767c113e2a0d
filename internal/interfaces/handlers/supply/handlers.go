package supply

import (
	"fmt"
	"time"

	supplysvc "github.com/steeldragon666/abfi-nextgen-sub001/internal/application/supply"
	"github.com/steeldragon666/abfi-nextgen-sub001/internal/domain"
	"github.com/steeldragon666/abfi-nextgen-sub001/internal/middleware"
	"github.com/steeldragon666/abfi-nextgen-sub001/internal/pkg/apperrors"
	"github.com/steeldragon666/abfi-nextgen-sub001/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *supplysvc.Service
}

type createListingBody struct {
	FeedstockCategory     string   `json:"feedstock_category"`
	AvailableVolumeTonnes float64  `json:"available_volume_tonnes"`
	AskingPricePerTonne   *float64 `json:"asking_price_per_tonne"`
	AvailableFrom         *string  `json:"available_from"`
	Lat                   *float64 `json:"lat"`
	Lng                   *float64 `json:"lng"`
	CarbonIntensity       *float64 `json:"carbon_intensity"`
}

// POST /api/v1/supply/create-listing
func (h *Handlers) CreateListing(c *fiber.Ctx) error {
	var body createListingBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	if body.FeedstockCategory == "" {
		return response.Error(c, "feedstock_category is required", 400, nil)
	}
	if body.AvailableVolumeTonnes <= 0 {
		return response.Error(c, "available_volume_tonnes must be a positive number", 400, nil)
	}
	if body.Lat == nil || body.Lng == nil {
		return response.Error(c, "lat and lng are required", 400, nil)
	}
	if *body.Lat < -90 || *body.Lat > 90 || *body.Lng < -180 || *body.Lng > 180 {
		return response.Error(c, "lat/lng out of range", 400, nil)
	}
	orgID, err := actorOrgID(c)
	if err != nil {
		return response.Error(c, err.Error(), 403, nil)
	}
	availableFrom, err := parseDate(body.AvailableFrom)
	if err != nil {
		return response.Error(c, "Invalid available_from format", 400, nil)
	}

	listing, err := h.Service.CreateListing(c.Context(), supplysvc.CreateListingInput{
		GrowerOrgID:           orgID,
		FeedstockCategory:     body.FeedstockCategory,
		AvailableVolumeTonnes: body.AvailableVolumeTonnes,
		AskingPricePerTonne:   body.AskingPricePerTonne,
		AvailableFrom:         availableFrom,
		Lat:                   *body.Lat,
		Lng:                   *body.Lng,
		CarbonIntensity:       body.CarbonIntensity,
	})
	if err != nil {
		return serviceError(c, err)
	}
	return response.SuccessCreated(c, "Supply listing created successfully", listing, nil)
}

// GET /api/v1/supply/get-org-listings
func (h *Handlers) GetOrgListings(c *fiber.Ctx) error {
	orgID, err := actorOrgID(c)
	if err != nil {
		return response.Error(c, err.Error(), 403, nil)
	}
	listings, err := h.Service.GetOrgListings(c.Context(), orgID)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Supply listings fetched successfully", listings, nil)
}

// GET /api/v1/supply/get-active-listings?category=
func (h *Handlers) GetActiveListings(c *fiber.Ctx) error {
	listings, err := h.Service.GetActiveListings(c.Context(), c.Query("category"))
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Active supply listings fetched", listings, nil)
}

// PATCH /api/v1/supply/pause-listing/:supply_id
func (h *Handlers) PauseListing(c *fiber.Ctx) error {
	supplyID, err := uuid.Parse(c.Params("supply_id"))
	if err != nil {
		return response.Error(c, "Invalid supply_id format", 400, nil)
	}
	orgID, isAdmin, err := actorOrgRole(c)
	if err != nil {
		return response.Error(c, err.Error(), 403, nil)
	}
	listing, err := h.Service.PauseListing(c.Context(), orgID, isAdmin, supplyID)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Supply listing paused successfully", listing, nil)
}

// --- helpers ---

func actorOrgID(c *fiber.Ctx) (uuid.UUID, error) {
	user := middleware.GetUser(c)
	m, ok := user.(map[string]interface{})
	if !ok {
		return uuid.Nil, fmt.Errorf("User is not associated with any organization")
	}
	orgIDStr, _ := m["org_id"].(string)
	if orgIDStr == "" {
		return uuid.Nil, fmt.Errorf("User is not associated with any organization")
	}
	return uuid.Parse(orgIDStr)
}

func actorOrgRole(c *fiber.Ctx) (uuid.UUID, bool, error) {
	user := middleware.GetUser(c)
	m, ok := user.(map[string]interface{})
	if !ok {
		return uuid.Nil, false, fmt.Errorf("User is not associated with any organization")
	}
	role, _ := m["role"].(string)
	isAdmin := role == domain.RoleAdmin
	orgIDStr, _ := m["org_id"].(string)
	if orgIDStr == "" {
		if isAdmin {
			return uuid.Nil, true, nil
		}
		return uuid.Nil, false, fmt.Errorf("User is not associated with any organization")
	}
	orgID, err := uuid.Parse(orgIDStr)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("User is not associated with any organization")
	}
	return orgID, isAdmin, nil
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, *s); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func serviceError(c *fiber.Ctx, err error) error {
	code := apperrors.StatusCode(err)
	if code == 500 {
		return response.Error(c, "Internal Server Error", 500, nil)
	}
	return response.Error(c, err.Error(), code, nil)
}
