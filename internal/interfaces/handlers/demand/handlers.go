package demand

import (
	"fmt"
	"time"

	demandsvc "github.com/steeldragon666/abfi-nextgen-sub001/internal/application/demand"
	"github.com/steeldragon666/abfi-nextgen-sub001/internal/domain"
	"github.com/steeldragon666/abfi-nextgen-sub001/internal/middleware"
	"github.com/steeldragon666/abfi-nextgen-sub001/internal/pkg/apperrors"
	"github.com/steeldragon666/abfi-nextgen-sub001/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *demandsvc.Service
}

type publishBody struct {
	FeedstockCategory  string   `json:"feedstock_category"`
	AnnualVolumeTonnes float64  `json:"annual_volume_tonnes"`
	DeliveryLat        *float64 `json:"delivery_lat"`
	DeliveryLng        *float64 `json:"delivery_lng"`
	MaxTransportKm     *float64 `json:"max_transport_km"`
	MaxPricePerTonne   *float64 `json:"max_price_per_tonne"`
	RequiredStartDate  *string  `json:"required_start_date"`
}

// POST /api/v1/demand/publish-signal
func (h *Handlers) PublishSignal(c *fiber.Ctx) error {
	var body publishBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	if body.FeedstockCategory == "" {
		return response.Error(c, "feedstock_category is required", 400, nil)
	}
	if body.AnnualVolumeTonnes <= 0 {
		return response.Error(c, "annual_volume_tonnes must be a positive number", 400, nil)
	}
	orgID, err := actorOrgID(c)
	if err != nil {
		return response.Error(c, err.Error(), 403, nil)
	}
	startDate, err := parseDate(body.RequiredStartDate)
	if err != nil {
		return response.Error(c, "Invalid required_start_date format", 400, nil)
	}

	signal, err := h.Service.PublishSignal(c.Context(), demandsvc.PublishSignalInput{
		BuyerOrgID:         orgID,
		FeedstockCategory:  body.FeedstockCategory,
		AnnualVolumeTonnes: body.AnnualVolumeTonnes,
		DeliveryLat:        body.DeliveryLat,
		DeliveryLng:        body.DeliveryLng,
		MaxTransportKm:     body.MaxTransportKm,
		MaxPricePerTonne:   body.MaxPricePerTonne,
		RequiredStartDate:  startDate,
	})
	if err != nil {
		return serviceError(c, err)
	}
	return response.SuccessCreated(c, "Demand signal published successfully", signal, nil)
}

// GET /api/v1/demand/get-org-signals
func (h *Handlers) GetOrgSignals(c *fiber.Ctx) error {
	orgID, err := actorOrgID(c)
	if err != nil {
		return response.Error(c, err.Error(), 403, nil)
	}
	signals, err := h.Service.GetOrgSignals(c.Context(), orgID)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Demand signals fetched successfully", signals, nil)
}

// GET /api/v1/demand/get-signal/:signal_id
func (h *Handlers) GetSignal(c *fiber.Ctx) error {
	signalID, err := uuid.Parse(c.Params("signal_id"))
	if err != nil {
		return response.Error(c, "Invalid signal_id format", 400, nil)
	}
	orgID, isAdmin, err := actorOrgRole(c)
	if err != nil {
		return response.Error(c, err.Error(), 403, nil)
	}
	signal, err := h.Service.GetSignal(c.Context(), orgID, isAdmin, signalID)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Demand signal fetched successfully", signal, nil)
}

// PATCH /api/v1/demand/withdraw-signal/:signal_id
func (h *Handlers) WithdrawSignal(c *fiber.Ctx) error {
	signalID, err := uuid.Parse(c.Params("signal_id"))
	if err != nil {
		return response.Error(c, "Invalid signal_id format", 400, nil)
	}
	orgID, isAdmin, err := actorOrgRole(c)
	if err != nil {
		return response.Error(c, err.Error(), 403, nil)
	}
	signal, err := h.Service.WithdrawSignal(c.Context(), orgID, isAdmin, signalID)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Demand signal withdrawn successfully", signal, nil)
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
