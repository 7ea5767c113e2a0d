package matching

import (
	"fmt"
	"time"

	matchsvc "github.com/steeldragon666/abfi-nextgen-sub001/internal/application/matching"
	"github.com/steeldragon666/abfi-nextgen-sub001/internal/domain"
	"github.com/steeldragon666/abfi-nextgen-sub001/internal/middleware"
	"github.com/steeldragon666/abfi-nextgen-sub001/internal/pkg/apperrors"
	"github.com/steeldragon666/abfi-nextgen-sub001/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *matchsvc.Service
}

// POST /api/v1/matching/generate-matches
func (h *Handlers) GenerateMatches(c *fiber.Ctx) error {
	var body struct {
		DemandSignalID string `json:"demand_signal_id"`
		MaxMatches     int    `json:"max_matches"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "demand_signal_id is required", 400, nil)
	}
	if body.DemandSignalID == "" {
		return response.Error(c, "demand_signal_id is required", 400, nil)
	}
	signalID, err := uuid.Parse(body.DemandSignalID)
	if err != nil {
		return response.Error(c, "Invalid demand_signal_id format", 400, nil)
	}
	actor, err := getActor(c)
	if err != nil {
		return response.Error(c, err.Error(), 403, nil)
	}

	result, err := h.Service.GenerateMatches(c.Context(), actor, signalID, body.MaxMatches)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, fmt.Sprintf("%d matches generated", result.MatchesGenerated), result, nil)
}

// GET /api/v1/matching/get-demand-matches/:demand_signal_id?status=&sort_by=
func (h *Handlers) GetDemandMatches(c *fiber.Ctx) error {
	signalID, err := uuid.Parse(c.Params("demand_signal_id"))
	if err != nil {
		return response.Error(c, "Invalid demand_signal_id format", 400, nil)
	}
	actor, err := getActor(c)
	if err != nil {
		return response.Error(c, err.Error(), 403, nil)
	}
	matches, total, err := h.Service.GetMatchesForDemand(c.Context(), actor, signalID, c.Query("status"), c.Query("sort_by"))
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Matches fetched successfully", matches, fiber.Map{"total": total})
}

// GET /api/v1/matching/get-grower-matches
func (h *Handlers) GetGrowerMatches(c *fiber.Ctx) error {
	actor, err := getActor(c)
	if err != nil {
		return response.Error(c, err.Error(), 403, nil)
	}
	orgID, matches, err := h.Service.GetMatchesForGrower(c.Context(), actor)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Matches fetched successfully", matches, fiber.Map{"grower_org_id": orgID})
}

// POST /api/v1/matching/view-match
func (h *Handlers) ViewMatch(c *fiber.Ctx) error {
	var body struct {
		MatchID string `json:"match_id"`
	}
	if err := c.BodyParser(&body); err != nil || body.MatchID == "" {
		return response.Error(c, "match_id is required", 400, nil)
	}
	actor, err := getActor(c)
	if err != nil {
		return response.Error(c, err.Error(), 403, nil)
	}
	match, err := h.Service.MarkViewed(c.Context(), actor, body.MatchID)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Match marked as viewed", match, nil)
}

type negotiationBody struct {
	MatchID string `json:"match_id"`
	Offer   struct {
		PricePerTonne        float64 `json:"price_per_tonne"`
		VolumeTonnes         float64 `json:"volume_tonnes"`
		ProposedDeliveryDate *string `json:"proposed_delivery_date"`
		DeliveryTerms        string  `json:"delivery_terms"`
		Notes                string  `json:"notes"`
	} `json:"offer"`
}

// POST /api/v1/matching/start-negotiation
func (h *Handlers) StartNegotiation(c *fiber.Ctx) error {
	var body negotiationBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "match_id and offer are required", 400, nil)
	}
	if body.MatchID == "" {
		return response.Error(c, "match_id is required", 400, nil)
	}
	actor, err := getActor(c)
	if err != nil {
		return response.Error(c, err.Error(), 403, nil)
	}
	proposed, err := parseDate(body.Offer.ProposedDeliveryDate)
	if err != nil {
		return response.Error(c, "Invalid proposed_delivery_date format", 400, nil)
	}

	match, err := h.Service.StartNegotiation(c.Context(), actor, body.MatchID, matchsvc.InitialOffer{
		PricePerTonne:        body.Offer.PricePerTonne,
		VolumeTonnes:         body.Offer.VolumeTonnes,
		ProposedDeliveryDate: proposed,
		DeliveryTerms:        body.Offer.DeliveryTerms,
		Notes:                body.Offer.Notes,
	})
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Negotiation started", match, nil)
}

type acceptBody struct {
	MatchID string                 `json:"match_id"`
	Terms   matchsvc.ContractTerms `json:"terms"`
}

// POST /api/v1/matching/accept-match
func (h *Handlers) AcceptMatch(c *fiber.Ctx) error {
	var body acceptBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "match_id and terms are required", 400, nil)
	}
	if body.MatchID == "" {
		return response.Error(c, "match_id is required", 400, nil)
	}
	actor, err := getActor(c)
	if err != nil {
		return response.Error(c, err.Error(), 403, nil)
	}
	contract, err := h.Service.AcceptMatch(c.Context(), actor, body.MatchID, body.Terms)
	if err != nil {
		return serviceError(c, err)
	}
	return response.SuccessCreated(c, "Match accepted, contract created", contract, nil)
}

// POST /api/v1/matching/reject-match
func (h *Handlers) RejectMatch(c *fiber.Ctx) error {
	var body struct {
		MatchID string `json:"match_id"`
	}
	if err := c.BodyParser(&body); err != nil || body.MatchID == "" {
		return response.Error(c, "match_id is required", 400, nil)
	}
	actor, err := getActor(c)
	if err != nil {
		return response.Error(c, err.Error(), 403, nil)
	}
	match, err := h.Service.RejectMatch(c.Context(), actor, body.MatchID)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Match rejected", match, nil)
}

// POST /api/v1/matching/expire-old-matches — admin only (permission gated in router)
func (h *Handlers) ExpireOldMatches(c *fiber.Ctx) error {
	count, err := h.Service.ExpireOldMatches(c.Context())
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Expired matches processed", fiber.Map{"expired": count}, nil)
}

// --- helpers ---

func getActor(c *fiber.Ctx) (matchsvc.Actor, error) {
	user := middleware.GetUser(c)
	m, ok := user.(map[string]interface{})
	if !ok {
		return matchsvc.Actor{}, fmt.Errorf("User session is missing")
	}
	actor := matchsvc.Actor{}
	if s, _ := m["user_id"].(string); s != "" {
		if id, err := uuid.Parse(s); err == nil {
			actor.UserID = id
		}
	}
	if s, _ := m["org_id"].(string); s != "" {
		if id, err := uuid.Parse(s); err == nil {
			actor.OrgID = id
		}
	}
	actor.Role, _ = m["role"].(string)
	if actor.OrgID == uuid.Nil && actor.Role != domain.RoleAdmin {
		return matchsvc.Actor{}, fmt.Errorf("User is not associated with any organization")
	}
	return actor, nil
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
