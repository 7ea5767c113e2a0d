package contracts

import (
	"fmt"
	"strconv"
	"time"

	contractsvc "github.com/steeldragon666/abfi-nextgen-sub001/internal/application/contracts"
	"github.com/steeldragon666/abfi-nextgen-sub001/internal/domain"
	"github.com/steeldragon666/abfi-nextgen-sub001/internal/middleware"
	"github.com/steeldragon666/abfi-nextgen-sub001/internal/pkg/apperrors"
	"github.com/steeldragon666/abfi-nextgen-sub001/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *contractsvc.Service
}

// POST /api/v1/contracts/sign-contract
func (h *Handlers) SignContract(c *fiber.Ctx) error {
	var body struct {
		ContractNumber string `json:"contract_number"`
	}
	if err := c.BodyParser(&body); err != nil || body.ContractNumber == "" {
		return response.Error(c, "contract_number is required", 400, nil)
	}
	actor, err := getActor(c)
	if err != nil {
		return response.Error(c, err.Error(), 403, nil)
	}
	contract, err := h.Service.SignContract(c.Context(), actor, body.ContractNumber)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Contract signed successfully", contract, nil)
}

// GET /api/v1/contracts/get-contract/:contract_number
func (h *Handlers) GetContract(c *fiber.Ctx) error {
	contractNumber := c.Params("contract_number")
	if contractNumber == "" {
		return response.Error(c, "contract_number is required", 400, nil)
	}
	actor, err := getActor(c)
	if err != nil {
		return response.Error(c, err.Error(), 403, nil)
	}
	view, err := h.Service.GetContract(c.Context(), actor, contractNumber)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Contract fetched successfully", view, nil)
}

// GET /api/v1/contracts/list-contracts?status=&role=&limit=&offset=
func (h *Handlers) ListContracts(c *fiber.Ctx) error {
	actor, err := getActor(c)
	if err != nil {
		return response.Error(c, err.Error(), 403, nil)
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	contracts, total, err := h.Service.ListContracts(c.Context(), actor, c.Query("status"), c.Query("role"), limit, offset)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Contracts fetched successfully", contracts, fiber.Map{"total": total})
}

// GET /api/v1/contracts/get-contract-deliveries/:contract_number
func (h *Handlers) GetContractDeliveries(c *fiber.Ctx) error {
	contractNumber := c.Params("contract_number")
	if contractNumber == "" {
		return response.Error(c, "contract_number is required", 400, nil)
	}
	actor, err := getActor(c)
	if err != nil {
		return response.Error(c, err.Error(), 403, nil)
	}
	deliveries, progress, err := h.Service.GetContractDeliveries(c.Context(), actor, contractNumber)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Deliveries fetched successfully", deliveries, fiber.Map{"progress": progress})
}

type updateDeliveryBody struct {
	DeliveryID         string                 `json:"delivery_id"`
	Status             string                 `json:"status"`
	ActualVolumeTonnes *float64               `json:"actual_volume_tonnes"`
	ActualDate         *string                `json:"actual_date"`
	QualityResults     map[string]interface{} `json:"quality_results"`
	QualityPassed      *bool                  `json:"quality_passed"`
	Notes              string                 `json:"notes"`
}

// POST /api/v1/contracts/update-delivery-status
func (h *Handlers) UpdateDeliveryStatus(c *fiber.Ctx) error {
	var body updateDeliveryBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "delivery_id and status are required", 400, nil)
	}
	if body.DeliveryID == "" || body.Status == "" {
		return response.Error(c, "delivery_id and status are required", 400, nil)
	}
	actor, err := getActor(c)
	if err != nil {
		return response.Error(c, err.Error(), 403, nil)
	}
	actualDate, err := parseDate(body.ActualDate)
	if err != nil {
		return response.Error(c, "Invalid actual_date format", 400, nil)
	}

	delivery, err := h.Service.UpdateDeliveryStatus(c.Context(), actor, contractsvc.UpdateDeliveryInput{
		DeliveryID:         body.DeliveryID,
		Status:             body.Status,
		ActualVolumeTonnes: body.ActualVolumeTonnes,
		ActualDate:         actualDate,
		QualityResults:     body.QualityResults,
		QualityPassed:      body.QualityPassed,
		Notes:              body.Notes,
	})
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Delivery updated successfully", delivery, nil)
}

// --- helpers ---

func getActor(c *fiber.Ctx) (contractsvc.Actor, error) {
	user := middleware.GetUser(c)
	m, ok := user.(map[string]interface{})
	if !ok {
		return contractsvc.Actor{}, fmt.Errorf("User session is missing")
	}
	actor := contractsvc.Actor{}
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
		return contractsvc.Actor{}, fmt.Errorf("User is not associated with any organization")
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
