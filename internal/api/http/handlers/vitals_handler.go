package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/heartlog/rehab-api/internal/api/dto"
	"github.com/heartlog/rehab-api/internal/service"
)

// VitalsHandler records and lists a patient's own vitals.
type VitalsHandler struct {
	vitals *service.VitalService
}

// NewVitalsHandler builds the handler.
func NewVitalsHandler(vitals *service.VitalService) *VitalsHandler {
	return &VitalsHandler{vitals: vitals}
}

// Record handles POST /vitals.
func (h *VitalsHandler) Record(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}

	var req dto.VitalRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	vital, err := h.vitals.Record(c.UserContext(), identity.UserID, service.VitalInput{
		Systolic:   req.Systolic,
		Diastolic:  req.Diastolic,
		HeartRate:  req.HeartRate,
		WeightKg:   req.WeightKg,
		Note:       req.Note,
		RecordedAt: req.RecordedAt,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewVitalResponse(vital)})
}

// List handles GET /vitals?limit=.
func (h *VitalsHandler) List(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	limit, err := queryLimit(c)
	if err != nil {
		return err
	}

	vitals, err := h.vitals.List(c.UserContext(), identity.UserID, limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewVitalList(vitals)})
}
