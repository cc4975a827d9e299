package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/heartlog/rehab-api/internal/api/dto"
	"github.com/heartlog/rehab-api/internal/service"
)

// SharesHandler covers both sides of medical sharing.
type SharesHandler struct {
	shares *service.ShareService
}

// NewSharesHandler builds the handler.
func NewSharesHandler(shares *service.ShareService) *SharesHandler {
	return &SharesHandler{shares: shares}
}

// Share handles POST /shares.
func (h *SharesHandler) Share(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	var req dto.ShareRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	provider, err := h.shares.Share(c.UserContext(), identity.UserID, req.ProviderEmail)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{"provider_id": provider.ID, "provider_name": provider.DisplayName},
	})
}

// Revoke handles DELETE /shares/:providerId.
func (h *SharesHandler) Revoke(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	if err := h.shares.Revoke(c.UserContext(), identity.UserID, c.Params("providerId")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListPatients handles GET /patients.
func (h *SharesHandler) ListPatients(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	patients, err := h.shares.ListPatients(c.UserContext(), identity.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewPatientList(patients)})
}

// PatientVitals handles GET /patients/:id/vitals.
func (h *SharesHandler) PatientVitals(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	limit, err := queryLimit(c)
	if err != nil {
		return err
	}

	vitals, err := h.shares.PatientVitals(c.UserContext(), identity.UserID, c.Params("id"), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewVitalList(vitals)})
}
