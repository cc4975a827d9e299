package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/heartlog/rehab-api/internal/api/dto"
	"github.com/heartlog/rehab-api/internal/service"
	apperrors "github.com/heartlog/rehab-api/pkg/util/errorutil"
)

// ProfileHandler serves the caller's own profile.
type ProfileHandler struct {
	profiles *service.ProfileService
}

// NewProfileHandler builds the handler.
func NewProfileHandler(profiles *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// Get handles GET /profiles.
func (h *ProfileHandler) Get(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	profile, err := h.profiles.Get(c.UserContext(), identity.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewProfileResponse(profile)})
}

// Update handles PUT /profiles.
func (h *ProfileHandler) Update(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}

	var req dto.ProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	in := service.ProfileInput{
		Sex:             req.Sex,
		Diagnosis:       req.Diagnosis,
		TargetHeartRate: req.TargetHeartRate,
		Phone:           req.Phone,
	}
	if req.BirthDate != nil && *req.BirthDate != "" {
		birthDate, err := time.Parse(dto.DateLayout, *req.BirthDate)
		if err != nil {
			return apperrors.NewValidationError("invalid profile", map[string]any{"birth_date": "must be YYYY-MM-DD"})
		}
		in.BirthDate = &birthDate
	}

	profile, err := h.profiles.Update(c.UserContext(), identity.UserID, in)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewProfileResponse(profile)})
}
