package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/heartlog/rehab-api/internal/api/dto"
	"github.com/heartlog/rehab-api/internal/domain"
	"github.com/heartlog/rehab-api/internal/service"
)

// FamilyHandler manages a patient's family members and their invites.
type FamilyHandler struct {
	family *service.FamilyService
}

// NewFamilyHandler builds the handler.
func NewFamilyHandler(family *service.FamilyService) *FamilyHandler {
	return &FamilyHandler{family: family}
}

// List handles GET /family-members.
func (h *FamilyHandler) List(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	members, err := h.family.List(c.UserContext(), identity.UserID)
	if err != nil {
		return err
	}

	items := make([]dto.FamilyMemberResponse, 0, len(members))
	for i := range members {
		items = append(items, dto.NewFamilyMemberResponse(&members[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Create handles POST /family-members.
func (h *FamilyHandler) Create(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	in, err := memberInput(c)
	if err != nil {
		return err
	}

	member, err := h.family.Create(c.UserContext(), identity.UserID, in)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewFamilyMemberResponse(member)})
}

// Update handles PUT /family-members/:id.
func (h *FamilyHandler) Update(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	in, err := memberInput(c)
	if err != nil {
		return err
	}

	member, err := h.family.Update(c.UserContext(), identity.UserID, c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewFamilyMemberResponse(member)})
}

// Delete handles DELETE /family-members/:id.
func (h *FamilyHandler) Delete(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	if err := h.family.Delete(c.UserContext(), identity.UserID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// RotateInvite handles POST /family-members/:id/invite.
func (h *FamilyHandler) RotateInvite(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	member, err := h.family.RotateInvite(c.UserContext(), identity.UserID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewFamilyMemberResponse(member)})
}

// GetInvite handles GET /invites/:code. It is public; the code is the credential.
func (h *FamilyHandler) GetInvite(c *fiber.Ctx) error {
	invite, err := h.family.GetInvite(c.UserContext(), c.Params("code"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": inviteResponse(invite)})
}

// memberInput parses the request body. A missing notify_enabled means enabled.
func memberInput(c *fiber.Ctx) (service.FamilyMemberInput, error) {
	var req dto.FamilyMemberRequest
	if err := parseBody(c, &req); err != nil {
		return service.FamilyMemberInput{}, err
	}
	in := service.FamilyMemberInput{
		Name:          req.Name,
		Relationship:  req.Relationship,
		NotifyEnabled: true,
	}
	if req.NotifyEnabled != nil {
		in.NotifyEnabled = *req.NotifyEnabled
	}
	return in, nil
}

func inviteResponse(invite *domain.Invite) dto.InviteResponse {
	return dto.InviteResponse{
		Code:        invite.Code,
		PatientName: invite.PatientDisplayName,
		MemberName:  invite.MemberName,
		ExpiresAt:   invite.ExpiresAt,
	}
}
