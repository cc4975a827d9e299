package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/heartlog/rehab-api/internal/api/dto"
	"github.com/heartlog/rehab-api/internal/service"
)

// ContactHandler accepts the public contact form.
type ContactHandler struct {
	contact *service.ContactService
}

// NewContactHandler builds the handler.
func NewContactHandler(contact *service.ContactService) *ContactHandler {
	return &ContactHandler{contact: contact}
}

// Submit handles POST /contact.
func (h *ContactHandler) Submit(c *fiber.Ctx) error {
	var req dto.ContactRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	msg, err := h.contact.Submit(c.UserContext(), req.Name, req.Email, req.Message)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{"id": msg.ID}})
}
