package errorutil

import "github.com/gofiber/fiber/v2"

// Respond writes err as the standard JSON error body and returns the DomainError written.
func Respond(c *fiber.Ctx, err error) *DomainError {
	domainErr := ToDomainError(err)
	body := fiber.Map{
		"code":    domainErr.Code,
		"message": domainErr.Message,
	}
	if len(domainErr.Details) > 0 {
		body["details"] = domainErr.Details
	}
	c.Status(domainErr.HTTPStatus)
	_ = c.JSON(fiber.Map{"error": body})
	return domainErr
}

// FiberErrorHandler adapts Respond to fiber.Config.ErrorHandler.
func FiberErrorHandler(c *fiber.Ctx, err error) error {
	Respond(c, err)
	return nil
}
