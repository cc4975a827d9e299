package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/heartlog/rehab-api/internal/auth"
	apperrors "github.com/heartlog/rehab-api/pkg/util/errorutil"
)

func currentIdentity(c *fiber.Ctx) (auth.Identity, error) {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return auth.Identity{}, apperrors.NewUnauthorized("authentication required")
	}
	return identity, nil
}

// queryLimit reads ?limit=, returning 0 (service default) when absent.
func queryLimit(c *fiber.Ctx) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, apperrors.NewValidationError("invalid limit", map[string]any{"limit": "must be a non-negative integer"})
	}
	return limit, nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}
