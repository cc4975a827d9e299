package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/heartlog/rehab-api/internal/domain"
	apperrors "github.com/heartlog/rehab-api/pkg/util/errorutil"
)

// RequireRole ensures the authenticated caller has one of the allowed roles.
// It must run after RequireAuth.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if _, exists := allowedSet[identity.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
