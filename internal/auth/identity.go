package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/heartlog/rehab-api/internal/domain"
)

const (
	// HeaderUserID and HeaderRole carry the identity verified by the gate.
	HeaderUserID = "x-auth-user-id"
	HeaderRole   = "x-auth-role"

	identityKey     = "auth_identity"
	gateVerifiedKey = "auth_gate_verified"
)

// Identity is the per-request authorization context.
type Identity struct {
	UserID string
	Role   domain.Role
}

// IdentityFromContext retrieves the identity stored by RequireAuth.
func IdentityFromContext(c *fiber.Ctx) (Identity, bool) {
	identity, ok := c.Locals(identityKey).(Identity)
	if !ok || identity.UserID == "" {
		return Identity{}, false
	}
	return identity, true
}

// WithIdentity stores identity on the request.
func WithIdentity(c *fiber.Ctx, identity Identity) {
	c.Locals(identityKey, identity)
}

func gateVerified(c *fiber.Ctx) bool {
	verified, _ := c.Locals(gateVerifiedKey).(bool)
	return verified
}
