package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/heartlog/rehab-api/internal/domain"
	apperrors "github.com/heartlog/rehab-api/pkg/util/errorutil"
)

// Authenticator resolves the caller of a request.
type Authenticator struct {
	tokens *TokenManager
}

// NewAuthenticator constructs an authenticator.
func NewAuthenticator(tokens *TokenManager) *Authenticator {
	return &Authenticator{tokens: tokens}
}

// Authenticate returns the caller's identity. Sources are tried in order:
// headers injected by the gate for this request, a bearer token, the session cookie.
// Identity headers on a request the gate did not verify are ignored.
func (a *Authenticator) Authenticate(c *fiber.Ctx) (Identity, bool) {
	if gateVerified(c) {
		identity := Identity{
			UserID: c.Get(HeaderUserID),
			Role:   domain.Role(c.Get(HeaderRole)),
		}
		if identity.UserID != "" && identity.Role.Valid() {
			return identity, true
		}
	}

	token := ExtractToken(c)
	if token == "" {
		return Identity{}, false
	}
	return a.tokens.Verify(token)
}

// RequireAuth rejects unauthenticated requests and stores the identity for handlers.
func (a *Authenticator) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := a.Authenticate(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		WithIdentity(c, identity)
		return c.Next()
	}
}

// ExtractToken returns the bearer token, else the session cookie value, else "".
func ExtractToken(c *fiber.Ctx) string {
	if token := bearerToken(c.Get(fiber.HeaderAuthorization)); token != "" {
		return token
	}
	return c.Cookies(CookieName)
}

func bearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
