package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/heartlog/rehab-api/internal/observability"
	apperrors "github.com/heartlog/rehab-api/pkg/util/errorutil"
)

// PublicPath is an allow-list entry. Prefix entries match the path itself and
// anything below it on a segment boundary.
type PublicPath struct {
	Path   string
	Prefix bool
}

// Exact matches one path.
func Exact(path string) PublicPath { return PublicPath{Path: path} }

// Prefix matches path and its sub-paths.
func Prefix(path string) PublicPath { return PublicPath{Path: strings.TrimSuffix(path, "/"), Prefix: true} }

// DefaultPublicPaths bypass the gate. Webhook and cron endpoints authenticate
// themselves with their own shared secrets.
var DefaultPublicPaths = []PublicPath{
	Prefix("/api/health"),
	Exact("/api/auth/login"),
	Exact("/api/auth/signup"),
	Exact("/api/auth/logout"),
	Prefix("/api/auth/password-reset"),
	Exact("/api/line/webhook"),
	Prefix("/api/invites"),
	Exact("/api/contact"),
	Prefix("/api/cron"),
}

// Matches reports whether path is covered by the entry. One trailing slash is
// ignored, the same way the router resolves "/x/" to "/x" without StrictRouting.
func (p PublicPath) Matches(path string) bool {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	if !p.Prefix {
		return path == p.Path
	}
	return path == p.Path || strings.HasPrefix(path, p.Path+"/")
}

// Gate is the single authorization choke point mounted in front of every API route.
type Gate struct {
	tokens  *TokenManager
	public  []PublicPath
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewGate builds a gate. The allow-list is copied and not modified afterwards.
func NewGate(tokens *TokenManager, public []PublicPath, logger *zap.Logger, metrics *observability.Metrics) *Gate {
	return &Gate{
		tokens:  tokens,
		public:  append([]PublicPath(nil), public...),
		logger:  logger,
		metrics: metrics,
	}
}

// IsPublic reports whether path bypasses authentication.
func (g *Gate) IsPublic(path string) bool {
	for _, entry := range g.public {
		if entry.Matches(path) {
			return true
		}
	}
	return false
}

// Handle verifies the caller before any guarded handler runs. Exempt paths pass
// through untouched; guarded paths never keep client-supplied identity headers.
func (g *Gate) Handle(c *fiber.Ctx) error {
	if g.IsPublic(c.Path()) {
		return c.Next()
	}

	c.Request().Header.Del(HeaderUserID)
	c.Request().Header.Del(HeaderRole)

	if !g.tokens.Configured() {
		g.deny(c, "misconfigured")
		g.logger.Error("auth gate has no signing secret; rejecting request", zap.String("path", c.Path()))
		return apperrors.NewConfigurationError("authentication is not configured")
	}

	token := ExtractToken(c)
	if token == "" {
		g.deny(c, "missing_token")
		return apperrors.NewUnauthorized("authentication required")
	}

	identity, ok := g.tokens.Verify(token)
	if !ok {
		g.deny(c, "invalid_token")
		return apperrors.NewUnauthorized("invalid or expired token")
	}

	c.Request().Header.Set(HeaderUserID, identity.UserID)
	c.Request().Header.Set(HeaderRole, string(identity.Role))
	c.Locals(gateVerifiedKey, true)
	return c.Next()
}

func (g *Gate) deny(c *fiber.Ctx, reason string) {
	g.metrics.RecordGateDenial(reason)
	g.logger.Debug("auth gate deny",
		zap.String("reason", reason),
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
	)
}
