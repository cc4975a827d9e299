package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/heartlog/rehab-api/internal/api/dto"
	"github.com/heartlog/rehab-api/internal/domain"
	"github.com/heartlog/rehab-api/internal/line"
	"github.com/heartlog/rehab-api/internal/service"
	apperrors "github.com/heartlog/rehab-api/pkg/util/errorutil"
)

// LinkProcessor is the part of the link service used by the LINE endpoints.
type LinkProcessor interface {
	ProcessWebhook(ctx context.Context, payload *line.WebhookPayload) service.WebhookSummary
	IssueSelfLinkCode(ctx context.Context, userID string) (*domain.SelfLinkCode, error)
}

// LineHandler receives LINE webhooks and issues self-link codes.
type LineHandler struct {
	channelSecret string
	links         LinkProcessor
	logger        *zap.Logger
}

// NewLineHandler builds the handler.
func NewLineHandler(channelSecret string, links LinkProcessor, logger *zap.Logger) *LineHandler {
	return &LineHandler{channelSecret: channelSecret, links: links, logger: logger}
}

// Webhook handles POST /line/webhook. The signature covers the raw body, so it is
// checked before anything parses it. Once verified the delivery is always
// acknowledged with 200; per-event failures are only logged.
func (h *LineHandler) Webhook(c *fiber.Ctx) error {
	body := c.Request().Body()

	if err := line.VerifySignature(h.channelSecret, body, c.Get(line.SignatureHeader)); err != nil {
		if errors.Is(err, line.ErrMissingSecret) {
			h.logger.Error("line webhook received but LINE_CHANNEL_SECRET is not set")
			return apperrors.NewConfigurationError("line webhook is not configured")
		}
		h.logger.Warn("line webhook signature rejected", zap.String("ip", c.IP()))
		return apperrors.NewUnauthorized("invalid signature")
	}

	payload, err := line.ParseWebhook(body)
	if err != nil {
		h.logger.Warn("line webhook payload unreadable", zap.Error(err))
		return c.SendStatus(http.StatusOK)
	}

	summary := h.links.ProcessWebhook(c.UserContext(), payload)
	h.logger.Debug("line webhook processed",
		zap.Int("events", len(payload.Events)),
		zap.Int("processed", summary.Processed),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("ignored", summary.Ignored),
		zap.Int("failed", summary.Failed),
	)
	return c.SendStatus(http.StatusOK)
}

// IssueLinkCode handles POST /line/link-code.
func (h *LineHandler) IssueLinkCode(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	code, err := h.links.IssueSelfLinkCode(c.UserContext(), identity.UserID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.LinkCodeResponse{Code: code.Code, ExpiresAt: code.ExpiresAt},
	})
}
