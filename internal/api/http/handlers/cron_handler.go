package handlers

import (
	"context"
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/heartlog/rehab-api/internal/service"
	apperrors "github.com/heartlog/rehab-api/pkg/util/errorutil"
)

// ReminderRunner sends one round of reminders.
type ReminderRunner interface {
	Run(ctx context.Context) (service.ReminderResult, error)
}

// CronHandler exposes scheduled jobs to an external scheduler.
type CronHandler struct {
	secret    string
	reminders ReminderRunner
	logger    *zap.Logger
}

// NewCronHandler builds the handler.
func NewCronHandler(secret string, reminders ReminderRunner, logger *zap.Logger) *CronHandler {
	return &CronHandler{secret: secret, reminders: reminders, logger: logger}
}

// Reminders handles GET|POST /cron/reminders?token=.
func (h *CronHandler) Reminders(c *fiber.Ctx) error {
	if err := h.authorize(c); err != nil {
		return err
	}
	result, err := h.reminders.Run(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}

func (h *CronHandler) authorize(c *fiber.Ctx) error {
	if h.secret == "" {
		h.logger.Error("cron endpoint called but CRON_SECRET is not set")
		return apperrors.NewConfigurationError("cron is not configured")
	}
	if subtle.ConstantTimeCompare([]byte(c.Query("token")), []byte(h.secret)) != 1 {
		return apperrors.NewUnauthorized("invalid cron token")
	}
	return nil
}
