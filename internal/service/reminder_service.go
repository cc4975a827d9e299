package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/heartlog/rehab-api/internal/repository"
)

const msgReminder = "Hi %s, you have not logged your vitals today. Take a moment to record them in HeartLog."

// ReminderService pushes a daily reminder to patients who have not logged vitals.
type ReminderService struct {
	users     repository.UserRepository
	messenger Messenger
	location  *time.Location
	logger    *zap.Logger
	now       Clock
}

// ReminderResult counts one run.
type ReminderResult struct {
	Targets int `json:"targets"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
}

// NewReminderService builds the service. Days start at midnight in loc.
func NewReminderService(users repository.UserRepository, messenger Messenger, loc *time.Location, logger *zap.Logger) *ReminderService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReminderService{users: users, messenger: messenger, location: loc, logger: logger, now: time.Now}
}

// Run sends reminders once. Individual push failures are counted, not returned.
func (s *ReminderService) Run(ctx context.Context) (ReminderResult, error) {
	now := s.now().In(s.location)
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)

	targets, err := s.users.ListReminderTargets(ctx, startOfDay)
	if err != nil {
		return ReminderResult{}, err
	}

	result := ReminderResult{Targets: len(targets)}
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		name := target.DisplayName
		if name == "" {
			name = "there"
		}
		if err := s.messenger.Push(ctx, target.LineUserID, fmt.Sprintf(msgReminder, name)); err != nil {
			result.Failed++
			s.logger.Warn("reminder push failed", zap.String("user_id", target.UserID), zap.Error(err))
			continue
		}
		result.Sent++
	}

	s.logger.Info("reminders sent",
		zap.Int("targets", result.Targets),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}
