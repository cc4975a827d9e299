package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/heartlog/rehab-api/internal/events"
	"github.com/heartlog/rehab-api/internal/repository"
)

// NotificationService pushes domain events to linked family members over LINE.
type NotificationService struct {
	dispatcher events.Dispatcher
	members    repository.FamilyRepository
	messenger  Messenger
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, members repository.FamilyRepository, messenger Messenger, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		members:    members,
		messenger:  messenger,
		logger:     logger,
	}
}

// Name identifies the subscriber in logs.
func (n *NotificationService) Name() string { return "family-notifications" }

// RegisterHandlers subscribes to events and returns the event types it attached to.
func (n *NotificationService) RegisterHandlers() []events.EventType {
	if n == nil || n.dispatcher == nil {
		return nil
	}
	n.dispatcher.Subscribe(events.EventVitalRecorded, n.handleVitalRecorded)
	n.dispatcher.Subscribe(events.EventFamilyLinked, n.handleLinked)
	n.dispatcher.Subscribe(events.EventSelfLinked, n.handleLinked)
	return []events.EventType{events.EventVitalRecorded, events.EventFamilyLinked, events.EventSelfLinked}
}

func (n *NotificationService) handleVitalRecorded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.VitalRecordedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}

	members, err := n.members.ListNotifiable(ctx, event.PatientID)
	if err != nil {
		return fmt.Errorf("list notifiable family members: %w", err)
	}

	text := FormatVitalSummary(payload)
	failed := 0
	for _, member := range members {
		if !member.Linked() {
			continue
		}
		if err := n.messenger.Push(ctx, *member.LineUserID, text); err != nil {
			failed++
			n.logger.Warn("family notification failed",
				zap.String("patient_id", event.PatientID),
				zap.String("member_id", member.ID),
				zap.Error(err),
			)
		}
	}
	n.logger.Debug("vital_recorded notifications",
		zap.String("patient_id", event.PatientID),
		zap.Int("recipients", len(members)),
		zap.Int("failed", failed),
	)
	return nil
}

func (n *NotificationService) handleLinked(_ context.Context, event events.Event) error {
	n.logger.Info("line account linked",
		zap.String("event_type", string(event.Type)),
		zap.String("patient_id", event.PatientID),
	)
	return nil
}

// FormatVitalSummary renders the push text for a new measurement.
func FormatVitalSummary(p events.VitalRecordedPayload) string {
	name := p.PatientName
	if name == "" {
		name = "Your family member"
	}

	var parts []string
	if p.Systolic != nil && p.Diastolic != nil {
		parts = append(parts, fmt.Sprintf("BP %d/%d mmHg", *p.Systolic, *p.Diastolic))
	} else if p.Systolic != nil {
		parts = append(parts, fmt.Sprintf("systolic %d mmHg", *p.Systolic))
	} else if p.Diastolic != nil {
		parts = append(parts, fmt.Sprintf("diastolic %d mmHg", *p.Diastolic))
	}
	if p.HeartRate != nil {
		parts = append(parts, fmt.Sprintf("pulse %d bpm", *p.HeartRate))
	}
	if p.WeightKg != nil {
		parts = append(parts, fmt.Sprintf("weight %.1f kg", *p.WeightKg))
	}
	return fmt.Sprintf("%s recorded vitals: %s", name, strings.Join(parts, ", "))
}
