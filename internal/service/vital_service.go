package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/heartlog/rehab-api/internal/domain"
	"github.com/heartlog/rehab-api/internal/events"
	"github.com/heartlog/rehab-api/internal/repository"
	apperrors "github.com/heartlog/rehab-api/pkg/util/errorutil"
)

const (
	defaultVitalLimit = 30
	maxVitalLimit     = 200
	futureSkew        = 5 * time.Minute
)

// VitalService records and lists self-measured vitals.
type VitalService struct {
	vitals     repository.VitalRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        Clock
}

// VitalInput is a new measurement. At least one value must be present.
type VitalInput struct {
	Systolic   *int
	Diastolic  *int
	HeartRate  *int
	WeightKg   *float64
	Note       string
	RecordedAt *time.Time
}

// NewVitalService builds the service.
func NewVitalService(vitals repository.VitalRepository, users repository.UserRepository, dispatcher events.Dispatcher, logger *zap.Logger) *VitalService {
	return &VitalService{vitals: vitals, users: users, dispatcher: dispatcher, logger: logger, now: time.Now}
}

// Record stores a measurement and announces it to subscribers.
func (s *VitalService) Record(ctx context.Context, patientID string, in VitalInput) (*domain.Vital, error) {
	now := s.now()
	note := sanitizeText(in.Note)

	fields := map[string]any{}
	if in.Systolic == nil && in.Diastolic == nil && in.HeartRate == nil && in.WeightKg == nil {
		fields["vitals"] = "at least one measurement is required"
	}
	checkRange(fields, "systolic", in.Systolic, 50, 300)
	checkRange(fields, "diastolic", in.Diastolic, 30, 200)
	checkRange(fields, "heart_rate", in.HeartRate, 20, 250)
	if in.WeightKg != nil && (*in.WeightKg < 10 || *in.WeightKg > 400) {
		fields["weight_kg"] = "must be between 10 and 400"
	}
	if in.Systolic != nil && in.Diastolic != nil && *in.Diastolic >= *in.Systolic {
		fields["diastolic"] = "must be lower than systolic"
	}
	if tooLong(note, 500) {
		fields["note"] = "must be at most 500 characters"
	}
	recordedAt := now
	if in.RecordedAt != nil {
		recordedAt = *in.RecordedAt
		if recordedAt.After(now.Add(futureSkew)) {
			fields["recorded_at"] = "must not be in the future"
		}
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidationError("invalid vital record", fields)
	}

	vital := &domain.Vital{
		PatientID:  patientID,
		Systolic:   in.Systolic,
		Diastolic:  in.Diastolic,
		HeartRate:  in.HeartRate,
		WeightKg:   in.WeightKg,
		Note:       note,
		RecordedAt: recordedAt,
	}
	if err := s.vitals.Create(ctx, vital); err != nil {
		return nil, err
	}

	s.publish(ctx, vital)
	return vital, nil
}

// List returns the patient's most recent vitals.
func (s *VitalService) List(ctx context.Context, patientID string, limit int) ([]domain.Vital, error) {
	if limit <= 0 {
		limit = defaultVitalLimit
	}
	if limit > maxVitalLimit {
		limit = maxVitalLimit
	}
	return s.vitals.ListByPatient(ctx, patientID, limit)
}

func (s *VitalService) publish(ctx context.Context, vital *domain.Vital) {
	if s.dispatcher == nil {
		return
	}
	name := ""
	if user, err := s.users.GetByID(ctx, vital.PatientID); err == nil {
		name = user.DisplayName
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventVitalRecorded,
		PatientID: vital.PatientID,
		Timestamp: s.now(),
		Payload: events.VitalRecordedPayload{
			VitalID:     vital.ID,
			PatientName: name,
			Systolic:    vital.Systolic,
			Diastolic:   vital.Diastolic,
			HeartRate:   vital.HeartRate,
			WeightKg:    vital.WeightKg,
			RecordedAt:  vital.RecordedAt,
		},
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish vital_recorded failed", zap.String("vital_id", vital.ID), zap.Error(err))
	}
}

func checkRange(fields map[string]any, name string, v *int, lo, hi int) {
	if v != nil && (*v < lo || *v > hi) {
		fields[name] = "out of range"
	}
}
