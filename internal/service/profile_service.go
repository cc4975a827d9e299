package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/heartlog/rehab-api/internal/domain"
	"github.com/heartlog/rehab-api/internal/repository"
	apperrors "github.com/heartlog/rehab-api/pkg/util/errorutil"
)

var validSex = map[string]bool{"": true, "male": true, "female": true, "other": true}

// ProfileService manages the caller's own profile.
type ProfileService struct {
	profiles repository.ProfileRepository
	now      Clock
}

// ProfileInput is the editable part of a profile.
type ProfileInput struct {
	BirthDate       *time.Time
	Sex             string
	Diagnosis       string
	TargetHeartRate *int
	Phone           string
}

// NewProfileService builds the service.
func NewProfileService(profiles repository.ProfileRepository) *ProfileService {
	return &ProfileService{profiles: profiles, now: time.Now}
}

// Get returns the profile, or an empty one if none was saved yet.
func (s *ProfileService) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	profile, err := s.profiles.Get(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.Profile{UserID: userID}, nil
	}
	return profile, err
}

// Update replaces the caller's profile.
func (s *ProfileService) Update(ctx context.Context, userID string, in ProfileInput) (*domain.Profile, error) {
	diagnosis := sanitizeText(in.Diagnosis)
	phone := sanitizeText(in.Phone)

	fields := map[string]any{}
	if !validSex[in.Sex] {
		fields["sex"] = "must be male, female or other"
	}
	if in.BirthDate != nil && in.BirthDate.After(s.now()) {
		fields["birth_date"] = "must be in the past"
	}
	if in.TargetHeartRate != nil && (*in.TargetHeartRate < 40 || *in.TargetHeartRate > 220) {
		fields["target_heart_rate"] = "must be between 40 and 220"
	}
	if tooLong(diagnosis, 500) {
		fields["diagnosis"] = "must be at most 500 characters"
	}
	if tooLong(phone, 30) {
		fields["phone"] = "must be at most 30 characters"
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidationError("invalid profile", fields)
	}

	profile := &domain.Profile{
		UserID:          userID,
		BirthDate:       in.BirthDate,
		Sex:             in.Sex,
		Diagnosis:       diagnosis,
		TargetHeartRate: in.TargetHeartRate,
		Phone:           phone,
	}
	if err := s.profiles.Upsert(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}
