package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/heartlog/rehab-api/internal/domain"
	"github.com/heartlog/rehab-api/internal/repository"
	apperrors "github.com/heartlog/rehab-api/pkg/util/errorutil"
)

// ShareService grants medical providers read access to a patient's vitals.
type ShareService struct {
	shares repository.ShareRepository
	users  repository.UserRepository
	vitals *VitalService
}

// NewShareService builds the service.
func NewShareService(shares repository.ShareRepository, users repository.UserRepository, vitals *VitalService) *ShareService {
	return &ShareService{shares: shares, users: users, vitals: vitals}
}

// Share grants the provider with providerEmail access. Sharing twice is a no-op.
func (s *ShareService) Share(ctx context.Context, patientID, providerEmail string) (*domain.User, error) {
	email := normalizeEmail(providerEmail)
	if !validEmail(email) {
		return nil, apperrors.NewValidationError("invalid share request", map[string]any{"provider_email": "must be a valid email address"})
	}

	provider, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && provider.Role != domain.RoleMedical) {
		return nil, apperrors.NewNotFound("medical provider", nil)
	}
	if err != nil {
		return nil, err
	}

	if err := s.shares.Create(ctx, patientID, provider.ID); err != nil {
		return nil, err
	}
	return provider, nil
}

// Revoke removes a provider's access.
func (s *ShareService) Revoke(ctx context.Context, patientID, providerID string) error {
	return notFound(s.shares.Delete(ctx, patientID, providerID), "share")
}

// ListPatients returns the patients who shared with providerID.
func (s *ShareService) ListPatients(ctx context.Context, providerID string) ([]domain.User, error) {
	return s.shares.ListPatients(ctx, providerID)
}

// PatientVitals returns a patient's vitals to a provider holding a share.
func (s *ShareService) PatientVitals(ctx context.Context, providerID, patientID string, limit int) ([]domain.Vital, error) {
	ok, err := s.shares.Exists(ctx, patientID, providerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewForbidden("patient has not shared records with you")
	}
	return s.vitals.List(ctx, patientID, limit)
}
