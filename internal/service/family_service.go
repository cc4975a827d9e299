package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/heartlog/rehab-api/internal/config"
	"github.com/heartlog/rehab-api/internal/domain"
	"github.com/heartlog/rehab-api/internal/repository"
	apperrors "github.com/heartlog/rehab-api/pkg/util/errorutil"
)

const maxCodeAttempts = 3

// FamilyService manages a patient's family members and their invites.
type FamilyService struct {
	members    repository.FamilyRepository
	codeTTL    time.Duration
	codeLength int
	newCode    func(int) (string, error)
	now        Clock
}

// FamilyMemberInput is the editable part of a family member.
type FamilyMemberInput struct {
	Name          string
	Relationship  string
	NotifyEnabled bool
}

// NewFamilyService builds the service.
func NewFamilyService(members repository.FamilyRepository, cfg config.LinkCodeConfig) *FamilyService {
	return &FamilyService{
		members:    members,
		codeTTL:    cfg.TTL(),
		codeLength: cfg.Length,
		newCode:    GenerateLinkCode,
		now:        time.Now,
	}
}

// List returns the patient's family members.
func (s *FamilyService) List(ctx context.Context, patientID string) ([]domain.FamilyMember, error) {
	return s.members.ListByPatient(ctx, patientID)
}

// Create adds a member with an open invite code.
func (s *FamilyService) Create(ctx context.Context, patientID string, in FamilyMemberInput) (*domain.FamilyMember, error) {
	member := &domain.FamilyMember{PatientID: patientID, NotifyEnabled: in.NotifyEnabled}
	if err := applyMemberInput(member, in); err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		code, err := s.newCode(s.codeLength)
		if err != nil {
			return nil, err
		}
		expires := s.now().Add(s.codeTTL)
		member.LinkCode = &code
		member.LinkCodeExpiresAt = &expires

		err = s.members.Create(ctx, member)
		if err == nil {
			return member, nil
		}
		if !apperrors.IsUniqueViolation(err) || attempt+1 >= maxCodeAttempts {
			return nil, err
		}
	}
}

// Update changes a member's details.
func (s *FamilyService) Update(ctx context.Context, patientID, id string, in FamilyMemberInput) (*domain.FamilyMember, error) {
	member, err := s.get(ctx, patientID, id)
	if err != nil {
		return nil, err
	}
	if err := applyMemberInput(member, in); err != nil {
		return nil, err
	}
	member.NotifyEnabled = in.NotifyEnabled
	if err := s.members.Update(ctx, member); err != nil {
		return nil, notFound(err, "family member")
	}
	return member, nil
}

// Delete removes a member.
func (s *FamilyService) Delete(ctx context.Context, patientID, id string) error {
	return notFound(s.members.Delete(ctx, patientID, id), "family member")
}

// RotateInvite replaces the member's code and restarts its expiry.
func (s *FamilyService) RotateInvite(ctx context.Context, patientID, id string) (*domain.FamilyMember, error) {
	member, err := s.get(ctx, patientID, id)
	if err != nil {
		return nil, err
	}
	if member.Linked() {
		return nil, apperrors.NewConflict("family member is already linked", nil)
	}

	for attempt := 0; ; attempt++ {
		code, err := s.newCode(s.codeLength)
		if err != nil {
			return nil, err
		}
		expires := s.now().Add(s.codeTTL)

		err = s.members.SetLinkCode(ctx, patientID, id, code, expires)
		if err == nil {
			member.LinkCode = &code
			member.LinkCodeExpiresAt = &expires
			return member, nil
		}
		if errors.Is(err, pgx.ErrNoRows) {
			// linked between the read and the update
			return nil, apperrors.NewConflict("family member is already linked", nil)
		}
		if !apperrors.IsUniqueViolation(err) || attempt+1 >= maxCodeAttempts {
			return nil, err
		}
	}
}

// GetInvite resolves an open invite for the public invite page.
func (s *FamilyService) GetInvite(ctx context.Context, code string) (*domain.Invite, error) {
	code = NormalizeLinkCode(code)
	if !looksLikeLinkCode(code, s.codeLength) {
		return nil, apperrors.NewNotFound("invite", nil)
	}
	invite, err := s.members.GetInvite(ctx, code, s.now())
	if err != nil {
		return nil, notFound(err, "invite")
	}
	return invite, nil
}

func (s *FamilyService) get(ctx context.Context, patientID, id string) (*domain.FamilyMember, error) {
	member, err := s.members.GetByID(ctx, patientID, id)
	if err != nil {
		return nil, notFound(err, "family member")
	}
	return member, nil
}

func applyMemberInput(member *domain.FamilyMember, in FamilyMemberInput) error {
	name := sanitizeText(in.Name)
	relationship := sanitizeText(in.Relationship)

	fields := map[string]any{}
	if name == "" || tooLong(name, 100) {
		fields["name"] = "is required and must be at most 100 characters"
	}
	if tooLong(relationship, 50) {
		fields["relationship"] = "must be at most 50 characters"
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError("invalid family member", fields)
	}
	member.Name = name
	member.Relationship = relationship
	return nil
}

// notFound maps pgx.ErrNoRows to a NotFound error for resource.
func notFound(err error, resource string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, nil)
	}
	return err
}
