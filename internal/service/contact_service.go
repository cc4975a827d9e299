package service

import (
	"context"

	"github.com/heartlog/rehab-api/internal/domain"
	"github.com/heartlog/rehab-api/internal/repository"
	apperrors "github.com/heartlog/rehab-api/pkg/util/errorutil"
)

// ContactService stores public contact form submissions.
type ContactService struct {
	messages repository.ContactRepository
}

// NewContactService builds the service.
func NewContactService(messages repository.ContactRepository) *ContactService {
	return &ContactService{messages: messages}
}

// Submit sanitizes and stores a message.
func (s *ContactService) Submit(ctx context.Context, name, email, message string) (*domain.ContactMessage, error) {
	msg := &domain.ContactMessage{
		Name:    sanitizeText(name),
		Email:   normalizeEmail(email),
		Message: sanitizeText(message),
	}

	fields := map[string]any{}
	if msg.Name == "" || tooLong(msg.Name, 100) {
		fields["name"] = "is required and must be at most 100 characters"
	}
	if !validEmail(msg.Email) {
		fields["email"] = "must be a valid email address"
	}
	if msg.Message == "" || tooLong(msg.Message, 2000) {
		fields["message"] = "is required and must be at most 2000 characters"
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidationError("invalid contact message", fields)
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
