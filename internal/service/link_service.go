package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/heartlog/rehab-api/internal/config"
	"github.com/heartlog/rehab-api/internal/domain"
	"github.com/heartlog/rehab-api/internal/events"
	"github.com/heartlog/rehab-api/internal/line"
	"github.com/heartlog/rehab-api/internal/observability"
	"github.com/heartlog/rehab-api/internal/repository"
	apperrors "github.com/heartlog/rehab-api/pkg/util/errorutil"
)

// Webhook event outcomes, used as metric labels.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeFailed    = "failed"
)

const (
	msgWelcome       = "Thanks for adding HeartLog! Send the 8-character link code shown in the app to connect your account."
	msgUsage         = "To connect, send the 8-character link code shown in the HeartLog app."
	msgCodeInvalid   = "That link code is invalid, expired or already used. Ask for a new one in the app."
	msgAlreadyLinked = "This LINE account is already connected to that patient."
	msgSelfLinked    = "Your LINE account is now connected. Daily reminders will arrive here."
	msgFamilyLinked  = "You are now connected as %s and will receive %s's records here."
)

// errReplyFailed marks failures that happened after state was already changed.
var errReplyFailed = errors.New("line reply failed")

// LinkService consumes link codes delivered through the LINE webhook.
type LinkService struct {
	families   repository.FamilyRepository
	selfLinks  repository.LineLinkRepository
	users      repository.UserRepository
	messenger  Messenger
	deduper    EventDeduper
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	codeTTL    time.Duration
	codeLength int
	newCode    func(int) (string, error)
	now        Clock
}

// LinkDependencies bundles collaborators for the link service.
type LinkDependencies struct {
	FamilyRepo   repository.FamilyRepository
	LineLinkRepo repository.LineLinkRepository
	UserRepo     repository.UserRepository
	Messenger    Messenger
	Deduper      EventDeduper
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
}

// WebhookSummary counts outcomes of one webhook delivery.
type WebhookSummary struct {
	Processed  int
	Duplicates int
	Ignored    int
	Failed     int
}

// NewLinkService builds the service.
func NewLinkService(cfg config.LinkCodeConfig, deps LinkDependencies, logger *zap.Logger) *LinkService {
	return &LinkService{
		families:   deps.FamilyRepo,
		selfLinks:  deps.LineLinkRepo,
		users:      deps.UserRepo,
		messenger:  deps.Messenger,
		deduper:    deps.Deduper,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		metrics:    deps.Metrics,
		codeTTL:    cfg.TTL(),
		codeLength: cfg.Length,
		newCode:    GenerateLinkCode,
		now:        time.Now,
	}
}

// IssueSelfLinkCode creates a code the user sends from their own LINE account.
func (s *LinkService) IssueSelfLinkCode(ctx context.Context, userID string) (*domain.SelfLinkCode, error) {
	for attempt := 0; ; attempt++ {
		code, err := s.newCode(s.codeLength)
		if err != nil {
			return nil, err
		}
		link := &domain.SelfLinkCode{
			Code:      code,
			UserID:    userID,
			ExpiresAt: s.now().Add(s.codeTTL),
		}
		err = s.selfLinks.Create(ctx, link)
		if err == nil {
			return link, nil
		}
		if !apperrors.IsUniqueViolation(err) || attempt+1 >= maxCodeAttempts {
			return nil, err
		}
	}
}

// Consume applies code for lineUserID, trying family invites before self links.
// A nil result with nil error means nothing was open for the code.
func (s *LinkService) Consume(ctx context.Context, code, lineUserID string) (*domain.LinkResult, error) {
	code = NormalizeLinkCode(code)
	if lineUserID == "" || !looksLikeLinkCode(code, s.codeLength) {
		return nil, nil
	}
	now := s.now()

	member, applied, err := s.families.ConsumeLinkCode(ctx, code, lineUserID, now)
	if err != nil {
		if apperrors.IsUniqueViolation(err) {
			return nil, apperrors.NewConflict("line account already linked to this patient", nil)
		}
		return nil, fmt.Errorf("consume family code: %w", err)
	}
	if applied {
		return &domain.LinkResult{
			Target:    domain.LinkTargetFamily,
			PatientID: member.PatientID,
			MemberID:  member.ID,
			Name:      member.Name,
		}, nil
	}

	link, applied, err := s.selfLinks.Consume(ctx, code, lineUserID, now)
	if err != nil {
		if apperrors.IsUniqueViolation(err) {
			return nil, apperrors.NewConflict("line account already linked to another user", nil)
		}
		return nil, fmt.Errorf("consume self link code: %w", err)
	}
	if applied {
		return &domain.LinkResult{Target: domain.LinkTargetSelf, UserID: link.UserID}, nil
	}
	return nil, nil
}

// ProcessWebhook handles each event independently. Failures are logged and counted,
// never returned, so the delivery is always acknowledged.
func (s *LinkService) ProcessWebhook(ctx context.Context, payload *line.WebhookPayload) WebhookSummary {
	var summary WebhookSummary
	if payload == nil {
		return summary
	}
	for _, ev := range payload.Events {
		outcome := s.processEvent(ctx, ev)
		s.metrics.RecordWebhookEvent(ev.Type, outcome)
		switch outcome {
		case OutcomeProcessed:
			summary.Processed++
		case OutcomeDuplicate:
			summary.Duplicates++
		case OutcomeIgnored:
			summary.Ignored++
		default:
			summary.Failed++
		}
	}
	return summary
}

func (s *LinkService) processEvent(ctx context.Context, ev line.Event) (outcome string) {
	logger := s.logger.With(
		zap.String("event_type", ev.Type),
		zap.String("webhook_event_id", ev.WebhookEventID),
		zap.Bool("redelivery", ev.DeliveryContext.IsRedelivery),
	)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("webhook event panicked", zap.Any("panic", r))
			outcome = OutcomeFailed
		}
	}()

	claimed := true
	if s.deduper != nil {
		var err error
		claimed, err = s.deduper.Claim(ctx, ev.WebhookEventID)
		if err != nil {
			logger.Warn("webhook dedupe unavailable; processing anyway", zap.Error(err))
			claimed = true
		}
	}
	if !claimed {
		logger.Debug("skipping duplicate webhook event")
		return OutcomeDuplicate
	}

	handled, err := s.HandleEvent(ctx, ev)
	if err != nil {
		if s.deduper != nil && !errors.Is(err, errReplyFailed) {
			if releaseErr := s.deduper.Release(ctx, ev.WebhookEventID); releaseErr != nil {
				logger.Warn("release webhook event claim", zap.Error(releaseErr))
			}
		}
		logger.Warn("webhook event failed", zap.Error(err))
		return OutcomeFailed
	}
	if !handled {
		return OutcomeIgnored
	}
	return OutcomeProcessed
}

// HandleEvent dispatches one verified webhook event. handled is false for event
// kinds the service does not act on.
func (s *LinkService) HandleEvent(ctx context.Context, ev line.Event) (handled bool, err error) {
	lineUserID := ev.Source.UserID
	switch {
	case ev.Type == line.EventFollow:
		return true, s.reply(ctx, ev.ReplyToken, msgWelcome)
	case ev.Type == line.EventUnfollow:
		return true, s.detach(ctx, lineUserID)
	case ev.IsText():
		return true, s.handleText(ctx, ev.ReplyToken, ev.Message.Text, lineUserID)
	default:
		return false, nil
	}
}

func (s *LinkService) handleText(ctx context.Context, replyToken, text, lineUserID string) error {
	code := NormalizeLinkCode(text)
	if !looksLikeLinkCode(code, s.codeLength) {
		return s.reply(ctx, replyToken, msgUsage)
	}

	result, err := s.Consume(ctx, code, lineUserID)
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) && domainErr.Code == "CONFLICT" {
		return s.reply(ctx, replyToken, msgAlreadyLinked)
	}
	if err != nil {
		return err
	}
	if result == nil {
		return s.reply(ctx, replyToken, msgCodeInvalid)
	}

	s.announce(ctx, result)
	switch result.Target {
	case domain.LinkTargetFamily:
		patientName := "the patient"
		if patient, err := s.users.GetByID(ctx, result.PatientID); err == nil && patient.DisplayName != "" {
			patientName = patient.DisplayName
		}
		return s.reply(ctx, replyToken, fmt.Sprintf(msgFamilyLinked, result.Name, patientName))
	default:
		return s.reply(ctx, replyToken, msgSelfLinked)
	}
}

func (s *LinkService) detach(ctx context.Context, lineUserID string) error {
	if lineUserID == "" {
		return nil
	}
	members, err := s.families.ClearLineUserID(ctx, lineUserID)
	if err != nil {
		return fmt.Errorf("detach family members: %w", err)
	}
	accounts, err := s.users.ClearLineUserID(ctx, lineUserID)
	if err != nil {
		return fmt.Errorf("detach user: %w", err)
	}
	s.logger.Info("line account unfollowed",
		zap.Int64("family_members", members),
		zap.Int64("users", accounts),
	)
	return nil
}

func (s *LinkService) announce(ctx context.Context, result *domain.LinkResult) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{ID: uuid.NewString(), Timestamp: s.now()}
	switch result.Target {
	case domain.LinkTargetFamily:
		event.Type = events.EventFamilyLinked
		event.PatientID = result.PatientID
		event.Payload = events.FamilyLinkedPayload{MemberID: result.MemberID, MemberName: result.Name}
	default:
		event.Type = events.EventSelfLinked
		event.PatientID = result.UserID
		event.Payload = events.SelfLinkedPayload{UserID: result.UserID}
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish link event failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func (s *LinkService) reply(ctx context.Context, replyToken, text string) error {
	if replyToken == "" || s.messenger == nil {
		return nil
	}
	if err := s.messenger.Reply(ctx, replyToken, text); err != nil {
		return fmt.Errorf("%w: %v", errReplyFailed, err)
	}
	return nil
}
