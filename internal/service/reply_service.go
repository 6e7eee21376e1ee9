package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fsm-intake/internal/interpreter"
	"fsm-intake/internal/logger"
	"fsm-intake/internal/metrics"
	"fsm-intake/internal/model"
	"fsm-intake/internal/repository"
)

type replyService struct {
	emailRepo repository.EmailRepository
	sessions  *interpreter.Sessions
	gmail     GmailClient
	logger    *logger.Logger
	now       func() time.Time
}

// NewReplyService builds the reply sender. A nil gmail client disables
// delivery and every send fails with ErrReplyDisabled.
func NewReplyService(
	emailRepo repository.EmailRepository,
	sessions *interpreter.Sessions,
	gmail GmailClient,
	logger *logger.Logger,
) ReplyService {
	return &replyService{
		emailRepo: emailRepo,
		sessions:  sessions,
		gmail:     gmail,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *replyService) SendReply(ctx context.Context, sessionID, emailID string) (*ReplyReceipt, error) {
	if s.gmail == nil {
		return nil, ErrReplyDisabled
	}

	email, err := s.emailRepo.FindByID(ctx, emailID)
	if err != nil {
		return nil, err
	}

	ledger := s.sessions.Ledger(sessionID)
	result := ledger.Interpret(email)
	if !result.Action.ReplyRequired || strings.TrimSpace(result.Action.ReplyMessage) == "" || result.Action.Recipient == "" {
		return nil, ErrNoReply
	}
	if err := ledger.ReserveReply(email.ID, email.Classification); err != nil {
		return nil, err
	}

	messageID, err := s.gmail.SendReply(ctx, replyFor(email, result))
	metrics.IncrementRepliesSent(string(result.Action.Kind), err)
	if err != nil {
		ledger.ReleaseReply(email.ID, email.Classification)
		return nil, fmt.Errorf("failed to send reply for email %s: %w", emailID, err)
	}

	if err := ledger.MarkReplySent(email.ID, email.Classification); err != nil {
		s.logger.Warnf("Reply for email %s sent but not recorded: %v", emailID, err)
	}
	s.logger.Infof("Sent %s reply for email %s to %s", result.Action.Kind, emailID, result.Action.Recipient)

	return &ReplyReceipt{
		EmailID:   email.ID,
		MessageID: messageID,
		Recipient: result.Action.Recipient,
		Kind:      result.Action.Kind,
		SentAt:    s.now().UTC(),
	}, nil
}

func replyFor(email *model.Email, result interpreter.Result) *model.OutgoingReply {
	subject := email.Subject
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}
	return &model.OutgoingReply{
		EmailID:  email.ID,
		ThreadID: email.ThreadID,
		To:       result.Action.Recipient,
		Subject:  subject,
		Body:     result.Action.ReplyMessage,
	}
}
