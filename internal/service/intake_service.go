package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"fsm-intake/internal/logger"
	"fsm-intake/internal/metrics"
	"fsm-intake/internal/model"
	"fsm-intake/internal/repository"
)

const (
	UnknownSender  = "Unknown"
	DefaultSubject = "No Subject"
)

var fromHeader = regexp.MustCompile(`^(.+?)\s*<(.+?)>$`)

// ParseFrom splits a "Name <email>" header. When the header does not match,
// the raw value is used for both parts; an absent header yields "Unknown".
func ParseFrom(header string) (name, email string) {
	if m := fromHeader.FindStringSubmatch(header); m != nil {
		name = strings.TrimSpace(m[1])
		email = strings.TrimSpace(m[2])
	}
	if name == "" {
		name = header
	}
	if email == "" {
		email = header
	}
	if name == "" {
		name = UnknownSender
	}
	return name, email
}

type intakeService struct {
	emailRepo repository.EmailRepository
	workflow  WorkflowClient
	events    EventPublisher
	logger    *logger.Logger
	now       func() time.Time
}

func NewIntakeService(
	emailRepo repository.EmailRepository,
	workflow WorkflowClient,
	events EventPublisher,
	logger *logger.Logger,
) IntakeService {
	if events == nil {
		events = nopPublisher{}
	}
	return &intakeService{
		emailRepo: emailRepo,
		workflow:  workflow,
		events:    events,
		logger:    logger,
		now:       time.Now,
	}
}

// BuildEmail turns a workflow payload into a store record.
func BuildEmail(payload *model.IntakePayload, now time.Time) *model.Email {
	data := payload.EmailData
	name, address := ParseFrom(data.From)

	receivedAt, ok := data.InternalDate.Time()
	if !ok {
		receivedAt = now.UTC()
	}

	id := strings.TrimSpace(data.ID)
	if id == "" {
		id = strconv.FormatInt(now.UnixMilli(), 10)
	}

	subject := data.Subject
	if subject == "" {
		subject = DefaultSubject
	}

	email := &model.Email{
		ID:          id,
		SenderName:  name,
		SenderEmail: address,
		Subject:     subject,
		ReceivedAt:  receivedAt,
		Body:        data.Snippet,
		ThreadID:    data.ThreadID,
	}
	applyOutput(email, &payload.Output)
	return email
}

func applyOutput(email *model.Email, out *model.IntakeOutput) {
	email.Classification = out.Classification
	email.Status = model.StatusFor(out.Classification)
	email.ExtractedQuery = out.ExtractedQuery
	email.ShouldReply = out.ShouldReply
	email.ReplyMessage = out.ReplyMessage
}

func (s *intakeService) Receive(ctx context.Context, payload *model.IntakePayload) (*model.Email, bool, error) {
	if payload == nil {
		return nil, false, errors.New("empty intake payload")
	}

	email := BuildEmail(payload, s.now())
	created, err := s.emailRepo.Upsert(ctx, email)
	if err != nil {
		metrics.IncrementIntakeReceived(string(email.Classification), "failed")
		return nil, false, fmt.Errorf("failed to store email %s: %w", email.ID, err)
	}

	outcome := "updated"
	if created {
		outcome = "created"
	}
	metrics.IncrementIntakeReceived(string(email.Classification), outcome)
	s.logger.Infof("Email %s %s (classification=%q, status=%q)", email.ID, outcome, email.Classification, email.Status)

	s.events.Broadcast(EventEmailUpserted, email)
	return email, created, nil
}

// Reprocess sends a stored email back through the classification workflow
// and stores the new verdict.
func (s *intakeService) Reprocess(ctx context.Context, emailID string) (*model.Email, error) {
	email, err := s.emailRepo.FindByID(ctx, emailID)
	if err != nil {
		return nil, err
	}

	out, err := s.workflow.ProcessEmail(ctx, &model.ProcessingRequest{
		EmailID:     email.ID,
		SenderName:  email.SenderName,
		SenderEmail: email.SenderEmail,
		Subject:     email.Subject,
		Body:        email.Body,
		ReceivedAt:  email.ReceivedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reprocess email %s: %w", emailID, err)
	}

	applyOutput(email, out)
	if _, err := s.emailRepo.Upsert(ctx, email); err != nil {
		return nil, fmt.Errorf("failed to store reprocessed email %s: %w", emailID, err)
	}
	metrics.IncrementIntakeReceived(string(email.Classification), "reprocessed")
	s.logger.Infof("Email %s reprocessed (classification=%q)", email.ID, email.Classification)

	s.events.Broadcast(EventEmailUpserted, email)
	return email, nil
}
