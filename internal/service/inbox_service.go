package service

import (
	"context"
	"fmt"
	"strings"

	"fsm-intake/internal/interpreter"
	"fsm-intake/internal/logger"
	"fsm-intake/internal/metrics"
	"fsm-intake/internal/model"
	"fsm-intake/internal/repository"
)

type inboxService struct {
	emailRepo repository.EmailRepository
	sessions  *interpreter.Sessions
	events    EventPublisher
	logger    *logger.Logger
}

func NewInboxService(
	emailRepo repository.EmailRepository,
	sessions *interpreter.Sessions,
	events EventPublisher,
	logger *logger.Logger,
) InboxService {
	if events == nil {
		events = nopPublisher{}
	}
	return &inboxService{
		emailRepo: emailRepo,
		sessions:  sessions,
		events:    events,
		logger:    logger,
	}
}

func (s *inboxService) ListEmails(ctx context.Context) ([]*model.Email, error) {
	return s.emailRepo.List(ctx)
}

func (s *inboxService) GetEmail(ctx context.Context, emailID string) (*model.Email, error) {
	return s.emailRepo.FindByID(ctx, emailID)
}

func (s *inboxService) CountEmails(ctx context.Context) (int, error) {
	return s.emailRepo.Count(ctx)
}

func (s *inboxService) DeleteEmail(ctx context.Context, emailID string) (bool, error) {
	removed, err := s.emailRepo.Delete(ctx, emailID)
	if err != nil {
		return false, fmt.Errorf("failed to delete email %s: %w", emailID, err)
	}
	if !removed {
		return false, nil
	}

	s.sessions.Forget(emailID)
	s.logger.Infof("Deleted email %s", emailID)
	s.events.Broadcast(EventEmailDeleted, map[string]string{"id": emailID})
	return true, nil
}

func (s *inboxService) ClearEmails(ctx context.Context) (int, error) {
	cleared, err := s.emailRepo.Clear(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to clear emails: %w", err)
	}

	s.sessions.Reset()
	s.logger.Infof("Cleared %d emails", cleared)
	s.events.Broadcast(EventEmailsCleared, map[string]int{"count": cleared})
	return cleared, nil
}

// ReviewEmail runs the interpreter for one stored email in the caller's session.
func (s *inboxService) ReviewEmail(ctx context.Context, sessionID, emailID string) (*interpreter.Result, error) {
	email, err := s.emailRepo.FindByID(ctx, emailID)
	if err != nil {
		return nil, err
	}

	result := s.sessions.Ledger(sessionID).Interpret(email)
	metrics.IncrementReview(string(result.Status), result.Transitioned)
	if result.Transitioned {
		s.logger.Debugf("Session %s applied %s to email %s", sessionID, result.Classification, emailID)
	}
	return &result, nil
}

// Dashboard lists the logged queries visible to the session, with counts
// over every stored query.
func (s *inboxService) Dashboard(ctx context.Context, sessionID string) (*Dashboard, error) {
	emails, err := s.emailRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	ledger := s.sessions.Ledger(sessionID)
	dash := &Dashboard{Queries: []DashboardEntry{}}
	for _, email := range emails {
		if !email.IsLoggedQuery() {
			continue
		}
		result := ledger.Interpret(email)
		fields := interpreter.ResolveFields(email)

		entry := DashboardEntry{
			EmailID:    email.ID,
			Subject:    email.Subject,
			ReceivedAt: email.ReceivedAt,
			Status:     result.Status,
			Fields:     result.Fields,
		}
		if result.Query != nil {
			entry.QueryID = result.Query.QueryID
		}
		dash.Queries = append(dash.Queries, entry)

		dash.Stats.Total++
		urgency := strings.ToLower(fields.Urgency)
		if strings.Contains(urgency, "urgent") || strings.Contains(urgency, "emergency") {
			dash.Stats.Urgent++
		}
		service := strings.ToLower(fields.ServiceType)
		if strings.Contains(service, "maintenance") {
			dash.Stats.Maintenance++
		}
		if strings.Contains(service, "repair") {
			dash.Stats.Repair++
		}
	}
	return dash, nil
}
