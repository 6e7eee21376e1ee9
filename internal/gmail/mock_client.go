package gmail

import (
	"context"
	"sync"

	"fsm-intake/internal/model"
)

// MockGmailClient is a mock implementation of GmailClient for testing
type MockGmailClient struct {
	SendReplyFunc func(ctx context.Context, reply *model.OutgoingReply) (string, error)

	mu   sync.Mutex
	Sent []*model.OutgoingReply
}

func NewMockGmailClient() *MockGmailClient {
	return &MockGmailClient{}
}

func (m *MockGmailClient) SendReply(ctx context.Context, reply *model.OutgoingReply) (string, error) {
	if m.SendReplyFunc != nil {
		return m.SendReplyFunc(ctx, reply)
	}

	// Default mock behavior: record and succeed
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, reply)
	return "mock-" + reply.EmailID, nil
}

func (m *MockGmailClient) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
