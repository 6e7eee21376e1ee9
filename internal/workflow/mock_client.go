package workflow

import (
	"context"

	"fsm-intake/internal/model"
)

// MockWorkflowClient is a mock implementation of WorkflowClient for testing
type MockWorkflowClient struct {
	ProcessEmailFunc func(ctx context.Context, req *model.ProcessingRequest) (*model.ProcessingResponse, error)
}

func NewMockWorkflowClient() *MockWorkflowClient {
	return &MockWorkflowClient{}
}

func (m *MockWorkflowClient) ProcessEmail(ctx context.Context, req *model.ProcessingRequest) (*model.ProcessingResponse, error) {
	if m.ProcessEmailFunc != nil {
		return m.ProcessEmailFunc(ctx, req)
	}

	// Default mock behavior: everything is junk
	return &model.ProcessingResponse{Classification: model.ClassificationJunk}, nil
}
