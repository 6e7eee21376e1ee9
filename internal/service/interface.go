package service

import (
	"context"
	"errors"
	"time"

	"fsm-intake/internal/interpreter"
	"fsm-intake/internal/model"
)

var (
	ErrReplyDisabled = errors.New("reply delivery is not configured")
	ErrNoReply       = errors.New("no reply is required for this email")
)

// IntakeService receives classification results and keeps the store current.
type IntakeService interface {
	Receive(ctx context.Context, payload *model.IntakePayload) (*model.Email, bool, error)
	Reprocess(ctx context.Context, emailID string) (*model.Email, error)
}

// InboxService backs the operator inbox and dashboard.
type InboxService interface {
	ListEmails(ctx context.Context) ([]*model.Email, error)
	GetEmail(ctx context.Context, emailID string) (*model.Email, error)
	DeleteEmail(ctx context.Context, emailID string) (bool, error)
	ClearEmails(ctx context.Context) (int, error)
	CountEmails(ctx context.Context) (int, error)
	ReviewEmail(ctx context.Context, sessionID, emailID string) (*interpreter.Result, error)
	Dashboard(ctx context.Context, sessionID string) (*Dashboard, error)
}

// ReplyService delivers the reply an interpreted email calls for.
type ReplyService interface {
	SendReply(ctx context.Context, sessionID, emailID string) (*ReplyReceipt, error)
}

// GmailClient sends mail on behalf of the service desk mailbox
type GmailClient interface {
	SendReply(ctx context.Context, reply *model.OutgoingReply) (messageID string, err error)
}

// WorkflowClient forwards an email to the external classification workflow
type WorkflowClient interface {
	ProcessEmail(ctx context.Context, req *model.ProcessingRequest) (*model.ProcessingResponse, error)
}

// EventPublisher fans record changes out to connected operators
type EventPublisher interface {
	Broadcast(eventType string, data interface{})
}

type ReplyReceipt struct {
	EmailID   string                 `json:"emailId"`
	MessageID string                 `json:"messageId"`
	Recipient string                 `json:"recipient"`
	Kind      interpreter.ActionKind `json:"kind"`
	SentAt    time.Time              `json:"sentAt"`
}

type DashboardStats struct {
	Total       int `json:"total"`
	Urgent      int `json:"urgent"`
	Maintenance int `json:"maintenance"`
	Repair      int `json:"repair"`
}

type DashboardEntry struct {
	EmailID    string             `json:"emailId"`
	Subject    string             `json:"subject"`
	ReceivedAt time.Time          `json:"receivedAt"`
	Status     model.Status       `json:"status"`
	Fields     interpreter.Fields `json:"fields"`
	QueryID    string             `json:"queryId,omitempty"`
}

type Dashboard struct {
	Stats   DashboardStats   `json:"stats"`
	Queries []DashboardEntry `json:"queries"`
}

const (
	EventEmailUpserted = "email_upserted"
	EventEmailDeleted  = "email_deleted"
	EventEmailsCleared = "emails_cleared"
	// EventReplySent goes only to the session that sent the reply.
	EventReplySent = "reply_sent"
)

type nopPublisher struct{}

func (nopPublisher) Broadcast(string, interface{}) {}
