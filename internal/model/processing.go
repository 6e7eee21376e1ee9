package model

import "time"

// ProcessingRequest is what the classification workflow expects for one email.
type ProcessingRequest struct {
	EmailID     string    `json:"emailId"`
	SenderName  string    `json:"senderName"`
	SenderEmail string    `json:"senderEmail"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	ReceivedAt  time.Time `json:"receivedAt"`
}

// ProcessingResponse is the workflow's verdict for one email. It has the
// same shape as the "output" object of an intake payload.
type ProcessingResponse = IntakeOutput

// OutgoingReply is a customer reply to be sent on the email's thread.
type OutgoingReply struct {
	EmailID  string
	ThreadID string
	To       string
	Subject  string
	Body     string
}
