package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Status is the lifecycle status shown in the inbox
type Status string

const (
	StatusUnprocessed        Status = "Unprocessed"
	StatusJunk               Status = "Junk"
	StatusWaitingForCustomer Status = "Waiting for Customer"
	StatusQueryLogged        Status = "Query Logged"
)

// Classification is the verdict produced by the external workflow
type Classification string

const (
	ClassificationJunk       Classification = "JUNK"
	ClassificationIncomplete Classification = "INCOMPLETE"
	ClassificationValid      Classification = "VALID"
)

// Known reports whether c is one of the three verdicts the workflow emits.
func (c Classification) Known() bool {
	switch c {
	case ClassificationJunk, ClassificationIncomplete, ClassificationValid:
		return true
	}
	return false
}

// StatusFor maps a verdict to the lifecycle status it implies. Anything that
// is not a known verdict leaves the email Unprocessed.
func StatusFor(c Classification) Status {
	switch c {
	case ClassificationJunk:
		return StatusJunk
	case ClassificationIncomplete:
		return StatusWaitingForCustomer
	case ClassificationValid:
		return StatusQueryLogged
	default:
		return StatusUnprocessed
	}
}

// ExtractedQuery holds the service request fields pulled out of the email
// body by the workflow. Empty strings mean "not extracted".
type ExtractedQuery struct {
	CustomerName  string `json:"customerName,omitempty"`
	CustomerEmail string `json:"customerEmail,omitempty"`
	ServiceType   string `json:"serviceType,omitempty"`
	AssetBrand    string `json:"assetBrand,omitempty"`
	BuildingType  string `json:"buildingType,omitempty"`
	Address       string `json:"address,omitempty"`
	Urgency       string `json:"urgency,omitempty"`
	Description   string `json:"description,omitempty"`
}

// UnmarshalJSON accepts the older elevatorBrand key as an alias of assetBrand.
func (q *ExtractedQuery) UnmarshalJSON(data []byte) error {
	type plain ExtractedQuery
	var aux struct {
		plain
		ElevatorBrand string `json:"elevatorBrand"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*q = ExtractedQuery(aux.plain)
	if strings.TrimSpace(q.AssetBrand) == "" {
		q.AssetBrand = aux.ElevatorBrand
	}
	return nil
}

// Email is a single triaged email as held by the record store.
type Email struct {
	ID             string          `json:"id"`
	SenderName     string          `json:"senderName"`
	SenderEmail    string          `json:"senderEmail"`
	Subject        string          `json:"subject"`
	ReceivedAt     time.Time       `json:"receivedAt"`
	Status         Status          `json:"status"`
	Body           string          `json:"body"`
	Classification Classification  `json:"classification,omitempty"`
	ExtractedQuery *ExtractedQuery `json:"extractedQuery,omitempty"`
	ShouldReply    *bool           `json:"shouldReply,omitempty"`
	ReplyMessage   string          `json:"replyMessage,omitempty"`
	ThreadID       string          `json:"threadId,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (e *Email) Clone() *Email {
	if e == nil {
		return nil
	}
	c := *e
	if e.ExtractedQuery != nil {
		q := *e.ExtractedQuery
		c.ExtractedQuery = &q
	}
	if e.ShouldReply != nil {
		v := *e.ShouldReply
		c.ShouldReply = &v
	}
	return &c
}

// IsLoggedQuery reports whether the email belongs on the service dashboard.
func (e *Email) IsLoggedQuery() bool {
	return e.Classification == ClassificationValid || e.Status == StatusQueryLogged
}

// LoggedQuery is the service query created when an email is classified VALID.
// It is derived per viewing session and never written to the record store.
type LoggedQuery struct {
	QueryID          string    `json:"queryId"`
	CustomerName     string    `json:"customerName"`
	CustomerEmail    string    `json:"customerEmail"`
	ServiceType      string    `json:"serviceType"`
	AssetBrand       string    `json:"assetBrand"`
	BuildingType     string    `json:"buildingType"`
	Address          string    `json:"address"`
	Urgency          string    `json:"urgency"`
	Description      string    `json:"description"`
	Status           string    `json:"status"`
	Source           string    `json:"source"`
	SLA              string    `json:"sla"`
	AssignedEngineer string    `json:"assignedEngineer"`
	AcknowledgedAt   time.Time `json:"acknowledgedAt"`
}
