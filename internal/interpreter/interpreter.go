// Package interpreter turns a classified email into what the operator sees:
// the derived status, the missing required fields, the reply action and, for
// valid service requests, a logged query.
//
// Derivation is pure except for the query reference, which is issued once
// per verdict transition and remembered in a Ledger. One Ledger belongs to
// one viewing session.
package interpreter

import (
	"strings"

	"fsm-intake/internal/model"
)

const NotSpecified = "Not specified"

const (
	LoggedStatus     = "Logged"
	LoggedSource     = "Email"
	LoggedSLA        = "4-hour response"
	UnassignedPerson = "Not assigned"
)

const (
	NoticeNotClassified = "Email not yet classified"
	NoticeUnrecognised  = "Unrecognised classification"
)

type ActionKind string

const (
	ActionPending         ActionKind = "pending"
	ActionNone            ActionKind = "no_action"
	ActionClarification   ActionKind = "clarification"
	ActionAcknowledgement ActionKind = "acknowledgement"
)

// Action describes what happens next for the email.
type Action struct {
	Kind          ActionKind `json:"kind"`
	Description   string     `json:"description"`
	ReplyRequired bool       `json:"replyRequired"`
	ReplyMessage  string     `json:"replyMessage,omitempty"`
	Recipient     string     `json:"recipient,omitempty"`
}

// RequiredField is one of the fields a service request needs before an
// engineer can be dispatched.
type RequiredField struct {
	Key   string
	Label string
	value func(*model.ExtractedQuery) string
}

// RequiredFields lists the completeness policy in display order.
var RequiredFields = []RequiredField{
	{Key: "serviceType", Label: "Service Type", value: func(q *model.ExtractedQuery) string { return q.ServiceType }},
	{Key: "address", Label: "Building Address", value: func(q *model.ExtractedQuery) string { return q.Address }},
	{Key: "assetBrand", Label: "Asset/Equipment Brand", value: func(q *model.ExtractedQuery) string { return q.AssetBrand }},
	{Key: "urgency", Label: "Urgency/Timeframe", value: func(q *model.ExtractedQuery) string { return q.Urgency }},
}

// MissingFields returns the labels of required fields that are empty, in
// policy order. With no extracted data there is nothing to check and the
// result is empty.
func MissingFields(q *model.ExtractedQuery) []string {
	missing := []string{}
	if q == nil {
		return missing
	}
	for _, f := range RequiredFields {
		if strings.TrimSpace(f.value(q)) == "" {
			missing = append(missing, f.Label)
		}
	}
	return missing
}

// Fields is the extracted data after sender fallbacks are applied.
type Fields struct {
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	ServiceType   string `json:"serviceType"`
	AssetBrand    string `json:"assetBrand"`
	BuildingType  string `json:"buildingType"`
	Address       string `json:"address"`
	Urgency       string `json:"urgency"`
	Description   string `json:"description"`
}

// ResolveFields applies the sender fallbacks for customer name and email.
// Other fields are returned as extracted, possibly empty.
func ResolveFields(email *model.Email) Fields {
	var q model.ExtractedQuery
	if email.ExtractedQuery != nil {
		q = *email.ExtractedQuery
	}
	return Fields{
		CustomerName:  firstNonEmpty(q.CustomerName, email.SenderName),
		CustomerEmail: firstNonEmpty(q.CustomerEmail, email.SenderEmail),
		ServiceType:   strings.TrimSpace(q.ServiceType),
		AssetBrand:    strings.TrimSpace(q.AssetBrand),
		BuildingType:  strings.TrimSpace(q.BuildingType),
		Address:       strings.TrimSpace(q.Address),
		Urgency:       strings.TrimSpace(q.Urgency),
		Description:   strings.TrimSpace(q.Description),
	}
}

// Display replaces every empty field with the "Not specified" placeholder.
func (f Fields) Display() Fields {
	return Fields{
		CustomerName:  orPlaceholder(f.CustomerName),
		CustomerEmail: orPlaceholder(f.CustomerEmail),
		ServiceType:   orPlaceholder(f.ServiceType),
		AssetBrand:    orPlaceholder(f.AssetBrand),
		BuildingType:  orPlaceholder(f.BuildingType),
		Address:       orPlaceholder(f.Address),
		Urgency:       orPlaceholder(f.Urgency),
		Description:   orPlaceholder(f.Description),
	}
}

// Result is the interpreted view of one email.
type Result struct {
	EmailID        string               `json:"emailId"`
	Classification model.Classification `json:"classification,omitempty"`
	Status         model.Status         `json:"status"`
	// MissingFields is nil when the verdict does not surface it (JUNK).
	MissingFields []string           `json:"missingFields,omitempty"`
	Action        Action             `json:"action"`
	Query         *model.LoggedQuery `json:"query,omitempty"`
	Fields        Fields             `json:"fields"`
	Notice        string             `json:"notice,omitempty"`
	// Transitioned is true when this call applied a new verdict for the email.
	Transitioned bool `json:"transitioned"`
	ReplySent    bool `json:"replySent"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func orPlaceholder(v string) string {
	if v == "" {
		return NotSpecified
	}
	return v
}
