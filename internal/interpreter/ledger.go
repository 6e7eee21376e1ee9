package interpreter

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"fsm-intake/internal/model"
)

var (
	ErrNotInterpreted   = errors.New("email has not been interpreted in this session")
	ErrReplyAlreadySent = errors.New("reply already sent for this classification")
)

// ReferenceSource yields the numeric part of a query reference, in [10000, 99999].
type ReferenceSource func() int

// RandomReference draws uniformly from [10000, 99999].
func RandomReference() int {
	return 10000 + rand.IntN(90000)
}

// FormatReference renders a query reference such as QRY-UK-48213.
func FormatReference(n int) string {
	return fmt.Sprintf("QRY-UK-%05d", n)
}

type entry struct {
	verdict       model.Classification
	query         *model.LoggedQuery
	replySent     bool
	replyInFlight bool
}

// Ledger remembers, per email id, the last verdict applied in a session and
// the query issued for it. It is safe for concurrent use.
type Ledger struct {
	mu       sync.Mutex
	entries  map[string]*entry
	refs     ReferenceSource
	now      func() time.Time
	lastSeen time.Time
}

type Option func(*Ledger)

func WithReferenceSource(src ReferenceSource) Option {
	return func(l *Ledger) { l.refs = src }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		entries: make(map[string]*entry),
		refs:    RandomReference,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastSeen = l.now()
	return l
}

// Interpret derives the operator view of email. Applying the same verdict
// again keeps the reference issued the first time while the query details
// follow the latest record; a different verdict is a transition and
// replaces it.
func (l *Ledger) Interpret(email *model.Email) Result {
	fields := ResolveFields(email)
	result := Result{
		EmailID:        email.ID,
		Classification: email.Classification,
		Fields:         fields.Display(),
	}

	if !email.Classification.Known() {
		result.Status = email.Status
		if result.Status == "" {
			result.Status = model.StatusUnprocessed
		}
		result.Notice = NoticeNotClassified
		if email.Classification != "" {
			result.Notice = fmt.Sprintf("%s: %s", NoticeUnrecognised, email.Classification)
		}
		result.Action = Action{Kind: ActionPending, Description: "Awaiting classification"}
		return result
	}

	result.Status = model.StatusFor(email.Classification)
	e, transitioned := l.apply(email, fields)
	result.Transitioned = transitioned
	result.ReplySent = e.replySent

	replyRequired := email.ShouldReply == nil || *email.ShouldReply

	switch email.Classification {
	case model.ClassificationJunk:
		result.Action = Action{
			Kind:        ActionNone,
			Description: "No reply sent. No further action required.",
		}
	case model.ClassificationIncomplete:
		result.MissingFields = MissingFields(email.ExtractedQuery)
		result.Action = Action{
			Kind:          ActionClarification,
			Description:   "Clarification reply required: request the missing information from the customer.",
			ReplyRequired: replyRequired,
			ReplyMessage:  email.ReplyMessage,
			Recipient:     fields.CustomerEmail,
		}
	case model.ClassificationValid:
		result.MissingFields = MissingFields(email.ExtractedQuery)
		result.Action = Action{
			Kind:          ActionAcknowledgement,
			Description:   "Query logged: acknowledge the customer and start the SLA timer.",
			ReplyRequired: replyRequired,
			ReplyMessage:  email.ReplyMessage,
			Recipient:     fields.CustomerEmail,
		}
		if e.query != nil {
			q := *e.query
			result.Query = &q
		}
	}
	return result
}

func (l *Ledger) apply(email *model.Email, fields Fields) (entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lastSeen = l.now()
	if e, ok := l.entries[email.ID]; ok && e.verdict == email.Classification {
		if e.query != nil {
			e.query = loggedQuery(fields, e.query.QueryID, e.query.AcknowledgedAt)
		}
		return *e, false
	}

	e := &entry{verdict: email.Classification}
	if email.Classification == model.ClassificationValid {
		e.query = loggedQuery(fields, FormatReference(l.refs()), l.now().UTC())
	}
	l.entries[email.ID] = e
	return *e, true
}

func loggedQuery(f Fields, queryID string, acknowledgedAt time.Time) *model.LoggedQuery {
	return &model.LoggedQuery{
		QueryID:          queryID,
		CustomerName:     f.CustomerName,
		CustomerEmail:    f.CustomerEmail,
		ServiceType:      f.ServiceType,
		AssetBrand:       f.AssetBrand,
		BuildingType:     f.BuildingType,
		Address:          f.Address,
		Urgency:          f.Urgency,
		Description:      f.Description,
		Status:           LoggedStatus,
		Source:           LoggedSource,
		SLA:              LoggedSLA,
		AssignedEngineer: UnassignedPerson,
		AcknowledgedAt:   acknowledgedAt,
	}
}

// ReserveReply claims the reply for the email's current verdict. Only one
// caller holds the claim until it is released or marked sent.
func (l *Ledger) ReserveReply(emailID string, verdict model.Classification) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[emailID]
	if !ok || e.verdict != verdict {
		return ErrNotInterpreted
	}
	if e.replySent || e.replyInFlight {
		return ErrReplyAlreadySent
	}
	e.replyInFlight = true
	return nil
}

// ReleaseReply drops a claim taken by ReserveReply without marking the reply sent.
func (l *Ledger) ReleaseReply(emailID string, verdict model.Classification) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[emailID]; ok && e.verdict == verdict {
		e.replyInFlight = false
	}
}

// MarkReplySent records that the reply for the email's current verdict went
// out. The email must have been interpreted in this session first.
func (l *Ledger) MarkReplySent(emailID string, verdict model.Classification) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[emailID]
	if !ok || e.verdict != verdict {
		return ErrNotInterpreted
	}
	if e.replySent {
		return ErrReplyAlreadySent
	}
	e.replySent = true
	e.replyInFlight = false
	return nil
}

// Forget drops everything remembered about the email.
func (l *Ledger) Forget(emailID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, emailID)
}

func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]*entry)
}

// LastSeen is when the ledger was last used to interpret an email.
func (l *Ledger) LastSeen() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSeen
}
