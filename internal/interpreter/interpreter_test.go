package interpreter

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fsm-intake/internal/model"
)

var queryRef = regexp.MustCompile(`^QRY-UK-\d{5}$`)

func sequence(start int) ReferenceSource {
	n := start
	return func() int {
		n++
		return n
	}
}

func liftEmail(verdict model.Classification, q *model.ExtractedQuery) *model.Email {
	return &model.Email{
		ID:             "msg-1",
		SenderName:     "Jane Doe",
		SenderEmail:    "jane@example.com",
		Subject:        "Lift stuck",
		Status:         model.StatusFor(verdict),
		Classification: verdict,
		ExtractedQuery: q,
		ReplyMessage:   "Dear Jane, ...",
	}
}

func completeFields() *model.ExtractedQuery {
	return &model.ExtractedQuery{
		ServiceType: "Repair",
		Address:     "12 High St",
		AssetBrand:  "Otis",
		Urgency:     "Emergency",
	}
}

func TestInterpretValidLogsQuery(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	ledger := NewLedger(WithClock(func() time.Time { return fixed }))

	result := ledger.Interpret(liftEmail(model.ClassificationValid, completeFields()))

	assert.Equal(t, model.StatusQueryLogged, result.Status)
	assert.Empty(t, result.MissingFields)
	assert.True(t, result.Transitioned)
	assert.Equal(t, ActionAcknowledgement, result.Action.Kind)
	assert.Equal(t, "jane@example.com", result.Action.Recipient)
	assert.Equal(t, "Dear Jane, ...", result.Action.ReplyMessage)

	require.NotNil(t, result.Query)
	assert.Regexp(t, queryRef, result.Query.QueryID)
	assert.Equal(t, "Jane Doe", result.Query.CustomerName)
	assert.Equal(t, "jane@example.com", result.Query.CustomerEmail)
	assert.Equal(t, "Otis", result.Query.AssetBrand)
	assert.Equal(t, LoggedStatus, result.Query.Status)
	assert.Equal(t, LoggedSource, result.Query.Source)
	assert.Equal(t, LoggedSLA, result.Query.SLA)
	assert.Equal(t, UnassignedPerson, result.Query.AssignedEngineer)
	assert.Equal(t, fixed, result.Query.AcknowledgedAt)
}

func TestInterpretValidIsIdempotentWithinSession(t *testing.T) {
	ledger := NewLedger(WithReferenceSource(sequence(20000)))
	email := liftEmail(model.ClassificationValid, completeFields())

	first := ledger.Interpret(email)
	second := ledger.Interpret(email)

	require.NotNil(t, first.Query)
	require.NotNil(t, second.Query)
	assert.Equal(t, first.Query.QueryID, second.Query.QueryID)
	assert.Equal(t, first.Query.AcknowledgedAt, second.Query.AcknowledgedAt)
	assert.True(t, first.Transitioned)
	assert.False(t, second.Transitioned)
	assert.Equal(t, "QRY-UK-20001", first.Query.QueryID)
}

func TestInterpretValidFollowsUpdatedRecord(t *testing.T) {
	ledger := NewLedger(WithReferenceSource(sequence(20000)))
	email := liftEmail(model.ClassificationValid, completeFields())

	first := ledger.Interpret(email)

	updated := email.Clone()
	updated.ExtractedQuery.Address = "99 New Rd"
	updated.ExtractedQuery.AssetBrand = "Schindler"
	second := ledger.Interpret(updated)

	require.NotNil(t, second.Query)
	assert.False(t, second.Transitioned)
	assert.Equal(t, first.Query.QueryID, second.Query.QueryID)
	assert.Equal(t, first.Query.AcknowledgedAt, second.Query.AcknowledgedAt)
	assert.Equal(t, "99 New Rd", second.Fields.Address)
	assert.Equal(t, "99 New Rd", second.Query.Address)
	assert.Equal(t, "Schindler", second.Query.AssetBrand)
	assert.Equal(t, "12 High St", first.Query.Address)
}

func TestInterpretSeparateSessionsIssueSeparateReferences(t *testing.T) {
	sessions := NewSessions(WithReferenceSource(sequence(30000)))
	email := liftEmail(model.ClassificationValid, completeFields())

	a := sessions.Ledger("session-a").Interpret(email)
	b := sessions.Ledger("session-b").Interpret(email)
	again := sessions.Ledger("session-a").Interpret(email)

	assert.NotEqual(t, a.Query.QueryID, b.Query.QueryID)
	assert.Equal(t, a.Query.QueryID, again.Query.QueryID)
	assert.Equal(t, 2, sessions.Len())
}

func TestInterpretJunkNeverLogsQuery(t *testing.T) {
	cases := map[string]*model.ExtractedQuery{
		"no fields":       nil,
		"complete fields": completeFields(),
		"partial fields":  {ServiceType: "Repair"},
	}
	for name, fields := range cases {
		t.Run(name, func(t *testing.T) {
			ledger := NewLedger()
			result := ledger.Interpret(liftEmail(model.ClassificationJunk, fields))

			assert.Equal(t, model.StatusJunk, result.Status)
			assert.Nil(t, result.Query)
			assert.Nil(t, result.MissingFields)
			assert.Equal(t, ActionNone, result.Action.Kind)
			assert.False(t, result.Action.ReplyRequired)
			assert.False(t, ledger.Interpret(liftEmail(model.ClassificationJunk, fields)).Transitioned)
		})
	}
}

func TestInterpretIncompleteListsMissingFields(t *testing.T) {
	ledger := NewLedger()
	email := liftEmail(model.ClassificationIncomplete, &model.ExtractedQuery{
		ServiceType: "",
		Address:     "12 High St",
		AssetBrand:  "",
		Urgency:     "Emergency",
	})

	result := ledger.Interpret(email)

	assert.Equal(t, model.StatusWaitingForCustomer, result.Status)
	assert.Equal(t, []string{"Service Type", "Asset/Equipment Brand"}, result.MissingFields)
	assert.Equal(t, ActionClarification, result.Action.Kind)
	assert.True(t, result.Action.ReplyRequired)
	assert.Equal(t, "jane@example.com", result.Action.Recipient)
	assert.Nil(t, result.Query)

	again := ledger.Interpret(email)
	assert.False(t, again.Transitioned)
	assert.Equal(t, result.MissingFields, again.MissingFields)
}

func TestInterpretIncompleteThenValidIssuesReferenceOnce(t *testing.T) {
	ledger := NewLedger(WithReferenceSource(sequence(40000)))
	email := liftEmail(model.ClassificationIncomplete, &model.ExtractedQuery{Address: "12 High St"})

	pending := ledger.Interpret(email)
	assert.Nil(t, pending.Query)

	email.Classification = model.ClassificationValid
	email.ExtractedQuery = completeFields()
	logged := ledger.Interpret(email)
	require.NotNil(t, logged.Query)
	assert.True(t, logged.Transitioned)
	assert.Equal(t, "QRY-UK-40001", logged.Query.QueryID)

	rerender := ledger.Interpret(email)
	assert.Equal(t, "QRY-UK-40001", rerender.Query.QueryID)
}

func TestInterpretWithoutVerdict(t *testing.T) {
	ledger := NewLedger()
	email := liftEmail("", nil)
	email.Status = model.StatusUnprocessed

	result := ledger.Interpret(email)

	assert.Equal(t, model.StatusUnprocessed, result.Status)
	assert.Equal(t, NoticeNotClassified, result.Notice)
	assert.Equal(t, ActionPending, result.Action.Kind)
	assert.Nil(t, result.Query)
	assert.False(t, result.Transitioned)
}

func TestInterpretUnknownVerdict(t *testing.T) {
	result := NewLedger().Interpret(liftEmail("SPAM", nil))

	assert.Equal(t, model.StatusUnprocessed, result.Status)
	assert.Contains(t, result.Notice, NoticeUnrecognised)
}

func TestInterpretRespectsShouldReplyFalse(t *testing.T) {
	email := liftEmail(model.ClassificationIncomplete, &model.ExtractedQuery{})
	no := false
	email.ShouldReply = &no

	result := NewLedger().Interpret(email)
	assert.False(t, result.Action.ReplyRequired)
}

func TestMissingFields(t *testing.T) {
	assert.Empty(t, MissingFields(completeFields()))
	assert.Empty(t, MissingFields(nil))
	assert.Equal(t,
		[]string{"Service Type", "Building Address", "Asset/Equipment Brand", "Urgency/Timeframe"},
		MissingFields(&model.ExtractedQuery{}))

	for _, f := range RequiredFields {
		t.Run(f.Key, func(t *testing.T) {
			q := completeFields()
			switch f.Key {
			case "serviceType":
				q.ServiceType = ""
			case "address":
				q.Address = "   "
			case "assetBrand":
				q.AssetBrand = ""
			case "urgency":
				q.Urgency = ""
			}
			assert.Equal(t, []string{f.Label}, MissingFields(q))
		})
	}
}

func TestResolveFieldsFallbacks(t *testing.T) {
	email := liftEmail(model.ClassificationValid, &model.ExtractedQuery{
		CustomerName: "Facilities Team",
		ServiceType:  "Repair",
	})

	fields := ResolveFields(email)
	assert.Equal(t, "Facilities Team", fields.CustomerName)
	assert.Equal(t, "jane@example.com", fields.CustomerEmail)

	display := fields.Display()
	assert.Equal(t, "Repair", display.ServiceType)
	assert.Equal(t, NotSpecified, display.BuildingType)
	assert.Equal(t, NotSpecified, display.Address)
}

func TestMarkReplySent(t *testing.T) {
	ledger := NewLedger()
	email := liftEmail(model.ClassificationIncomplete, &model.ExtractedQuery{})

	assert.ErrorIs(t, ledger.MarkReplySent(email.ID, email.Classification), ErrNotInterpreted)

	ledger.Interpret(email)
	require.NoError(t, ledger.MarkReplySent(email.ID, email.Classification))
	assert.ErrorIs(t, ledger.MarkReplySent(email.ID, email.Classification), ErrReplyAlreadySent)
	assert.True(t, ledger.Interpret(email).ReplySent)

	email.Classification = model.ClassificationValid
	assert.False(t, ledger.Interpret(email).ReplySent)
}

func TestReserveReply(t *testing.T) {
	ledger := NewLedger()
	email := liftEmail(model.ClassificationIncomplete, &model.ExtractedQuery{})

	assert.ErrorIs(t, ledger.ReserveReply(email.ID, email.Classification), ErrNotInterpreted)

	ledger.Interpret(email)
	require.NoError(t, ledger.ReserveReply(email.ID, email.Classification))
	assert.ErrorIs(t, ledger.ReserveReply(email.ID, email.Classification), ErrReplyAlreadySent)

	ledger.ReleaseReply(email.ID, email.Classification)
	require.NoError(t, ledger.ReserveReply(email.ID, email.Classification))
	require.NoError(t, ledger.MarkReplySent(email.ID, email.Classification))
	assert.ErrorIs(t, ledger.ReserveReply(email.ID, email.Classification), ErrReplyAlreadySent)
}

func TestSessionsForgetResetPrune(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	sessions := NewSessions(WithClock(clock))
	email := liftEmail(model.ClassificationValid, completeFields())

	first := sessions.Ledger("s1").Interpret(email)
	sessions.Forget(email.ID)
	second := sessions.Ledger("s1").Interpret(email)
	assert.True(t, second.Transitioned)
	assert.NotNil(t, first.Query)

	sessions.Reset()
	assert.True(t, sessions.Ledger("s1").Interpret(email).Transitioned)

	assert.Equal(t, 1, sessions.Prune(now.Add(time.Minute)))
	assert.Equal(t, 0, sessions.Len())
}

func TestRandomReferenceRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		n := RandomReference()
		require.GreaterOrEqual(t, n, 10000)
		require.LessOrEqual(t, n, 99999)
		assert.Regexp(t, queryRef, FormatReference(n))
	}
}
