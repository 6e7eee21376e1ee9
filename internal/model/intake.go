package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// IntakePayload is the body the external workflow posts to the webhook.
type IntakePayload struct {
	EmailData IntakeEmailData `json:"emailData"`
	Output    IntakeOutput    `json:"output"`
}

// IntakeEmailData carries the raw mailbox metadata. Header-style keys keep
// the casing the workflow sends.
type IntakeEmailData struct {
	ID           string      `json:"id"`
	From         string      `json:"From"`
	Subject      string      `json:"Subject"`
	InternalDate EpochMillis `json:"internalDate"`
	Snippet      string      `json:"snippet"`
	ThreadID     string      `json:"threadId"`
}

// IntakeOutput is the classification result for one email.
type IntakeOutput struct {
	Classification Classification  `json:"classification"`
	ExtractedQuery *ExtractedQuery `json:"extractedQuery"`
	ShouldReply    *bool           `json:"shouldReply"`
	ReplyMessage   string          `json:"replyMessage"`
}

// EpochMillis is a mailbox receipt time in milliseconds since the epoch. The
// workflow sends it either as a JSON string or as a number.
type EpochMillis struct {
	Millis int64
	Valid  bool
}

func (m *EpochMillis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = EpochMillis{}
		return nil
	}

	raw := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*m = EpochMillis{}
			return nil
		}
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// Fractional numbers are truncated the way parseInt would
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil {
			// Unusable timestamps fall back to the receipt time
			*m = EpochMillis{}
			return nil
		}
		ms = int64(f)
	}
	*m = EpochMillis{Millis: ms, Valid: true}
	return nil
}

func (m EpochMillis) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(strconv.FormatInt(m.Millis, 10))
}

// Time converts to UTC, or returns ok=false when no timestamp was supplied.
func (m EpochMillis) Time() (time.Time, bool) {
	if !m.Valid {
		return time.Time{}, false
	}
	return time.UnixMilli(m.Millis).UTC(), true
}
