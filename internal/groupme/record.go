// ABOUTME: Message records as returned by the GroupMe messages endpoint
// ABOUTME: ParseRecord validates required fields and decodes the attachment variants

package groupme

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedRecord is returned when a record is missing required fields or
// carries values of the wrong shape.
var ErrMalformedRecord = errors.New("malformed message record")

// Record is one message from the API, with attachments decoded.
type Record struct {
	ID          int64
	AvatarURL   string
	CreatedAt   time.Time
	Name        string
	SenderID    string
	SenderType  string
	SourceGUID  string
	System      bool
	Text        string
	UserID      string
	Attachments []Attachment

	// Raw is the record exactly as received, for diagnostics
	Raw json.RawMessage
}

type wireRecord struct {
	ID          json.Number       `json:"id"`
	AvatarURL   *string           `json:"avatar_url"`
	CreatedAt   *int64            `json:"created_at"`
	Name        string            `json:"name"`
	SenderID    string            `json:"sender_id"`
	SenderType  string            `json:"sender_type"`
	SourceGUID  string            `json:"source_guid"`
	System      bool              `json:"system"`
	Text        *string           `json:"text"`
	UserID      string            `json:"user_id"`
	Attachments []json.RawMessage `json:"attachments"`
}

// ParseRecord decodes one raw message record. Errors wrap ErrMalformedRecord.
func ParseRecord(raw json.RawMessage) (*Record, error) {
	var w wireRecord
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	if w.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrMalformedRecord)
	}
	id, err := w.ID.Int64()
	if err != nil {
		return nil, fmt.Errorf("%w: id %q is not an integer", ErrMalformedRecord, w.ID)
	}
	if w.CreatedAt == nil {
		return nil, fmt.Errorf("%w: message %d is missing created_at", ErrMalformedRecord, id)
	}

	rec := &Record{
		ID:         id,
		CreatedAt:  time.Unix(*w.CreatedAt, 0).UTC(),
		Name:       w.Name,
		SenderID:   w.SenderID,
		SenderType: w.SenderType,
		SourceGUID: w.SourceGUID,
		System:     w.System,
		UserID:     w.UserID,
		Raw:        append(json.RawMessage(nil), raw...),
	}
	if w.AvatarURL != nil {
		rec.AvatarURL = *w.AvatarURL
	}
	if w.Text != nil {
		rec.Text = *w.Text
	}

	rec.Attachments = make([]Attachment, 0, len(w.Attachments))
	for i, a := range w.Attachments {
		att, err := decodeAttachment(a)
		if err != nil {
			return nil, fmt.Errorf("%w: message %d attachment %d: %v", ErrMalformedRecord, id, i, err)
		}
		rec.Attachments = append(rec.Attachments, att)
	}

	return rec, nil
}
