// ABOUTME: Tagged attachment variants decoded from GroupMe message records
// ABOUTME: Unrecognized tags decode to Unknown, which keeps the raw JSON for logging

package groupme

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Attachment tags used by the messages API
const (
	TagImage            = "image"
	TagLinkedImage      = "linked_image"
	TagFile             = "file"
	TagVideo            = "video"
	TagMentions         = "mentions"
	TagEmoji            = "emoji"
	TagEvent            = "event"
	TagLocation         = "location"
	TagAutokickedMember = "autokicked_member"
)

// Attachment is one element of a record's attachments array. The concrete
// type is one of Image, File, Video, Mentions, Emoji, Event, Location,
// AutokickedMember, or Unknown.
type Attachment interface {
	// Tag returns the upstream "type" value
	Tag() string
}

// Image is an uploaded image or a link preview image
type Image struct {
	URL    string `json:"url"`
	Linked bool   `json:"-"` // true for linked_image
}

// File references an uploaded file
type File struct {
	FileID string `json:"file_id"`
}

// Video is an uploaded video and its preview frame
type Video struct {
	PreviewURL string `json:"preview_url"`
	URL        string `json:"url"`
}

// Mentions lists mentioned users. UserIDs[i] is mentioned by the text span Loci[i].
type Mentions struct {
	UserIDs []int64
	Loci    []Span
}

// Span is a [start, length] character range in the message text
type Span struct {
	Location int
	Length   int
}

// Emoji maps a placeholder character to emoji from emoji packs.
// Each Charmap entry is one occurrence of the placeholder.
type Emoji struct {
	Placeholder string
	Charmap     []EmojiRef
}

// EmojiRef is one [pack_id, offset] charmap entry
type EmojiRef struct {
	PackID int
	Offset int
}

// Event links a message to a calendar event or poll
type Event struct {
	EventID string `json:"event_id"`
	View    string `json:"view"`
}

// Location is a shared place
type Location struct {
	Lat  Coordinate
	Lng  Coordinate
	Name string
}

// Coordinate is a latitude or longitude. Text is exactly what the API sent,
// quoted or bare; Value is the same number as an exact decimal.
type Coordinate struct {
	Text  string
	Value decimal.Decimal
}

// ParseCoordinate validates s as a decimal number and keeps it verbatim.
func ParseCoordinate(s string) (Coordinate, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Coordinate{}, fmt.Errorf("coordinate %q is not a decimal number", s)
	}
	return Coordinate{Text: s, Value: d}, nil
}

func (c Coordinate) String() string { return c.Text }

// UnmarshalJSON accepts a JSON string or number without going through float64.
func (c *Coordinate) UnmarshalJSON(b []byte) error {
	text := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &text); err != nil {
			return err
		}
	}
	parsed, err := ParseCoordinate(text)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// AutokickedMember records a member the group removed automatically
type AutokickedMember struct {
	UserID string `json:"user_id"`
}

// Unknown is any attachment whose tag this release does not handle
type Unknown struct {
	Type string
	Raw  json.RawMessage
}

func (a Image) Tag() string {
	if a.Linked {
		return TagLinkedImage
	}
	return TagImage
}
func (File) Tag() string             { return TagFile }
func (Video) Tag() string            { return TagVideo }
func (Mentions) Tag() string         { return TagMentions }
func (Emoji) Tag() string            { return TagEmoji }
func (Event) Tag() string            { return TagEvent }
func (Location) Tag() string         { return TagLocation }
func (AutokickedMember) Tag() string { return TagAutokickedMember }
func (a Unknown) Tag() string        { return a.Type }

// decodeAttachment decodes one attachment object into its variant.
func decodeAttachment(raw json.RawMessage) (Attachment, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decoding attachment: %w", err)
	}

	switch head.Type {
	case TagImage, TagLinkedImage:
		var a Image
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decoding %s attachment: %w", head.Type, err)
		}
		a.Linked = head.Type == TagLinkedImage
		return a, nil

	case TagFile:
		var a File
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decoding file attachment: %w", err)
		}
		return a, nil

	case TagVideo:
		var a Video
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decoding video attachment: %w", err)
		}
		return a, nil

	case TagMentions:
		return decodeMentions(raw)

	case TagEmoji:
		return decodeEmoji(raw)

	case TagEvent:
		var a Event
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decoding event attachment: %w", err)
		}
		return a, nil

	case TagLocation:
		return decodeLocation(raw)

	case TagAutokickedMember:
		var a AutokickedMember
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decoding autokicked_member attachment: %w", err)
		}
		return a, nil

	default:
		return Unknown{Type: head.Type, Raw: raw}, nil
	}
}

func decodeMentions(raw json.RawMessage) (Mentions, error) {
	var wire struct {
		UserIDs []json.Number `json:"user_ids"`
		Loci    [][]int       `json:"loci"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Mentions{}, fmt.Errorf("decoding mentions attachment: %w", err)
	}
	if len(wire.UserIDs) != len(wire.Loci) {
		return Mentions{}, fmt.Errorf("mentions attachment has %d user_ids but %d loci", len(wire.UserIDs), len(wire.Loci))
	}

	m := Mentions{
		UserIDs: make([]int64, len(wire.UserIDs)),
		Loci:    make([]Span, len(wire.Loci)),
	}
	for i, id := range wire.UserIDs {
		n, err := id.Int64()
		if err != nil {
			return Mentions{}, fmt.Errorf("mentions user_id %q: %w", id, err)
		}
		m.UserIDs[i] = n

		if len(wire.Loci[i]) != 2 {
			return Mentions{}, fmt.Errorf("mentions loci[%d] has %d elements, want 2", i, len(wire.Loci[i]))
		}
		m.Loci[i] = Span{Location: wire.Loci[i][0], Length: wire.Loci[i][1]}
	}
	return m, nil
}

func decodeEmoji(raw json.RawMessage) (Emoji, error) {
	var wire struct {
		Placeholder string  `json:"placeholder"`
		Charmap     [][]int `json:"charmap"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Emoji{}, fmt.Errorf("decoding emoji attachment: %w", err)
	}

	e := Emoji{
		Placeholder: wire.Placeholder,
		Charmap:     make([]EmojiRef, len(wire.Charmap)),
	}
	for i, pair := range wire.Charmap {
		if len(pair) != 2 {
			return Emoji{}, fmt.Errorf("emoji charmap[%d] has %d elements, want 2", i, len(pair))
		}
		e.Charmap[i] = EmojiRef{PackID: pair[0], Offset: pair[1]}
	}
	return e, nil
}

func decodeLocation(raw json.RawMessage) (Location, error) {
	var wire struct {
		Lat  *Coordinate `json:"lat"`
		Lng  *Coordinate `json:"lng"`
		Name string      `json:"name"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Location{}, fmt.Errorf("decoding location attachment: %w", err)
	}
	if wire.Lat == nil || wire.Lng == nil {
		return Location{}, fmt.Errorf("location attachment is missing lat or lng")
	}
	return Location{Lat: *wire.Lat, Lng: *wire.Lng, Name: wire.Name}, nil
}
