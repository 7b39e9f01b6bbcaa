// ABOUTME: Store interfaces and data types for groupme-backup persistence
// ABOUTME: Defines Message, the attachment row types, and the Writer/Store contracts

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrInvalidCoordinate is returned when location text is not a decimal number
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// SenderType identifies who authored a message
type SenderType string

const (
	SenderTypeUser   SenderType = "user"
	SenderTypeBot    SenderType = "bot"
	SenderTypeSystem SenderType = "system"
)

// Message is a single group message. ID is assigned upstream and never changes.
type Message struct {
	ID         int64
	AvatarURL  string // empty when the sender has no avatar
	CreatedAt  time.Time
	Name       string
	SenderID   string
	SenderType SenderType
	SourceGUID string
	System     bool
	Text       string // empty for attachment-only messages
	UserID     string
}

// Image is an image or linked_image attachment
type Image struct {
	MessageID int64
	URL       string
}

// File is a file attachment
type File struct {
	MessageID int64
	FileID    string
}

// Video is a video attachment
type Video struct {
	MessageID  int64
	PreviewURL string
	URL        string
}

// Mention is one mentioned user. Location and Length are character offsets into the message text.
type Mention struct {
	MessageID int64
	UserID    int64
	Location  int
	Length    int
}

// Emoji is one charmap entry of an emoji attachment
type Emoji struct {
	MessageID   int64
	Placeholder string
	PackID      int
	Offset      int
}

// Location is a location attachment. Lat and Lng hold the exact decimal text
// sent upstream, never reformatted.
type Location struct {
	MessageID int64
	Lat       string
	Lng       string
	Name      string
}

// Coordinates parses Lat and Lng as exact decimals.
func (l Location) Coordinates() (lat, lng decimal.Decimal, err error) {
	if lat, err = decimal.NewFromString(l.Lat); err != nil {
		return lat, lng, fmt.Errorf("%w: lat %q", ErrInvalidCoordinate, l.Lat)
	}
	if lng, err = decimal.NewFromString(l.Lng); err != nil {
		return lat, lng, fmt.Errorf("%w: lng %q", ErrInvalidCoordinate, l.Lng)
	}
	return lat, lng, nil
}

// checkCoordinates rejects coordinate text that is not a decimal number.
func checkCoordinates(lat, lng string) error {
	_, _, err := Location{Lat: lat, Lng: lng}.Coordinates()
	return err
}

// Event is an event attachment (calendar events, polls)
type Event struct {
	MessageID int64
	EventID   string
	View      string
}

// AutokickedMember records a member removed by the group's auto-kick rule
type AutokickedMember struct {
	MessageID int64
	UserID    string
}

// Stats summarizes what the store holds
type Stats struct {
	SchemaVersion int
	FirstID       int64 // 0 when there are no messages
	LastID        int64
	Tables        map[string]int64 // row count per table
}

// Writer is the set of operations that can run inside a single transaction.
// Every Add method is a silent no-op when the parent message is missing or
// an identical row already exists.
type Writer interface {
	FindMessageByID(ctx context.Context, id int64) (*Message, error)
	SaveMessage(ctx context.Context, msg *Message) error

	AddImage(ctx context.Context, messageID int64, url string) error
	AddFile(ctx context.Context, messageID int64, fileID string) error
	AddVideo(ctx context.Context, messageID int64, previewURL, url string) error
	AddMention(ctx context.Context, messageID, userID int64, location, length int) error
	AddEmoji(ctx context.Context, messageID int64, placeholder string, packID, offset int) error
	AddLocation(ctx context.Context, messageID int64, lat, lng, name string) error
	AddEvent(ctx context.Context, messageID int64, eventID, view string) error
	AddAutokickedMember(ctx context.Context, messageID int64, userID string) error
}

// Store is the full persistence contract used by the sync driver and the CLI
type Store interface {
	Writer

	// FindFirstID and FindLastID return ErrNotFound when no messages are stored
	FindFirstID(ctx context.Context) (int64, error)
	FindLastID(ctx context.Context) (int64, error)

	// WithTx runs fn in a transaction; any error from fn rolls it back
	WithTx(ctx context.Context, fn func(w Writer) error) error

	CurrentVersion(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*Stats, error)

	// Close releases any resources held by the store
	Close() error
}
