// ABOUTME: Sync driver that pages through a group's history into the store
// ABOUTME: Chooses a direction from what is already stored and recomputes the cursor after every page

package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/groupme-backup/internal/dedupe"
	"github.com/2389/groupme-backup/internal/groupme"
	"github.com/2389/groupme-backup/internal/store"
)

// ErrStalled is returned when a non-empty page leaves the cursor where it was.
// Continuing would request the same page forever.
var ErrStalled = errors.New("sync cursor did not advance")

// Direction is the paging direction of a run
type Direction int

const (
	// Forward pages toward newer messages using after_id
	Forward Direction = iota
	// Backward pages toward older messages using before_id
	Backward
)

func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}
	return "backward"
}

// Fetcher retrieves one page of group messages
type Fetcher interface {
	Messages(ctx context.Context, groupID string, q groupme.PageQuery) ([]*groupme.Record, error)
}

// Result summarizes a run
type Result struct {
	Direction Direction
	Pages     int // non-empty pages processed
	Seen      int // records received
	Stored    int // records written
	Skipped   int // records already present
	Unknown   int // attachments with an unrecognized tag
}

// Syncer mirrors one group into a store. It is not safe for concurrent use;
// exactly one Syncer should write to a store at a time.
type Syncer struct {
	store   store.Store
	api     Fetcher
	groupID string
	seen    *dedupe.Cache
	logger  *slog.Logger
}

// New creates a Syncer for groupID
func New(st store.Store, api Fetcher, groupID string, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		store:   st,
		api:     api,
		groupID: groupID,
		seen:    dedupe.New(dedupe.DefaultSize),
		logger:  logger.With("component", "mirror", "group_id", groupID),
	}
}

// Run brings the store up to date. An empty store is filled backward from the
// newest message; otherwise the run fetches everything after the newest
// stored message. It returns nil once a page comes back empty.
func (s *Syncer) Run(ctx context.Context) (*Result, error) {
	last, err := s.store.FindLastID(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.logger.Info("starting at the newest message and saving all previous messages")
		return s.loop(ctx, Backward, 0)
	case err != nil:
		return nil, fmt.Errorf("finding last message id: %w", err)
	}

	s.logger.Info("looking for messages after last stored", "after_id", last)
	return s.loop(ctx, Forward, last)
}

// Backfill pages backward from the oldest stored message. It completes history
// that an interrupted first run left behind. On an empty store it is the same
// as Run.
func (s *Syncer) Backfill(ctx context.Context) (*Result, error) {
	first, err := s.store.FindFirstID(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.logger.Info("store is empty, starting at the newest message")
		return s.loop(ctx, Backward, 0)
	case err != nil:
		return nil, fmt.Errorf("finding first message id: %w", err)
	}

	s.logger.Info("looking for messages before first stored", "before_id", first)
	return s.loop(ctx, Backward, first)
}

// loop fetches pages until one is empty. cursor 0 with Backward means "start
// at the newest message".
func (s *Syncer) loop(ctx context.Context, dir Direction, cursor int64) (*Result, error) {
	res := &Result{Direction: dir}

	for {
		q := groupme.PageQuery{}
		switch {
		case dir == Forward:
			q.AfterID = cursor
		case cursor != 0:
			q.BeforeID = cursor
		}

		records, err := s.api.Messages(ctx, s.groupID, q)
		if err != nil {
			var apiErr *groupme.APIError
			if errors.As(err, &apiErr) {
				s.logger.Error("api request failed",
					"status", apiErr.StatusCode,
					"body", apiErr.Body,
					"truncated", apiErr.Truncated,
				)
			}
			return res, fmt.Errorf("fetching page: %w", err)
		}

		if len(records) == 0 {
			s.logger.Info("reached end of history",
				"direction", dir.String(),
				"pages", res.Pages,
				"stored", res.Stored,
				"skipped", res.Skipped,
			)
			return res, nil
		}
		res.Pages++

		for _, rec := range records {
			res.Seen++
			if err := s.persist(ctx, rec, res); err != nil {
				return res, err
			}
		}

		next, err := s.nextCursor(ctx, dir)
		if err != nil {
			return res, err
		}
		if next == cursor {
			return res, fmt.Errorf("%w: %s at %d", ErrStalled, dir, cursor)
		}
		cursor = next
	}
}

// nextCursor reads the cursor back from the store, so it reflects what was
// actually persisted rather than what the page contained.
func (s *Syncer) nextCursor(ctx context.Context, dir Direction) (int64, error) {
	var (
		id  int64
		err error
	)
	if dir == Forward {
		id, err = s.store.FindLastID(ctx)
	} else {
		id, err = s.store.FindFirstID(ctx)
	}
	if err != nil {
		return 0, fmt.Errorf("recomputing %s cursor: %w", dir, err)
	}
	return id, nil
}

// persist writes a record and its attachments in one transaction. A record
// whose ID is already stored is skipped entirely.
func (s *Syncer) persist(ctx context.Context, rec *groupme.Record, res *Result) error {
	if s.seen.Check(rec.ID) {
		res.Skipped++
		return nil
	}

	var skipped bool
	var unknown int
	err := s.store.WithTx(ctx, func(w store.Writer) error {
		_, err := w.FindMessageByID(ctx, rec.ID)
		if err == nil {
			skipped = true
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		if err := w.SaveMessage(ctx, toMessage(rec)); err != nil {
			return err
		}

		for _, att := range rec.Attachments {
			ok, err := applyAttachment(ctx, w, rec.ID, att)
			if err != nil {
				return err
			}
			if !ok {
				unknown++
				s.logger.Warn("unsupported attachment type",
					"type", att.Tag(),
					"message_id", rec.ID,
					"record", string(rec.Raw),
				)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persisting message %d: %w", rec.ID, err)
	}

	s.seen.Mark(rec.ID)
	if skipped {
		s.logger.Debug("message already stored", "id", rec.ID)
		res.Skipped++
		return nil
	}
	res.Stored++
	res.Unknown += unknown
	return nil
}

// applyAttachment writes the rows for one attachment. It reports false for
// attachments it does not recognize.
func applyAttachment(ctx context.Context, w store.Writer, messageID int64, att groupme.Attachment) (bool, error) {
	switch a := att.(type) {
	case groupme.Image:
		return true, w.AddImage(ctx, messageID, a.URL)

	case groupme.File:
		return true, w.AddFile(ctx, messageID, a.FileID)

	case groupme.Video:
		return true, w.AddVideo(ctx, messageID, a.PreviewURL, a.URL)

	case groupme.Mentions:
		for i, userID := range a.UserIDs {
			locus := a.Loci[i]
			if err := w.AddMention(ctx, messageID, userID, locus.Location, locus.Length); err != nil {
				return true, err
			}
		}
		return true, nil

	case groupme.Emoji:
		for _, ref := range a.Charmap {
			if err := w.AddEmoji(ctx, messageID, a.Placeholder, ref.PackID, ref.Offset); err != nil {
				return true, err
			}
		}
		return true, nil

	case groupme.Event:
		return true, w.AddEvent(ctx, messageID, a.EventID, a.View)

	case groupme.Location:
		return true, w.AddLocation(ctx, messageID, a.Lat.Text, a.Lng.Text, a.Name)

	case groupme.AutokickedMember:
		return true, w.AddAutokickedMember(ctx, messageID, a.UserID)

	default:
		return false, nil
	}
}

func toMessage(rec *groupme.Record) *store.Message {
	return &store.Message{
		ID:         rec.ID,
		AvatarURL:  rec.AvatarURL,
		CreatedAt:  rec.CreatedAt,
		Name:       rec.Name,
		SenderID:   rec.SenderID,
		SenderType: store.SenderType(rec.SenderType),
		SourceGUID: rec.SourceGUID,
		System:     rec.System,
		Text:       rec.Text,
		UserID:     rec.UserID,
	}
}
