package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"notegate/internal/access"
	"notegate/internal/config"
	"notegate/internal/gateway"
	"notegate/internal/store"
)

const maxNoteLength = 2000

// RelayEvent is one externally-reported activity occurrence: UserID became
// active in thread ThreadID, reported by OwnerID.
type RelayEvent struct {
	UserID   int64
	ThreadID int64
	OwnerID  int64
}

// SkipReason strings double as the response body of the relay route.
type SkipReason string

const (
	SkipNotWhitelisted        SkipReason = "user not whitelisted"
	SkipNotificationsDisabled SkipReason = "notifications disabled"
	SkipNoApplicableNotes     SkipReason = "user has no notes"
	SkipAlreadyDelivered      SkipReason = "already delivered"
)

type RelayOutcome struct {
	Delivered bool
	Skip      SkipReason
}

type dataStore interface {
	IsWhitelisted(ctx context.Context, userID int64) (bool, error)
	NotificationsEnabled(ctx context.Context, userID int64) (bool, error)
	ToggleNotifications(ctx context.Context, userID int64) (bool, error)
	HasUnmutedNotes(ctx context.Context, targetID, viewerID int64) (bool, error)
	ClaimDelivery(ctx context.Context, userID, threadID int64) (bool, error)
	InsertNote(ctx context.Context, authorID, targetID int64, content string, createdAt time.Time) (int64, error)
	DeleteNote(ctx context.Context, noteID, actorID int64, override bool) (string, error)
	ListNoteRefs(ctx context.Context, targetID, authorID int64, all bool) ([]store.NoteRef, error)
	AddWhitelist(ctx context.Context, userID int64) error
	RemoveWhitelist(ctx context.Context, userID int64) (bool, error)
	ListWhitelist(ctx context.Context) ([]int64, error)
	Ping(ctx context.Context) error
}

type Service struct {
	cfg       config.Config
	store     dataStore
	gate      *access.Gate
	messenger gateway.Messenger

	// relayMu serializes the check-then-claim sequence of relay events. It
	// is released before delivery so a slow gateway call never blocks
	// unrelated events.
	relayMu sync.Mutex
}

func New(cfg config.Config, st dataStore, messenger gateway.Messenger) *Service {
	return &Service{
		cfg:       cfg,
		store:     st,
		gate:      access.New(st, cfg.AdminIDs),
		messenger: messenger,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) IsAdmin(userID int64) bool {
	return s.gate.IsAdmin(userID)
}

func (s *Service) Authorized(ctx context.Context, userID int64) (bool, error) {
	return s.gate.IsAuthorized(ctx, userID)
}

// HandleRelayEvent runs the relay chain for one activity event: access gate,
// notification preference, note eligibility, dedup claim, then delivery.
// Checks through claim run under the relay lock; delivery does not. A
// delivery failure after the claim committed is logged and swallowed — the
// event is spent either way (at-most-once).
func (s *Service) HandleRelayEvent(ctx context.Context, ev RelayEvent) (RelayOutcome, error) {
	outcome, err := s.checkAndClaim(ctx, ev)
	if err != nil || !outcome.Delivered {
		return outcome, err
	}
	if err := s.deliver(ctx, ev); err != nil {
		log.Printf("relay delivery failed: user=%d thread=%d: %v", ev.UserID, ev.ThreadID, err)
	}
	return outcome, nil
}

func (s *Service) checkAndClaim(ctx context.Context, ev RelayEvent) (RelayOutcome, error) {
	s.relayMu.Lock()
	defer s.relayMu.Unlock()

	authorized, err := s.gate.IsAuthorized(ctx, ev.UserID)
	if err != nil {
		return RelayOutcome{}, err
	}
	if !authorized {
		return RelayOutcome{Skip: SkipNotWhitelisted}, nil
	}

	enabled, err := s.store.NotificationsEnabled(ctx, ev.UserID)
	if err != nil {
		return RelayOutcome{}, err
	}
	if !enabled {
		return RelayOutcome{Skip: SkipNotificationsDisabled}, nil
	}

	hasNotes, err := s.store.HasUnmutedNotes(ctx, ev.UserID, ev.UserID)
	if err != nil {
		return RelayOutcome{}, err
	}
	if !hasNotes {
		return RelayOutcome{Skip: SkipNoApplicableNotes}, nil
	}

	claimed, err := s.store.ClaimDelivery(ctx, ev.UserID, ev.ThreadID)
	if err != nil {
		return RelayOutcome{}, err
	}
	if !claimed {
		return RelayOutcome{Skip: SkipAlreadyDelivered}, nil
	}
	return RelayOutcome{Delivered: true}, nil
}

func (s *Service) deliver(ctx context.Context, ev RelayEvent) error {
	msg := gateway.Message{
		Content: fmt.Sprintf(
			"Hey! User <@%d> has notes set! From https://discord.com/channels/%d/%d",
			ev.OwnerID, s.cfg.GuildID, ev.ThreadID,
		),
		Buttons: []gateway.Button{
			{Label: "Toggle Notifications", CustomID: gateway.CustomIDToggleNotifications},
			{Label: "View Notes", CustomID: fmt.Sprintf("%s%d", gateway.CustomIDViewNotesPrefix, ev.UserID)},
		},
	}
	return s.messenger.SendDirectMessage(ctx, ev.UserID, msg)
}

// AddNote validates and stores a new note.
func (s *Service) AddNote(ctx context.Context, authorID, targetID int64, content string, createdAt time.Time) (int64, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return 0, domainError("VALIDATION_ERROR", "Note content is required.")
	}
	if len(content) > maxNoteLength {
		return 0, domainError("VALIDATION_ERROR", fmt.Sprintf("Note content must be at most %d characters.", maxNoteLength))
	}
	return s.store.InsertNote(ctx, authorID, targetID, content, createdAt)
}

// RemoveNote deletes a note by ID. Authors can delete their own notes;
// admins can delete anyone's. The deleted content is returned for the
// confirmation reply.
func (s *Service) RemoveNote(ctx context.Context, noteID, actorID int64) (string, error) {
	content, err := s.store.DeleteNote(ctx, noteID, actorID, s.gate.IsAdmin(actorID))
	if errors.Is(err, sql.ErrNoRows) {
		return "", domainError("NOT_FOUND", "Could not delete note, are you sure it exists?")
	}
	if err != nil {
		return "", err
	}
	return content, nil
}

// NoteRefs lists the note ids the actor may remove for a target: their own,
// or all of the target's when the actor is an admin.
func (s *Service) NoteRefs(ctx context.Context, actorID, targetID int64) ([]store.NoteRef, error) {
	return s.store.ListNoteRefs(ctx, targetID, actorID, s.gate.IsAdmin(actorID))
}

// ToggleNotifications flips the actor's relay preference and returns the new
// state.
func (s *Service) ToggleNotifications(ctx context.Context, userID int64) (bool, error) {
	return s.store.ToggleNotifications(ctx, userID)
}

func (s *Service) AddToWhitelist(ctx context.Context, userID int64) error {
	return s.store.AddWhitelist(ctx, userID)
}

func (s *Service) RemoveFromWhitelist(ctx context.Context, userID int64) (bool, error) {
	return s.store.RemoveWhitelist(ctx, userID)
}

func (s *Service) Whitelist(ctx context.Context) ([]int64, error) {
	return s.store.ListWhitelist(ctx)
}
