// Package gateway is the boundary to the chat platform: the message and
// component shapes the service produces, the delivery interfaces the relay
// depends on, and the custom-ID registry that reconstructs interactive
// controls after a restart. The platform client that speaks the wire
// protocol lives outside this repository.
package gateway

import (
	"context"
	"time"
)

// Custom IDs of the restart-surviving controls, and the registry patterns
// that parse them back into handlers.
const (
	CustomIDToggleNotifications = "NOTIFS_TOGGLE"
	CustomIDViewNotesPrefix     = "NOTES:"
	CustomIDAddNotePrefix       = "ADDNOTE:"

	ToggleNotificationsPattern = `NOTIFS_TOGGLE`
	ViewNotesPattern           = `NOTES:(?P<id>\d+)`
	AddNotePattern             = `ADDNOTE:(?P<id>\d+)`
)

type User struct {
	ID          int64
	DisplayName string
	AvatarURL   string
	AccentColor int
}

type EmbedAuthor struct {
	Name    string
	IconURL string
}

type EmbedFooter struct {
	Text    string
	IconURL string
}

type Embed struct {
	Description string
	Color       int
	Timestamp   time.Time
	Author      EmbedAuthor
	Footer      EmbedFooter
}

type Button struct {
	Label    string
	Emoji    string
	CustomID string
	Disabled bool
}

type Message struct {
	Content string
	Embed   *Embed
	Buttons []Button
}

// Modal prompts the actor for one long-form text value. The CustomID carries
// the submit routing pattern, so a pending modal survives a restart too.
type Modal struct {
	CustomID    string
	Title       string
	Label       string
	Placeholder string
}

type Choice struct {
	Name  string
	Value int64
}

// Messenger delivers direct messages. Errors are reported, never retried
// here; the relay's at-most-once policy decides what to do with them.
type Messenger interface {
	SendDirectMessage(ctx context.Context, userID int64, msg Message) error
}

// Directory resolves user identities for rendering.
type Directory interface {
	FetchUser(ctx context.Context, userID int64) (User, error)
}

// Responder answers a single interaction.
type Responder interface {
	// SendMessage posts the initial response and returns its message ID.
	SendMessage(ctx context.Context, msg Message) (int64, error)
	// UpdateMessage edits the message the interaction originated from.
	UpdateMessage(ctx context.Context, msg Message) error
	// SendEphemeral sends a follow-up only the actor can see.
	SendEphemeral(ctx context.Context, content string) error
	// ShowModal opens a modal prompt.
	ShowModal(ctx context.Context, m Modal) error
}

// Interaction is one inbound actor event: a component press, a modal
// submit, a command invocation.
type Interaction struct {
	Actor     User
	MessageID int64
	// Values holds modal inputs keyed by field name.
	Values map[string]string
	Responder
}
