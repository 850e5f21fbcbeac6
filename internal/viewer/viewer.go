// Package viewer renders one target's notes a page at a time, with live
// mute-toggle and delete controls. The pager is an explicit cursor over a
// snapshot that is refreshed after every mutation; the page index is always
// clamped to the refreshed set.
package viewer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"notegate/internal/gateway"
	"notegate/internal/store"
)

// Pager control custom IDs, dispatched through the component registry.
const (
	PagerPattern = `NOTEPAGE:(?P<action>[a-z]+)`

	ActionFirst  = "first"
	ActionBack   = "back"
	ActionNext   = "next"
	ActionLast   = "last"
	ActionStop   = "stop"
	ActionMute   = "mute"
	ActionDelete = "delete"
)

// ErrNotAuthor is returned when someone other than a note's author presses
// delete inside the viewer. The admin override applies to the slash-command
// removal path only, not here.
var ErrNotAuthor = errors.New("only the note's author can delete it")

type NoteStore interface {
	ListNotes(ctx context.Context, targetID, viewerID int64) ([]store.Note, error)
	ToggleNoteMute(ctx context.Context, noteID, viewerID int64) (store.Note, error)
	DeleteNote(ctx context.Context, noteID, actorID int64, override bool) (string, error)
}

type Pager struct {
	store     NoteStore
	directory gateway.Directory
	viewerID  int64
	targetID  int64
	entries   []store.Note
	page      int
}

func New(st NoteStore, directory gateway.Directory, viewerID, targetID int64) *Pager {
	return &Pager{store: st, directory: directory, viewerID: viewerID, targetID: targetID}
}

// Load refreshes the note snapshot and re-clamps the page index.
func (p *Pager) Load(ctx context.Context) error {
	entries, err := p.store.ListNotes(ctx, p.targetID, p.viewerID)
	if err != nil {
		return err
	}
	p.entries = entries
	p.page = clamp(p.page, len(entries))
	return nil
}

func (p *Pager) Count() int { return len(p.entries) }

func (p *Pager) Page() int { return p.page }

func (p *Pager) TargetID() int64 { return p.targetID }

func (p *Pager) ViewerID() int64 { return p.viewerID }

// SetPage moves the cursor, clamped to [0, count-1].
func (p *Pager) SetPage(index int) {
	p.page = clamp(index, len(p.entries))
}

// Current returns the note under the cursor, or false on an empty set.
func (p *Pager) Current() (store.Note, bool) {
	if len(p.entries) == 0 {
		return store.Note{}, false
	}
	return p.entries[p.page], true
}

// ToggleMute flips the viewer's mute state for the displayed note and
// replaces the page entry with the canonical post-toggle row, keeping the
// cursor where it is. It returns the refreshed note.
func (p *Pager) ToggleMute(ctx context.Context) (store.Note, error) {
	current, ok := p.Current()
	if !ok {
		return store.Note{}, fmt.Errorf("no note displayed")
	}
	refreshed, err := p.store.ToggleNoteMute(ctx, current.ID, p.viewerID)
	if err != nil {
		return store.Note{}, err
	}
	p.entries[p.page] = refreshed
	return refreshed, nil
}

// Delete removes the displayed note if the viewer authored it, then reloads
// the full set. Deleting the last remaining note leaves the pager in a valid
// empty state.
func (p *Pager) Delete(ctx context.Context) error {
	current, ok := p.Current()
	if !ok {
		return fmt.Errorf("no note displayed")
	}
	if current.AuthorID != p.viewerID {
		return ErrNotAuthor
	}
	if _, err := p.store.DeleteNote(ctx, current.ID, p.viewerID, false); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return p.Load(ctx)
}

// Apply executes a navigation action. Mute, delete, and stop are handled by
// the caller, which owns responses and session teardown.
func (p *Pager) Apply(action string) {
	switch action {
	case ActionFirst:
		p.SetPage(0)
	case ActionBack:
		p.SetPage(p.page - 1)
	case ActionNext:
		p.SetPage(p.page + 1)
	case ActionLast:
		p.SetPage(p.Count() - 1)
	}
}

// Render produces the message for the current page: the note embed plus the
// control row. An empty set renders the empty state with every control but
// stop disabled.
func (p *Pager) Render(ctx context.Context) (gateway.Message, error) {
	current, ok := p.Current()
	if !ok {
		return gateway.Message{
			Content: "No notes found...",
			Buttons: p.buttons(store.Note{}, true),
		}, nil
	}

	author, err := p.directory.FetchUser(ctx, current.AuthorID)
	if err != nil {
		return gateway.Message{}, fmt.Errorf("resolve author: %w", err)
	}
	target, err := p.directory.FetchUser(ctx, current.TargetID)
	if err != nil {
		return gateway.Message{}, fmt.Errorf("resolve target: %w", err)
	}

	colour := author.AccentColor
	if colour == 0 {
		colour = blurple
	}

	footer := Bell(!current.Muted) + target.DisplayName + " "
	if p.Count() > 1 {
		footer += fmt.Sprintf("(%d/%d) ", p.page+1, p.Count())
	}
	footer += fmt.Sprintf("(ID: %d)", current.ID)

	embed := &gateway.Embed{
		Description: current.Content,
		Color:       colour,
		Timestamp:   current.CreatedAt,
		Author:      gateway.EmbedAuthor{Name: author.DisplayName, IconURL: author.AvatarURL},
		Footer:      gateway.EmbedFooter{Text: footer, IconURL: target.AvatarURL},
	}

	return gateway.Message{Embed: embed, Buttons: p.buttons(current, false)}, nil
}

func (p *Pager) buttons(current store.Note, empty bool) []gateway.Button {
	single := p.Count() <= 1
	return []gateway.Button{
		{Emoji: firstEmoji, CustomID: "NOTEPAGE:" + ActionFirst, Disabled: empty || single},
		{Emoji: backEmoji, CustomID: "NOTEPAGE:" + ActionBack, Disabled: empty || single},
		{Emoji: nextEmoji, CustomID: "NOTEPAGE:" + ActionNext, Disabled: empty || single},
		{Emoji: lastEmoji, CustomID: "NOTEPAGE:" + ActionLast, Disabled: empty || single},
		{Emoji: Bell(!current.Muted), CustomID: "NOTEPAGE:" + ActionMute, Disabled: empty},
		{Emoji: trashEmoji, CustomID: "NOTEPAGE:" + ActionDelete, Disabled: empty || current.AuthorID != p.viewerID},
		{Emoji: stopEmoji, CustomID: "NOTEPAGE:" + ActionStop},
	}
}

func clamp(index, count int) int {
	if count == 0 {
		return 0
	}
	if index < 0 {
		return 0
	}
	if index > count-1 {
		return count - 1
	}
	return index
}
