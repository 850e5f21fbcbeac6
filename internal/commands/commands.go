// Package commands implements the gated interaction surface: the notes
// slash-command group and context menus, the whitelist admin group, and the
// component handlers behind every restart-surviving control. Command
// registration against the chat platform is the external client's job; this
// package only provides the handlers it routes into.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"notegate/internal/app"
	"notegate/internal/gateway"
	"notegate/internal/session"
	"notegate/internal/viewer"
)

const (
	deniedMessage  = "You do not have permission to use this bot."
	checkMark      = "✅"
	questionMark   = "❓"
	addNoteTitle   = "Adding global user note."
	addNoteHint    = "Any whitelisted user can see these! (You can add more than one note, if you run out of space.)"
	expiredMessage = "This notes viewer has expired, run the command again."
)

type Commands struct {
	service   *app.Service
	notes     viewer.NoteStore
	directory gateway.Directory
	sessions  session.Store
}

func New(service *app.Service, notes viewer.NoteStore, directory gateway.Directory, sessions session.Store) *Commands {
	return &Commands{service: service, notes: notes, directory: directory, sessions: sessions}
}

// RegisterComponents wires every custom-ID pattern into the registry. The
// registry, not any in-memory handle, is what keeps controls alive across
// restarts.
func (c *Commands) RegisterComponents(registry *gateway.Registry) error {
	if err := registry.Register(gateway.ToggleNotificationsPattern, c.handleToggleNotifications); err != nil {
		return err
	}
	if err := registry.Register(gateway.ViewNotesPattern, c.handleViewNotesButton); err != nil {
		return err
	}
	if err := registry.Register(gateway.AddNotePattern, c.handleAddNoteSubmit); err != nil {
		return err
	}
	return registry.Register(viewer.PagerPattern, c.handlePagerControl)
}

// authorize runs the access gate and sends the denial reply itself.
func (c *Commands) authorize(ctx context.Context, ic *gateway.Interaction) (bool, error) {
	ok, err := c.service.Authorized(ctx, ic.Actor.ID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ic.SendEphemeral(ctx, deniedMessage)
	}
	return true, nil
}

// GetNotes backs `/notes get` and the "Get Global Note(s)" context menu:
// it opens the paginated viewer over targetID's notes.
func (c *Commands) GetNotes(ctx context.Context, ic *gateway.Interaction, targetID int64) error {
	ok, err := c.authorize(ctx, ic)
	if err != nil || !ok {
		return err
	}

	pager := viewer.New(c.notes, c.directory, ic.Actor.ID, targetID)
	if err := pager.Load(ctx); err != nil {
		return err
	}
	if pager.Count() == 0 {
		return ic.SendEphemeral(ctx, "No notes found...")
	}

	msg, err := pager.Render(ctx)
	if err != nil {
		return err
	}
	messageID, err := ic.SendMessage(ctx, msg)
	if err != nil {
		return err
	}
	return c.sessions.Save(ctx, messageID, session.PagerState{
		TargetID: pager.TargetID(),
		ViewerID: pager.ViewerID(),
		Page:     pager.Page(),
	})
}

// AddNote backs `/notes add` and the "Add Global Note" context menu: it
// opens the note modal for targetID.
func (c *Commands) AddNote(ctx context.Context, ic *gateway.Interaction, targetID int64) error {
	ok, err := c.authorize(ctx, ic)
	if err != nil || !ok {
		return err
	}

	target, err := c.directory.FetchUser(ctx, targetID)
	if err != nil {
		return err
	}
	return ic.ShowModal(ctx, gateway.Modal{
		CustomID:    fmt.Sprintf("%s%d", gateway.CustomIDAddNotePrefix, targetID),
		Title:       addNoteTitle,
		Label:       "Note for " + target.DisplayName,
		Placeholder: addNoteHint,
	})
}

// RemoveNote backs `/notes remove`. Authors may remove their own notes,
// admins anyone's.
func (c *Commands) RemoveNote(ctx context.Context, ic *gateway.Interaction, noteID int64) error {
	ok, err := c.authorize(ctx, ic)
	if err != nil || !ok {
		return err
	}

	content, err := c.service.RemoveNote(ctx, noteID, ic.Actor.ID)
	var domainErr *app.DomainError
	if errors.As(err, &domainErr) {
		return ic.SendEphemeral(ctx, domainErr.Message)
	}
	if err != nil {
		return err
	}
	return ic.SendEphemeral(ctx, "Successfully deleted the following note:\n"+indent(content, "> "))
}

// AutocompleteNoteIDs serves the note-id option of `/notes remove`.
func (c *Commands) AutocompleteNoteIDs(ctx context.Context, actorID, targetID int64) ([]gateway.Choice, error) {
	refs, err := c.service.NoteRefs(ctx, actorID, targetID)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return []gateway.Choice{{Name: "No notes found...", Value: -1}}, nil
	}
	choices := make([]gateway.Choice, 0, len(refs))
	for _, ref := range refs {
		choices = append(choices, gateway.Choice{
			Name:  short(fmt.Sprintf("(%d) %s", ref.ID, ref.Content), 100),
			Value: ref.ID,
		})
	}
	return choices, nil
}

// WhitelistAdd backs `/whitelist add`. Admin only.
func (c *Commands) WhitelistAdd(ctx context.Context, ic *gateway.Interaction, userID int64) error {
	if !c.service.IsAdmin(ic.Actor.ID) {
		return ic.SendEphemeral(ctx, deniedMessage)
	}
	if err := c.service.AddToWhitelist(ctx, userID); err != nil {
		return err
	}
	return ic.SendEphemeral(ctx, checkMark)
}

// WhitelistRemove backs `/whitelist remove`. A missing entry answers with a
// question mark instead of an error.
func (c *Commands) WhitelistRemove(ctx context.Context, ic *gateway.Interaction, userID int64) error {
	if !c.service.IsAdmin(ic.Actor.ID) {
		return ic.SendEphemeral(ctx, deniedMessage)
	}
	removed, err := c.service.RemoveFromWhitelist(ctx, userID)
	if err != nil {
		return err
	}
	if removed {
		return ic.SendEphemeral(ctx, checkMark)
	}
	return ic.SendEphemeral(ctx, questionMark)
}

// WhitelistList backs `/whitelist list`.
func (c *Commands) WhitelistList(ctx context.Context, ic *gateway.Interaction) error {
	if !c.service.IsAdmin(ic.Actor.ID) {
		return ic.SendEphemeral(ctx, deniedMessage)
	}
	ids, err := c.service.Whitelist(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return ic.SendEphemeral(ctx, "No records found...")
	}
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		user, err := c.directory.FetchUser(ctx, id)
		if err != nil {
			names = append(names, strconv.FormatInt(id, 10))
			continue
		}
		names = append(names, user.DisplayName)
	}
	return ic.SendEphemeral(ctx, strings.Join(names, ", "))
}

func (c *Commands) handleToggleNotifications(ctx context.Context, ic *gateway.Interaction, _ map[string]string) error {
	ok, err := c.authorize(ctx, ic)
	if err != nil || !ok {
		return err
	}
	enabled, err := c.service.ToggleNotifications(ctx, ic.Actor.ID)
	if err != nil {
		return err
	}
	return ic.SendEphemeral(ctx, viewer.NotifyText("You are %s receiving notifications.", enabled))
}

func (c *Commands) handleViewNotesButton(ctx context.Context, ic *gateway.Interaction, match map[string]string) error {
	targetID, err := parseID(match["id"])
	if err != nil {
		return err
	}
	return c.GetNotes(ctx, ic, targetID)
}

func (c *Commands) handleAddNoteSubmit(ctx context.Context, ic *gateway.Interaction, match map[string]string) error {
	targetID, err := parseID(match["id"])
	if err != nil {
		return err
	}
	_, err = c.service.AddNote(ctx, ic.Actor.ID, targetID, ic.Values["content"], time.Now())
	var domainErr *app.DomainError
	if errors.As(err, &domainErr) {
		return ic.SendEphemeral(ctx, domainErr.Message)
	}
	if err != nil {
		return err
	}
	return ic.SendEphemeral(ctx, checkMark)
}

// handlePagerControl drives a live viewer. The pager is rebuilt from the
// persisted session and a fresh store snapshot, never from in-memory state,
// so it works for pagers rendered before the process last restarted.
func (c *Commands) handlePagerControl(ctx context.Context, ic *gateway.Interaction, match map[string]string) error {
	ok, err := c.authorize(ctx, ic)
	if err != nil || !ok {
		return err
	}

	state, err := c.sessions.Load(ctx, ic.MessageID)
	if errors.Is(err, session.ErrNotFound) {
		return ic.SendEphemeral(ctx, expiredMessage)
	}
	if err != nil {
		return err
	}
	if state.ViewerID != ic.Actor.ID {
		return ic.SendEphemeral(ctx, "This notes viewer belongs to someone else.")
	}

	pager := viewer.New(c.notes, c.directory, state.ViewerID, state.TargetID)
	if err := pager.Load(ctx); err != nil {
		return err
	}
	pager.SetPage(state.Page)

	action := match["action"]
	switch action {
	case viewer.ActionStop:
		if err := c.sessions.Delete(ctx, ic.MessageID); err != nil {
			return err
		}
		msg, err := pager.Render(ctx)
		if err != nil {
			return err
		}
		msg.Buttons = nil
		return ic.UpdateMessage(ctx, msg)

	case viewer.ActionMute:
		refreshed, err := pager.ToggleMute(ctx)
		if err != nil {
			return err
		}
		if err := c.rerender(ctx, ic, pager); err != nil {
			return err
		}
		return ic.SendEphemeral(ctx, viewer.NotifyText("You will %s get notified for that note.", !refreshed.Muted))

	case viewer.ActionDelete:
		err := pager.Delete(ctx)
		if errors.Is(err, viewer.ErrNotAuthor) {
			return ic.SendEphemeral(ctx, "Only the note's author can delete it.")
		}
		if err != nil {
			return err
		}
		return c.rerender(ctx, ic, pager)

	default:
		pager.Apply(action)
		return c.rerender(ctx, ic, pager)
	}
}

// rerender redraws the pager message and persists the (possibly re-clamped)
// cursor.
func (c *Commands) rerender(ctx context.Context, ic *gateway.Interaction, pager *viewer.Pager) error {
	msg, err := pager.Render(ctx)
	if err != nil {
		return err
	}
	if err := ic.UpdateMessage(ctx, msg); err != nil {
		return err
	}
	return c.sessions.Save(ctx, ic.MessageID, session.PagerState{
		TargetID: pager.TargetID(),
		ViewerID: pager.ViewerID(),
		Page:     pager.Page(),
	})
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse id %q: %w", raw, err)
	}
	return id, nil
}

func short(text string, length int) string {
	if len(text) > length {
		return text[:length-3] + "..."
	}
	return text
}

func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
