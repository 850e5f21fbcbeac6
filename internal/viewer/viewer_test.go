package viewer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"notegate/internal/gateway"
	"notegate/internal/store"
)

type muteKey struct {
	noteID, viewerID int64
}

// memoryNotes mimics the store closely enough for pager behavior: per-viewer
// mute relations and author-or-override deletes.
type memoryNotes struct {
	notes []store.Note
	muted map[muteKey]bool
}

func newMemoryNotes(notes ...store.Note) *memoryNotes {
	return &memoryNotes{notes: notes, muted: make(map[muteKey]bool)}
}

func (m *memoryNotes) ListNotes(_ context.Context, targetID, viewerID int64) ([]store.Note, error) {
	items := make([]store.Note, 0)
	for _, note := range m.notes {
		if note.TargetID != targetID {
			continue
		}
		note.Muted = m.muted[muteKey{note.ID, viewerID}]
		items = append(items, note)
	}
	return items, nil
}

func (m *memoryNotes) ToggleNoteMute(_ context.Context, noteID, viewerID int64) (store.Note, error) {
	key := muteKey{noteID, viewerID}
	m.muted[key] = !m.muted[key]
	for _, note := range m.notes {
		if note.ID == noteID {
			note.Muted = m.muted[key]
			return note, nil
		}
	}
	return store.Note{}, sql.ErrNoRows
}

func (m *memoryNotes) DeleteNote(_ context.Context, noteID, actorID int64, override bool) (string, error) {
	for i, note := range m.notes {
		if note.ID == noteID && (note.AuthorID == actorID || override) {
			m.notes = append(m.notes[:i], m.notes[i+1:]...)
			return note.Content, nil
		}
	}
	return "", sql.ErrNoRows
}

type fakeDirectory struct{}

func (fakeDirectory) FetchUser(_ context.Context, userID int64) (gateway.User, error) {
	return gateway.User{ID: userID, DisplayName: fmt.Sprintf("user-%d", userID)}, nil
}

func note(id, authorID, targetID int64) store.Note {
	return store.Note{
		ID:        id,
		AuthorID:  authorID,
		TargetID:  targetID,
		Content:   fmt.Sprintf("note %d", id),
		CreatedAt: time.Now(),
	}
}

func loadedPager(t *testing.T, st NoteStore, viewerID, targetID int64) *Pager {
	t.Helper()
	pager := New(st, fakeDirectory{}, viewerID, targetID)
	if err := pager.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return pager
}

func TestPagerClampsIndex(t *testing.T) {
	st := newMemoryNotes(note(1, 7, 42), note(2, 7, 42), note(3, 8, 42))
	pager := loadedPager(t, st, 7, 42)

	pager.SetPage(10)
	if pager.Page() != 2 {
		t.Errorf("expected clamp to 2, got %d", pager.Page())
	}
	pager.SetPage(-5)
	if pager.Page() != 0 {
		t.Errorf("expected clamp to 0, got %d", pager.Page())
	}
}

func TestPagerNavigation(t *testing.T) {
	st := newMemoryNotes(note(1, 7, 42), note(2, 7, 42), note(3, 8, 42))
	pager := loadedPager(t, st, 7, 42)

	pager.Apply(ActionNext)
	pager.Apply(ActionNext)
	pager.Apply(ActionNext) // past the end, clamps
	if pager.Page() != 2 {
		t.Errorf("expected page 2, got %d", pager.Page())
	}
	pager.Apply(ActionFirst)
	if pager.Page() != 0 {
		t.Errorf("expected page 0, got %d", pager.Page())
	}
	pager.Apply(ActionLast)
	if pager.Page() != 2 {
		t.Errorf("expected page 2, got %d", pager.Page())
	}
	pager.Apply(ActionBack)
	if pager.Page() != 1 {
		t.Errorf("expected page 1, got %d", pager.Page())
	}
}

func TestToggleMuteReplacesEntryInPlace(t *testing.T) {
	st := newMemoryNotes(note(1, 7, 42), note(2, 7, 42))
	pager := loadedPager(t, st, 9, 42)
	pager.SetPage(1)

	refreshed, err := pager.ToggleMute(context.Background())
	if err != nil {
		t.Fatalf("ToggleMute failed: %v", err)
	}
	if !refreshed.Muted {
		t.Error("expected the refreshed row to be muted")
	}
	if pager.Page() != 1 {
		t.Errorf("toggle must keep the page, got %d", pager.Page())
	}
	current, ok := pager.Current()
	if !ok || !current.Muted {
		t.Error("displayed entry should reflect the new mute state")
	}

	again, err := pager.ToggleMute(context.Background())
	if err != nil {
		t.Fatalf("second ToggleMute failed: %v", err)
	}
	if again.Muted {
		t.Error("toggling twice should return to unmuted")
	}
}

func TestMuteIsScopedPerViewer(t *testing.T) {
	st := newMemoryNotes(note(1, 7, 42))

	first := loadedPager(t, st, 100, 42)
	if _, err := first.ToggleMute(context.Background()); err != nil {
		t.Fatalf("ToggleMute failed: %v", err)
	}

	second := loadedPager(t, st, 200, 42)
	current, ok := second.Current()
	if !ok {
		t.Fatal("expected a note")
	}
	if current.Muted {
		t.Error("another viewer's mute must not leak")
	}
}

func TestDeleteRequiresAuthor(t *testing.T) {
	st := newMemoryNotes(note(1, 7, 42))
	pager := loadedPager(t, st, 9, 42)

	if err := pager.Delete(context.Background()); !errors.Is(err, ErrNotAuthor) {
		t.Errorf("expected ErrNotAuthor, got %v", err)
	}
	if pager.Count() != 1 {
		t.Error("the note must survive a denied delete")
	}
}

func TestDeleteLastNoteLeavesValidEmptyState(t *testing.T) {
	st := newMemoryNotes(note(1, 7, 42))
	pager := loadedPager(t, st, 7, 42)

	if err := pager.Delete(context.Background()); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if pager.Count() != 0 {
		t.Fatalf("expected an empty set, got %d", pager.Count())
	}
	if pager.Page() != 0 {
		t.Errorf("empty state should sit at page 0, got %d", pager.Page())
	}
	if _, ok := pager.Current(); ok {
		t.Error("Current must report empty")
	}

	msg, err := pager.Render(context.Background())
	if err != nil {
		t.Fatalf("empty state render failed: %v", err)
	}
	if msg.Content != "No notes found..." {
		t.Errorf("expected empty state message, got %q", msg.Content)
	}
}

func TestDeleteClampsDownward(t *testing.T) {
	st := newMemoryNotes(note(1, 7, 42), note(2, 7, 42))
	pager := loadedPager(t, st, 7, 42)
	pager.SetPage(1)

	if err := pager.Delete(context.Background()); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if pager.Page() != 0 {
		t.Errorf("expected index to clamp to 0, got %d", pager.Page())
	}
	if _, ok := pager.Current(); !ok {
		t.Error("a note should still be displayed")
	}
}

func TestRenderFooterCarriesPositionAndID(t *testing.T) {
	st := newMemoryNotes(note(1, 7, 42), note(2, 7, 42))
	pager := loadedPager(t, st, 7, 42)
	pager.SetPage(1)

	msg, err := pager.Render(context.Background())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if msg.Embed == nil {
		t.Fatal("expected an embed")
	}
	if !strings.Contains(msg.Embed.Footer.Text, "(2/2)") {
		t.Errorf("footer should show the position, got %q", msg.Embed.Footer.Text)
	}
	if !strings.Contains(msg.Embed.Footer.Text, "(ID: 2)") {
		t.Errorf("footer should show the note id, got %q", msg.Embed.Footer.Text)
	}
}

func TestRenderDisablesDeleteForOtherAuthors(t *testing.T) {
	st := newMemoryNotes(note(1, 7, 42))
	pager := loadedPager(t, st, 9, 42)

	msg, err := pager.Render(context.Background())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	for _, b := range msg.Buttons {
		if b.CustomID == "NOTEPAGE:"+ActionDelete && !b.Disabled {
			t.Error("delete must be disabled for non-authors")
		}
	}
}
