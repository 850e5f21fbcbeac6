package store

import "time"

// Note is one annotation attached to a target user. Muted reflects the
// mute relation of the viewer the note was fetched for, never a global flag.
type Note struct {
	ID        int64
	AuthorID  int64
	TargetID  int64
	Content   string
	CreatedAt time.Time
	Muted     bool
}

// NoteRef is the id/content pair surfaced by note-id autocomplete.
type NoteRef struct {
	ID      int64
	Content string
}
