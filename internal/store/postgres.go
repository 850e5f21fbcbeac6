package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// noteColumns selects a note together with the mute flag of the viewer
// passed as the second query argument.
const noteColumns = `
	id,
	author_id,
	target_id,
	content,
	created_at,
	EXISTS (
		SELECT 1
		FROM user_muted_notes
		WHERE user_muted_notes.note_id = user_notes.id
		AND user_muted_notes.user_id = $2
	) AS muted
`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) InsertNote(ctx context.Context, authorID, targetID int64, content string, createdAt time.Time) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO user_notes (author_id, target_id, content, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, authorID, targetID, content, createdAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert note: %w", err)
	}
	return id, nil
}

// ListNotes returns every note about targetID, newest first, with the mute
// flag scoped to viewerID.
func (s *PostgresStore) ListNotes(ctx context.Context, targetID, viewerID int64) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+noteColumns+`
		FROM user_notes WHERE target_id = $1 ORDER BY created_at DESC, id DESC
	`, targetID, viewerID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	items := make([]Note, 0)
	for rows.Next() {
		var item Note
		if err := rows.Scan(&item.ID, &item.AuthorID, &item.TargetID, &item.Content, &item.CreatedAt, &item.Muted); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetNote(ctx context.Context, noteID, viewerID int64) (Note, error) {
	var item Note
	err := s.db.QueryRowContext(ctx, `
		SELECT `+noteColumns+`
		FROM user_notes WHERE id = $1
	`, noteID, viewerID).Scan(&item.ID, &item.AuthorID, &item.TargetID, &item.Content, &item.CreatedAt, &item.Muted)
	if err != nil {
		return Note{}, err
	}
	return item, nil
}

// DeleteNote removes a note if actorID authored it, or unconditionally when
// override is set. It returns the deleted content, or sql.ErrNoRows when no
// matching row existed.
func (s *PostgresStore) DeleteNote(ctx context.Context, noteID, actorID int64, override bool) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM user_notes WHERE id = $1 AND (author_id = $2 OR $3 = TRUE) RETURNING content
	`, noteID, actorID, override).Scan(&content)
	if err != nil {
		return "", err
	}
	return content, nil
}

// ListNoteRefs returns the id/content pairs for targetID's notes authored by
// authorID, or all of them when all is set.
func (s *PostgresStore) ListNoteRefs(ctx context.Context, targetID, authorID int64, all bool) ([]NoteRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content FROM user_notes
		WHERE target_id = $1 AND (author_id = $2 OR $3 = TRUE)
		ORDER BY created_at DESC, id DESC
	`, targetID, authorID, all)
	if err != nil {
		return nil, fmt.Errorf("list note refs: %w", err)
	}
	defer rows.Close()

	refs := make([]NoteRef, 0)
	for rows.Next() {
		var ref NoteRef
		if err := rows.Scan(&ref.ID, &ref.Content); err != nil {
			return nil, fmt.Errorf("scan note ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate note refs: %w", err)
	}
	return refs, nil
}

// ToggleNoteMute flips viewerID's mute relation for a note and returns the
// canonical post-toggle row. Mute rows are deleted when present and inserted
// when absent; toggle and re-read share one transaction so the returned row
// cannot miss the mutation.
func (s *PostgresStore) ToggleNoteMute(ctx context.Context, noteID, viewerID int64) (Note, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Note{}, fmt.Errorf("begin mute toggle: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var muted bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM user_muted_notes WHERE note_id = $1 AND user_id = $2)
	`, noteID, viewerID).Scan(&muted)
	if err != nil {
		return Note{}, fmt.Errorf("read mute state: %w", err)
	}

	if muted {
		_, err = tx.ExecContext(ctx, `DELETE FROM user_muted_notes WHERE note_id = $1 AND user_id = $2`, noteID, viewerID)
	} else {
		_, err = tx.ExecContext(ctx, `INSERT INTO user_muted_notes (note_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, noteID, viewerID)
	}
	if err != nil {
		return Note{}, fmt.Errorf("toggle mute: %w", err)
	}

	var item Note
	err = tx.QueryRowContext(ctx, `
		SELECT `+noteColumns+`
		FROM user_notes WHERE id = $1
	`, noteID, viewerID).Scan(&item.ID, &item.AuthorID, &item.TargetID, &item.Content, &item.CreatedAt, &item.Muted)
	if err != nil {
		return Note{}, err
	}

	if err := tx.Commit(); err != nil {
		return Note{}, fmt.Errorf("commit mute toggle: %w", err)
	}
	return item, nil
}

// HasUnmutedNotes reports whether any note about targetID is still unmuted
// from viewerID's point of view.
func (s *PostgresStore) HasUnmutedNotes(ctx context.Context, targetID, viewerID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_notes WHERE target_id = $1 AND NOT EXISTS (
				SELECT 1
				FROM user_muted_notes
				WHERE user_muted_notes.note_id = user_notes.id
				AND user_muted_notes.user_id = $2
			)
		)
	`, targetID, viewerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check unmuted notes: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) IsWhitelisted(ctx context.Context, userID int64) (bool, error) {
	var whitelisted bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM whitelist WHERE user_id = $1)`, userID).Scan(&whitelisted)
	if err != nil {
		return false, fmt.Errorf("check whitelist: %w", err)
	}
	return whitelisted, nil
}

func (s *PostgresStore) AddWhitelist(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO whitelist (user_id) VALUES ($1) ON CONFLICT DO NOTHING`, userID)
	if err != nil {
		return fmt.Errorf("add whitelist: %w", err)
	}
	return nil
}

// RemoveWhitelist reports whether a row was removed; a missing entry is not
// an error.
func (s *PostgresStore) RemoveWhitelist(ctx context.Context, userID int64) (bool, error) {
	var removed bool
	err := s.db.QueryRowContext(ctx, `DELETE FROM whitelist WHERE user_id = $1 RETURNING TRUE`, userID).Scan(&removed)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("remove whitelist: %w", err)
	}
	return removed, nil
}

func (s *PostgresStore) ListWhitelist(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM whitelist ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list whitelist: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan whitelist: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate whitelist: %w", err)
	}
	return ids, nil
}

// NotificationsEnabled defaults to true when no settings row exists.
func (s *PostgresStore) NotificationsEnabled(ctx context.Context, userID int64) (bool, error) {
	var enabled bool
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE((SELECT notifications_enabled FROM user_settings WHERE user_id = $1), TRUE)
	`, userID).Scan(&enabled)
	if err != nil {
		return false, fmt.Errorf("read notification setting: %w", err)
	}
	return enabled, nil
}

// ToggleNotifications flips the per-user preference in a single
// upsert-and-negate statement and returns the new state. The first toggle of
// a user with no row lands on false, since absent means enabled.
func (s *PostgresStore) ToggleNotifications(ctx context.Context, userID int64) (bool, error) {
	var enabled bool
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO user_settings (user_id, notifications_enabled) VALUES ($1, FALSE)
		ON CONFLICT (user_id) DO UPDATE SET notifications_enabled = NOT user_settings.notifications_enabled
		RETURNING notifications_enabled
	`, userID).Scan(&enabled)
	if err != nil {
		return false, fmt.Errorf("toggle notifications: %w", err)
	}
	return enabled, nil
}

// ClaimDelivery records that userID has been notified for threadID. It
// returns false without error when the pair was already claimed; the unique
// constraint on (user_id, thread_id) guarantees at most one caller wins.
func (s *PostgresStore) ClaimDelivery(ctx context.Context, userID, threadID int64) (bool, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relay_deliveries (user_id, thread_id) VALUES ($1, $2)
	`, userID, threadID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return false, nil
		}
		return false, fmt.Errorf("claim delivery: %w", err)
	}
	return true, nil
}
