// Package session persists note-viewer pager state keyed by the message the
// pager lives in, so pager controls keep working across process restarts.
package session

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("pager session not found")

// PagerState is everything needed to rebuild a viewer: the note set is
// always re-fetched from the store, never cached here.
type PagerState struct {
	TargetID int64 `json:"target_id"`
	ViewerID int64 `json:"viewer_id"`
	Page     int   `json:"page"`
}

type Store interface {
	Save(ctx context.Context, messageID int64, state PagerState) error
	Load(ctx context.Context, messageID int64) (PagerState, error)
	Delete(ctx context.Context, messageID int64) error
}
