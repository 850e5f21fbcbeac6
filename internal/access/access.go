// Package access decides who may use the gated interaction surface.
package access

import "context"

type WhitelistReader interface {
	IsWhitelisted(ctx context.Context, userID int64) (bool, error)
}

// Gate grants access to whitelisted users and to the configured admin
// overrides. Admins are checked first so an operator can never lock
// themselves out by emptying the whitelist.
type Gate struct {
	store  WhitelistReader
	admins map[int64]struct{}
}

func New(store WhitelistReader, adminIDs []int64) *Gate {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &Gate{store: store, admins: admins}
}

func (g *Gate) IsAdmin(userID int64) bool {
	_, ok := g.admins[userID]
	return ok
}

func (g *Gate) IsAuthorized(ctx context.Context, userID int64) (bool, error) {
	if g.IsAdmin(userID) {
		return true, nil
	}
	return g.store.IsWhitelisted(ctx, userID)
}
