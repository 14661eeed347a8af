// Package results persists finished matches so standings survive the
// lifetime of a single engine. The server picks the redis store when
// an address is configured and falls back to process memory otherwise.
package results

import (
	"context"

	"hopball-arena/internal/game"
)

// Store archives match results and serves the recent list, newest
// first.
type Store interface {
	RecordMatch(ctx context.Context, result game.MatchResult) error
	RecentMatches(ctx context.Context, n int) ([]game.MatchResult, error)
}
