// Package dedup rejects re-delivered message ids inside a short window.
// Providers may deliver the same event to more than one registered endpoint;
// the window only needs to outlive realistic retry and fan-out latency, it is
// not meant to survive process restarts.
package dedup

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

// Guard is a process-local idempotency cache keyed by external message id.
type Guard struct {
	seen *gocache.Cache
}

// NewGuard builds a guard whose entries expire after window.
func NewGuard(window time.Duration) *Guard {
	return &Guard{
		seen: gocache.New(window, 2*window),
	}
}

// ShouldProcess reports whether a message id is new inside the window and
// records it. An empty id cannot be deduplicated and is always allowed.
func (g *Guard) ShouldProcess(id string) bool {
	if id == "" {
		return true
	}
	// Add is atomic: it fails when the key already exists.
	if err := g.seen.Add(id, true, gocache.DefaultExpiration); err != nil {
		log.Debug().Str("messageID", id).Msg("Duplicate delivery inside dedup window")
		return false
	}
	return true
}
