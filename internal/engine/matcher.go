package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tartampluch/go-contactsync/internal/config"
	"github.com/tartampluch/go-contactsync/internal/contact"
)

// Matcher resolves a connection to at most one local entry.
type Matcher struct {
	dir Directory
}

// NewMatcher creates a Matcher backed by dir.
func NewMatcher(dir Directory) *Matcher {
	return &Matcher{dir: dir}
}

// tier is one step of the lookup strategy.
type tier struct {
	name   string
	key    string
	lookup func(ctx context.Context, key string) ([]*contact.LocalEntry, error)
}

// Match tries phone, then email, then full name. The first tier returning
// exactly one entry wins; a tier with zero or several hits falls through.
// A nil entry with a nil error means the connection is unmatched.
func (m *Matcher) Match(ctx context.Context, d *contact.ConnectionDetail) (*contact.LocalEntry, error) {
	tiers := []tier{
		{config.TierPhone, d.PhoneNumber, m.dir.FindByPhone},
		{config.TierEmail, d.Email, m.dir.FindByEmail},
		{config.TierName, d.FullName(), m.dir.FindByName},
	}

	for _, t := range tiers {
		if t.key == "" {
			continue
		}
		hits, err := t.lookup(ctx, t.key)
		if err != nil {
			return nil, fmt.Errorf("%s (%s): %w", config.ErrLookup, t.name, err)
		}
		slog.Debug(config.MsgTierResult,
			config.LogKeyComponent, config.CompMatcher,
			config.LogKeyConnection, d.ID,
			config.LogKeyTier, t.name,
			config.LogKeyCount, len(hits),
		)
		if len(hits) == 1 {
			return hits[0], nil
		}
	}
	return nil, nil
}
