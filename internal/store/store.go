// Package store persists generated corpus versions.
package store

import (
	"context"
	"slices"
	"strings"

	"github.com/dshills/amcorpus/internal/am"
	"github.com/dshills/amcorpus/internal/version"
)

// Sink receives the versions of a corpus build. Begin opens a new run:
// with no ids the previous corpus is discarded, otherwise only the orders
// in ids (and their regime splits) are, and the others carry over. Save and
// Discard may be called concurrently once Begin has returned.
type Sink interface {
	Begin(ctx context.Context, ids []string) (runID string, err error)
	Save(ctx context.Context, amID string, versions version.Versions) error
	// Discard removes every version of amID and of its regime splits
	// saved in the current run.
	Discard(ctx context.Context, amID string) error
	Load(ctx context.Context) (map[string]am.ArreteMinisteriel, error)
}

// Key is the name under which a version of amID is stored.
func Key(amID string, v version.Version) string {
	return amID + "_" + v.Name()
}

// Owned reports whether name, an order id or a version key, belongs to
// order id: it is id itself, a regime split of id, or one of their versions.
func Owned(name, id string) bool {
	return name == id || strings.HasPrefix(name, id+"_")
}

// inScope reports whether name belongs to one of ids. Every name is in an
// empty scope.
func inScope(name string, ids []string) bool {
	if len(ids) == 0 {
		return true
	}
	return slices.ContainsFunc(ids, func(id string) bool { return Owned(name, id) })
}
