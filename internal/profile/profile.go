// Package profile holds the named rule sets a corpus is checked against.
package profile

import (
	"fmt"
	"slices"

	"github.com/dshills/amcorpus/internal/am"
)

// DefaultEmptyRatio is the share of empty section references, or of empty
// inline table rows, from which a text is rejected.
const DefaultEmptyRatio = 0.95

// Profile defines the corpus-wide constants for a named rule set.
type Profile struct {
	Name string
	// LegacyIDs must not appear in the corpus: their texts are published
	// under another identifier.
	LegacyIDs []string
	// MultiRegime lists orders whose text differs by regime; each must be
	// present once per listed regime, as "<id>_<regime>".
	MultiRegime map[string][]am.Regime
	// EmptyRatio is the empty-value threshold used by content checks.
	EmptyRatio float64
}

// Get returns the built-in profile for the given name.
func Get(name string) (*Profile, error) {
	switch name {
	case "envinorma", "":
		return envinorma(), nil
	case "minimal":
		return minimal(), nil
	default:
		return nil, fmt.Errorf("unknown profile %q: valid profiles are envinorma, minimal", name)
	}
}

// Names lists the built-in profiles.
func Names() []string {
	return []string{"envinorma", "minimal"}
}

// IsLegacy reports whether id is a legacy identifier.
func (p *Profile) IsLegacy(id string) bool {
	return slices.Contains(p.LegacyIDs, id)
}

// RequiredIDs returns the identifiers that must be present in the corpus,
// sorted.
func (p *Profile) RequiredIDs() []string {
	var out []string
	for id, regimes := range p.MultiRegime {
		for _, r := range regimes {
			out = append(out, id+"_"+string(r))
		}
	}
	slices.Sort(out)
	return out
}

// Threshold returns EmptyRatio, or DefaultEmptyRatio when unset.
func (p *Profile) Threshold() float64 {
	if p.EmptyRatio <= 0 || p.EmptyRatio > 1 {
		return DefaultEmptyRatio
	}
	return p.EmptyRatio
}
