// Package version generates the parametrized versions of a ministerial
// order and proves that a set of versions covers every installation
// exactly once along the date axes.
package version

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/amcorpus/internal/am"
	"github.com/dshills/amcorpus/internal/partition"
)

// ErrInconsistentVersions is wrapped by every ValidateMatrix failure.
var ErrInconsistentVersions = errors.New("inconsistent versions")

func inconsistent(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInconsistentVersions, fmt.Sprintf(format, args...))
}

// ValidateMatrix checks that the versions of one order partition the
// (authorization date, installation date) plane and that exactly one of
// them is the unconstrained default.
//
// Versions are grouped by authorization date parameter; within a group the
// installation date parameters must form a partition, and the distinct
// authorization date parameters must themselves form a partition.
func ValidateMatrix(descriptors []am.VersionDescriptor) error {
	if len(descriptors) == 0 {
		return inconsistent("no version to validate")
	}
	for i, d := range descriptors {
		if err := d.AuthorizationDate.Validate(); err != nil {
			return inconsistent("version %d: authorization date: %v", i, err)
		}
		if err := d.InstallationDate.Validate(); err != nil {
			return inconsistent("version %d: installation date: %v", i, err)
		}
	}

	if len(descriptors) == 1 {
		d := descriptors[0]
		if d.AuthorizationDate.IsUsed || d.InstallationDate.IsUsed {
			return inconsistent("a lone version must be the unconditional default, got authorization date %s and installation date %s",
				d.AuthorizationDate, d.InstallationDate)
		}
	} else {
		groups := groupByAuthorizationDate(descriptors)
		keys := make([]am.DateParameterDescriptor, 0, len(groups))
		for _, g := range groups {
			if err := AssertPartition(g.installationDates); err != nil {
				return fmt.Errorf("authorization date %s: installation dates: %w", g.authorizationDate, err)
			}
			keys = append(keys, g.authorizationDate)
		}
		if err := AssertPartition(keys); err != nil {
			return fmt.Errorf("authorization dates: %w", err)
		}
	}

	defaults := 0
	for _, d := range descriptors {
		if IsDefault(d) {
			defaults++
		}
	}
	if defaults != 1 {
		return inconsistent("expected exactly one default version, got %d", defaults)
	}
	return nil
}

// IsDefault reports whether d is the fully unconstrained applicable version.
func IsDefault(d am.VersionDescriptor) bool {
	return d.Applicable && d.AuthorizationDate.Unconstrained() && d.InstallationDate.Unconstrained()
}

type group struct {
	authorizationDate am.DateParameterDescriptor
	installationDates []am.DateParameterDescriptor
}

// groupByAuthorizationDate buckets descriptors by exact authorization date
// parameter value, keeping first-seen order.
func groupByAuthorizationDate(descriptors []am.VersionDescriptor) []group {
	index := make(map[am.DateParameterKey]int)
	var groups []group
	for _, d := range descriptors {
		k := d.AuthorizationDate.Key()
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, group{authorizationDate: d.AuthorizationDate})
		}
		groups[i].installationDates = append(groups[i].installationDates, d.InstallationDate)
	}
	return groups
}

// AssertPartition checks that date parameters describe a partition: a single
// parameter must be unused; several must contain exactly one unknown
// catch-all while the known ranges tile the whole timeline.
func AssertPartition(params []am.DateParameterDescriptor) error {
	switch len(params) {
	case 0:
		return inconsistent("expected a partition, got no date parameter")
	case 1:
		if params[0].IsUsed {
			return inconsistent("a single version must not use the date parameter, got %s", params[0])
		}
		return nil
	}

	var pairs []partition.DatePair
	unknown := 0
	for _, p := range params {
		if p.UnknownValue {
			unknown++
			continue
		}
		pairs = append(pairs, partition.DatePair{Left: p.LeftBound, Right: p.RightBound})
	}
	if unknown != 1 {
		return inconsistent("expected exactly one catch-all version per group, got %d", unknown)
	}
	if !partition.IsDatePartition(pairs) {
		return inconsistent("expected a partition, got %s", formatPairs(pairs))
	}
	return nil
}

func formatPairs(pairs []partition.DatePair) string {
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = am.DateRange(p.Left, p.Right).String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
