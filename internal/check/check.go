// Package check validates a generated corpus: each version on its own, the
// versions of each order as a group, and the corpus as a whole.
package check

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/dshills/amcorpus/internal/am"
	"github.com/dshills/amcorpus/internal/profile"
	"github.com/dshills/amcorpus/internal/version"
)

var (
	// ErrRegimeConflict is returned when a version's classements do not
	// share exactly one regime.
	ErrRegimeConflict = errors.New("regime conflict")
	// ErrContent is wrapped by failures about the content of a version. It
	// also matches am.ErrStructuralInput.
	ErrContent error = contentError{}
	// ErrCorpus is wrapped by corpus-wide failures.
	ErrCorpus = errors.New("invalid corpus")
)

type contentError struct{}

func (contentError) Error() string { return "invalid content" }

func (contentError) Is(target error) bool { return target == am.ErrStructuralInput }

// Failure is one failed check. AMID is empty for corpus-wide failures and
// Version is empty for group failures.
type Failure struct {
	AMID    string
	Version string
	Err     error
}

func (f Failure) Error() string {
	switch {
	case f.AMID == "":
		return f.Err.Error()
	case f.Version == "":
		return fmt.Sprintf("%s: %v", f.AMID, f.Err)
	}
	return fmt.Sprintf("%s (%s): %v", f.AMID, f.Version, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Report is the outcome of a best-effort corpus check.
type Report struct {
	AMCount      int
	VersionCount int
	Failures     []Failure
}

// Err returns the first failure, or nil when the corpus is valid.
func (r *Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	return r.Failures[0]
}

func (r *Report) add(amID, versionKey string, err error) {
	r.Failures = append(r.Failures, Failure{AMID: amID, Version: versionKey, Err: err})
}

// Corpus checks every version of corpus, keyed by version name, under the
// rules of prof. It never stops at the first failure. Orders and versions
// are visited in key order so the report is deterministic.
func Corpus(corpus map[string]am.ArreteMinisteriel, prof *profile.Profile) *Report {
	report := &Report{VersionCount: len(corpus)}
	keys := slices.Sorted(maps.Keys(corpus))

	groups := make(map[string][]string)
	for _, key := range keys {
		text := corpus[key]
		for _, err := range Version(text, prof) {
			report.add(text.ID, key, err)
		}
		groups[text.ID] = append(groups[text.ID], key)
	}
	report.AMCount = len(groups)

	for _, id := range slices.Sorted(maps.Keys(groups)) {
		members := make([]am.ArreteMinisteriel, len(groups[id]))
		for i, key := range groups[id] {
			members[i] = corpus[key]
		}
		if err := Group(members); err != nil {
			report.add(id, "", err)
		}
	}

	for _, id := range prof.RequiredIDs() {
		if _, ok := groups[id]; !ok {
			report.add("", "", fmt.Errorf("%w: required order %s is missing", ErrCorpus, id))
		}
	}
	return report
}

// Version runs the checks that apply to a single version and returns every
// failure.
func Version(text am.ArreteMinisteriel, prof *profile.Profile) []error {
	var errs []error
	if prof.IsLegacy(text.ID) {
		errs = append(errs, fmt.Errorf("%w: %s is a legacy identifier and must not be published as such", ErrCorpus, text.ID))
	}
	if err := Regimes(text); err != nil {
		errs = append(errs, err)
	}
	if err := References(text, prof.Threshold()); err != nil {
		errs = append(errs, err)
	}
	if err := Tables(text, prof.Threshold()); err != nil {
		errs = append(errs, err)
	}
	if text.LegifranceURL == nil {
		errs = append(errs, fmt.Errorf("%w: legifrance_url is missing", ErrContent))
	}
	if text.AidaURL == nil {
		errs = append(errs, fmt.Errorf("%w: aida_url is missing", ErrContent))
	}
	if text.DateOfSignature == nil {
		errs = append(errs, fmt.Errorf("%w: date_of_signature is missing", ErrContent))
	}
	return errs
}

// Regimes checks that the classements of text share exactly one regime.
func Regimes(text am.ArreteMinisteriel) error {
	regimes := text.Regimes()
	if len(regimes) != 1 {
		return fmt.Errorf("%w: expected exactly one regime, got %v", ErrRegimeConflict, regimes)
	}
	return nil
}

// References checks that every section carries a reference and that the
// share of empty ones stays below threshold.
func References(text am.ArreteMinisteriel, threshold float64) error {
	var total, missing, empty int
	text.Walk(func(_ am.Path, s *am.StructuredText) {
		total++
		switch {
		case s.Reference == nil:
			missing++
		case strings.TrimSpace(*s.Reference) == "":
			empty++
		}
	})
	if missing > 0 {
		return fmt.Errorf("%w: references must all be set, found %d/%d missing", ErrContent, missing, total)
	}
	if tooEmpty(empty, total, threshold) {
		return fmt.Errorf("%w: too many empty references, found %d/%d empty", ErrContent, empty, total)
	}
	return nil
}

// Tables checks that every non-header table row carries its inline content
// and that the share of empty ones stays below threshold.
func Tables(text am.ArreteMinisteriel, threshold float64) error {
	var total, missing, empty int
	text.Walk(func(_ am.Path, s *am.StructuredText) {
		for _, a := range s.Alineas {
			if a.Table == nil {
				continue
			}
			for _, row := range a.Table.Rows {
				if row.IsHeader {
					continue
				}
				total++
				switch {
				case row.InlineContent == nil:
					missing++
				case strings.TrimSpace(*row.InlineContent) == "":
					empty++
				}
			}
		}
	})
	if missing > 0 {
		return fmt.Errorf("%w: inline_content must all be set, found %d/%d missing", ErrContent, missing, total)
	}
	if tooEmpty(empty, total, threshold) {
		return fmt.Errorf("%w: too many empty inline_content, found %d/%d empty", ErrContent, empty, total)
	}
	return nil
}

func tooEmpty(empty, total int, threshold float64) bool {
	return float64(empty)/float64(max(total, 1)) >= threshold
}

// Group checks the versions of one order: they share one id, each carries
// its descriptor, and the descriptors form a valid version matrix.
func Group(versions []am.ArreteMinisteriel) error {
	ids := make(map[string]bool)
	descriptors := make([]am.VersionDescriptor, 0, len(versions))
	for _, v := range versions {
		ids[v.ID] = true
		if v.VersionDescriptor == nil {
			return fmt.Errorf("%w: version without descriptor", version.ErrInconsistentVersions)
		}
		descriptors = append(descriptors, *v.VersionDescriptor)
	}
	if len(ids) != 1 {
		return fmt.Errorf("%w: expected exactly one order id, got %v", version.ErrInconsistentVersions, slices.Sorted(maps.Keys(ids)))
	}
	return version.ValidateMatrix(descriptors)
}
