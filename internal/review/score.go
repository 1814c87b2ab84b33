package review

import (
	"errors"
	"maps"
	"slices"

	"github.com/dshills/amcorpus/internal/am"
	"github.com/dshills/amcorpus/internal/check"
	"github.com/dshills/amcorpus/internal/pipeline"
	"github.com/dshills/amcorpus/internal/schema"
	"github.com/dshills/amcorpus/internal/source"
	"github.com/dshills/amcorpus/internal/version"
)

// KindOf classifies err by the sentinel it wraps. Unclassified errors are
// content failures.
func KindOf(err error) schema.Kind {
	switch {
	case errors.Is(err, am.ErrStructuralInput):
		return schema.KindStructuralInput
	case errors.Is(err, version.ErrInconsistentVersions):
		return schema.KindInconsistentVersions
	case errors.Is(err, check.ErrRegimeConflict):
		return schema.KindRegimeConflict
	case errors.Is(err, source.ErrNotFound):
		return schema.KindNotFound
	case errors.Is(err, version.ErrGeneration), errors.Is(err, pipeline.ErrTimeout):
		return schema.KindGeneration
	case errors.Is(err, check.ErrCorpus):
		return schema.KindCorpus
	}
	return schema.KindContent
}

// FromCheck converts the failures of a corpus check.
func FromCheck(r *check.Report) []schema.Failure {
	out := make([]schema.Failure, 0, len(r.Failures))
	for _, f := range r.Failures {
		out = append(out, schema.Failure{AMID: f.AMID, Version: f.Version, Kind: KindOf(f.Err), Message: f.Err.Error()})
	}
	return out
}

// FromRun converts the failures of a corpus build.
func FromRun(r *pipeline.Result) []schema.Failure {
	out := make([]schema.Failure, 0, len(r.Failures))
	for _, f := range r.Failures {
		out = append(out, schema.Failure{AMID: f.AMID, Kind: KindOf(f.Err), Message: f.Err.Error()})
	}
	return out
}

// Entries lists the versions of corpus, sorted by order id then name.
func Entries(corpus map[string]am.ArreteMinisteriel) []schema.Entry {
	out := make([]schema.Entry, 0, len(corpus))
	for _, key := range slices.Sorted(maps.Keys(corpus)) {
		text := corpus[key]
		e := schema.Entry{AMID: text.ID, Name: key}
		if d := text.VersionDescriptor; d != nil {
			e.Name = d.Name()
			e.Applicable = d.Applicable
			e.Default = version.IsDefault(*d)
		}
		out = append(out, e)
	}
	slices.SortStableFunc(out, func(a, b schema.Entry) int {
		switch {
		case a.AMID < b.AMID:
			return -1
		case a.AMID > b.AMID:
			return 1
		}
		return 0
	})
	return out
}

// Verdict is INVALID as soon as one failure exists.
func Verdict(failures []schema.Failure) schema.Verdict {
	if len(failures) > 0 {
		return schema.VerdictInvalid
	}
	return schema.VerdictValid
}

// Counts returns the number of failures per kind. Kinds without failures
// are absent.
func Counts(failures []schema.Failure) map[schema.Kind]int {
	counts := make(map[schema.Kind]int)
	for _, f := range failures {
		counts[f.Kind]++
	}
	return counts
}

// FilterByKind returns the failures of the given kinds; no kind keeps all.
func FilterByKind(failures []schema.Failure, kinds []schema.Kind) []schema.Failure {
	if len(kinds) == 0 {
		return failures
	}
	out := make([]schema.Failure, 0, len(failures))
	for _, f := range failures {
		if slices.Contains(kinds, f.Kind) {
			out = append(out, f)
		}
	}
	return out
}

// Summarize computes the summary of a report. Counts always reflect all
// failures, before any kind filtering.
func Summarize(failures []schema.Failure, versions []schema.Entry) schema.Summary {
	ids := make(map[string]bool)
	for _, v := range versions {
		ids[v.AMID] = true
	}
	return schema.Summary{
		Verdict:      Verdict(failures),
		AMCount:      len(ids),
		VersionCount: len(versions),
		FailureCount: len(failures),
		ByKind:       Counts(failures),
	}
}
