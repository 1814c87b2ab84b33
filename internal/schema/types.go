package schema

// Report is the top-level output of a corpus check.
type Report struct {
	Tool     string    `json:"tool"`
	Version  string    `json:"version"`
	Input    Input     `json:"input"`
	Summary  Summary   `json:"summary"`
	Failures []Failure `json:"failures"`
	Versions []Entry   `json:"versions"`
	Meta     Meta      `json:"meta"`
}

// Input captures the parameters used for this run.
type Input struct {
	Source  string `json:"source"`
	Output  string `json:"output"`
	Sink    string `json:"sink"`
	Profile string `json:"profile"`
}

// Summary holds the computed verdict and failure counts.
type Summary struct {
	Verdict      Verdict `json:"verdict"`
	AMCount      int     `json:"am_count"`
	VersionCount int     `json:"version_count"`
	FailureCount int     `json:"failure_count"`
	// ByKind counts failures per kind; kinds without failures are omitted.
	ByKind map[Kind]int `json:"by_kind"`
}

// Meta holds runtime metadata about the run.
type Meta struct {
	RunID      string `json:"run_id,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Verdict is the overall assessment of the corpus.
type Verdict string

const (
	VerdictValid   Verdict = "VALID"
	VerdictInvalid Verdict = "INVALID"
)

// Kind classifies a failure.
type Kind string

const (
	KindStructuralInput      Kind = "STRUCTURAL_INPUT"
	KindInconsistentVersions Kind = "INCONSISTENT_VERSIONS"
	KindRegimeConflict       Kind = "REGIME_CONFLICT"
	KindNotFound             Kind = "NOT_FOUND"
	KindGeneration           Kind = "GENERATION"
	KindContent              Kind = "CONTENT"
	KindCorpus               Kind = "CORPUS"
)

// IsValidKind reports whether k is one of the defined failure kinds.
func IsValidKind(k Kind) bool {
	switch k {
	case KindStructuralInput,
		KindInconsistentVersions,
		KindRegimeConflict,
		KindNotFound,
		KindGeneration,
		KindContent,
		KindCorpus:
		return true
	}
	return false
}

// Failure is one problem found in the corpus, attributed to an order.
// AMID is empty for corpus-wide failures.
type Failure struct {
	AMID    string `json:"am_id"`
	Version string `json:"version,omitempty"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Entry lists one published version.
type Entry struct {
	AMID       string `json:"am_id"`
	Name       string `json:"name"`
	Applicable bool   `json:"applicable"`
	Default    bool   `json:"default"`
}
