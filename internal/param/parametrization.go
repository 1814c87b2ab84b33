package param

import (
	"fmt"
	"slices"

	"github.com/dshills/amcorpus/internal/am"
)

// Status is the authoring status of a parametrization.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusValidated Status = "validated"
)

// RuleKind discriminates the rule variants.
type RuleKind string

const (
	KindInapplicable RuleKind = "inapplicable"
	KindAlternative  RuleKind = "alternative"
	KindWarning      RuleKind = "warning"
)

// Rule is the behavior shared by every conditional rule.
type Rule interface {
	Kind() RuleKind
	Target() am.Path
	Guard() Condition
}

// InapplicableSection makes a section, or some of its alineas, inapplicable
// when Condition holds. An empty Path targets the whole text.
type InapplicableSection struct {
	Path            am.Path   `json:"path" toml:"path" yaml:"path"`
	AlineasToDelete []int     `json:"alineas_to_delete,omitempty" toml:"alineas_to_delete,omitempty" yaml:"alineas_to_delete,omitempty"`
	Condition       Condition `json:"condition" toml:"condition" yaml:"condition"`
}

func (r InapplicableSection) Kind() RuleKind   { return KindInapplicable }
func (r InapplicableSection) Target() am.Path  { return r.Path }
func (r InapplicableSection) Guard() Condition { return r.Condition }

// AlternativeSection replaces a section's content when Condition holds.
type AlternativeSection struct {
	Path      am.Path   `json:"path" toml:"path" yaml:"path"`
	Title     string    `json:"title" toml:"title" yaml:"title"`
	Alineas   []string  `json:"alineas" toml:"alineas" yaml:"alineas"`
	Condition Condition `json:"condition" toml:"condition" yaml:"condition"`
}

func (r AlternativeSection) Kind() RuleKind   { return KindAlternative }
func (r AlternativeSection) Target() am.Path  { return r.Path }
func (r AlternativeSection) Guard() Condition { return r.Condition }

// Warning attaches a notice to a section when Condition holds.
type Warning struct {
	Path      am.Path   `json:"path" toml:"path" yaml:"path"`
	Text      string    `json:"text" toml:"text" yaml:"text"`
	Condition Condition `json:"condition" toml:"condition" yaml:"condition"`
}

func (r Warning) Kind() RuleKind   { return KindWarning }
func (r Warning) Target() am.Path  { return r.Path }
func (r Warning) Guard() Condition { return r.Condition }

// Parametrization is the ordered set of conditional rules of one order.
type Parametrization struct {
	Status            Status                `json:"status" toml:"status" yaml:"status"`
	Inapplicabilities []InapplicableSection `json:"inapplicable,omitempty" toml:"inapplicable,omitempty" yaml:"inapplicable,omitempty"`
	Alternatives      []AlternativeSection  `json:"alternative,omitempty" toml:"alternative,omitempty" yaml:"alternative,omitempty"`
	Warnings          []Warning             `json:"warning,omitempty" toml:"warning,omitempty" yaml:"warning,omitempty"`
}

// Empty reports whether p holds no rule.
func (p Parametrization) Empty() bool {
	return len(p.Inapplicabilities) == 0 && len(p.Alternatives) == 0 && len(p.Warnings) == 0
}

// Effective returns p when it is validated and the empty parametrization
// otherwise: draft rules never reach the published corpus.
func (p Parametrization) Effective() Parametrization {
	if p.Status != StatusValidated {
		return Parametrization{Status: p.Status}
	}
	return p
}

// Rules returns every rule: inapplicabilities, then alternatives, then warnings.
func (p Parametrization) Rules() []Rule {
	out := make([]Rule, 0, len(p.Inapplicabilities)+len(p.Alternatives)+len(p.Warnings))
	for _, r := range p.Inapplicabilities {
		out = append(out, r)
	}
	for _, r := range p.Alternatives {
		out = append(out, r)
	}
	for _, r := range p.Warnings {
		out = append(out, r)
	}
	return out
}

// RulesAt returns the rules targeting path.
func (p Parametrization) RulesAt(path am.Path) []Rule {
	var out []Rule
	for _, r := range p.Rules() {
		if slices.Equal(r.Target(), path) {
			out = append(out, r)
		}
	}
	return out
}

// Parameters returns the distinct parameters referenced by any rule, in
// canonical order.
func (p Parametrization) Parameters() []Parameter {
	seen := make(map[Parameter]bool)
	for _, r := range p.Rules() {
		for _, param := range r.Guard().Parameters() {
			seen[param] = true
		}
	}
	var out []Parameter
	for _, param := range parameterOrder {
		if seen[param] {
			out = append(out, param)
		}
	}
	return out
}

// Uses reports whether any rule references parameter.
func (p Parametrization) Uses(parameter Parameter) bool {
	return slices.Contains(p.Parameters(), parameter)
}

// Validate checks every rule's shape. It does not look at the text the
// rules apply to.
func (p Parametrization) Validate() error {
	switch p.Status {
	case "", StatusDraft, StatusValidated:
	default:
		return fmt.Errorf("unknown status %q", p.Status)
	}
	for i, r := range p.Rules() {
		prefix := fmt.Sprintf("rule[%d] (%s at %q)", i, r.Kind(), r.Target())
		for _, idx := range r.Target() {
			if idx < 0 {
				return fmt.Errorf("%s: negative path index", prefix)
			}
		}
		if err := r.Guard().Validate(); err != nil {
			return fmt.Errorf("%s: %w", prefix, err)
		}
		switch rule := r.(type) {
		case InapplicableSection:
			if len(rule.AlineasToDelete) > 0 && rule.Path.IsRoot() {
				return fmt.Errorf("%s: alineas_to_delete needs a section path", prefix)
			}
		case AlternativeSection:
			if rule.Path.IsRoot() {
				return fmt.Errorf("%s: an alternative must target a section", prefix)
			}
			if rule.Title == "" {
				return fmt.Errorf("%s: title is required", prefix)
			}
		case Warning:
			if rule.Text == "" {
				return fmt.Errorf("%s: text is required", prefix)
			}
		}
	}
	return nil
}
