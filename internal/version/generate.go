package version

import (
	"errors"
	"fmt"
	"slices"

	"cloud.google.com/go/civil"

	"github.com/dshills/amcorpus/internal/am"
	"github.com/dshills/amcorpus/internal/param"
)

// ErrGeneration is wrapped by every Generate failure.
var ErrGeneration = errors.New("version generation failed")

// Version is one generated text with the descriptor of its applicability scope.
type Version struct {
	Descriptor am.VersionDescriptor
	Text       am.ArreteMinisteriel
}

// Name is the file-safe name of the version.
func (v Version) Name() string { return v.Descriptor.Name() }

// Versions are the generated versions of one order, catch-all first.
type Versions []Version

// Descriptors returns the descriptor of every version, in order.
func (vs Versions) Descriptors() []am.VersionDescriptor {
	out := make([]am.VersionDescriptor, len(vs))
	for i, v := range vs {
		out[i] = v.Descriptor
	}
	return out
}

// dateOption is one value a date parameter can take in a generated version.
type dateOption struct {
	descriptor am.DateParameterDescriptor
	value      param.DateValue
	outcome    string
}

// Generate produces every version of base under p: one per combination of
// authorization date and installation date options. A date parameter no
// rule references has a single unused option; a referenced one has an
// unknown catch-all plus one option per interval between the sorted
// boundaries found in the rules. Categorical parameters are resolved from
// md's classements. base is never modified.
func Generate(base am.ArreteMinisteriel, p param.Parametrization, md am.Metadata) (Versions, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: invalid parametrization: %v", ErrGeneration, md.ID, err)
	}
	enriched, err := am.Enrich(base, md)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	if err := checkTargets(enriched, p); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrGeneration, md.ID, err)
	}

	aedOptions := dateOptions(p, param.DateAutorisation)
	installationOptions := dateOptions(p, param.DateInstallation)

	versions := make(Versions, 0, len(aedOptions)*len(installationOptions))
	for _, aed := range aedOptions {
		for _, inst := range installationOptions {
			assignment := param.Assignment{
				Dates: map[param.Parameter]param.DateValue{
					param.DateAutorisation: aed.value,
					param.DateInstallation: inst.value,
				},
				Classements: md.Classements,
			}
			text := enriched.Clone()
			applicable, err := apply(&text, p, assignment)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrGeneration, md.ID, err)
			}
			desc := am.VersionDescriptor{
				Applicable:        applicable,
				Outcomes:          outcomes(aed, inst),
				AuthorizationDate: aed.descriptor,
				InstallationDate:  inst.descriptor,
			}
			tagged := desc.Clone()
			text.VersionDescriptor = &tagged
			versions = append(versions, Version{Descriptor: desc, Text: text})
		}
	}
	return versions, nil
}

func outcomes(options ...dateOption) []string {
	var out []string
	for _, o := range options {
		if o.outcome != "" {
			out = append(out, o.outcome)
		}
	}
	return out
}

// dateOptions lists the options of date parameter dp under p.
func dateOptions(p param.Parametrization, dp param.Parameter) []dateOption {
	bounds := boundaries(p, dp)
	if len(bounds) == 0 {
		return []dateOption{{descriptor: am.UnusedDate()}}
	}
	options := []dateOption{{descriptor: am.UnknownDate()}}
	var left *civil.Date
	for i := 0; i <= len(bounds); i++ {
		var right *civil.Date
		if i < len(bounds) {
			right = &bounds[i]
		}
		options = append(options, dateOption{
			descriptor: am.DateRange(left, right),
			value:      param.DateValue{Known: true, Left: left, Right: right},
			outcome:    param.Between(dp, left, right).String(),
		})
		left = right
	}
	return options
}

// boundaries returns the sorted distinct split points of dp across all rules.
func boundaries(p param.Parametrization, dp param.Parameter) []civil.Date {
	var out []civil.Date
	for _, r := range p.Rules() {
		out = append(out, r.Guard().Boundaries(dp)...)
	}
	slices.SortFunc(out, compareDates)
	return slices.Compact(out)
}

// checkTargets verifies every rule points inside the text.
func checkTargets(text am.ArreteMinisteriel, p param.Parametrization) error {
	for _, r := range p.Rules() {
		if r.Target().IsRoot() {
			continue
		}
		section, err := text.SectionAt(r.Target())
		if err != nil {
			return fmt.Errorf("%s rule: %w", r.Kind(), err)
		}
		if ins, ok := r.(param.InapplicableSection); ok {
			for _, idx := range ins.AlineasToDelete {
				if idx < 0 || idx >= len(section.Alineas) {
					return fmt.Errorf("inapplicable rule at %s: alinea %d out of range (%d alineas)", r.Target(), idx, len(section.Alineas))
				}
			}
		}
	}
	return nil
}

// apply mutates text according to the rules holding under a and reports
// whether the text as a whole stays applicable.
func apply(text *am.ArreteMinisteriel, p param.Parametrization, a param.Assignment) (bool, error) {
	applicable := true
	for _, r := range p.Rules() {
		truth := param.Evaluate(r.Guard(), a)
		if truth == param.False {
			continue
		}
		cond := r.Guard().String()

		if r.Target().IsRoot() {
			app := textApplicability(text)
			switch {
			case r.Kind() == param.KindInapplicable && truth == param.True:
				applicable = false
				app.Active = false
				app.ReasonInactive = fmt.Sprintf("Cet arrêté ne s'applique pas car %s.", cond)
			case r.Kind() == param.KindInapplicable:
				app.Warnings = append(app.Warnings, fmt.Sprintf("Cet arrêté pourrait ne pas être applicable. C'est le cas si %s.", cond))
			case r.Kind() == param.KindWarning && truth == param.True:
				app.Warnings = append(app.Warnings, r.(param.Warning).Text)
			}
			continue
		}

		section, err := text.SectionAt(r.Target())
		if err != nil {
			return false, err
		}
		switch rule := r.(type) {
		case param.InapplicableSection:
			applyInapplicable(section, rule, truth, cond)
		case param.AlternativeSection:
			applyAlternative(section, rule, truth, cond)
		case param.Warning:
			if truth == param.True {
				app := sectionApplicability(section)
				app.Warnings = append(app.Warnings, rule.Text)
			}
		}
	}
	return applicable, nil
}

func applyInapplicable(section *am.StructuredText, rule param.InapplicableSection, truth param.Truth, cond string) {
	app := sectionApplicability(section)
	if truth == param.Unknown {
		app.Warnings = append(app.Warnings, fmt.Sprintf("Cette section pourrait ne pas être applicable. C'est le cas si %s.", cond))
		return
	}
	if len(rule.AlineasToDelete) > 0 {
		for _, idx := range rule.AlineasToDelete {
			section.Alineas[idx].Inactive = true
		}
		app.Modified = true
		app.ReasonModified = fmt.Sprintf("Certains alinéas ne s'appliquent pas car %s.", cond)
		return
	}
	deactivate(section, fmt.Sprintf("Cette section ne s'applique pas car %s.", cond))
}

func deactivate(section *am.StructuredText, reason string) {
	app := sectionApplicability(section)
	app.Active = false
	app.ReasonInactive = reason
	for i := range section.Sections {
		deactivate(&section.Sections[i], reason)
	}
}

func applyAlternative(section *am.StructuredText, rule param.AlternativeSection, truth param.Truth, cond string) {
	app := sectionApplicability(section)
	if truth == param.Unknown {
		app.Warnings = append(app.Warnings, fmt.Sprintf("Cette section pourrait être modifiée. C'est le cas si %s.", cond))
		return
	}
	previous := section.Clone()
	previous.Applicability = nil
	section.Title = rule.Title
	section.Alineas = make([]am.Alinea, len(rule.Alineas))
	for i, text := range rule.Alineas {
		section.Alineas[i] = am.Alinea{Text: text}
	}
	section.Sections = nil
	app.Modified = true
	app.ReasonModified = fmt.Sprintf("Cette section a été modifiée car %s.", cond)
	app.PreviousVersion = &previous
}

func sectionApplicability(s *am.StructuredText) *am.Applicability {
	if s.Applicability == nil {
		s.Applicability = &am.Applicability{Active: true}
	}
	return s.Applicability
}

func textApplicability(a *am.ArreteMinisteriel) *am.Applicability {
	if a.Applicability == nil {
		a.Applicability = &am.Applicability{Active: true}
	}
	return a.Applicability
}

func compareDates(a, b civil.Date) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}
