package version

import (
	"fmt"
	"slices"

	"github.com/dshills/amcorpus/internal/am"
	"github.com/dshills/amcorpus/internal/param"
)

// CheckParametrization reports authoring problems of p for the order
// described by md: rules that hold for no reachable installation, and pairs
// of structural rules (inapplicability, alternative) on the same section
// that hold together for some installation. It also reports a whole-text
// inapplicability that holds when the dates are unknown, since no version
// could then be the default. It returns nil when p is sound.
func CheckParametrization(p param.Parametrization, md am.Metadata) []error {
	if err := p.Validate(); err != nil {
		return []error{err}
	}
	rules := p.Rules()
	assignments := reachableAssignments(p, md)
	everTrue := make([]bool, len(rules))
	conflicts := make(map[[2]int]bool)

	for _, a := range assignments {
		var holding []int
		for i, r := range rules {
			if param.Evaluate(r.Guard(), a) == param.True {
				everTrue[i] = true
				holding = append(holding, i)
			}
		}
		for x := 0; x < len(holding); x++ {
			for y := x + 1; y < len(holding); y++ {
				i, j := holding[x], holding[y]
				if structural(rules[i]) && structural(rules[j]) && slices.Equal(rules[i].Target(), rules[j].Target()) {
					conflicts[[2]int{i, j}] = true
				}
			}
		}
	}

	var problems []error
	for i, r := range rules {
		if !everTrue[i] {
			problems = append(problems, fmt.Errorf("%s rule at %q never applies: %s", r.Kind(), r.Target(), r.Guard()))
		}
	}
	for i := range rules {
		for j := i + 1; j < len(rules); j++ {
			if conflicts[[2]int{i, j}] {
				problems = append(problems, fmt.Errorf("%s and %s rules at %q can apply together: %s / %s",
					rules[i].Kind(), rules[j].Kind(), rules[i].Target(), rules[i].Guard(), rules[j].Guard()))
			}
		}
	}
	catchAll := param.Assignment{Classements: md.Classements}
	for _, r := range p.Inapplicabilities {
		if r.Path.IsRoot() && param.Evaluate(r.Condition, catchAll) == param.True {
			problems = append(problems, fmt.Errorf("%s rule on the whole text applies even when dates are unknown, no version can be the default: %s",
				r.Kind(), r.Condition))
		}
	}
	return problems
}

func structural(r param.Rule) bool {
	return r.Kind() == param.KindInapplicable || r.Kind() == param.KindAlternative
}

// reachableAssignments enumerates the known date combinations of p, with
// categorical parameters taken from md.
func reachableAssignments(p param.Parametrization, md am.Metadata) []param.Assignment {
	var out []param.Assignment
	for _, aed := range dateOptions(p, param.DateAutorisation) {
		if aed.descriptor.UnknownValue {
			continue
		}
		for _, inst := range dateOptions(p, param.DateInstallation) {
			if inst.descriptor.UnknownValue {
				continue
			}
			out = append(out, param.Assignment{
				Dates: map[param.Parameter]param.DateValue{
					param.DateAutorisation: aed.value,
					param.DateInstallation: inst.value,
				},
				Classements: md.Classements,
			})
		}
	}
	return out
}
