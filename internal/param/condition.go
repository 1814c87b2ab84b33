// Package param models the conditional rules ("parametrization") attached
// to a ministerial order and evaluates them against installation attributes.
package param

import (
	"fmt"
	"slices"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/dshills/amcorpus/internal/am"
)

// Parameter is an installation attribute a condition can test.
type Parameter string

const (
	DateAutorisation Parameter = "date-d-autorisation"
	DateInstallation Parameter = "date-d-installation"
	Regime           Parameter = "regime"
	Rubrique         Parameter = "rubrique"
	Alinea           Parameter = "alinea"
)

// parameterOrder is the canonical ordering of parameters.
var parameterOrder = []Parameter{DateAutorisation, DateInstallation, Regime, Rubrique, Alinea}

// IsDate reports whether p takes date values.
func (p Parameter) IsDate() bool {
	return p == DateAutorisation || p == DateInstallation
}

func (p Parameter) valid() bool {
	return slices.Contains(parameterOrder, p)
}

// ConditionType discriminates the Condition variants.
type ConditionType string

const (
	TypeEqual   ConditionType = "equal"
	TypeLittler ConditionType = "littler" // value < target
	TypeGreater ConditionType = "greater" // value >= target
	TypeRange   ConditionType = "range"   // left <= value < right
	TypeAnd     ConditionType = "and"
	TypeOr      ConditionType = "or"
)

// Condition is a boolean expression over parameters. Leaves test one
// parameter; and/or nodes combine Conditions.
type Condition struct {
	Type       ConditionType `json:"type" toml:"type" yaml:"type"`
	Parameter  Parameter     `json:"parameter,omitempty" toml:"parameter,omitempty" yaml:"parameter,omitempty"`
	Value      string        `json:"value,omitempty" toml:"value,omitempty" yaml:"value,omitempty"`
	Target     *civil.Date   `json:"target,omitempty" toml:"target,omitempty" yaml:"target,omitempty"`
	Left       *civil.Date   `json:"left,omitempty" toml:"left,omitempty" yaml:"left,omitempty"`
	Right      *civil.Date   `json:"right,omitempty" toml:"right,omitempty" yaml:"right,omitempty"`
	Conditions []Condition   `json:"conditions,omitempty" toml:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// Validate checks the shape of the condition tree.
func (c Condition) Validate() error {
	switch c.Type {
	case TypeAnd, TypeOr:
		if len(c.Conditions) == 0 {
			return fmt.Errorf("%s condition needs at least one operand", c.Type)
		}
		for i, sub := range c.Conditions {
			if err := sub.Validate(); err != nil {
				return fmt.Errorf("%s[%d]: %w", c.Type, i, err)
			}
		}
		return nil
	case TypeEqual, TypeLittler, TypeGreater, TypeRange:
	default:
		return fmt.Errorf("unknown condition type %q", c.Type)
	}

	if !c.Parameter.valid() {
		return fmt.Errorf("%s condition: unknown parameter %q", c.Type, c.Parameter)
	}
	if !c.Parameter.IsDate() {
		if c.Type != TypeEqual {
			return fmt.Errorf("%s condition not supported on categorical parameter %s", c.Type, c.Parameter)
		}
		if c.Value == "" {
			return fmt.Errorf("equal condition on %s needs a value", c.Parameter)
		}
		return nil
	}
	switch c.Type {
	case TypeEqual, TypeLittler, TypeGreater:
		if c.Target == nil {
			return fmt.Errorf("%s condition on %s needs a target date", c.Type, c.Parameter)
		}
	case TypeRange:
		if c.Left == nil && c.Right == nil {
			return fmt.Errorf("range condition on %s needs at least one bound", c.Parameter)
		}
		if c.Left != nil && c.Right != nil && !c.Left.Before(*c.Right) {
			return fmt.Errorf("range condition on %s: empty range [%s, %s)", c.Parameter, c.Left, c.Right)
		}
	}
	return nil
}

// Parameters returns the distinct parameters c references, in canonical order.
func (c Condition) Parameters() []Parameter {
	seen := make(map[Parameter]bool)
	c.collectParameters(seen)
	var out []Parameter
	for _, p := range parameterOrder {
		if seen[p] {
			out = append(out, p)
		}
	}
	return out
}

func (c Condition) collectParameters(seen map[Parameter]bool) {
	if c.Type == TypeAnd || c.Type == TypeOr {
		for _, sub := range c.Conditions {
			sub.collectParameters(seen)
		}
		return
	}
	seen[c.Parameter] = true
}

// Boundaries returns the dates at which c can change value along
// parameter p. An equal condition contributes its target and the next day.
func (c Condition) Boundaries(p Parameter) []civil.Date {
	var out []civil.Date
	switch c.Type {
	case TypeAnd, TypeOr:
		for _, sub := range c.Conditions {
			out = append(out, sub.Boundaries(p)...)
		}
		return out
	}
	if c.Parameter != p || !p.IsDate() {
		return nil
	}
	switch c.Type {
	case TypeEqual:
		out = append(out, *c.Target, c.Target.AddDays(1))
	case TypeLittler, TypeGreater:
		out = append(out, *c.Target)
	case TypeRange:
		if c.Left != nil {
			out = append(out, *c.Left)
		}
		if c.Right != nil {
			out = append(out, *c.Right)
		}
	}
	return out
}

func (c Condition) String() string {
	switch c.Type {
	case TypeAnd, TypeOr:
		parts := make([]string, len(c.Conditions))
		for i, sub := range c.Conditions {
			parts[i] = sub.String()
		}
		sep := " et "
		if c.Type == TypeOr {
			sep = " ou "
		}
		return "(" + strings.Join(parts, sep) + ")"
	case TypeEqual:
		if c.Parameter.IsDate() && c.Target != nil {
			return fmt.Sprintf("%s = %s", c.Parameter, c.Target)
		}
		return fmt.Sprintf("%s = %s", c.Parameter, c.Value)
	case TypeLittler:
		return fmt.Sprintf("%s < %s", c.Parameter, c.Target)
	case TypeGreater:
		return fmt.Sprintf("%s >= %s", c.Parameter, c.Target)
	case TypeRange:
		switch {
		case c.Left == nil:
			return fmt.Sprintf("%s < %s", c.Parameter, c.Right)
		case c.Right == nil:
			return fmt.Sprintf("%s >= %s", c.Parameter, c.Left)
		}
		return fmt.Sprintf("%s <= %s < %s", c.Left, c.Parameter, c.Right)
	}
	return string(c.Type)
}

// Less is the condition parameter < target.
func Less(p Parameter, target civil.Date) Condition {
	return Condition{Type: TypeLittler, Parameter: p, Target: &target}
}

// AtLeast is the condition parameter >= target.
func AtLeast(p Parameter, target civil.Date) Condition {
	return Condition{Type: TypeGreater, Parameter: p, Target: &target}
}

// Between is the condition left <= parameter < right; a nil bound is open.
func Between(p Parameter, left, right *civil.Date) Condition {
	return Condition{Type: TypeRange, Parameter: p, Left: left, Right: right}
}

// Is is the categorical condition parameter == value.
func Is(p Parameter, value string) Condition {
	return Condition{Type: TypeEqual, Parameter: p, Value: value}
}

// All is the conjunction of conditions.
func All(conditions ...Condition) Condition {
	return Condition{Type: TypeAnd, Conditions: conditions}
}

// Any is the disjunction of conditions.
func Any(conditions ...Condition) Condition {
	return Condition{Type: TypeOr, Conditions: conditions}
}

// classementValue returns the attribute of c tested by categorical parameter p.
func classementValue(c am.Classement, p Parameter) string {
	switch p {
	case Regime:
		return string(c.Regime)
	case Rubrique:
		return c.Rubrique
	case Alinea:
		return c.Alinea
	}
	return ""
}
