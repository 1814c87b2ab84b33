package param

import (
	"cloud.google.com/go/civil"

	"github.com/dshills/amcorpus/internal/am"
)

// Truth is a three-valued logic value.
type Truth int

const (
	Unknown Truth = iota
	False
	True
)

func (t Truth) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	}
	return "unknown"
}

// DateValue is what is known about a date parameter: either nothing, or
// that it lies in [Left, Right). A nil bound is open ended.
type DateValue struct {
	Known bool
	Left  *civil.Date
	Right *civil.Date
}

// Assignment fixes the information available about an installation when
// evaluating conditions. Date parameters missing from Dates are unknown.
// Categorical parameters are read from Classements.
type Assignment struct {
	Dates       map[Parameter]DateValue
	Classements []am.Classement
}

// Evaluate returns the truth value of c under a.
func Evaluate(c Condition, a Assignment) Truth {
	switch c.Type {
	case TypeAnd:
		result := True
		for _, sub := range c.Conditions {
			switch Evaluate(sub, a) {
			case False:
				return False
			case Unknown:
				result = Unknown
			}
		}
		return result
	case TypeOr:
		result := False
		for _, sub := range c.Conditions {
			switch Evaluate(sub, a) {
			case True:
				return True
			case Unknown:
				result = Unknown
			}
		}
		return result
	}
	if c.Parameter.IsDate() {
		v, ok := a.Dates[c.Parameter]
		if !ok || !v.Known {
			return Unknown
		}
		return evaluateDate(c, v)
	}
	return evaluateCategorical(c, a.Classements)
}

func evaluateDate(c Condition, v DateValue) Truth {
	switch c.Type {
	case TypeLittler:
		return within(v, nil, c.Target)
	case TypeGreater:
		return within(v, c.Target, nil)
	case TypeRange:
		return within(v, c.Left, c.Right)
	case TypeEqual:
		next := c.Target.AddDays(1)
		return within(v, c.Target, &next)
	}
	return Unknown
}

// within tells whether every date of v lies in [lo, hi) (True), none does
// (False), or it depends on the exact date (Unknown).
func within(v DateValue, lo, hi *civil.Date) Truth {
	if (lo != nil && v.Right != nil && !v.Right.After(*lo)) || (hi != nil && v.Left != nil && !v.Left.Before(*hi)) {
		return False
	}
	loOK := lo == nil || (v.Left != nil && !v.Left.Before(*lo))
	hiOK := hi == nil || (v.Right != nil && !v.Right.After(*hi))
	if loOK && hiOK {
		return True
	}
	return Unknown
}

// evaluateCategorical is true when every classement matches, false when
// none does and unknown otherwise. Without classements nothing is known.
func evaluateCategorical(c Condition, classements []am.Classement) Truth {
	if len(classements) == 0 {
		return Unknown
	}
	matches := 0
	for _, cl := range classements {
		if classementValue(cl, c.Parameter) == c.Value {
			matches++
		}
	}
	switch matches {
	case len(classements):
		return True
	case 0:
		return False
	}
	return Unknown
}
