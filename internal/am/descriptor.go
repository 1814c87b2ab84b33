package am

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"cloud.google.com/go/civil"
)

// DateParameterDescriptor describes how one date condition distinguishes a
// version. The bounds form the half-open range [LeftBound, RightBound); a nil
// bound is open ended.
type DateParameterDescriptor struct {
	IsUsed       bool        `json:"is_used"`
	UnknownValue bool        `json:"unknown_value"`
	LeftBound    *civil.Date `json:"left_value,omitempty"`
	RightBound   *civil.Date `json:"right_value,omitempty"`
}

// UnusedDate is the descriptor of a date that plays no role in the parametrization.
func UnusedDate() DateParameterDescriptor {
	return DateParameterDescriptor{}
}

// UnknownDate is the catch-all descriptor used when the date cannot be determined.
func UnknownDate() DateParameterDescriptor {
	return DateParameterDescriptor{IsUsed: true, UnknownValue: true}
}

// DateRange is the descriptor of a known date within [left, right).
func DateRange(left, right *civil.Date) DateParameterDescriptor {
	return DateParameterDescriptor{IsUsed: true, LeftBound: copyDate(left), RightBound: copyDate(right)}
}

// Validate checks that bounds are only set on a used, known descriptor.
func (d DateParameterDescriptor) Validate() error {
	hasBound := d.LeftBound != nil || d.RightBound != nil
	if !d.IsUsed && hasBound {
		return errors.New("unused date parameter must not carry bounds")
	}
	if d.UnknownValue && hasBound {
		return errors.New("unknown date parameter must not carry bounds")
	}
	if d.LeftBound != nil && d.RightBound != nil && !d.LeftBound.Before(*d.RightBound) {
		return fmt.Errorf("empty date range [%s, %s)", d.LeftBound, d.RightBound)
	}
	return nil
}

// Unconstrained reports whether the descriptor places no constraint on the
// date: either it is unused or it explicitly stands for an unknown value.
// A used descriptor without UnknownValue is never inferred to be unknown.
func (d DateParameterDescriptor) Unconstrained() bool {
	return !d.IsUsed || d.UnknownValue
}

// Equal reports exact value equality, bounds included.
func (d DateParameterDescriptor) Equal(o DateParameterDescriptor) bool {
	return d.Key() == o.Key()
}

// DateParameterKey is a comparable form of DateParameterDescriptor, usable as a map key.
type DateParameterKey struct {
	IsUsed       bool
	UnknownValue bool
	HasLeft      bool
	Left         civil.Date
	HasRight     bool
	Right        civil.Date
}

// Key returns the comparable form of d.
func (d DateParameterDescriptor) Key() DateParameterKey {
	k := DateParameterKey{IsUsed: d.IsUsed, UnknownValue: d.UnknownValue}
	if d.LeftBound != nil {
		k.HasLeft, k.Left = true, *d.LeftBound
	}
	if d.RightBound != nil {
		k.HasRight, k.Right = true, *d.RightBound
	}
	return k
}

func (d DateParameterDescriptor) String() string {
	switch {
	case !d.IsUsed:
		return "unused"
	case d.UnknownValue:
		return "unknown"
	}
	return fmt.Sprintf("[%s, %s)", boundString(d.LeftBound, "-inf"), boundString(d.RightBound, "+inf"))
}

func boundString(d *civil.Date, open string) string {
	if d == nil {
		return open
	}
	return d.String()
}

// VersionDescriptor is the full condition vector of one generated version.
type VersionDescriptor struct {
	Applicable        bool                    `json:"applicable"`
	Outcomes          []string                `json:"outcomes"`
	AuthorizationDate DateParameterDescriptor `json:"aed_date"`
	InstallationDate  DateParameterDescriptor `json:"installation_date"`
}

// NoDateVersionName names the version produced when no condition applies.
const NoDateVersionName = "no_date_version"

// Name returns a file-safe identifier of the version, stable for a given
// set of outcomes.
func (v VersionDescriptor) Name() string {
	if len(v.Outcomes) == 0 {
		return NoDateVersionName
	}
	outcomes := slices.Clone(v.Outcomes)
	slices.Sort(outcomes)
	slices.Reverse(outcomes)
	return strings.ReplaceAll(strings.Join(outcomes, "_AND_"), " ", "_")
}

// Clone returns a copy sharing no memory with v.
func (v VersionDescriptor) Clone() VersionDescriptor {
	out := v
	out.Outcomes = slices.Clone(v.Outcomes)
	out.AuthorizationDate = v.AuthorizationDate.clone()
	out.InstallationDate = v.InstallationDate.clone()
	return out
}

func (d DateParameterDescriptor) clone() DateParameterDescriptor {
	d.LeftBound = copyDate(d.LeftBound)
	d.RightBound = copyDate(d.RightBound)
	return d
}

func copyDate(d *civil.Date) *civil.Date {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}
