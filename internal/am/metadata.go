package am

import (
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
)

// State is the legal state of an order.
type State string

const (
	StateInForce  State = "VIGUEUR"
	StateRepealed State = "ABROGE"
	StateDeleted  State = "DELETED"
)

// Metadata is the static description of an order, owned by the data layer.
type Metadata struct {
	ID              string       `json:"cid"`
	NOR             string       `json:"nor,omitempty"`
	Title           string       `json:"title"`
	ShortTitle      string       `json:"short_title,omitempty"`
	AidaPage        string       `json:"aida_page,omitempty"`
	State           State        `json:"state"`
	DateOfSignature *civil.Date  `json:"date_of_signature,omitempty"`
	PublicationDate *civil.Date  `json:"publication_date,omitempty"`
	Classements     []Classement `json:"classements"`
	IsTransverse    bool         `json:"is_transverse,omitempty"`
}

// Regimes returns the distinct regimes of the classements, in canonical order.
func (m Metadata) Regimes() []Regime {
	return distinctRegimes(m.Classements)
}

// SplitByRegime returns one metadata record per regime when the classements
// mix several regimes; each record gets the id "<id>_<regime>" and only its
// regime's classements. A single-regime record is returned unchanged.
func (m Metadata) SplitByRegime() []Metadata {
	regimes := m.Regimes()
	if len(regimes) <= 1 {
		return []Metadata{m}
	}
	out := make([]Metadata, 0, len(regimes))
	for _, r := range regimes {
		sub := m
		sub.ID = m.ID + "_" + string(r)
		sub.Classements = nil
		for _, c := range m.Classements {
			if c.Regime == r {
				sub.Classements = append(sub.Classements, c)
			}
		}
		out = append(out, sub)
	}
	return out
}

func distinctRegimes(classements []Classement) []Regime {
	seen := make(map[Regime]bool)
	for _, c := range classements {
		seen[c.Regime] = true
	}
	var out []Regime
	for _, r := range regimeOrder {
		if seen[r] {
			out = append(out, r)
			delete(seen, r)
		}
	}
	// Unknown regimes keep their first-seen order after the canonical ones.
	for _, c := range classements {
		if seen[c.Regime] {
			out = append(out, c.Regime)
			delete(seen, c.Regime)
		}
	}
	return out
}

// MetadataFromRecord builds a Metadata from a loosely typed record, as
// decoded from JSON. It fails on the first missing or malformed field.
// Required: cid, title, state, classements.
func MetadataFromRecord(rec map[string]any) (Metadata, error) {
	var md Metadata
	id, err := requiredString(rec, "", "cid")
	if err != nil {
		return md, err
	}
	md.ID = id
	if md.Title, err = requiredString(rec, id, "title"); err != nil {
		return md, err
	}
	state, err := requiredString(rec, id, "state")
	if err != nil {
		return md, err
	}
	switch md.State = State(strings.ToUpper(state)); md.State {
	case StateInForce, StateRepealed, StateDeleted:
	default:
		return md, structural(id, "state", "unknown state %q", state)
	}
	if md.NOR, err = optionalString(rec, id, "nor"); err != nil {
		return md, err
	}
	if md.ShortTitle, err = optionalString(rec, id, "short_title"); err != nil {
		return md, err
	}
	if md.AidaPage, err = optionalString(rec, id, "aida_page"); err != nil {
		return md, err
	}
	if md.DateOfSignature, err = optionalDate(rec, id, "date_of_signature"); err != nil {
		return md, err
	}
	if md.PublicationDate, err = optionalDate(rec, id, "publication_date"); err != nil {
		return md, err
	}
	if v, ok := rec["is_transverse"]; ok && v != nil {
		b, ok := v.(bool)
		if !ok {
			return md, structural(id, "is_transverse", "expected a boolean, got %T", v)
		}
		md.IsTransverse = b
	}
	if md.Classements, err = classementsFromRecord(rec, id); err != nil {
		return md, err
	}
	return md, nil
}

func classementsFromRecord(rec map[string]any, id string) ([]Classement, error) {
	raw, ok := rec["classements"]
	if !ok || raw == nil {
		return nil, structural(id, "classements", "missing")
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, structural(id, "classements", "expected a list, got %T", raw)
	}
	out := make([]Classement, 0, len(items))
	for i, item := range items {
		field := fmt.Sprintf("classements[%d]", i)
		m, ok := item.(map[string]any)
		if !ok {
			return nil, structural(id, field, "expected an object, got %T", item)
		}
		rubrique, err := requiredString(m, id, field+".rubrique")
		if err != nil {
			return nil, err
		}
		regimeStr, err := requiredString(m, id, field+".regime")
		if err != nil {
			return nil, err
		}
		regime, err := ParseRegime(regimeStr)
		if err != nil {
			return nil, structural(id, field+".regime", "%v", err)
		}
		alinea, err := optionalString(m, id, field+".alinea")
		if err != nil {
			return nil, err
		}
		out = append(out, Classement{Rubrique: rubrique, Regime: regime, Alinea: alinea})
	}
	return out, nil
}

// lastKey strips the "classements[i]." prefix used in error field names.
func lastKey(field string) string {
	if i := strings.LastIndex(field, "."); i >= 0 {
		return field[i+1:]
	}
	return field
}

func requiredString(rec map[string]any, id, field string) (string, error) {
	s, err := optionalString(rec, id, field)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", structural(id, field, "missing")
	}
	return s, nil
}

func optionalString(rec map[string]any, id, field string) (string, error) {
	v, ok := rec[lastKey(field)]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", structural(id, field, "expected a string, got %T", v)
	}
	return strings.TrimSpace(s), nil
}

func optionalDate(rec map[string]any, id, field string) (*civil.Date, error) {
	s, err := optionalString(rec, id, field)
	if err != nil || s == "" {
		return nil, err
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return nil, structural(id, field, "malformed date %q", s)
	}
	return &d, nil
}
