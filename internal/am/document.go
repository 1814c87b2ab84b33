package am

import (
	"encoding/json"
	"fmt"
	"slices"
)

const (
	legifranceBaseURL = "https://www.legifrance.gouv.fr/jorf/id/"
	aidaBaseURL       = "https://aida.ineris.fr/consultation_document/"
)

// Parse decodes a corpus document. The id is the only field required at
// this stage; content checks belong to the corpus validator.
func Parse(data []byte) (ArreteMinisteriel, error) {
	var a ArreteMinisteriel
	if err := json.Unmarshal(data, &a); err != nil {
		return ArreteMinisteriel{}, structural("", "document", "invalid JSON: %v", err)
	}
	if a.ID == "" {
		return ArreteMinisteriel{}, structural("", "id", "missing")
	}
	return a, nil
}

// Marshal encodes a as an indented corpus document.
func Marshal(a ArreteMinisteriel) ([]byte, error) {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", a.ID, err)
	}
	return data, nil
}

// Enrich returns a copy of text carrying md's identity, classements, dates
// and source URLs. text is left untouched.
func Enrich(text ArreteMinisteriel, md Metadata) (ArreteMinisteriel, error) {
	if md.ID == "" {
		return ArreteMinisteriel{}, structural(text.ID, "cid", "metadata has no id")
	}
	out := text.Clone()
	out.ID = md.ID
	if md.Title != "" {
		out.Title = md.Title
	}
	out.ShortTitle = md.ShortTitle
	out.NOR = md.NOR
	out.Classements = slices.Clone(md.Classements)
	out.IsTransverse = md.IsTransverse
	out.DateOfSignature = copyDate(md.DateOfSignature)
	out.PublicationDate = copyDate(md.PublicationDate)
	legifrance := legifranceBaseURL + baseID(md.ID)
	out.LegifranceURL = &legifrance
	out.AidaURL = nil
	if md.AidaPage != "" {
		aida := aidaBaseURL + md.AidaPage
		out.AidaURL = &aida
	}
	return out, nil
}

// baseID strips a regime suffix added by SplitByRegime.
func baseID(id string) string {
	for _, r := range regimeOrder {
		suffix := "_" + string(r)
		if len(id) > len(suffix) && id[len(id)-len(suffix):] == suffix {
			return id[:len(id)-len(suffix)]
		}
	}
	return id
}

// Regimes returns the distinct regimes attached to a, in canonical order.
func (a ArreteMinisteriel) Regimes() []Regime {
	return distinctRegimes(a.Classements)
}

// Clone returns a deep copy of a.
func (a ArreteMinisteriel) Clone() ArreteMinisteriel {
	out := a
	out.Sections = cloneSections(a.Sections)
	out.Classements = slices.Clone(a.Classements)
	out.LegifranceURL = copyString(a.LegifranceURL)
	out.AidaURL = copyString(a.AidaURL)
	out.DateOfSignature = copyDate(a.DateOfSignature)
	out.PublicationDate = copyDate(a.PublicationDate)
	out.Applicability = a.Applicability.clone()
	if a.VersionDescriptor != nil {
		vd := a.VersionDescriptor.Clone()
		out.VersionDescriptor = &vd
	}
	return out
}

// Clone returns a deep copy of s.
func (s StructuredText) Clone() StructuredText {
	out := s
	out.Reference = copyString(s.Reference)
	if s.Alineas != nil {
		out.Alineas = make([]Alinea, len(s.Alineas))
		for i, al := range s.Alineas {
			out.Alineas[i] = al
			out.Alineas[i].Table = al.Table.clone()
		}
	}
	out.Sections = cloneSections(s.Sections)
	out.Applicability = s.Applicability.clone()
	return out
}

func cloneSections(sections []StructuredText) []StructuredText {
	if sections == nil {
		return nil
	}
	out := make([]StructuredText, len(sections))
	for i, s := range sections {
		out[i] = s.Clone()
	}
	return out
}

func (t *Table) clone() *Table {
	if t == nil {
		return nil
	}
	out := &Table{}
	if t.Rows != nil {
		out.Rows = make([]Row, len(t.Rows))
		for i, r := range t.Rows {
			out.Rows[i] = Row{Cells: slices.Clone(r.Cells), IsHeader: r.IsHeader, InlineContent: copyString(r.InlineContent)}
		}
	}
	return out
}

func (a *Applicability) clone() *Applicability {
	if a == nil {
		return nil
	}
	out := *a
	out.Warnings = slices.Clone(a.Warnings)
	if a.PreviousVersion != nil {
		prev := a.PreviousVersion.Clone()
		out.PreviousVersion = &prev
	}
	return &out
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
