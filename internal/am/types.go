// Package am holds the data model of a ministerial order (arrêté
// ministériel): its structured text, the metadata describing it and the
// descriptors tagging each generated version.
package am

import (
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
)

// Regime is the administrative classification regime of an installation.
type Regime string

const (
	RegimeA  Regime = "A"  // autorisation
	RegimeE  Regime = "E"  // enregistrement
	RegimeD  Regime = "D"  // déclaration
	RegimeNC Regime = "NC" // non classé
)

// regimeOrder is the canonical ordering used when splitting by regime.
var regimeOrder = []Regime{RegimeA, RegimeE, RegimeD, RegimeNC}

// ParseRegime returns the Regime for s or an error if s is not one of A, E, D, NC.
func ParseRegime(s string) (Regime, error) {
	switch r := Regime(strings.ToUpper(strings.TrimSpace(s))); r {
	case RegimeA, RegimeE, RegimeD, RegimeNC:
		return r, nil
	}
	return "", fmt.Errorf("unknown regime %q: valid regimes are A, E, D, NC", s)
}

// Classement links an order to a rubrique of the nomenclature under a regime.
type Classement struct {
	Rubrique string `json:"rubrique"`
	Regime   Regime `json:"regime"`
	Alinea   string `json:"alinea,omitempty"`
}

// ArreteMinisteriel is one version of a ministerial order, enriched with
// its metadata. It is the unit persisted in the corpus.
type ArreteMinisteriel struct {
	ID                string             `json:"id"`
	Title             string             `json:"title"`
	ShortTitle        string             `json:"short_title,omitempty"`
	NOR               string             `json:"nor,omitempty"`
	Sections          []StructuredText   `json:"sections"`
	Classements       []Classement       `json:"classements"`
	LegifranceURL     *string            `json:"legifrance_url"`
	AidaURL           *string            `json:"aida_url"`
	DateOfSignature   *civil.Date        `json:"date_of_signature"`
	PublicationDate   *civil.Date        `json:"publication_date,omitempty"`
	IsTransverse      bool               `json:"is_transverse,omitempty"`
	Applicability     *Applicability     `json:"applicability,omitempty"`
	VersionDescriptor *VersionDescriptor `json:"version_descriptor,omitempty"`
}

// StructuredText is a titled section holding alineas and nested sections.
type StructuredText struct {
	ID            string           `json:"id,omitempty"`
	Title         string           `json:"title"`
	Reference     *string          `json:"reference"`
	Alineas       []Alinea         `json:"alineas"`
	Sections      []StructuredText `json:"sections"`
	Applicability *Applicability   `json:"applicability,omitempty"`
}

// Alinea is a paragraph of a section. It carries either text or a table.
type Alinea struct {
	Text     string `json:"text"`
	Table    *Table `json:"table,omitempty"`
	Inactive bool   `json:"inactive,omitempty"`
}

// Table is a table extracted from the source document.
type Table struct {
	Rows []Row `json:"rows"`
}

// Row is a table row. InlineContent is the flattened text of a non-header row.
type Row struct {
	Cells         []Cell  `json:"cells"`
	IsHeader      bool    `json:"is_header"`
	InlineContent *string `json:"inline_content"`
}

// Cell is a single table cell.
type Cell struct {
	Content string `json:"content"`
	Colspan int    `json:"colspan,omitempty"`
	Rowspan int    `json:"rowspan,omitempty"`
}

// Applicability records how a parametrization changed a section for one version.
type Applicability struct {
	Active          bool            `json:"active"`
	Modified        bool            `json:"modified,omitempty"`
	ReasonInactive  string          `json:"reason_inactive,omitempty"`
	ReasonModified  string          `json:"reason_modified,omitempty"`
	Warnings        []string        `json:"warnings,omitempty"`
	PreviousVersion *StructuredText `json:"previous_version,omitempty"`
}

// Path locates a section: each element indexes the children of the
// previous level. The empty path designates the whole text.
type Path []int

// String renders p as dot separated indices, "" for the root.
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, idx := range p {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, ".")
}

// IsRoot reports whether p designates the whole text.
func (p Path) IsRoot() bool { return len(p) == 0 }

// ParsePath parses the dot separated form produced by Path.String.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Path{}, nil
	}
	parts := strings.Split(s, ".")
	p := make(Path, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid path %q: element %q is not a non-negative index", s, part)
		}
		p[i] = n
	}
	return p, nil
}

// SectionAt returns the section designated by a non-root path.
func (a *ArreteMinisteriel) SectionAt(p Path) (*StructuredText, error) {
	if p.IsRoot() {
		return nil, fmt.Errorf("root path does not designate a section")
	}
	children := a.Sections
	var current *StructuredText
	for depth, idx := range p {
		if idx >= len(children) {
			return nil, fmt.Errorf("path %s: index %d out of range at depth %d (%d sections)", p, idx, depth, len(children))
		}
		current = &children[idx]
		children = current.Sections
	}
	return current, nil
}

// Walk calls fn for every section, parents before children.
func (a *ArreteMinisteriel) Walk(fn func(p Path, s *StructuredText)) {
	walkSections(a.Sections, nil, fn)
}

func walkSections(sections []StructuredText, prefix Path, fn func(Path, *StructuredText)) {
	for i := range sections {
		p := append(append(Path{}, prefix...), i)
		fn(p, &sections[i])
		walkSections(sections[i].Sections, p, fn)
	}
}
