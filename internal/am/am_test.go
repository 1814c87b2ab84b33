package am

import (
	"errors"
	"reflect"
	"testing"

	"cloud.google.com/go/civil"
)

func strPtr(s string) *string { return &s }

func sampleText() ArreteMinisteriel {
	return ArreteMinisteriel{
		ID:    "JORFTEXT000000000001",
		Title: "Arrêté du 1er janvier 2010",
		Sections: []StructuredText{
			{
				Title:     "Article 1",
				Reference: strPtr("Art. 1"),
				Alineas:   []Alinea{{Text: "Dispositions générales."}},
			},
			{
				Title:     "Article 2",
				Reference: strPtr("Art. 2"),
				Alineas: []Alinea{{Table: &Table{Rows: []Row{
					{Cells: []Cell{{Content: "Polluant"}}, IsHeader: true},
					{Cells: []Cell{{Content: "NOx"}}, InlineContent: strPtr("NOx")},
				}}}},
				Sections: []StructuredText{
					{Title: "2.1", Reference: strPtr("Art. 2.1"), Alineas: []Alinea{{Text: "Rejets."}}},
				},
			},
		},
	}
}

func TestPath_StringAndParse(t *testing.T) {
	p := Path{1, 0, 3}
	if p.String() != "1.0.3" {
		t.Errorf("String = %q, want 1.0.3", p.String())
	}
	got, err := ParsePath("1.0.3")
	if err != nil {
		t.Fatalf("ParsePath: %v", err)
	}
	if !reflect.DeepEqual(got, p) {
		t.Errorf("ParsePath = %v, want %v", got, p)
	}
	root, err := ParsePath("")
	if err != nil || !root.IsRoot() {
		t.Errorf("ParsePath(\"\") = %v, %v; want root", root, err)
	}
	if _, err := ParsePath("1.x"); err == nil {
		t.Error("expected error for malformed path")
	}
	if _, err := ParsePath("-1"); err == nil {
		t.Error("expected error for negative index")
	}
}

func TestSectionAt(t *testing.T) {
	text := sampleText()
	s, err := text.SectionAt(Path{1, 0})
	if err != nil {
		t.Fatalf("SectionAt: %v", err)
	}
	if s.Title != "2.1" {
		t.Errorf("Title = %q, want 2.1", s.Title)
	}
	if _, err := text.SectionAt(Path{2}); err == nil {
		t.Error("expected out of range error")
	}
	if _, err := text.SectionAt(Path{}); err == nil {
		t.Error("expected error for root path")
	}
}

func TestWalk_ParentsFirst(t *testing.T) {
	text := sampleText()
	var visited []string
	text.Walk(func(p Path, s *StructuredText) {
		visited = append(visited, p.String()+":"+s.Title)
	})
	want := []string{"0:Article 1", "1:Article 2", "1.0:2.1"}
	if !reflect.DeepEqual(visited, want) {
		t.Errorf("visited = %v, want %v", visited, want)
	}
}

func TestClone_IsDeep(t *testing.T) {
	text := sampleText()
	c := text.Clone()
	c.Sections[1].Sections[0].Title = "changed"
	*c.Sections[0].Reference = "changed"
	*c.Sections[1].Alineas[0].Table.Rows[1].InlineContent = "changed"
	if text.Sections[1].Sections[0].Title != "2.1" {
		t.Error("clone shares nested sections")
	}
	if *text.Sections[0].Reference != "Art. 1" {
		t.Error("clone shares references")
	}
	if *text.Sections[1].Alineas[0].Table.Rows[1].InlineContent != "NOx" {
		t.Error("clone shares table rows")
	}
}

func validRecord() map[string]any {
	return map[string]any{
		"cid":               "JORFTEXT000000000001",
		"title":             "Arrêté du 1er janvier 2010",
		"state":             "VIGUEUR",
		"aida_page":         "1234",
		"date_of_signature": "2010-01-01",
		"classements": []any{
			map[string]any{"rubrique": "2510", "regime": "A", "alinea": "1"},
			map[string]any{"rubrique": "2515", "regime": "A"},
		},
	}
}

func TestMetadataFromRecord_Valid(t *testing.T) {
	md, err := MetadataFromRecord(validRecord())
	if err != nil {
		t.Fatalf("MetadataFromRecord: %v", err)
	}
	if md.ID != "JORFTEXT000000000001" || md.State != StateInForce {
		t.Errorf("unexpected metadata: %+v", md)
	}
	want := civil.Date{Year: 2010, Month: 1, Day: 1}
	if md.DateOfSignature == nil || *md.DateOfSignature != want {
		t.Errorf("DateOfSignature = %v, want %v", md.DateOfSignature, want)
	}
	if len(md.Classements) != 2 || md.Classements[0].Alinea != "1" {
		t.Errorf("Classements = %+v", md.Classements)
	}
}

func TestMetadataFromRecord_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(map[string]any)
		field  string
	}{
		{"MissingCID", func(r map[string]any) { delete(r, "cid") }, "cid"},
		{"MissingTitle", func(r map[string]any) { r["title"] = "" }, "title"},
		{"BadState", func(r map[string]any) { r["state"] = "PENDING" }, "state"},
		{"BadDate", func(r map[string]any) { r["date_of_signature"] = "01/01/2010" }, "date_of_signature"},
		{"WrongType", func(r map[string]any) { r["nor"] = 12 }, "nor"},
		{"NoClassements", func(r map[string]any) { delete(r, "classements") }, "classements"},
		{"BadRegime", func(r map[string]any) {
			r["classements"] = []any{map[string]any{"rubrique": "2510", "regime": "Z"}}
		}, "classements[0].regime"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := validRecord()
			tc.mutate(rec)
			_, err := MetadataFromRecord(rec)
			if !errors.Is(err, ErrStructuralInput) {
				t.Fatalf("err = %v, want ErrStructuralInput", err)
			}
			var se *StructuralInputError
			if !errors.As(err, &se) || se.Field != tc.field {
				t.Errorf("field = %v, want %q", se, tc.field)
			}
		})
	}
}

func TestSplitByRegime(t *testing.T) {
	md := Metadata{
		ID: "JORFTEXT000034429274",
		Classements: []Classement{
			{Rubrique: "1510", Regime: RegimeD},
			{Rubrique: "1510", Regime: RegimeA},
			{Rubrique: "1510", Regime: RegimeE},
		},
	}
	parts := md.SplitByRegime()
	if len(parts) != 3 {
		t.Fatalf("got %d parts, want 3", len(parts))
	}
	wantIDs := []string{"JORFTEXT000034429274_A", "JORFTEXT000034429274_E", "JORFTEXT000034429274_D"}
	for i, p := range parts {
		if p.ID != wantIDs[i] {
			t.Errorf("parts[%d].ID = %q, want %q", i, p.ID, wantIDs[i])
		}
		if len(p.Regimes()) != 1 {
			t.Errorf("parts[%d] has regimes %v", i, p.Regimes())
		}
	}
	single := Metadata{ID: "X", Classements: []Classement{{Rubrique: "2510", Regime: RegimeA}}}
	if got := single.SplitByRegime(); len(got) != 1 || got[0].ID != "X" {
		t.Errorf("single-regime split = %+v", got)
	}
}

func TestEnrich(t *testing.T) {
	md, err := MetadataFromRecord(validRecord())
	if err != nil {
		t.Fatal(err)
	}
	md.ID = md.ID + "_A"
	base := sampleText()
	out, err := Enrich(base, md)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if out.LegifranceURL == nil || *out.LegifranceURL != legifranceBaseURL+"JORFTEXT000000000001" {
		t.Errorf("LegifranceURL = %v", out.LegifranceURL)
	}
	if out.AidaURL == nil || *out.AidaURL != aidaBaseURL+"1234" {
		t.Errorf("AidaURL = %v", out.AidaURL)
	}
	if out.ID != "JORFTEXT000000000001_A" || len(out.Classements) != 2 {
		t.Errorf("unexpected enriched text: id=%s classements=%v", out.ID, out.Classements)
	}
	if base.LegifranceURL != nil {
		t.Error("Enrich mutated its input")
	}
}

func TestMarshalParse_RoundTrip(t *testing.T) {
	text := sampleText()
	dt := civil.Date{Year: 2020, Month: 1, Day: 1}
	text.DateOfSignature = &dt
	text.Sections[0].Applicability = &Applicability{Active: false, ReasonInactive: "r", Warnings: []string{"w"}}
	text.VersionDescriptor = &VersionDescriptor{
		Applicable:        true,
		Outcomes:          []string{"date-d-autorisation >= 2020-01-01"},
		AuthorizationDate: DateRange(&dt, nil),
		InstallationDate:  UnusedDate(),
	}

	data, err := Marshal(text)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	back, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(text, back) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", back, text)
	}
}

func TestParse_Errors(t *testing.T) {
	if _, err := Parse([]byte("{")); !errors.Is(err, ErrStructuralInput) {
		t.Errorf("invalid JSON: err = %v", err)
	}
	if _, err := Parse([]byte(`{"title":"x"}`)); !errors.Is(err, ErrStructuralInput) {
		t.Errorf("missing id: err = %v", err)
	}
}

func TestDateParameterDescriptor(t *testing.T) {
	dt := civil.Date{Year: 2020, Month: 1, Day: 1}
	if err := UnusedDate().Validate(); err != nil {
		t.Errorf("unused: %v", err)
	}
	if err := (DateParameterDescriptor{UnknownValue: true, IsUsed: true, LeftBound: &dt}).Validate(); err == nil {
		t.Error("expected error for unknown descriptor with bounds")
	}
	if err := (DateParameterDescriptor{LeftBound: &dt}).Validate(); err == nil {
		t.Error("expected error for unused descriptor with bounds")
	}
	if err := DateRange(&dt, &dt).Validate(); err == nil {
		t.Error("expected error for empty range")
	}
	if !DateRange(&dt, nil).Equal(DateRange(&civil.Date{Year: 2020, Month: 1, Day: 1}, nil)) {
		t.Error("equal ranges reported different")
	}
	if DateRange(&dt, nil).Equal(DateRange(nil, &dt)) {
		t.Error("different ranges reported equal")
	}
	if got := DateRange(nil, &dt).String(); got != "[-inf, 2020-01-01)" {
		t.Errorf("String = %q", got)
	}
}

// Regression: a used descriptor with no bounds and UnknownValue unset is
// not unconstrained.
func TestDateParameterDescriptor_UnconstrainedIsStrict(t *testing.T) {
	if !UnusedDate().Unconstrained() {
		t.Error("unused descriptor must be unconstrained")
	}
	if !UnknownDate().Unconstrained() {
		t.Error("unknown descriptor must be unconstrained")
	}
	partial := DateParameterDescriptor{IsUsed: true}
	if partial.Unconstrained() {
		t.Error("used descriptor without UnknownValue must not be unconstrained")
	}
}

func TestVersionDescriptor_Name(t *testing.T) {
	if got := (VersionDescriptor{}).Name(); got != NoDateVersionName {
		t.Errorf("Name = %q, want %q", got, NoDateVersionName)
	}
	vd := VersionDescriptor{Outcomes: []string{"date-d-installation < 2010-01-01", "date-d-autorisation >= 2020-01-01"}}
	want := "date-d-installation_<_2010-01-01_AND_date-d-autorisation_>=_2020-01-01"
	if got := vd.Name(); got != want {
		t.Errorf("Name = %q, want %q", got, want)
	}
}
