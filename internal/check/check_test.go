package check

import (
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/amcorpus/internal/am"
	"github.com/dshills/amcorpus/internal/param"
	"github.com/dshills/amcorpus/internal/profile"
	"github.com/dshills/amcorpus/internal/version"
)

func strPtr(s string) *string { return &s }

func minimal(t *testing.T) *profile.Profile {
	t.Helper()
	p, err := profile.Get("minimal")
	require.NoError(t, err)
	return p
}

func validText(id string) am.ArreteMinisteriel {
	signed := civil.Date{Year: 2010, Month: 1, Day: 1}
	return am.ArreteMinisteriel{
		ID:              id,
		Title:           "Arrêté",
		LegifranceURL:   strPtr("https://www.legifrance.gouv.fr/jorf/id/" + id),
		AidaURL:         strPtr("https://aida.ineris.fr/consultation_document/1"),
		DateOfSignature: &signed,
		Classements:     []am.Classement{{Rubrique: "2510", Regime: am.RegimeE}},
		Sections: []am.StructuredText{
			{
				Title:     "Article 1",
				Reference: strPtr("Art. 1"),
				Alineas: []am.Alinea{{Table: &am.Table{Rows: []am.Row{
					{Cells: []am.Cell{{Content: "Seuil"}}, IsHeader: true},
					{Cells: []am.Cell{{Content: "10 t"}}, InlineContent: strPtr("Seuil 10 t")},
				}}}},
			},
			{Title: "Article 2", Reference: strPtr("Art. 2")},
		},
		VersionDescriptor: &am.VersionDescriptor{
			Applicable:        true,
			AuthorizationDate: am.UnusedDate(),
			InstallationDate:  am.UnusedDate(),
		},
	}
}

func TestVersion_Valid(t *testing.T) {
	assert.Empty(t, Version(validText("JORFTEXT000000000001"), minimal(t)))
}

func TestVersion_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*am.ArreteMinisteriel)
		want   error
	}{
		{"no classement", func(a *am.ArreteMinisteriel) { a.Classements = nil }, ErrRegimeConflict},
		{"two regimes", func(a *am.ArreteMinisteriel) {
			a.Classements = append(a.Classements, am.Classement{Rubrique: "1510", Regime: am.RegimeA})
		}, ErrRegimeConflict},
		{"missing reference", func(a *am.ArreteMinisteriel) { a.Sections[1].Reference = nil }, ErrContent},
		{"empty references", func(a *am.ArreteMinisteriel) {
			a.Sections[0].Reference = strPtr("")
			a.Sections[1].Reference = strPtr(" ")
		}, ErrContent},
		{"missing inline content", func(a *am.ArreteMinisteriel) {
			a.Sections[0].Alineas[0].Table.Rows[1].InlineContent = nil
		}, ErrContent},
		{"empty inline content", func(a *am.ArreteMinisteriel) {
			a.Sections[0].Alineas[0].Table.Rows[1].InlineContent = strPtr("")
		}, ErrContent},
		{"no legifrance url", func(a *am.ArreteMinisteriel) { a.LegifranceURL = nil }, ErrContent},
		{"no aida url", func(a *am.ArreteMinisteriel) { a.AidaURL = nil }, ErrContent},
		{"no signature date", func(a *am.ArreteMinisteriel) { a.DateOfSignature = nil }, ErrContent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			text := validText("JORFTEXT000000000001")
			tc.mutate(&text)
			errs := Version(text, minimal(t))
			require.Len(t, errs, 1)
			assert.ErrorIs(t, errs[0], tc.want)
			if tc.want == ErrContent {
				assert.ErrorIs(t, errs[0], am.ErrStructuralInput)
			} else {
				assert.NotErrorIs(t, errs[0], am.ErrStructuralInput)
			}
		})
	}
}

func TestReferences_BelowThreshold(t *testing.T) {
	text := validText("x")
	text.Sections[1].Reference = strPtr("")
	// One empty reference out of two is below 95%.
	assert.NoError(t, References(text, profile.DefaultEmptyRatio))
	assert.ErrorIs(t, References(text, 0.5), ErrContent)
}

func TestVersion_LegacyID(t *testing.T) {
	prof, err := profile.Get("envinorma")
	require.NoError(t, err)
	errs := Version(validText("DEVP1706393A"), prof)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrCorpus)
}

func splitVersions(t *testing.T, id string) map[string]am.ArreteMinisteriel {
	t.Helper()
	md := am.Metadata{
		ID:              id,
		Title:           "Arrêté",
		State:           am.StateInForce,
		AidaPage:        "1",
		DateOfSignature: &civil.Date{Year: 2010, Month: 1, Day: 1},
		Classements:     []am.Classement{{Rubrique: "2510", Regime: am.RegimeE}},
	}
	p := param.Parametrization{
		Status: param.StatusValidated,
		Inapplicabilities: []param.InapplicableSection{
			{Path: am.Path{1}, Condition: param.Less(param.DateAutorisation, civil.Date{Year: 2020, Month: 1, Day: 1})},
		},
	}
	versions, err := version.Generate(validText(id), p, md)
	require.NoError(t, err)
	out := make(map[string]am.ArreteMinisteriel)
	for _, v := range versions {
		out[id+"_"+v.Name()] = v.Text
	}
	return out
}

func TestCorpus_Valid(t *testing.T) {
	corpus := splitVersions(t, "JORFTEXT000000000001")
	for k, v := range splitVersions(t, "JORFTEXT000000000002") {
		corpus[k] = v
	}
	report := Corpus(corpus, minimal(t))
	require.NoError(t, report.Err())
	assert.Equal(t, 2, report.AMCount)
	assert.Equal(t, 6, report.VersionCount)
}

func TestCorpus_BestEffort(t *testing.T) {
	corpus := splitVersions(t, "JORFTEXT000000000001")
	broken := validText("JORFTEXT000000000002")
	broken.AidaURL = nil
	broken.VersionDescriptor.AuthorizationDate = am.DateRange(nil, &civil.Date{Year: 2020, Month: 1, Day: 1})
	corpus["JORFTEXT000000000002_x"] = broken

	report := Corpus(corpus, minimal(t))
	require.Len(t, report.Failures, 2)

	content, group := report.Failures[0], report.Failures[1]
	assert.Equal(t, "JORFTEXT000000000002", content.AMID)
	assert.Equal(t, "JORFTEXT000000000002_x", content.Version)
	assert.ErrorIs(t, content, ErrContent)

	assert.Equal(t, "JORFTEXT000000000002", group.AMID)
	assert.Empty(t, group.Version)
	assert.ErrorIs(t, group, version.ErrInconsistentVersions)

	assert.True(t, errors.Is(report.Err(), ErrContent))
}

func TestCorpus_RequiredIDs(t *testing.T) {
	prof, err := profile.Get("envinorma")
	require.NoError(t, err)
	corpus := splitVersions(t, "JORFTEXT000034429274_A")
	for k, v := range splitVersions(t, "JORFTEXT000034429274_E") {
		corpus[k] = v
	}

	report := Corpus(corpus, prof)
	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0], ErrCorpus)
	assert.Contains(t, report.Failures[0].Error(), "JORFTEXT000034429274_D")
}

func TestGroup(t *testing.T) {
	a := validText("A")
	b := validText("B")
	assert.ErrorIs(t, Group([]am.ArreteMinisteriel{a, b}), version.ErrInconsistentVersions)

	a.VersionDescriptor = nil
	assert.ErrorIs(t, Group([]am.ArreteMinisteriel{a}), version.ErrInconsistentVersions)

	assert.NoError(t, Group([]am.ArreteMinisteriel{validText("A")}))
}
