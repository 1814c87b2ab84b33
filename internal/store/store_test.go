package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"cloud.google.com/go/civil"

	"github.com/dshills/amcorpus/internal/am"
	"github.com/dshills/amcorpus/internal/param"
	"github.com/dshills/amcorpus/internal/version"
)

func sampleVersions(t *testing.T, id string) version.Versions {
	t.Helper()
	ref := "Art. 1"
	base := am.ArreteMinisteriel{
		ID: id,
		Sections: []am.StructuredText{
			{Title: "Article 1", Reference: &ref, Alineas: []am.Alinea{{Text: "Contenu."}}},
		},
	}
	md := am.Metadata{
		ID:          id,
		Title:       "Arrêté",
		State:       am.StateInForce,
		Classements: []am.Classement{{Rubrique: "2510", Regime: am.RegimeE}},
	}
	p := param.Parametrization{
		Status: param.StatusValidated,
		Inapplicabilities: []param.InapplicableSection{
			{Path: am.Path{0}, Condition: param.Less(param.DateAutorisation, civil.Date{Year: 2020, Month: 1, Day: 1})},
		},
	}
	versions, err := version.Generate(base, p, md)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return versions
}

func assertRoundTrip(t *testing.T, sink Sink, saved map[string]version.Versions) {
	t.Helper()
	ctx := context.Background()
	loaded, err := sink.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := 0
	for id, versions := range saved {
		for _, v := range versions {
			want++
			got, ok := loaded[Key(id, v)]
			if !ok {
				t.Errorf("missing %s", Key(id, v))
				continue
			}
			if !reflect.DeepEqual(got, v.Text) {
				t.Errorf("%s does not round trip", Key(id, v))
			}
		}
	}
	if len(loaded) != want {
		t.Errorf("loaded %d versions, want %d", len(loaded), want)
	}
}

func TestFileSink_RoundTrip(t *testing.T) {
	ctx := context.Background()
	sink := NewFileSink(filepath.Join(t.TempDir(), "out"))
	if _, err := sink.Begin(ctx, nil); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	saved := map[string]version.Versions{
		"JORFTEXT000000000001": sampleVersions(t, "JORFTEXT000000000001"),
		"JORFTEXT000000000002": sampleVersions(t, "JORFTEXT000000000002"),
	}
	for id, versions := range saved {
		if err := sink.Save(ctx, id, versions); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	assertRoundTrip(t, sink, saved)

	if _, err := os.Stat(filepath.Join(sink.Dir, "JORFTEXT000000000001_no_date_version.json")); err != nil {
		t.Errorf("expected catch-all file: %v", err)
	}
}

func TestFileSink_BeginRemovesPreviousRun(t *testing.T) {
	ctx := context.Background()
	sink := NewFileSink(t.TempDir())
	if _, err := sink.Begin(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if err := sink.Save(ctx, "OLD", sampleVersions(t, "OLD")); err != nil {
		t.Fatal(err)
	}
	notes := filepath.Join(sink.Dir, "README.txt")
	if err := os.WriteFile(notes, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := sink.Begin(ctx, nil); err != nil {
		t.Fatal(err)
	}
	loaded, err := sink.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 0 {
		t.Errorf("expected an empty output after Begin, got %d versions", len(loaded))
	}
	if _, err := os.Stat(notes); err != nil {
		t.Errorf("non-JSON files must be kept: %v", err)
	}
}

func openMemory(t *testing.T) *SQLiteSink {
	t.Helper()
	sink, err := OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { sink.Close() })
	return sink
}

func TestSQLiteSink_RoundTrip(t *testing.T) {
	ctx := context.Background()
	sink := openMemory(t)
	runID, err := sink.Begin(ctx, nil)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if runID == "" {
		t.Fatal("empty run id")
	}
	saved := map[string]version.Versions{"JORFTEXT000000000001": sampleVersions(t, "JORFTEXT000000000001")}
	if err := sink.Save(ctx, "JORFTEXT000000000001", saved["JORFTEXT000000000001"]); err != nil {
		t.Fatalf("Save: %v", err)
	}
	assertRoundTrip(t, sink, saved)

	latest, err := sink.LatestRun(ctx)
	if err != nil || latest != runID {
		t.Errorf("LatestRun() = %q, %v; want %q", latest, err, runID)
	}
}

func TestSQLiteSink_LoadReadsLatestRun(t *testing.T) {
	ctx := context.Background()
	sink := openMemory(t)
	if _, err := sink.Begin(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if err := sink.Save(ctx, "OLD", sampleVersions(t, "OLD")); err != nil {
		t.Fatal(err)
	}
	if _, err := sink.Begin(ctx, nil); err != nil {
		t.Fatal(err)
	}
	saved := map[string]version.Versions{"NEW": sampleVersions(t, "NEW")}
	if err := sink.Save(ctx, "NEW", saved["NEW"]); err != nil {
		t.Fatal(err)
	}
	assertRoundTrip(t, sink, saved)
}

func TestSQLiteSink_NoRun(t *testing.T) {
	ctx := context.Background()
	sink := openMemory(t)
	if err := sink.Save(ctx, "X", sampleVersions(t, "X")); !errors.Is(err, ErrNoRun) {
		t.Errorf("Save before Begin: expected ErrNoRun, got %v", err)
	}
	if _, err := sink.Load(ctx); !errors.Is(err, ErrNoRun) {
		t.Errorf("Load on empty database: expected ErrNoRun, got %v", err)
	}
}

func sinks(t *testing.T) map[string]Sink {
	t.Helper()
	return map[string]Sink{
		"file":   NewFileSink(t.TempDir()),
		"sqlite": openMemory(t),
	}
}

func TestSink_PartialBeginKeepsOtherOrders(t *testing.T) {
	for name, sink := range sinks(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := sink.Begin(ctx, nil); err != nil {
				t.Fatal(err)
			}
			first := map[string]version.Versions{
				"KEEP":   sampleVersions(t, "KEEP"),
				"REDO":   sampleVersions(t, "REDO"),
				"REDO_A": sampleVersions(t, "REDO_A"),
				"REDONE": sampleVersions(t, "REDONE"),
			}
			for id, versions := range first {
				if err := sink.Save(ctx, id, versions); err != nil {
					t.Fatal(err)
				}
			}

			if _, err := sink.Begin(ctx, []string{"REDO"}); err != nil {
				t.Fatal(err)
			}
			assertRoundTrip(t, sink, map[string]version.Versions{
				"KEEP":   first["KEEP"],
				"REDONE": first["REDONE"],
			})

			if err := sink.Save(ctx, "REDO", first["REDO"]); err != nil {
				t.Fatal(err)
			}
			delete(first, "REDO_A")
			assertRoundTrip(t, sink, first)
		})
	}
}

func TestSink_DiscardRemovesOrderAndSplits(t *testing.T) {
	for name, sink := range sinks(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := sink.Begin(ctx, nil); err != nil {
				t.Fatal(err)
			}
			saved := map[string]version.Versions{
				"X_A": sampleVersions(t, "X_A"),
				"X_E": sampleVersions(t, "X_E"),
				"XY":  sampleVersions(t, "XY"),
			}
			for id, versions := range saved {
				if err := sink.Save(ctx, id, versions); err != nil {
					t.Fatal(err)
				}
			}

			canceled, cancel := context.WithCancel(ctx)
			cancel()
			if err := sink.Discard(canceled, "X"); err != nil {
				t.Fatalf("Discard: %v", err)
			}
			assertRoundTrip(t, sink, map[string]version.Versions{"XY": saved["XY"]})
		})
	}
}

func TestOwned(t *testing.T) {
	for _, tc := range []struct {
		name, id string
		want     bool
	}{
		{"X", "X", true},
		{"X_A", "X", true},
		{"X_no_date_version", "X", true},
		{"XY", "X", false},
		{"Y_X", "X", false},
	} {
		if got := Owned(tc.name, tc.id); got != tc.want {
			t.Errorf("Owned(%q, %q) = %v, want %v", tc.name, tc.id, got, tc.want)
		}
	}
}
