package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dshills/amcorpus/internal/am"
	"github.com/dshills/amcorpus/internal/check"
	"github.com/dshills/amcorpus/internal/config"
	"github.com/dshills/amcorpus/internal/diff"
	"github.com/dshills/amcorpus/internal/logger"
	"github.com/dshills/amcorpus/internal/param"
	"github.com/dshills/amcorpus/internal/pipeline"
	"github.com/dshills/amcorpus/internal/profile"
	"github.com/dshills/amcorpus/internal/render"
	"github.com/dshills/amcorpus/internal/review"
	"github.com/dshills/amcorpus/internal/schema"
	"github.com/dshills/amcorpus/internal/source"
	"github.com/dshills/amcorpus/internal/store"
	"github.com/dshills/amcorpus/internal/version"
	"github.com/dshills/amcorpus/internal/watch"
)

// toolVersion is set at build time via -ldflags "-X main.toolVersion=x.y.z".
var toolVersion = "dev"

// Exit codes.
const (
	exitValidation = 2
	exitInput      = 3
	exitGeneration = 4
)

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

// codeError returns an exitErr for the given code.
func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

// app holds what every command needs once configuration is loaded.
type app struct {
	cfg  config.Config
	log  *logger.Logger
	prof *profile.Profile
	out  io.Writer
}

func newApp(cfg config.Config, log *logger.Logger, out io.Writer) (*app, error) {
	prof, err := profile.Get(cfg.Profile)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log, prof: prof, out: out}, nil
}

func main() {
	var (
		a          *app
		configFile string
	)
	v := viper.New()

	root := &cobra.Command{
		Use:           "amcorpus",
		Version:       toolVersion,
		Short:         "Build and validate the parametrized corpus of ministerial orders",
		Long:          "amcorpus generates one version of each ministerial order per applicability case and checks that the versions of every order cover all installations exactly once.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return codeError(exitInput, "%s", err)
			}
			log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
			if err != nil {
				return codeError(exitInput, "%s", err)
			}
			a, err = newApp(cfg, log, cmd.OutOrStdout())
			if err != nil {
				return codeError(exitInput, "%s", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a != nil {
				a.log.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Config file (default .amcorpus.yaml)")
	pf.String("source", "", "Input directory holding metadata.json, texts/ and parametrizations/")
	pf.String("out", "", "Output directory of the file sink")
	pf.String("sink", "", "Corpus sink: file or sqlite")
	pf.String("sqlite", "", "SQLite database path of the sqlite sink")
	pf.String("profile", "", "Corpus rules: envinorma or minimal")
	pf.Int("workers", 0, "Orders processed concurrently")
	pf.Duration("item-timeout", 0, "Processing budget per order (0 disables)")
	pf.String("format", "", "Report format: json or md")
	pf.String("log-level", "", "Log level: debug, info, warn or error")
	for key, flag := range map[string]string{
		"source_dir":   "source",
		"output_dir":   "out",
		"sink":         "sink",
		"sqlite_path":  "sqlite",
		"profile":      "profile",
		"workers":      "workers",
		"item_timeout": "item-timeout",
		"format":       "format",
		"log.level":    "log-level",
	} {
		_ = v.BindPFlag(key, pf.Lookup(flag))
	}

	var gen generateFlags
	generateCmd := &cobra.Command{
		Use:   "generate [id...]",
		Short: "Generate every version of the publishable orders into the sink",
		Long: `Generate every version of the publishable orders into the sink.

Without ids the sink is rebuilt from scratch. With ids only those orders
(and their regime splits) are regenerated; the versions of every other
order are kept as they were.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), a, gen, args)
		},
	}
	generateCmd.Flags().StringVar(&gen.report, "report", "", "Write the report to file instead of stdout")
	generateCmd.Flags().BoolVar(&gen.check, "check", false, "Check the corpus after generation")

	var chk checkFlags
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the corpus held by the sink",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if chk.watch {
				return runWatch(cmd.Context(), a, chk)
			}
			return runCheck(cmd.Context(), a, chk)
		},
	}
	checkCmd.Flags().StringVar(&chk.report, "report", "", "Write the report to file instead of stdout")
	checkCmd.Flags().StringSliceVar(&chk.kinds, "kind", nil, "Only list failures of these kinds (counts are unaffected)")
	checkCmd.Flags().BoolVar(&chk.watch, "watch", false, "Re-run the check whenever the corpus changes")

	var df diffFlags
	diffCmd := &cobra.Command{
		Use:   "diff <id>",
		Short: "Show how each version of an order differs from its default version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd.Context(), a, args[0], df)
		},
	}
	diffCmd.Flags().StringVar(&df.patchOut, "patch-out", "", "Write patches in diff-match-patch format to this file")

	paramsCmd := &cobra.Command{
		Use:   "params <id>",
		Short: "Check the parametrization of an order and list the versions it yields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParams(cmd.Context(), a, args[0])
		},
	}

	root.AddCommand(generateCmd, checkCmd, diffCmd, paramsCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, "Error:", ee.msg)
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openSink returns the configured sink and its release function.
func openSink(ctx context.Context, cfg config.Config) (store.Sink, func(), error) {
	switch cfg.Sink {
	case config.SinkSQLite:
		s, err := store.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return store.NewFileSink(cfg.OutputDir), func() {}, nil
	}
}

// generateFlags holds the parsed flags for the generate command.
type generateFlags struct {
	report string
	check  bool
}

func runGenerate(ctx context.Context, a *app, flags generateFlags, ids []string) error {
	sink, release, err := openSink(ctx, a.cfg)
	if err != nil {
		return codeError(exitInput, "opening sink: %s", err)
	}
	defer release()

	res, err := pipeline.Run(ctx, pipeline.Options{
		Workers:     a.cfg.Workers,
		ItemTimeout: a.cfg.ItemTimeout,
		IDs:         ids,
	}, source.NewDir(a.cfg.SourceDir), sink, a.log)
	if err != nil {
		if errors.Is(err, source.ErrNotFound) || errors.Is(err, am.ErrStructuralInput) {
			return codeError(exitInput, "%s", err)
		}
		return codeError(exitGeneration, "%s", err)
	}

	failures := review.FromRun(res)
	corpus, err := sink.Load(ctx)
	if err != nil {
		return codeError(exitInput, "reading back the corpus: %s", err)
	}
	if flags.check {
		failures = append(failures, review.FromCheck(check.Corpus(corpus, a.prof))...)
	}

	report := a.newReport(failures, corpus)
	report.Meta = schema.Meta{RunID: res.RunID, DurationMS: res.Duration.Milliseconds()}
	if err := a.writeReport(report, flags.report); err != nil {
		return err
	}

	if len(res.Failures) > 0 {
		return codeError(exitGeneration, "%d order(s) could not be generated", len(res.Failures))
	}
	if report.Summary.Verdict != schema.VerdictValid {
		return codeError(exitValidation, "corpus is %s: %d failure(s)", report.Summary.Verdict, report.Summary.FailureCount)
	}
	return nil
}

// checkFlags holds the parsed flags for the check command.
type checkFlags struct {
	report string
	kinds  []string
	watch  bool
}

func runCheck(ctx context.Context, a *app, flags checkFlags) error {
	report, err := a.checkOnce(ctx, flags)
	if err != nil {
		return err
	}
	if report.Summary.Verdict != schema.VerdictValid {
		return codeError(exitValidation, "corpus is %s: %d failure(s)", report.Summary.Verdict, report.Summary.FailureCount)
	}
	return nil
}

// checkOnce loads the corpus from the sink, checks it and writes the report.
func (a *app) checkOnce(ctx context.Context, flags checkFlags) (*schema.Report, error) {
	kinds := make([]schema.Kind, len(flags.kinds))
	for i, k := range flags.kinds {
		kinds[i] = schema.Kind(strings.ToUpper(k))
		if !schema.IsValidKind(kinds[i]) {
			return nil, codeError(exitInput, "unknown failure kind %q", k)
		}
	}

	start := time.Now()
	sink, release, err := openSink(ctx, a.cfg)
	if err != nil {
		return nil, codeError(exitInput, "opening sink: %s", err)
	}
	defer release()
	corpus, err := sink.Load(ctx)
	if err != nil {
		return nil, codeError(exitInput, "loading corpus: %s", err)
	}

	cr := check.Corpus(corpus, a.prof)
	for _, f := range cr.Failures {
		a.log.ForAM(f.AMID).Warn("check failed", "version", f.Version, "error", f.Err)
	}

	report := a.newReport(review.FromCheck(cr), corpus)
	report.Failures = review.FilterByKind(report.Failures, kinds)
	report.Meta = schema.Meta{DurationMS: time.Since(start).Milliseconds()}
	if err := a.writeReport(report, flags.report); err != nil {
		return nil, err
	}
	return report, nil
}

// runWatch checks the corpus, then again after every burst of changes to
// the output directory or the parametrizations, until ctx is done.
func runWatch(ctx context.Context, a *app, flags checkFlags) error {
	if _, err := a.checkOnce(ctx, flags); err != nil {
		return err
	}

	candidates := []string{filepath.Join(a.cfg.SourceDir, "parametrizations"), a.cfg.OutputDir}
	if a.cfg.Sink == config.SinkSQLite {
		candidates[1] = filepath.Dir(a.cfg.SQLitePath)
	}
	var dirs []string
	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			dirs = append(dirs, dir)
		}
	}
	if len(dirs) == 0 {
		return codeError(exitInput, "nothing to watch: %s", strings.Join(candidates, ", "))
	}
	w, err := watch.New(a.cfg.WatchDebounce, dirs...)
	if err != nil {
		return codeError(exitInput, "creating watcher: %s", err)
	}
	if err := w.Start(); err != nil {
		return codeError(exitInput, "watching %s: %s", strings.Join(dirs, ", "), err)
	}
	defer w.Stop()
	a.log.Info("watching for changes", "dirs", dirs)

	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-w.Changes:
			if !ok {
				return nil
			}
			a.log.Info("change detected, checking again", "files", len(batch.Files))
			if _, err := a.checkOnce(ctx, flags); err != nil {
				a.log.Error("check failed", "error", err)
			}
		}
	}
}

// diffFlags holds the parsed flags for the diff command.
type diffFlags struct {
	patchOut string
}

func runDiff(ctx context.Context, a *app, id string, flags diffFlags) error {
	sink, release, err := openSink(ctx, a.cfg)
	if err != nil {
		return codeError(exitInput, "opening sink: %s", err)
	}
	defer release()
	corpus, err := sink.Load(ctx)
	if err != nil {
		return codeError(exitInput, "loading corpus: %s", err)
	}

	var (
		base     *am.ArreteMinisteriel
		versions []am.ArreteMinisteriel
	)
	for _, key := range slices.Sorted(maps.Keys(corpus)) {
		text := corpus[key]
		if text.ID != id || text.VersionDescriptor == nil {
			continue
		}
		if version.IsDefault(*text.VersionDescriptor) && base == nil {
			base = &text
			continue
		}
		versions = append(versions, text)
	}
	if base == nil {
		return codeError(exitInput, "no default version of %s in the corpus", id)
	}

	var patches strings.Builder
	for _, v := range versions {
		name := v.VersionDescriptor.Name()
		d := diff.Compare(*base, v)
		fmt.Fprintf(a.out, "## %s (%d modifications)\n", name, d.Modifications())
		if !d.Equal() {
			fmt.Fprint(a.out, d.String())
		}
		fmt.Fprintln(a.out)
		patches.WriteString(diff.Patch(id+"_"+name, *base, v))
	}

	if flags.patchOut != "" {
		if err := os.WriteFile(flags.patchOut, []byte(patches.String()), 0o644); err != nil {
			// Patches are advisory.
			a.log.Warn("patch write failed", "error", err)
		}
	}
	return nil
}

func runParams(ctx context.Context, a *app, id string) error {
	src := source.NewDir(a.cfg.SourceDir)
	mds, err := src.Metadata(ctx)
	if err != nil {
		return codeError(exitInput, "loading metadata: %s", err)
	}
	i := slices.IndexFunc(mds, func(md am.Metadata) bool { return md.ID == id })
	if i < 0 {
		return codeError(exitInput, "%s is not a publishable order", id)
	}
	text, err := src.Text(ctx, id)
	if err != nil {
		return codeError(exitInput, "%s", err)
	}
	p, err := src.Parametrization(ctx, id)
	if err != nil {
		return codeError(exitInput, "%s", err)
	}
	fmt.Fprintf(a.out, "%s: status %q, %d rule(s)\n", id, p.Status, len(p.Rules()))

	problems := 0
	for _, md := range mds[i].SplitByRegime() {
		for _, problem := range version.CheckParametrization(p, md) {
			problems++
			fmt.Fprintf(a.out, "PROBLEM %s: %s\n", md.ID, problem)
		}
		versions, err := version.Generate(text.AM, p, md)
		if err != nil {
			return codeError(exitGeneration, "%s", err)
		}
		if err := version.ValidateMatrix(versions.Descriptors()); err != nil {
			problems++
			fmt.Fprintf(a.out, "PROBLEM %s: %s\n", md.ID, err)
		}
		for _, v := range versions {
			marker := ""
			if version.IsDefault(v.Descriptor) {
				marker = " (default)"
			}
			if !v.Descriptor.Applicable {
				marker += " (not applicable)"
			}
			fmt.Fprintf(a.out, "%s_%s%s\n", md.ID, v.Name(), marker)
		}
	}
	if p.Status != param.StatusValidated && !p.Empty() {
		fmt.Fprintf(a.out, "note: the parametrization is not validated and is ignored by generate\n")
	}
	if problems > 0 {
		return codeError(exitValidation, "%d problem(s) in the parametrization of %s", problems, id)
	}
	return nil
}

func (a *app) newReport(failures []schema.Failure, corpus map[string]am.ArreteMinisteriel) *schema.Report {
	entries := review.Entries(corpus)
	return &schema.Report{
		Tool:    "amcorpus",
		Version: toolVersion,
		Input: schema.Input{
			Source:  a.cfg.SourceDir,
			Output:  a.cfg.OutputDir,
			Sink:    a.cfg.Sink,
			Profile: a.prof.Name,
		},
		Summary:  review.Summarize(failures, entries),
		Failures: failures,
		Versions: entries,
	}
}

// writeReport renders report in the configured format to path, or to the
// app output when path is empty.
func (a *app) writeReport(report *schema.Report, path string) error {
	renderer, err := render.NewRenderer(a.cfg.Format)
	if err != nil {
		return codeError(exitInput, "invalid format: %s", err)
	}
	out, err := renderer.Render(report)
	if err != nil {
		return codeError(exitInput, "rendering output: %s", err)
	}
	if path != "" {
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return codeError(exitInput, "writing report: %s", err)
		}
		return nil
	}
	if _, err := a.out.Write(out); err != nil {
		return codeError(exitInput, "writing output: %s", err)
	}
	// Ensure output ends with a newline for terminal friendliness.
	if len(out) > 0 && out[len(out)-1] != '\n' {
		fmt.Fprintln(a.out)
	}
	return nil
}
