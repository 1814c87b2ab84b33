// Package pipeline drives a corpus build: it loads every publishable
// order, generates its versions and hands them to a sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/amcorpus/internal/am"
	"github.com/dshills/amcorpus/internal/logger"
	"github.com/dshills/amcorpus/internal/param"
	"github.com/dshills/amcorpus/internal/source"
	"github.com/dshills/amcorpus/internal/store"
	"github.com/dshills/amcorpus/internal/version"
)

// ErrTimeout is recorded for an order whose processing exceeded
// Options.ItemTimeout.
var ErrTimeout = errors.New("item timed out")

// Options tunes a run.
type Options struct {
	// Workers bounds the number of orders processed concurrently.
	Workers int
	// ItemTimeout bounds the processing of one order; zero disables it.
	ItemTimeout time.Duration
	// IDs restricts the run to these orders when non-empty.
	IDs []string
}

// Failure is an order that produced no version.
type Failure struct {
	AMID string
	Err  error
}

func (f Failure) Error() string { return fmt.Sprintf("%s: %v", f.AMID, f.Err) }

func (f Failure) Unwrap() error { return f.Err }

// Result summarizes a run.
type Result struct {
	RunID string
	// Versions counts the versions saved per order id, after regime split.
	Versions map[string]int
	Failures []Failure
	// Warnings counts parametrization problems that did not stop generation.
	Warnings int
	Duration time.Duration
}

type collector struct {
	mu     sync.Mutex
	result Result
}

func (c *collector) saved(id string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result.Versions[id] = n
}

// failed records err for id and forgets the versions counted for id and
// its regime splits.
func (c *collector) failed(id string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result.Failures = append(c.result.Failures, Failure{AMID: id, Err: err})
	maps.DeleteFunc(c.result.Versions, func(saved string, _ int) bool { return store.Owned(saved, id) })
}

func (c *collector) warned(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result.Warnings += n
}

// Run builds the corpus from src into sink. A missing text aborts the run;
// any other per-order error is recorded in the result and the run goes on.
// The returned Result is never nil.
func Run(ctx context.Context, opts Options, src source.Source, sink store.Sink, log *logger.Logger) (*Result, error) {
	start := time.Now()
	c := &collector{result: Result{Versions: make(map[string]int)}}
	finish := func(err error) (*Result, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		slices.SortFunc(c.result.Failures, func(a, b Failure) int {
			switch {
			case a.AMID < b.AMID:
				return -1
			case a.AMID > b.AMID:
				return 1
			}
			return 0
		})
		c.result.Duration = time.Since(start)
		res := c.result
		return &res, err
	}

	mds, err := src.Metadata(ctx)
	if err != nil {
		return finish(fmt.Errorf("loading metadata: %w", err))
	}
	if len(opts.IDs) > 0 {
		mds = slices.DeleteFunc(mds, func(md am.Metadata) bool { return !slices.Contains(opts.IDs, md.ID) })
	}

	runID, err := sink.Begin(ctx, opts.IDs)
	if err != nil {
		return finish(fmt.Errorf("opening sink: %w", err))
	}
	c.result.RunID = runID
	log.Info("corpus run started", "run_id", runID, "orders", len(mds), "workers", opts.Workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Workers, 1))
	for _, md := range mds {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			return processItem(gctx, opts, md, src, sink, c, log.ForAM(md.ID))
		})
	}
	if err := g.Wait(); err != nil {
		return finish(err)
	}

	log.Info("corpus run finished", "run_id", runID, "orders", len(c.result.Versions), "failures", len(c.result.Failures))
	return finish(nil)
}

// processItem handles one order. It returns an error only when the whole
// run must stop.
func processItem(ctx context.Context, opts Options, md am.Metadata, src source.Source, sink store.Sink, c *collector, log *logger.Logger) error {
	itemCtx := ctx
	if opts.ItemTimeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(ctx, opts.ItemTimeout)
		defer cancel()
	}

	err := buildItem(itemCtx, md, src, sink, c, log)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, source.ErrNotFound):
		log.Error("text not found, aborting run", "error", err)
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("order skipped", "error", ErrTimeout, "timeout", opts.ItemTimeout)
		c.failed(md.ID, fmt.Errorf("%w after %s", ErrTimeout, opts.ItemTimeout))
		return discard(ctx, md.ID, sink, log)
	case errors.Is(err, errSink):
		log.Error("sink failure, aborting run", "error", err)
		return err
	}
	log.Warn("order skipped", "error", err)
	c.failed(md.ID, err)
	return discard(ctx, md.ID, sink, log)
}

// discard drops what a failed order left in the sink, so that a partly
// saved order never reaches the corpus.
func discard(ctx context.Context, id string, sink store.Sink, log *logger.Logger) error {
	if err := sink.Discard(context.WithoutCancel(ctx), id); err != nil {
		log.Error("sink failure, aborting run", "error", err)
		return fmt.Errorf("%w: %w", errSink, err)
	}
	return nil
}

var errSink = errors.New("sink")

func buildItem(ctx context.Context, md am.Metadata, src source.Source, sink store.Sink, c *collector, log *logger.Logger) error {
	text, err := src.Text(ctx, md.ID)
	if err != nil {
		return err
	}
	p, err := src.Parametrization(ctx, md.ID)
	if err != nil {
		return err
	}
	if !p.Empty() && p.Status != param.StatusValidated {
		log.Debug("parametrization not validated, ignored", "status", p.Status)
	}
	p = p.Effective()
	log.Debug("text loaded", "hash", text.Hash, "rules", len(p.Rules()))

	for _, sub := range md.SplitByRegime() {
		sublog := log
		if sub.ID != md.ID {
			sublog = log.With("regime_id", sub.ID)
		}
		problems := version.CheckParametrization(p, sub)
		for _, problem := range problems {
			sublog.Warn("parametrization problem", "error", problem)
		}
		c.warned(len(problems))

		versions, err := generate(ctx, text.AM, p, sub)
		if err != nil {
			return err
		}
		if err := sink.Save(ctx, sub.ID, versions); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %w", errSink, err)
		}
		c.saved(sub.ID, len(versions))
		sublog.Debug("versions saved", "versions", len(versions))
	}
	return nil
}

// generate runs version.Generate, giving up when ctx is done. The
// abandoned computation runs to completion in the background.
func generate(ctx context.Context, base am.ArreteMinisteriel, p param.Parametrization, md am.Metadata) (version.Versions, error) {
	type outcome struct {
		versions version.Versions
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		versions, err := version.Generate(base, p, md)
		done <- outcome{versions, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case o := <-done:
		return o.versions, o.err
	}
}
