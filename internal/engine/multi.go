package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"filehasher/internal/digest"
	"filehasher/internal/source"
)

// MultiOptions tunes ComputeMultipleDigests. OnProgress in the embedded
// Options receives per-job samples (tagged with Sample.Algorithm) and may be
// called from several goroutines at once.
type MultiOptions struct {
	Options
	// Concurrency bounds the number of jobs hashing at once; 0 runs all
	// of them together.
	Concurrency int
	// OnAggregate receives the mean percentage across jobs at the same
	// bounded rate as per-job samples. Calls are serialized.
	OnAggregate func(Aggregate)
}

// MultiResult holds the outcome of every requested algorithm.
type MultiResult struct {
	Digests map[digest.Algorithm]string
	Failed  map[digest.Algorithm]error
	Jobs    []*Job
}

// Complete reports whether every requested algorithm succeeded.
func (r *MultiResult) Complete() bool { return len(r.Failed) == 0 }

// ComputeMultipleDigests runs one job per distinct algorithm over the same
// input, concurrently. A failing job does not stop its siblings. An error
// is returned only when every job failed; otherwise callers inspect
// MultiResult.Failed.
func ComputeMultipleDigests(ctx context.Context, src source.Source, algs []digest.Algorithm, opts MultiOptions) (*MultiResult, error) {
	if src == nil {
		return nil, errors.New("nil source")
	}
	algs = dedupe(algs)
	if len(algs) == 0 {
		return nil, errors.New("no algorithms requested")
	}
	base, err := opts.Options.withDefaults()
	if err != nil {
		return nil, err
	}

	total := src.Size()
	jobs := make([]*Job, len(algs))
	for i, a := range algs {
		jobs[i] = NewJob(a, total)
	}
	agg := newAggregator(len(jobs), base, opts.OnAggregate)

	var g errgroup.Group
	if opts.Concurrency > 0 {
		g.SetLimit(opts.Concurrency)
	}
	for i, j := range jobs {
		i, j := i, j
		jo := base
		jo.OnProgress = func(s Sample) {
			if opts.OnProgress != nil {
				opts.OnProgress(s)
			}
			agg.update(i, s.Percent)
		}
		g.Go(func() error {
			_, _ = j.Run(ctx, src, jo)
			agg.finish(i)
			return nil
		})
	}
	_ = g.Wait()

	res := &MultiResult{
		Digests: make(map[digest.Algorithm]string, len(jobs)),
		Failed:  make(map[digest.Algorithm]error),
		Jobs:    jobs,
	}
	var errs []error
	for _, j := range jobs {
		if j.State() == Completed {
			res.Digests[j.Algorithm] = j.Result()
			continue
		}
		err := j.Err()
		if err == nil {
			err = fmt.Errorf("job ended in state %s", j.State())
		}
		res.Failed[j.Algorithm] = err
		errs = append(errs, fmt.Errorf("%s: %w", j.Algorithm, err))
	}
	if len(res.Digests) == 0 {
		return nil, fmt.Errorf("all %d digests failed: %w", len(jobs), errors.Join(errs...))
	}
	return res, nil
}

func dedupe(algs []digest.Algorithm) []digest.Algorithm {
	seen := make(map[digest.Algorithm]bool, len(algs))
	out := make([]digest.Algorithm, 0, len(algs))
	for _, a := range algs {
		if seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}

// aggregator averages per-job percentages. A job that reaches a terminal
// state counts as 100% so the aggregate always ends at 100.
type aggregator struct {
	mu      sync.Mutex
	pct     []float64
	done    []bool
	ndone   int
	g       gate
	emit    func(Aggregate)
	emitted bool
}

func newAggregator(n int, o Options, emit func(Aggregate)) *aggregator {
	return &aggregator{
		pct:  make([]float64, n),
		done: make([]bool, n),
		g:    gate{interval: o.Interval, now: o.Now, last: o.Now()},
		emit: emit,
	}
}

func (a *aggregator) update(i int, pct float64) {
	if a.emit == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done[i] || pct < a.pct[i] {
		return
	}
	a.pct[i] = pct
	if a.ndone == len(a.pct) {
		return
	}
	if _, ok := a.g.allow(); ok {
		a.emit(a.snapshot())
	}
}

func (a *aggregator) finish(i int) {
	if a.emit == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done[i] {
		return
	}
	a.done[i] = true
	a.pct[i] = 100
	a.ndone++
	if a.ndone == len(a.pct) && !a.emitted {
		a.emitted = true
		a.emit(a.snapshot())
	}
}

func (a *aggregator) snapshot() Aggregate {
	var sum float64
	for _, p := range a.pct {
		sum += p
	}
	return Aggregate{Percent: sum / float64(len(a.pct)), Done: a.ndone, Jobs: len(a.pct)}
}
