package engine

import (
	"context"
	"time"

	"filehasher/internal/config"
	"filehasher/internal/digest"
	"filehasher/internal/logging"
	"filehasher/internal/source"
)

// Recorder receives hashing counters. *metrics.Manager satisfies it.
type Recorder interface {
	AddBytes(int64)
	IncJobsCompleted(alg string)
	IncJobsFailed(alg string)
	ObserveJobSeconds(float64)
	Write() error
}

// Engine applies configured defaults, logging and metrics around the
// package-level digest functions.
type Engine struct {
	cfg     *config.Config
	log     *logging.Logger
	metrics Recorder
}

func New(cfg *config.Config, log *logging.Logger, m Recorder) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Engine{cfg: cfg, log: log.With("engine"), metrics: m}
}

// Options returns the configured chunk size and progress interval.
func (e *Engine) Options() Options {
	return Options{ChunkSize: e.cfg.Hashing.ChunkSize(), Interval: e.cfg.Hashing.ProgressInterval()}
}

// Digest computes a single digest of src.
func (e *Engine) Digest(ctx context.Context, src source.Source, alg digest.Algorithm, onProgress func(Sample)) (string, error) {
	opts := e.Options()
	opts.OnProgress = onProgress
	start := time.Now()
	job := NewJob(alg, src.Size())
	e.log.Debugf("job %s: %s over %d bytes (chunk %d)", job.ID, alg, job.TotalBytes, opts.ChunkSize)
	sum, err := job.Run(ctx, src, opts)
	e.record(job, time.Since(start))
	return sum, err
}

// Digests computes every algorithm in algs concurrently over src. When algs
// is empty the configured default set is used.
func (e *Engine) Digests(ctx context.Context, src source.Source, algs []digest.Algorithm, onProgress func(Sample), onAggregate func(Aggregate)) (*MultiResult, error) {
	if len(algs) == 0 {
		algs = e.cfg.Hashing.DefaultAlgorithms()
	}
	mo := MultiOptions{Options: e.Options(), Concurrency: e.cfg.Hashing.Concurrency, OnAggregate: onAggregate}
	mo.OnProgress = onProgress
	start := time.Now()
	e.log.Debugf("hashing %d bytes with %d algorithms", src.Size(), len(algs))
	res, err := ComputeMultipleDigests(ctx, src, algs, mo)
	if err != nil {
		e.log.Warnf("all digests failed: %v", err)
		if e.metrics != nil {
			for _, a := range algs {
				e.metrics.IncJobsFailed(a.Key())
			}
			_ = e.metrics.Write()
		}
		return nil, err
	}
	for _, j := range res.Jobs {
		e.record(j, time.Since(start))
	}
	for a, ferr := range res.Failed {
		e.log.Warnf("%s failed: %v", a, ferr)
	}
	return res, nil
}

func (e *Engine) record(j *Job, took time.Duration) {
	switch j.State() {
	case Completed:
		e.log.Debugf("job %s: %s completed in %s", j.ID, j.Algorithm, took.Round(time.Millisecond))
	default:
		e.log.Debugf("job %s: %s %s: %v", j.ID, j.Algorithm, j.State(), j.Err())
	}
	if e.metrics == nil {
		return
	}
	e.metrics.AddBytes(j.BytesProcessed())
	if j.State() == Completed {
		e.metrics.IncJobsCompleted(j.Algorithm.Key())
	} else {
		e.metrics.IncJobsFailed(j.Algorithm.Key())
	}
	e.metrics.ObserveJobSeconds(took.Seconds())
	_ = e.metrics.Write()
}
