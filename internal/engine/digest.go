package engine

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"runtime"
	"time"

	"filehasher/internal/digest"
	"filehasher/internal/source"
)

// DefaultChunkSize is the read size of the streaming loop (1 MiB).
const DefaultChunkSize = 1 << 20

// Options tunes a digest computation. The zero value uses the defaults.
type Options struct {
	// ChunkSize is the number of bytes read and hashed per step.
	ChunkSize int
	// Interval is the minimum spacing between OnProgress calls. The
	// terminal sample is always delivered.
	Interval time.Duration
	// OnProgress, if set, receives samples from the hashing goroutine.
	OnProgress func(Sample)
	// Now overrides the clock used for timing samples.
	Now func() time.Time
}

func (o Options) withDefaults() (Options, error) {
	if o.ChunkSize < 0 {
		return o, fmt.Errorf("chunk size must be positive, got %d", o.ChunkSize)
	}
	if o.ChunkSize == 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o, nil
}

// ComputeDigest hashes src with alg and returns the lowercase hex digest.
// Inputs no larger than one chunk are hashed with a single read; larger
// inputs are streamed chunk by chunk in increasing offset order.
func ComputeDigest(ctx context.Context, src source.Source, alg digest.Algorithm, opts Options) (string, error) {
	if src == nil {
		return "", errors.New("nil source")
	}
	return NewJob(alg, src.Size()).Run(ctx, src, opts)
}

// Run drives j to a terminal state. A job can only be run once.
func (j *Job) Run(ctx context.Context, src source.Source, opts Options) (string, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return "", err
	}
	start := opts.Now()
	if err := j.start(start); err != nil {
		return "", err
	}
	h, err := j.Algorithm.New()
	if err != nil {
		j.finish(Failed, "", err)
		return "", err
	}
	total := j.TotalBytes
	th := NewThrottle(j.Algorithm, opts.Interval, opts.Now, start)

	chunk := int64(opts.ChunkSize)
	bufLen := chunk
	if total < bufLen {
		bufLen = total
	}
	buf := make([]byte, bufLen)

	for off := int64(0); off < total; {
		if err := ctx.Err(); err != nil {
			j.finish(Cancelled, "", err)
			return "", err
		}
		n := chunk
		if rem := total - off; rem < n {
			n = rem
		}
		p, err := source.ReadRange(src, buf, off, int(n))
		if err != nil {
			rerr := &digest.ReadError{Offset: off, Length: int(n), Err: err}
			j.finish(Failed, "", rerr)
			return "", rerr
		}
		if _, err := h.Write(p); err != nil {
			ferr := &digest.Failure{Algorithm: j.Algorithm, Err: err}
			j.finish(Failed, "", ferr)
			return "", ferr
		}
		off += n
		j.advance(off)
		if off < total && opts.OnProgress != nil {
			if s, ok := th.Observe(off, total); ok {
				opts.OnProgress(s)
			}
		}
		if off < total {
			runtime.Gosched()
		}
	}
	if err := ctx.Err(); err != nil {
		j.finish(Cancelled, "", err)
		return "", err
	}

	sum := hex.EncodeToString(h.Sum(nil))
	if len(sum) != j.Algorithm.HexLen() {
		ferr := &digest.Failure{Algorithm: j.Algorithm, Err: fmt.Errorf("digest length %d, want %d", len(sum), j.Algorithm.HexLen())}
		j.finish(Failed, "", ferr)
		return "", ferr
	}
	j.finish(Completed, sum, nil)
	if opts.OnProgress != nil {
		opts.OnProgress(th.Final(total))
	}
	return sum, nil
}
