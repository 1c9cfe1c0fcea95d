package engine

import (
	"time"

	"filehasher/internal/digest"
)

// DefaultInterval is the minimum spacing between progress samples.
const DefaultInterval = 100 * time.Millisecond

// Sample is a point-in-time progress snapshot of one job.
type Sample struct {
	Algorithm      digest.Algorithm
	BytesProcessed int64
	TotalBytes     int64
	Percent        float64
	// Speed is the throughput since the previous sample, in bytes/s.
	Speed float64
	ETA   time.Duration
}

// Done reports whether the sample covers the whole input.
func (s Sample) Done() bool { return s.BytesProcessed >= s.TotalBytes }

// Aggregate is the combined progress of a multi-algorithm run.
type Aggregate struct {
	Percent float64
	Done    int
	Jobs    int
}

// Percent returns 100*processed/total clamped to [0,100]. An empty input
// reports 0 until it is done, then 100.
func Percent(processed, total int64, done bool) float64 {
	if total <= 0 {
		if done {
			return 100
		}
		return 0
	}
	p := float64(processed) * 100 / float64(total)
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// gate admits at most one event per interval.
type gate struct {
	interval time.Duration
	now      func() time.Time
	last     time.Time
}

func (g *gate) allow() (time.Time, bool) {
	t := g.now()
	if t.Sub(g.last) < g.interval {
		return t, false
	}
	g.last = t
	return t, true
}

// Throttle turns a stream of byte counts into rate-limited Samples.
type Throttle struct {
	alg       digest.Algorithm
	g         gate
	start     time.Time
	lastBytes int64
}

// NewThrottle returns a Throttle whose first sample is due interval after
// start.
func NewThrottle(alg digest.Algorithm, interval time.Duration, now func() time.Time, start time.Time) *Throttle {
	if now == nil {
		now = time.Now
	}
	return &Throttle{alg: alg, g: gate{interval: interval, now: now, last: start}, start: start}
}

// Observe returns a sample and true when the interval has elapsed since the
// previous sample.
func (t *Throttle) Observe(processed, total int64) (Sample, bool) {
	prev := t.g.last
	now, ok := t.g.allow()
	if !ok {
		return Sample{}, false
	}
	return t.sample(processed, total, prev, now, false), true
}

// Final returns the terminal sample regardless of the interval.
func (t *Throttle) Final(total int64) Sample {
	prev := t.g.last
	now := t.g.now()
	t.g.last = now
	return t.sample(total, total, prev, now, true)
}

func (t *Throttle) sample(processed, total int64, prev, now time.Time, done bool) Sample {
	var speed float64
	if dt := now.Sub(prev).Seconds(); dt > 0 {
		speed = float64(processed-t.lastBytes) / dt
	} else if el := now.Sub(t.start).Seconds(); el > 0 {
		speed = float64(processed) / el
	}
	t.lastBytes = processed
	var eta time.Duration
	if rem := total - processed; rem > 0 && speed > 0 {
		eta = time.Duration(float64(rem) / speed * float64(time.Second))
	}
	return Sample{
		Algorithm:      t.alg,
		BytesProcessed: processed,
		TotalBytes:     total,
		Percent:        Percent(processed, total, done),
		Speed:          speed,
		ETA:            eta,
	}
}
