package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"filehasher/internal/digest"
	"filehasher/internal/engine"
	"filehasher/internal/report"
)

// lineProgress prints a single-line progress bar with throughput and ETA
// per input. Samples arrive from several jobs at once.
type lineProgress struct {
	mu    sync.Mutex
	w     io.Writer
	width int
	files map[string]map[digest.Algorithm]engine.Sample
}

func newLineProgress(w io.Writer, width int) *lineProgress {
	return &lineProgress{w: w, width: width, files: map[string]map[digest.Algorithm]engine.Sample{}}
}

func (p *lineProgress) sample(name string) func(engine.Sample) {
	return func(s engine.Sample) {
		p.mu.Lock()
		defer p.mu.Unlock()
		m := p.files[name]
		if m == nil {
			m = map[digest.Algorithm]engine.Sample{}
			p.files[name] = m
		}
		m[s.Algorithm] = s
	}
}

// aggregate redraws the line for name. The slowest job sets the reported
// rate and ETA since the input is done only when it is.
func (p *lineProgress) aggregate(name string) func(engine.Aggregate) {
	return func(a engine.Aggregate) {
		p.mu.Lock()
		defer p.mu.Unlock()
		var processed, total int64 = -1, 0
		var rate float64
		var eta time.Duration
		for _, s := range p.files[name] {
			if processed < 0 || s.BytesProcessed < processed {
				processed = s.BytesProcessed
				rate = s.Speed
			}
			total = s.TotalBytes
			if s.ETA > eta {
				eta = s.ETA
			}
		}
		if processed < 0 {
			processed = 0
		}
		etaStr := "-"
		if eta > 0 && a.Done < a.Jobs {
			etaStr = report.FormatDuration(eta)
		}
		fmt.Fprintf(p.w, "\r%s %6.2f%%  %10s  ETA %-6s  %s/%s  %s",
			report.Bar(a.Percent, p.width),
			a.Percent,
			report.FormatSpeed(rate),
			etaStr,
			report.FormatBytes(processed),
			report.FormatBytes(max64(total, processed)),
			name,
		)
		if a.Done == a.Jobs {
			fmt.Fprint(p.w, "\n")
			delete(p.files, name)
		}
	}
}

func max64(a, b int64) int64 { if a > b { return a }; return b }
