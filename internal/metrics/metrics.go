package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"filehasher/internal/config"
)

type Manager struct {
	path string
	mu   sync.Mutex
	// counters
	bytesTotal    int64
	jobsCompleted map[string]int64
	jobsFailed    map[string]int64
	lastJobSec    float64
}

// New returns nil when the textfile exporter is disabled; every method is
// nil-safe so callers never need to check.
func New(cfg *config.Config) *Manager {
	if cfg == nil || !cfg.Metrics.PrometheusTextfile.Enabled || cfg.Metrics.PrometheusTextfile.Path == "" {
		return nil
	}
	p := cfg.Metrics.PrometheusTextfile.Path
	_ = os.MkdirAll(filepath.Dir(p), 0o755)
	return &Manager{path: p, jobsCompleted: map[string]int64{}, jobsFailed: map[string]int64{}}
}

func (m *Manager) AddBytes(n int64) {
	if m == nil {
		return
	}
	m.mu.Lock(); m.bytesTotal += n; m.mu.Unlock()
}

func (m *Manager) IncJobsCompleted(alg string) {
	if m == nil {
		return
	}
	m.mu.Lock(); m.jobsCompleted[alg]++; m.mu.Unlock()
}

func (m *Manager) IncJobsFailed(alg string) {
	if m == nil {
		return
	}
	m.mu.Lock(); m.jobsFailed[alg]++; m.mu.Unlock()
}

func (m *Manager) ObserveJobSeconds(sec float64) {
	if m == nil {
		return
	}
	m.mu.Lock(); m.lastJobSec = sec; m.mu.Unlock()
}

func (m *Manager) Write() error {
	if m == nil {
		return nil
	}
	m.mu.Lock(); defer m.mu.Unlock()
	f, err := os.CreateTemp(filepath.Dir(m.path), ".metrics.tmp.*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	// Prometheus textfile format
	fmt.Fprintf(f, "# HELP filehasher_bytes_hashed_total Total bytes fed to digest functions.\n")
	fmt.Fprintf(f, "# TYPE filehasher_bytes_hashed_total counter\n")
	fmt.Fprintf(f, "filehasher_bytes_hashed_total %d\n", m.bytesTotal)

	fmt.Fprintf(f, "# HELP filehasher_jobs_completed_total Digest jobs that completed, by algorithm.\n")
	fmt.Fprintf(f, "# TYPE filehasher_jobs_completed_total counter\n")
	for _, k := range sortedKeys(m.jobsCompleted) {
		fmt.Fprintf(f, "filehasher_jobs_completed_total{algorithm=%q} %d\n", k, m.jobsCompleted[k])
	}

	fmt.Fprintf(f, "# HELP filehasher_jobs_failed_total Digest jobs that failed or were cancelled, by algorithm.\n")
	fmt.Fprintf(f, "# TYPE filehasher_jobs_failed_total counter\n")
	for _, k := range sortedKeys(m.jobsFailed) {
		fmt.Fprintf(f, "filehasher_jobs_failed_total{algorithm=%q} %d\n", k, m.jobsFailed[k])
	}

	fmt.Fprintf(f, "# HELP filehasher_last_job_seconds Duration of the last hashed input in seconds.\n")
	fmt.Fprintf(f, "# TYPE filehasher_last_job_seconds gauge\n")
	fmt.Fprintf(f, "filehasher_last_job_seconds %.6f\n", m.lastJobSec)

	fmt.Fprintf(f, "# HELP filehasher_metrics_timestamp_seconds UNIX timestamp when this file was written.\n")
	fmt.Fprintf(f, "# TYPE filehasher_metrics_timestamp_seconds gauge\n")
	fmt.Fprintf(f, "filehasher_metrics_timestamp_seconds %d\n", time.Now().Unix())

	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), m.path)
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
