package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filehasher/internal/config"
)

func TestDisabledManagerIsNil(t *testing.T) {
	m := New(config.Default())
	if m != nil {
		t.Fatal("expected nil manager when disabled")
	}
	m.AddBytes(10)
	m.IncJobsCompleted("sha256")
	if err := m.Write(); err != nil {
		t.Fatalf("nil Write: %v", err)
	}
}

func TestWriteTextfile(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.PrometheusTextfile.Enabled = true
	cfg.Metrics.PrometheusTextfile.Path = filepath.Join(t.TempDir(), "prom", "filehasher.prom")
	m := New(cfg)
	m.AddBytes(2048)
	m.IncJobsCompleted("sha256")
	m.IncJobsCompleted("sha256")
	m.IncJobsFailed("md5")
	m.ObserveJobSeconds(1.5)
	if err := m.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}
	b, err := os.ReadFile(cfg.Metrics.PrometheusTextfile.Path)
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)
	for _, want := range []string{
		"filehasher_bytes_hashed_total 2048",
		`filehasher_jobs_completed_total{algorithm="sha256"} 2`,
		`filehasher_jobs_failed_total{algorithm="md5"} 1`,
		"filehasher_last_job_seconds 1.500000",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("missing %q in:\n%s", want, s)
		}
	}
}
