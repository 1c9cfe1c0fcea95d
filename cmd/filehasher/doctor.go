package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"filehasher/internal/config"
	"filehasher/internal/digest"
	"filehasher/internal/engine"
	"filehasher/internal/lockfile"
	"filehasher/internal/source"
	"filehasher/internal/state"
	"filehasher/internal/system"
)

// Check represents a single diagnostic check
type Check struct {
	Name     string
	Run      func(ctx context.Context) CheckResult
	Critical bool // If true, failure means hashing or the ledger won't work
}

// CheckResult represents the result of a diagnostic check
type CheckResult struct {
	Passed     bool
	Warning    bool // Passed but with warnings
	Message    string
	Suggestion string
}

// knownABC holds digests of "abc" for the self-test.
var knownABC = map[digest.Algorithm]string{
	digest.MD5:      "900150983cd24fb0d6963f7d28e17f72",
	digest.SHA1:     "a9993e364706816aba3e25717850c26c9cd0d89d",
	digest.SHA256:   "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
	digest.SHA384:   "cb00753f45a35e8bb5a03d699ac65007272c32ab0eded1631a8b605a43ff5bed8086072ba1e7cc2358baeca134c825a7",
	digest.SHA512:   "ddaf35a193617abacc417349ae20413112e6fa4e89a97ea20a9eeee64b55d39a2192992a274fc1a836ba3c23a3feebbd454d4423643ce80e2a9ac94fa54ca49f",
	digest.SHA3_256: "3a985da74fe225b2045c172d6bd390bd855f086e3e9d525b46bfe24511431532",
	digest.BLAKE3:   "6437b3ac38465133ffb63b75273a8db548c558465d79db03fd359c6cd5bd9d85",
}

func handleDoctor(ctx context.Context, args []string) error {
	fs, g := newFlagSet("doctor")
	verbose := fs.BoolP("verbose", "v", false, "Show detailed output for each check")
	prune := fs.Bool("prune", false, "remove ledger rows whose files no longer exist")
	vacuum := fs.Bool("vacuum", false, "compact the ledger database")
	backup := fs.String("backup", "", "write a copy of the ledger to this path")
	if ok, err := parse(fs, args); !ok || err != nil {
		return err
	}

	cfgPath := config.ResolvePath(g.config)
	cfg, log, cfgErr := g.load()
	var st *state.DB

	fmt.Fprintln(stdout, "Running filehasher diagnostics...")
	fmt.Fprintln(stdout)

	checks := []Check{
		{
			Name:     "Config loads",
			Critical: true,
			Run: func(ctx context.Context) CheckResult {
				if cfgErr != nil {
					return CheckResult{Message: "Config could not be loaded", Suggestion: fmt.Sprintf("Fix config errors:\n%v\n\nRun 'filehasher config validate' for details", cfgErr)}
				}
				if _, err := os.Stat(cfgPath); err != nil {
					return CheckResult{Passed: true, Warning: true, Message: "No config file; using built-in defaults", Suggestion: "Create " + cfgPath + " to enable the ledger (general.data_root)"}
				}
				return CheckResult{Passed: true, Message: "Loaded " + cfgPath}
			},
		},
		{
			Name:     "Algorithms self-test",
			Critical: true,
			Run: func(ctx context.Context) CheckResult {
				if cfg == nil {
					return CheckResult{Message: "Skipped: no config"}
				}
				eng := engine.New(cfg, log, nil)
				res, err := eng.Digests(ctx, source.FromText("abc"), digest.All(), nil, nil)
				if err != nil {
					return CheckResult{Message: err.Error()}
				}
				var bad []string
				for _, a := range digest.All() {
					want, ok := knownABC[a]
					if !ok {
						h, _ := a.New()
						h.Write([]byte("abc"))
						want = fmt.Sprintf("%x", h.Sum(nil))
					}
					if res.Digests[a] != want {
						bad = append(bad, a.String())
					}
				}
				if sum, err := eng.Digest(ctx, source.FromText("abc"), digest.SHA256, nil); err != nil || sum != knownABC[digest.SHA256] {
					bad = append(bad, digest.SHA256.String()+" (single stream)")
				}
				if len(bad) > 0 {
					return CheckResult{Message: "Wrong digests from: " + strings.Join(bad, ", "), Suggestion: "This build is broken; reinstall filehasher"}
				}
				return CheckResult{Passed: true, Message: fmt.Sprintf("%d algorithms OK, single stream agrees (chunk %s, progress every %s)", len(digest.All()), humanize.IBytes(uint64(cfg.Hashing.ChunkSize())), cfg.Hashing.ProgressInterval())}
			},
		},
		{
			Name: "Data root writable",
			Run: func(ctx context.Context) CheckResult {
				if cfg == nil || cfg.General.DataRoot == "" {
					return CheckResult{Passed: true, Warning: true, Message: "general.data_root not set; ledger disabled", Suggestion: "Set general.data_root to record digests for history and verify --all"}
				}
				if err := os.MkdirAll(cfg.General.DataRoot, 0o755); err != nil {
					return CheckResult{Message: err.Error(), Suggestion: "Check permissions on " + cfg.General.DataRoot}
				}
				probe := filepath.Join(cfg.General.DataRoot, ".doctor-probe")
				if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
					return CheckResult{Message: "Cannot write: " + err.Error(), Suggestion: "chmod u+w " + cfg.General.DataRoot}
				}
				_ = os.Remove(probe)
				low, u, err := system.LowSpace(cfg.General.DataRoot, 95)
				if err != nil {
					return CheckResult{Passed: true, Warning: true, Message: "Writable; free space unknown: " + err.Error()}
				}
				msg := fmt.Sprintf("Writable, %s available", humanize.IBytes(u.Available))
				if low {
					return CheckResult{Passed: true, Warning: true, Message: msg, Suggestion: fmt.Sprintf("Filesystem is %.0f%% full; the ledger may fail to grow", u.UsedPercent())}
				}
				return CheckResult{Passed: true, Message: msg}
			},
		},
		{
			Name:     "Ledger integrity",
			Critical: true,
			Run: func(ctx context.Context) CheckResult {
				if cfg == nil || cfg.General.DataRoot == "" {
					return CheckResult{Passed: true, Message: "Skipped: ledger disabled"}
				}
				var err error
				if st, err = openLedger(cfg); err != nil {
					return CheckResult{Message: err.Error()}
				}
				if err := st.CheckIntegrity(); err != nil {
					return CheckResult{Message: err.Error(), Suggestion: "filehasher doctor --backup state.db.bak, then remove state.db"}
				}
				stats, err := st.GetStats()
				if err != nil {
					return CheckResult{Message: err.Error()}
				}
				return CheckResult{Passed: true, Message: fmt.Sprintf("%d digests for %d files (%s); %d verified, %d mismatched", stats.Rows, stats.Files, humanize.IBytes(uint64(stats.DatabaseSize)), stats.Verified, stats.Mismatched)}
			},
		},
		{
			Name: "Ledger files present",
			Run: func(ctx context.Context) CheckResult {
				if st == nil {
					return CheckResult{Passed: true, Message: "Skipped: ledger not open"}
				}
				missing, err := st.FindMissing()
				if err != nil {
					return CheckResult{Message: err.Error()}
				}
				if len(missing) == 0 {
					return CheckResult{Passed: true, Message: "Every recorded file exists"}
				}
				return CheckResult{Passed: true, Warning: true, Message: fmt.Sprintf("%d recorded file(s) are gone", len(missing)), Suggestion: "filehasher doctor --prune"}
			},
		},
		{
			Name: "Metrics textfile",
			Run: func(ctx context.Context) CheckResult {
				if cfg == nil || !cfg.Metrics.PrometheusTextfile.Enabled {
					return CheckResult{Passed: true, Message: "Disabled"}
				}
				dir := filepath.Dir(cfg.Metrics.PrometheusTextfile.Path)
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return CheckResult{Message: err.Error(), Suggestion: "Fix metrics.prometheus_textfile.path"}
				}
				return CheckResult{Passed: true, Message: "Writing to " + cfg.Metrics.PrometheusTextfile.Path}
			},
		},
	}
	defer func() { _ = st.Close() }()

	passedCount, failedCount, warningCount := 0, 0, 0
	for _, check := range checks {
		start := time.Now()
		result := check.Run(ctx)
		duration := time.Since(start)

		symbol := "✓"
		if !result.Passed {
			symbol = "✗"
			if check.Critical {
				failedCount++
			} else {
				warningCount++
			}
		} else if result.Warning {
			symbol = "⚠"
			warningCount++
			passedCount++
		} else {
			passedCount++
		}

		fmt.Fprintf(stdout, "%s %s", symbol, check.Name)
		if *verbose {
			fmt.Fprintf(stdout, " (%.2fs)", duration.Seconds())
		}
		fmt.Fprintln(stdout)
		if result.Message != "" {
			fmt.Fprintf(stdout, "  %s\n", result.Message)
		}
		if result.Suggestion != "" {
			for _, line := range strings.Split(result.Suggestion, "\n") {
				fmt.Fprintf(stdout, "  → %s\n", line)
			}
		}
	}

	if *prune || *vacuum || *backup != "" {
		if st == nil {
			return fmt.Errorf("ledger maintenance needs general.data_root set")
		}
		if err := maintain(st, cfg, *prune, *vacuum, *backup); err != nil {
			return err
		}
	}

	fmt.Fprintf(stdout, "\nDiagnostic Summary:\n")
	fmt.Fprintf(stdout, "  Total checks: %d\n", len(checks))
	fmt.Fprintf(stdout, "  Passed:       %d\n", passedCount)
	fmt.Fprintf(stdout, "  Warnings:     %d\n", warningCount)
	fmt.Fprintf(stdout, "  Failed:       %d\n", failedCount)
	if failedCount > 0 {
		return fmt.Errorf("%d checks failed", failedCount)
	}
	return nil
}

// maintain runs ledger maintenance under the ledger lock.
func maintain(st *state.DB, cfg *config.Config, prune, vacuum bool, backup string) error {
	lock, err := lockfile.Acquire(filepath.Join(cfg.General.DataRoot, "ledger.lock"))
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()
	if prune {
		n, err := st.PruneMissing()
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "\nPruned %d row(s) for missing files\n", n)
	}
	if vacuum {
		if err := st.Vacuum(); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "Ledger vacuumed")
	}
	if backup != "" {
		if err := st.Backup(backup); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Ledger backed up to %s\n", backup)
	}
	return nil
}
