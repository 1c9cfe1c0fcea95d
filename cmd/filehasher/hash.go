package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"filehasher/internal/config"
	"filehasher/internal/digest"
	"filehasher/internal/engine"
	ferrors "filehasher/internal/errors"
	"filehasher/internal/logging"
	"filehasher/internal/manifest"
	"filehasher/internal/metrics"
	"filehasher/internal/report"
	"filehasher/internal/scanner"
	"filehasher/internal/source"
	"filehasher/internal/state"
	"filehasher/internal/tui"
	"filehasher/internal/util"
)

// input is one thing to hash: a file on disk or literal text.
type input struct {
	name     string
	path     string // absolute; empty for text
	mimeType string
	src      source.Source
	mtime    time.Time
	close    func() error
}

func handleHash(ctx context.Context, args []string) error {
	fs, g := newFlagSet("hash")
	algNames := fs.StringSliceP("algorithms", "a", nil, "algorithms to compute (comma separated; default: hashing.algorithms)")
	text := fs.StringP("text", "t", "", "hash this text instead of files")
	jsonOut := fs.Bool("json", false, "print results as JSON")
	lines := fs.Bool("lines", false, "print coreutils-style checksum lines")
	useTUI := fs.Bool("tui", false, "show live progress in a terminal UI")
	sidecar := fs.Bool("sidecar", false, "write <file>.<alg> checksum files (default: general.write_sidecars)")
	noRecord := fs.Bool("no-record", false, "do not record results in the ledger")
	quiet := fs.BoolP("quiet", "q", false, "suppress progress output")
	recursive := fs.BoolP("recursive", "r", false, "hash the files below directory arguments")
	exts := fs.StringSlice("ext", nil, "with --recursive, only hash these extensions")
	hidden := fs.Bool("hidden", false, "with --recursive, include dot files and directories")
	manifestOut := fs.String("manifest", "", "also write the results to this YAML manifest")
	changedOnly := fs.Bool("changed-only", false, "with --recursive, skip files the ledger already covers unchanged")
	if ok, err := parse(fs, args); !ok || err != nil {
		return err
	}
	cfg, log, err := g.load()
	if err != nil {
		return err
	}
	algs, err := digest.ParseList(*algNames)
	if err != nil {
		return ferrors.Wrap("", err)
	}
	if len(algs) == 0 {
		algs = cfg.Hashing.DefaultAlgorithms()
	}

	var st *state.DB
	if !*noRecord && !fs.Changed("text") {
		if st, err = openLedger(cfg); err != nil {
			return err
		}
		if st != nil {
			defer func() { _ = st.Close() }()
		}
	}

	paths := fs.Args()
	if *recursive && !fs.Changed("text") {
		opts := scanner.Options{Extensions: *exts, IncludeHidden: *hidden}
		if *changedOnly {
			if st == nil {
				return errors.New("--changed-only needs the ledger (general.data_root, without --no-record)")
			}
			opts.Ledger = st
			for _, a := range algs {
				opts.Algorithms = append(opts.Algorithms, a.Key())
			}
		}
		scan, err := scanner.New(opts).Expand(paths)
		if err != nil {
			return err
		}
		for _, e := range scan.Errors {
			log.Warnf("scan: %v", e)
		}
		log.Infof("scanned %d files, %d unchanged, %d to hash", scan.FilesScanned, scan.Skipped, len(scan.Files))
		if len(scan.Files) == 0 {
			fmt.Fprintln(stderr, "nothing to hash")
			return nil
		}
		paths = scan.Files
	}

	inputs, err := collectInputs(cfg, log, *text, fs.Changed("text"), paths)
	if err != nil {
		return err
	}
	defer func() {
		for _, in := range inputs {
			if in.close != nil {
				_ = in.close()
			}
		}
	}()
	writeSidecars := cfg.General.WriteSidecars || *sidecar

	eng := engine.New(cfg, log, metrics.New(cfg))
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Progress: TUI, a single line on a terminal, or nothing.
	var (
		onSample func(name string) func(engine.Sample)
		onAgg    func(name string) func(engine.Aggregate)
		prog     *tea.Program
		send     tui.Sender
	)
	switch {
	case *useTUI:
		var tin []tui.Input
		for _, in := range inputs {
			tin = append(tin, tui.Input{Name: in.name, Size: in.src.Size(), Algorithms: algs})
		}
		prog = tea.NewProgram(tui.New(cfg.UI, tin, cancel), tea.WithOutput(stderr))
		send = prog.Send
		onSample, onAgg = send.Samples, send.Aggregates
	case !*quiet && !*jsonOut && isTerminal(stderr):
		lp := newLineProgress(stderr, cfg.UI.ProgressWidth)
		onSample, onAgg = lp.sample, lp.aggregate
	}

	results := make([]*report.HashResult, len(inputs))
	errs := make([]error, len(inputs))
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var eg errgroup.Group
		if cfg.Hashing.GlobalFiles > 0 {
			eg.SetLimit(cfg.Hashing.GlobalFiles)
		}
		for i, in := range inputs {
			i, in := i, in
			eg.Go(func() error {
				var ps func(engine.Sample)
				var pa func(engine.Aggregate)
				if onSample != nil {
					ps, pa = onSample(in.name), onAgg(in.name)
				}
				results[i], errs[i] = hashInput(ctx, eng, in, algs, ps, pa)
				if send != nil {
					send.Done(in.name, results[i], errs[i])
				}
				if errs[i] != nil {
					log.Errorf("%s: %v", logging.SanitizePath(in.name), errs[i])
				}
				return nil
			})
		}
		_ = eg.Wait()
		if send != nil {
			send.Finish()
		}
	}()
	if prog != nil {
		if _, err := prog.Run(); err != nil {
			cancel()
			wg.Wait()
			return err
		}
	}
	wg.Wait()

	var done []*report.HashResult
	for i, r := range results {
		if r == nil {
			continue
		}
		done = append(done, r)
		in := inputs[i]
		if in.path == "" {
			continue
		}
		if st != nil {
			if err := st.RecordDigests(in.path, r.Size, in.mtime.Unix(), r.Sums()); err != nil {
				log.Warnf("ledger: %v", ferrors.DatabaseError(err))
			}
		}
		if writeSidecars {
			for _, e := range r.Hashes {
				p, err := report.WriteSidecar(in.path, e.Algorithm, e.Hex)
				if err != nil {
					errs[i] = errors.Join(errs[i], fmt.Errorf("sidecar: %w", err))
					continue
				}
				log.Debugf("wrote %s", p)
			}
		}
	}

	if *manifestOut != "" {
		dir, _ := filepath.Abs(filepath.Dir(*manifestOut))
		m := manifest.FromResults(dir, done)
		if len(m.Entries) == 0 {
			log.Warnf("manifest: no file results to write")
		} else if err := m.Write(*manifestOut); err != nil {
			return fmt.Errorf("manifest: %w", err)
		}
	}

	switch {
	case *jsonOut:
		err = report.WriteJSON(stdout, done)
	case *lines:
		err = report.WriteLines(stdout, done)
	default:
		err = report.WriteTable(stdout, done)
	}
	if err != nil {
		return err
	}

	return summarizeFailures(inputs, results, errs)
}

// summarizeFailures folds per-input errors and failed algorithms into one
// error, counting each input once.
func summarizeFailures(inputs []*input, results []*report.HashResult, errs []error) error {
	var failed []error
	bad := 0
	for i, in := range inputs {
		var own []error
		if errs[i] != nil {
			own = append(own, ferrors.Wrap(in.name, errs[i]))
		}
		if r := results[i]; r != nil {
			algs := make([]string, 0, len(r.Failed))
			for alg := range r.Failed {
				algs = append(algs, alg)
			}
			sort.Strings(algs)
			for _, alg := range algs {
				own = append(own, fmt.Errorf("%s: %s: %s", r.Name, alg, r.Failed[alg]))
			}
		}
		if len(own) > 0 {
			bad++
			failed = append(failed, own...)
		}
	}
	if len(failed) == 1 {
		return failed[0]
	}
	if len(failed) > 1 {
		return fmt.Errorf("%d of %d inputs had failures: %w", bad, len(inputs), errors.Join(failed...))
	}
	return nil
}

// collectInputs opens and validates everything to hash before any work
// starts, so a bad argument fails fast.
func collectInputs(cfg *config.Config, log *logging.Logger, text string, hasText bool, paths []string) ([]*input, error) {
	if hasText {
		if len(paths) > 0 {
			return nil, errors.New("use either --text or file arguments, not both")
		}
		return []*input{{name: "text", mimeType: "text/plain", src: source.FromText(text), mtime: time.Now()}}, nil
	}
	if len(paths) == 0 {
		return nil, errors.New("no input: pass file paths or --text")
	}
	lim := util.Limits{
		MinSize:          cfg.Validation.MinSizeBytes,
		MaxSize:          cfg.Validation.MaxSizeBytes(),
		RejectSuspicious: cfg.Validation.RejectSuspiciousNames,
		AllowedTypes:     cfg.Validation.AllowedTypes,
	}
	var out []*input
	closeAll := func() {
		for _, in := range out {
			_ = in.close()
		}
	}
	for _, p := range paths {
		f, err := source.Open(p)
		if err != nil {
			closeAll()
			return nil, ferrors.Wrap(p, err)
		}
		head := make([]byte, 512)
		n, _ := f.ReadAt(head, 0)
		c := util.Candidate{
			Name:    filepath.Base(p),
			Size:    f.Size(),
			Type:    report.DetectType(p, head[:n]),
			Content: report.SniffType(head[:n]),
		}
		res := util.ValidateFile(c, lim)
		if !res.Valid() {
			_ = f.Close()
			closeAll()
			return nil, ferrors.NewFriendlyError(res.Err().Error(),
				"Adjust validation.min_size_bytes, validation.max_size_mb, validation.allowed_types or validation.reject_suspicious_names in the config")
		}
		for _, w := range res.Warnings {
			log.Warnf("%s: %s", logging.SanitizePath(p), w)
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		out = append(out, &input{name: p, path: abs, mimeType: c.Type, src: f, mtime: f.ModTime(), close: f.Close})
	}
	return out, nil
}

// hashInput computes every algorithm over one input and builds its report.
// It fails only when no digest could be computed.
func hashInput(ctx context.Context, eng *engine.Engine, in *input, algs []digest.Algorithm, ps func(engine.Sample), pa func(engine.Aggregate)) (*report.HashResult, error) {
	start := time.Now()
	res, err := eng.Digests(ctx, in.src, algs, ps, pa)
	if err != nil {
		return nil, err
	}
	r, err := report.New(in.name, in.src.Size(), in.mimeType, start, time.Since(start), res.Digests, res.Failed)
	if err != nil {
		return nil, err
	}
	r.Path = in.path
	return r, nil
}
