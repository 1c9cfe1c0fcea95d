package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"filehasher/internal/digest"
	"filehasher/internal/engine"
	ferrors "filehasher/internal/errors"
	"filehasher/internal/lockfile"
	"filehasher/internal/logging"
	"filehasher/internal/manifest"
	"filehasher/internal/metrics"
	"filehasher/internal/report"
	"filehasher/internal/source"
	"filehasher/internal/state"
)

func handleVerify(ctx context.Context, args []string) error {
	fs, g := newFlagSet("verify")
	expected := fs.StringP("expected", "e", "", "expected hex digest of the single file argument")
	algName := fs.StringP("algorithm", "a", "", "algorithm of --expected or sidecars (default: inferred from digest length)")
	sumFile := fs.StringP("checksum-file", "c", "", "verify every entry of a checksum file")
	sidecars := fs.Bool("sidecar", false, "verify files against their <file>.<alg> sidecars")
	manifestPath := fs.StringP("manifest", "m", "", "verify every file listed in a YAML manifest")
	all := fs.Bool("all", false, "re-hash every file recorded in the ledger")
	if ok, err := parse(fs, args); !ok || err != nil {
		return err
	}
	cfg, log, err := g.load()
	if err != nil {
		return err
	}
	var alg digest.Algorithm
	if *algName != "" {
		if alg, err = digest.Parse(*algName); err != nil {
			return ferrors.Wrap("", err)
		}
	}
	eng := engine.New(cfg, log, metrics.New(cfg))
	st, err := openLedger(cfg)
	if err != nil {
		return err
	}
	if st != nil {
		defer func() { _ = st.Close() }()
	}
	v := &verifier{eng: eng, st: st, log: log}

	switch {
	case *all:
		if st == nil {
			return errors.New("verify --all needs general.data_root set so the ledger can be opened")
		}
		lock, err := lockfile.Acquire(filepath.Join(cfg.General.DataRoot, "ledger.lock"))
		if err != nil {
			return err
		}
		defer func() { _ = lock.Release() }()
		return v.ledger(ctx)
	case *manifestPath != "":
		return v.manifest(ctx, *manifestPath)
	case *sumFile != "":
		return v.checksumFile(ctx, *sumFile, alg)
	case *expected != "":
		if fs.NArg() != 1 {
			return errors.New("--expected takes exactly one file argument")
		}
		line := report.ChecksumLine{Algorithm: alg, Hex: strings.ToLower(strings.TrimSpace(*expected)), Name: fs.Arg(0)}
		if alg.Valid() && len(line.Hex) != alg.HexLen() {
			return fmt.Errorf("%s digest must be %d hex characters, got %d", alg, alg.HexLen(), len(line.Hex))
		}
		if len(line.Candidates()) == 0 {
			return fmt.Errorf("no supported algorithm produces a %d-character digest", len(line.Hex))
		}
		return v.one(ctx, fs.Arg(0), line)
	case *sidecars:
		if fs.NArg() == 0 {
			return errors.New("verify --sidecar needs file arguments")
		}
		algs := cfg.Hashing.DefaultAlgorithms()
		if alg.Valid() {
			algs = []digest.Algorithm{alg}
		}
		return v.sidecars(ctx, fs.Args(), algs)
	}
	return errors.New("use --expected, --checksum-file, --manifest, --sidecar or --all")
}

type verifier struct {
	eng *engine.Engine
	st  *state.DB
	log *logging.Logger
}

// match hashes path with every candidate algorithm of line and returns the
// one that matched, or the computed digests when none did.
func (v *verifier) match(ctx context.Context, path string, line report.ChecksumLine) (digest.Algorithm, map[digest.Algorithm]string, *source.File, error) {
	f, err := source.Open(path)
	if err != nil {
		return 0, nil, nil, ferrors.Wrap(path, err)
	}
	defer f.Close()
	res, err := v.eng.Digests(ctx, f, line.Candidates(), nil, nil)
	if err != nil {
		return 0, nil, f, ferrors.Wrap(path, err)
	}
	for _, a := range line.Candidates() {
		if res.Digests[a] == line.Hex {
			return a, res.Digests, f, nil
		}
	}
	return 0, res.Digests, f, nil
}

func (v *verifier) one(ctx context.Context, path string, line report.ChecksumLine) error {
	alg, sums, f, err := v.match(ctx, path, line)
	if err != nil {
		return err
	}
	if alg.Valid() {
		v.record(path, f, alg, sums[alg], state.StatusVerified, "")
		fmt.Fprintf(stdout, "%s: OK (%s)\n", path, alg)
		return nil
	}
	want := line.Candidates()[0]
	v.record(path, f, want, sums[want], state.StatusMismatch, "expected "+line.Hex)
	fmt.Fprintf(stdout, "%s: FAILED\n", path)
	return ferrors.ChecksumMismatch(path, want, line.Hex, sums[want])
}

func (v *verifier) checksumFile(ctx context.Context, path string, alg digest.Algorithm) error {
	fh, err := os.Open(path)
	if err != nil {
		return ferrors.Wrap(path, err)
	}
	lines, err := report.ParseChecksums(fh)
	_ = fh.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if len(lines) == 0 {
		return fmt.Errorf("%s: no checksum lines", path)
	}
	base := filepath.Dir(path)
	var bad int
	for _, l := range lines {
		if alg.Valid() && !l.Algorithm.Valid() {
			if len(l.Hex) != alg.HexLen() {
				return fmt.Errorf("%s: %s digest must be %d hex characters", l.Name, alg, alg.HexLen())
			}
			l.Algorithm = alg
		}
		target := l.Name
		if target == "" {
			return fmt.Errorf("%s: checksum line without a file name", path)
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(base, target)
		}
		got, _, f, err := v.match(ctx, target, l)
		switch {
		case err != nil:
			bad++
			fmt.Fprintf(stdout, "%s: FAILED open or read\n", l.Name)
			v.log.Warnf("%v", err)
		case got.Valid():
			v.record(target, f, got, l.Hex, state.StatusVerified, "")
			fmt.Fprintf(stdout, "%s: OK\n", l.Name)
		default:
			bad++
			fmt.Fprintf(stdout, "%s: FAILED\n", l.Name)
		}
	}
	if bad > 0 {
		return fmt.Errorf("%d of %d computed checksums did NOT match", bad, len(lines))
	}
	return nil
}

// manifest checks every digest listed for every manifest entry. Each file
// is read once for all of its algorithms.
func (v *verifier) manifest(ctx context.Context, path string) error {
	m, err := manifest.Load(path)
	if err != nil {
		return ferrors.Wrap(path, err)
	}
	var bad int
	for _, e := range m.Entries {
		target := e.Resolve(path)
		f, err := source.Open(target)
		if err != nil {
			bad++
			fmt.Fprintf(stdout, "%s: FAILED open or read\n", e.Path)
			v.log.Warnf("%v", ferrors.Wrap(target, err))
			continue
		}
		algs := e.Algorithms()
		res, err := v.eng.Digests(ctx, f, algs, nil, nil)
		if err != nil {
			_ = f.Close()
			bad++
			fmt.Fprintf(stdout, "%s: FAILED open or read\n", e.Path)
			v.log.Warnf("%v", ferrors.Wrap(target, err))
			continue
		}
		var failed []string
		for _, a := range algs {
			want := e.Expected(a)
			if res.Digests[a] == want {
				v.record(target, f, a, want, state.StatusVerified, "")
				continue
			}
			failed = append(failed, a.String())
			v.record(target, f, a, res.Digests[a], state.StatusMismatch, "expected "+want)
		}
		_ = f.Close()
		if len(failed) > 0 {
			bad++
			fmt.Fprintf(stdout, "%s: FAILED (%s)\n", e.Path, strings.Join(failed, ", "))
			continue
		}
		fmt.Fprintf(stdout, "%s: OK\n", e.Path)
	}
	if bad > 0 {
		return fmt.Errorf("%d of %d manifest files failed verification", bad, len(m.Entries))
	}
	return nil
}

func (v *verifier) sidecars(ctx context.Context, paths []string, algs []digest.Algorithm) error {
	var bad, checked int
	for _, p := range paths {
		for _, a := range algs {
			want, err := report.ReadSidecar(p, a)
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if err != nil {
				return err
			}
			checked++
			if err := v.one(ctx, p, report.ChecksumLine{Algorithm: a, Hex: want, Name: p}); err != nil {
				bad++
				v.log.Warnf("%v", err)
			}
		}
	}
	if checked == 0 {
		return errors.New("no sidecar files found")
	}
	if bad > 0 {
		return fmt.Errorf("%d of %d sidecar checks failed", bad, checked)
	}
	return nil
}

// ledger re-hashes every recorded file and updates row statuses.
func (v *verifier) ledger(ctx context.Context) error {
	rows, err := v.st.ListDigests()
	if err != nil {
		return ferrors.DatabaseError(err)
	}
	byPath := map[string][]state.DigestRow{}
	for _, r := range rows {
		byPath[r.Path] = append(byPath[r.Path], r)
	}
	paths := make([]string, 0, len(byPath))
	for p := range byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var bad int
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		prs := byPath[p]
		f, err := source.Open(p)
		if err != nil {
			bad++
			status := state.StatusError
			if errors.Is(err, os.ErrNotExist) {
				status = state.StatusMissing
			}
			for _, r := range prs {
				v.setStatus(p, r.Algorithm, status, err.Error())
			}
			fmt.Fprintf(stdout, "%s: %s\n", p, strings.ToUpper(status))
			continue
		}
		var algs []digest.Algorithm
		for _, r := range prs {
			if a, err := digest.Parse(r.Algorithm); err == nil {
				algs = append(algs, a)
			}
		}
		res, err := v.eng.Digests(ctx, f, algs, nil, nil)
		_ = f.Close()
		ok := err == nil
		for _, r := range prs {
			a, _ := digest.Parse(r.Algorithm)
			switch {
			case err != nil:
				v.setStatus(p, r.Algorithm, state.StatusError, err.Error())
			case res.Digests[a] == r.Hex:
				v.setStatus(p, r.Algorithm, state.StatusVerified, "")
			default:
				ok = false
				msg := "digest changed"
				if ferr := res.Failed[a]; ferr != nil {
					msg = ferr.Error()
				}
				v.setStatus(p, r.Algorithm, state.StatusMismatch, msg)
			}
		}
		if ok {
			fmt.Fprintf(stdout, "%s: OK\n", p)
			v.log.Debugf("verified %s", logging.SanitizePath(p))
		} else {
			bad++
			fmt.Fprintf(stdout, "%s: FAILED\n", p)
		}
	}
	if bad > 0 {
		return fmt.Errorf("%d of %d recorded files failed verification", bad, len(paths))
	}
	return nil
}

// setStatus updates one ledger row. A failed write is logged and does not
// stop the sweep.
func (v *verifier) setStatus(path, algorithm, status, lastErr string) {
	if err := v.st.UpdateStatus(path, algorithm, status, lastErr); err != nil {
		v.log.Warnf("ledger: %v", err)
	}
}

func (v *verifier) record(path string, f *source.File, alg digest.Algorithm, hexSum, status, lastErr string) {
	if v.st == nil || f == nil || hexSum == "" {
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if err := v.st.UpsertDigest(state.DigestRow{Path: abs, Algorithm: alg.Key(), Hex: hexSum, Size: f.Size(), ModTime: f.ModTime().Unix(), Status: status, LastError: lastErr}); err != nil {
		v.log.Warnf("ledger: %v", err)
	}
}
