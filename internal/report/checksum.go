package report

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filehasher/internal/digest"
)

// ChecksumLine is one parsed entry of a checksum file. Algorithm is zero
// when the line does not name one.
type ChecksumLine struct {
	Algorithm digest.Algorithm
	Hex       string
	Name      string
}

// Candidates returns the algorithms that could have produced the line's
// digest: the named one, or every algorithm with a matching hex length.
func (l ChecksumLine) Candidates() []digest.Algorithm {
	if l.Algorithm.Valid() {
		return []digest.Algorithm{l.Algorithm}
	}
	return digest.ForHexLen(len(l.Hex))
}

// ParseChecksumLine accepts GNU ("<hex>  name", "<hex> *name"), prefixed
// ("sha256 <hex>  name") and BSD ("SHA256 (name) = <hex>") forms.
func ParseChecksumLine(line string) (ChecksumLine, error) {
	s := strings.TrimSpace(line)
	if s == "" {
		return ChecksumLine{}, fmt.Errorf("empty checksum line")
	}
	// BSD tag form
	if i := strings.Index(s, " ("); i > 0 {
		if j := strings.LastIndex(s, ") = "); j > i {
			if alg, err := digest.Parse(s[:i]); err == nil {
				return finish(ChecksumLine{Algorithm: alg, Name: s[i+2 : j], Hex: s[j+4:]})
			}
		}
	}
	first, rest, ok := strings.Cut(s, " ")
	if !ok {
		// bare digest
		return finish(ChecksumLine{Hex: s})
	}
	if !isHex(first) {
		alg, err := digest.Parse(first)
		if err != nil {
			return ChecksumLine{}, fmt.Errorf("malformed checksum line %q", line)
		}
		h, name, _ := strings.Cut(strings.TrimLeft(rest, " "), " ")
		return finish(ChecksumLine{Algorithm: alg, Hex: h, Name: cleanName(name)})
	}
	return finish(ChecksumLine{Hex: first, Name: cleanName(rest)})
}

func cleanName(s string) string {
	s = strings.TrimLeft(s, " ")
	return strings.TrimPrefix(s, "*")
}

func finish(l ChecksumLine) (ChecksumLine, error) {
	l.Hex = strings.ToLower(strings.TrimSpace(l.Hex))
	if !isHex(l.Hex) {
		return ChecksumLine{}, fmt.Errorf("invalid hex digest %q", l.Hex)
	}
	if l.Algorithm.Valid() && len(l.Hex) != l.Algorithm.HexLen() {
		return ChecksumLine{}, fmt.Errorf("%s digest must be %d hex characters, got %d", l.Algorithm, l.Algorithm.HexLen(), len(l.Hex))
	}
	if len(l.Candidates()) == 0 {
		return ChecksumLine{}, fmt.Errorf("no algorithm produces %d hex characters", len(l.Hex))
	}
	return l, nil
}

func isHex(s string) bool {
	if s == "" || len(s)%2 != 0 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// ParseChecksums reads every non-blank, non-comment line of r.
func ParseChecksums(r io.Reader) ([]ChecksumLine, error) {
	var out []ChecksumLine
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		t := strings.TrimSpace(sc.Text())
		if t == "" || strings.HasPrefix(t, "#") {
			continue
		}
		l, err := ParseChecksumLine(t)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		out = append(out, l)
	}
	return out, sc.Err()
}

// SidecarPath is the checksum file written next to path for alg.
func SidecarPath(path string, alg digest.Algorithm) string {
	return path + "." + alg.Key()
}

// WriteSidecar writes "<hex>  <base name>" to path's sidecar for alg,
// replacing any existing one atomically.
func WriteSidecar(path string, alg digest.Algorithm, hexSum string) (string, error) {
	dest := SidecarPath(path, alg)
	f, err := os.CreateTemp(filepath.Dir(dest), ".sidecar.tmp.*")
	if err != nil {
		return "", err
	}
	defer os.Remove(f.Name())
	if _, err := fmt.Fprintf(f, "%s  %s\n", hexSum, filepath.Base(path)); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	if err := os.Chmod(f.Name(), 0o644); err != nil {
		return "", err
	}
	return dest, os.Rename(f.Name(), dest)
}

// ReadSidecar returns the digest stored in path's sidecar for alg.
func ReadSidecar(path string, alg digest.Algorithm) (string, error) {
	b, err := os.ReadFile(SidecarPath(path, alg))
	if err != nil {
		return "", err
	}
	l, err := ParseChecksumLine(strings.SplitN(string(b), "\n", 2)[0])
	if err != nil {
		return "", err
	}
	if len(l.Hex) != alg.HexLen() {
		return "", fmt.Errorf("sidecar for %s holds a %d-character digest", alg, len(l.Hex))
	}
	return l.Hex, nil
}
