package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/sha3"
)

// Algorithm identifies a supported digest function. The zero value is invalid.
type Algorithm int

const (
	MD5 Algorithm = iota + 1
	SHA1
	SHA256
	SHA384
	SHA512
	SHA3_256
	SHA3_512
	BLAKE3
)

type entry struct {
	name     string
	key      string
	size     int
	extended bool
	newHash  func() hash.Hash
}

// table is indexed by Algorithm; index 0 is the invalid zero value.
var table = [...]entry{
	MD5:      {name: "MD5", key: "md5", size: md5.Size, newHash: md5.New},
	SHA1:     {name: "SHA-1", key: "sha1", size: sha1.Size, newHash: sha1.New},
	SHA256:   {name: "SHA-256", key: "sha256", size: sha256.Size, newHash: sha256.New},
	SHA384:   {name: "SHA-384", key: "sha384", size: sha512.Size384, newHash: sha512.New384},
	SHA512:   {name: "SHA-512", key: "sha512", size: sha512.Size, newHash: sha512.New},
	SHA3_256: {name: "SHA3-256", key: "sha3-256", size: 32, extended: true, newHash: sha3.New256},
	SHA3_512: {name: "SHA3-512", key: "sha3-512", size: 64, extended: true, newHash: sha3.New512},
	BLAKE3:   {name: "BLAKE3", key: "blake3", size: 32, extended: true, newHash: func() hash.Hash { return blake3.New() }},
}

// Standard is the default algorithm set, in display order.
var Standard = []Algorithm{MD5, SHA1, SHA256, SHA384, SHA512}

// All lists every supported algorithm, standard ones first.
func All() []Algorithm {
	out := make([]Algorithm, 0, len(table)-1)
	for a := MD5; int(a) < len(table); a++ {
		out = append(out, a)
	}
	return out
}

// Valid reports whether a names a supported algorithm.
func (a Algorithm) Valid() bool { return a > 0 && int(a) < len(table) }

// String returns the canonical display name ("SHA-256").
func (a Algorithm) String() string {
	if !a.Valid() {
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
	return table[a].name
}

// Key returns the lowercase identifier used in config files, sidecar
// extensions and JSON reports ("sha256", "sha3-256").
func (a Algorithm) Key() string {
	if !a.Valid() {
		return ""
	}
	return table[a].key
}

// Size is the raw digest length in bytes.
func (a Algorithm) Size() int {
	if !a.Valid() {
		return 0
	}
	return table[a].size
}

// HexLen is the length of the lowercase hex encoding of a digest.
func (a Algorithm) HexLen() int { return 2 * a.Size() }

// Extended reports whether a is outside the standard MD5/SHA family set.
func (a Algorithm) Extended() bool { return a.Valid() && table[a].extended }

// New returns a fresh incremental hash for a.
func (a Algorithm) New() (hash.Hash, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, a)
	}
	return table[a].newHash(), nil
}

// MarshalText encodes the algorithm as its Key so it can be used in YAML
// and JSON maps.
func (a Algorithm) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, a)
	}
	return []byte(a.Key()), nil
}

func (a *Algorithm) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Parse accepts names like "SHA-256", "sha256", "sha_256" or "sha3-512",
// case-insensitively.
func Parse(name string) (Algorithm, error) {
	n := normalize(name)
	if n == "" {
		return 0, fmt.Errorf("%w: empty name", ErrUnsupportedAlgorithm)
	}
	for a := MD5; int(a) < len(table); a++ {
		if normalize(table[a].name) == n || normalize(table[a].key) == n {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
}

// ParseList parses a list of names, dropping duplicates while keeping order.
func ParseList(names []string) ([]Algorithm, error) {
	seen := make(map[Algorithm]bool, len(names))
	var out []Algorithm
	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			a, err := Parse(part)
			if err != nil {
				return nil, err
			}
			if seen[a] {
				continue
			}
			seen[a] = true
			out = append(out, a)
		}
	}
	return out, nil
}

// ForHexLen returns the algorithms whose hex digests have length n,
// standard algorithms first.
func ForHexLen(n int) []Algorithm {
	var out []Algorithm
	for _, a := range All() {
		if a.HexLen() == n {
			out = append(out, a)
		}
	}
	return out
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	r := strings.NewReplacer("-", "", "_", "", " ", "")
	return r.Replace(s)
}
