// Package report turns computed digests into the records users see: a
// per-input summary with content type, multihash and CID, rendered as a
// table, JSON, or coreutils-style checksum lines.
package report

import (
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"filehasher/internal/digest"
)

// Entry is one algorithm's digest of an input.
type Entry struct {
	Algorithm digest.Algorithm `json:"algorithm"`
	Hex       string           `json:"hex"`
	Multihash string           `json:"multihash,omitempty"`
	CID       string           `json:"cid,omitempty"`
}

// HashResult summarizes every digest computed for a single input.
type HashResult struct {
	Name        string            `json:"name"`
	Path        string            `json:"path,omitempty"`
	Type        string            `json:"type"`
	Size        int64             `json:"size"`
	ProcessedAt time.Time         `json:"processed_at"`
	Duration    time.Duration     `json:"duration_ns"`
	Hashes      []Entry           `json:"hashes"`
	Failed      map[string]string `json:"failed,omitempty"`
}

// go-multihash names no constant for sha2-384; this is its multicodec code.
const mhSHA2_384 = 0x20

// multihash function codes, keyed by algorithm.
var mhCodes = map[digest.Algorithm]uint64{
	digest.MD5:      multihash.MD5,
	digest.SHA1:     multihash.SHA1,
	digest.SHA256:   multihash.SHA2_256,
	digest.SHA384:   mhSHA2_384,
	digest.SHA512:   multihash.SHA2_512,
	digest.SHA3_256: multihash.SHA3_256,
	digest.SHA3_512: multihash.SHA3_512,
	digest.BLAKE3:   multihash.BLAKE3,
}

// NewEntry builds an Entry, deriving the multihash and a CIDv1 (raw codec)
// from the hex digest.
func NewEntry(alg digest.Algorithm, hexSum string) (Entry, error) {
	e := Entry{Algorithm: alg, Hex: hexSum}
	raw, err := hex.DecodeString(hexSum)
	if err != nil {
		return e, fmt.Errorf("decode %s digest: %w", alg, err)
	}
	code, ok := mhCodes[alg]
	if !ok {
		return e, nil
	}
	buf, err := multihash.Encode(raw, code)
	if err != nil {
		return e, fmt.Errorf("multihash %s: %w", alg, err)
	}
	mh := multihash.Multihash(buf)
	e.Multihash = mh.B58String()
	e.CID = cid.NewCidV1(cid.Raw, mh).String()
	return e, nil
}

// New assembles a HashResult. Entries are ordered by algorithm so output is
// stable regardless of which job finished first.
func New(name string, size int64, mimeType string, at time.Time, took time.Duration, sums map[digest.Algorithm]string, failed map[digest.Algorithm]error) (*HashResult, error) {
	r := &HashResult{Name: name, Type: mimeType, Size: size, ProcessedAt: at.UTC(), Duration: took}
	algs := make([]digest.Algorithm, 0, len(sums))
	for a := range sums {
		algs = append(algs, a)
	}
	sort.Slice(algs, func(i, j int) bool { return algs[i] < algs[j] })
	for _, a := range algs {
		e, err := NewEntry(a, sums[a])
		if err != nil {
			return nil, err
		}
		r.Hashes = append(r.Hashes, e)
	}
	for a, err := range failed {
		if r.Failed == nil {
			r.Failed = map[string]string{}
		}
		r.Failed[a.Key()] = err.Error()
	}
	return r, nil
}

// Lookup returns the hex digest for alg, if present.
func (r *HashResult) Lookup(alg digest.Algorithm) (string, bool) {
	for _, e := range r.Hashes {
		if e.Algorithm == alg {
			return e.Hex, true
		}
	}
	return "", false
}

// Sums returns the digests keyed by algorithm key, the form the ledger stores.
func (r *HashResult) Sums() map[string]string {
	out := make(map[string]string, len(r.Hashes))
	for _, e := range r.Hashes {
		out[e.Algorithm.Key()] = e.Hex
	}
	return out
}
