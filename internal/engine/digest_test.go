package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"filehasher/internal/digest"
	"filehasher/internal/source"
	"filehasher/internal/testutil"
)

// stepClock advances by step on every call so throttling is deterministic.
type stepClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func newStepClock(step time.Duration) *stepClock {
	return &stepClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), step: step}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.t
	c.t = c.t.Add(c.step)
	return t
}

func oneShot(t *testing.T, alg digest.Algorithm, data []byte) string {
	t.Helper()
	h, err := alg.New()
	if err != nil {
		t.Fatal(err)
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func TestKnownAnswers(t *testing.T) {
	cases := []struct {
		alg  digest.Algorithm
		in   string
		want string
	}{
		{digest.SHA256, "", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{digest.MD5, "abc", "900150983cd24fb0d6963f7d28e17f72"},
		{digest.SHA1, "abc", "a9993e364706816aba3e25717850c26c9cd0d89d"},
		{digest.SHA256, "abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{digest.SHA384, "abc", "cb00753f45a35e8bb5a03d699ac65007272c32ab0eded1631a8b605a43ff5bed8086072ba1e7cc2358baeca134c825a7"},
		{digest.SHA512, "abc", "ddaf35a193617abacc417349ae20413112e6fa4e89a97ea20a9eeee64b55d39a2192992a274fc1a836ba3c23a3feebbd454d4423643ce80e2a9ac94fa54ca49f"},
	}
	for _, tc := range cases {
		for _, chunk := range []int{1, 2, DefaultChunkSize} {
			got, err := ComputeDigest(context.Background(), source.FromText(tc.in), tc.alg, Options{ChunkSize: chunk})
			if err != nil {
				t.Fatalf("%s(%q) chunk=%d: %v", tc.alg, tc.in, chunk, err)
			}
			if got != tc.want {
				t.Errorf("%s(%q) chunk=%d = %s, want %s", tc.alg, tc.in, chunk, got, tc.want)
			}
		}
	}
}

func TestChunkSizeDoesNotChangeResult(t *testing.T) {
	data := testutil.Pattern(10_000)
	for _, alg := range digest.All() {
		want := oneShot(t, alg, data)
		for _, chunk := range []int{1, 7, 1000, 4096, 10_000, 20_000} {
			got, err := ComputeDigest(context.Background(), source.FromBytes("p", data), alg, Options{ChunkSize: chunk})
			if err != nil {
				t.Fatalf("%s chunk=%d: %v", alg, chunk, err)
			}
			if got != want {
				t.Errorf("%s chunk=%d = %s, want %s", alg, chunk, got, want)
			}
			if len(got) != alg.HexLen() {
				t.Errorf("%s hex length %d", alg, len(got))
			}
		}
	}
}

func TestFiveMillionZeroes(t *testing.T) {
	if testing.Short() {
		t.Skip("-short set")
	}
	data := make([]byte, 5_000_000)
	src := source.FromBytes("zeros", data)
	small, err := ComputeDigest(context.Background(), src, digest.SHA256, Options{ChunkSize: 1})
	if err != nil {
		t.Fatal(err)
	}
	big, err := ComputeDigest(context.Background(), src, digest.SHA256, Options{ChunkSize: 1 << 20})
	if err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256(data)
	if small != big || big != hex.EncodeToString(sum[:]) {
		t.Fatalf("chunk=1 %s, chunk=1MiB %s, want %x", small, big, sum)
	}
}

func TestFileSource(t *testing.T) {
	data := testutil.Pattern(300_000)
	p := testutil.WriteFile(t, "input.bin", data)
	f, err := source.Open(p)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	got, err := ComputeDigest(context.Background(), f, digest.SHA512, Options{ChunkSize: 64 * 1024})
	if err != nil {
		t.Fatal(err)
	}
	if want := oneShot(t, digest.SHA512, data); got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestProgressIsThrottledAndMonotonic(t *testing.T) {
	clk := newStepClock(30 * time.Millisecond)
	var samples []Sample
	opts := Options{
		ChunkSize:  100,
		Interval:   100 * time.Millisecond,
		Now:        clk.Now,
		OnProgress: func(s Sample) { samples = append(samples, s) },
	}
	const size = 10_000
	if _, err := ComputeDigest(context.Background(), source.FromBytes("p", testutil.Pattern(size)), digest.SHA256, opts); err != nil {
		t.Fatal(err)
	}
	if len(samples) < 2 || len(samples) >= size/100 {
		t.Fatalf("got %d samples for %d chunks", len(samples), size/100)
	}
	var prev int64
	for i, s := range samples {
		if s.BytesProcessed < prev {
			t.Fatalf("sample %d went backward: %d < %d", i, s.BytesProcessed, prev)
		}
		if s.TotalBytes != size || s.Algorithm != digest.SHA256 {
			t.Fatalf("sample %d: %+v", i, s)
		}
		if s.Speed <= 0 {
			t.Fatalf("sample %d has no speed: %+v", i, s)
		}
		prev = s.BytesProcessed
	}
	last := samples[len(samples)-1]
	if last.BytesProcessed != size || last.Percent != 100 || last.ETA != 0 || !last.Done() {
		t.Fatalf("final sample %+v", last)
	}
	mid := samples[0]
	if mid.ETA <= 0 || mid.Percent <= 0 || mid.Percent >= 100 {
		t.Fatalf("first sample should carry ETA and partial percent: %+v", mid)
	}
}

func TestEmptyInputSingleSample(t *testing.T) {
	want := map[digest.Algorithm]string{
		digest.MD5:    "d41d8cd98f00b204e9800998ecf8427e",
		digest.SHA1:   "da39a3ee5e6b4b0d3255bfef95601890afd80709",
		digest.SHA256: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		digest.SHA384: "38b060a751ac96384cd9327eb1b1e36a21fdb71114be07434c0cc7bf63f6e1da274edebfe76f65fbd51ad2f14898b95b",
		digest.SHA512: "cf83e1357eefb8bdf1542850d66d8007d620e4050b5715dc83f4a921d36ce9ce47d0d13c5d85f2b0ff8318d2877eec2f63b931bd47417a81a538327af927da3e",
	}
	for alg, w := range want {
		var samples []Sample
		got, err := ComputeDigest(context.Background(), source.FromBytes("empty", nil), alg, Options{OnProgress: func(s Sample) { samples = append(samples, s) }})
		if err != nil {
			t.Fatal(err)
		}
		if got != w {
			t.Errorf("%s(empty) = %s, want %s", alg, got, w)
		}
		if len(samples) != 1 || samples[0].Percent != 100 || samples[0].BytesProcessed != 0 {
			t.Errorf("%s samples %+v", alg, samples)
		}
	}
}

func TestIdempotent(t *testing.T) {
	src := source.FromBytes("p", testutil.Pattern(50_000))
	a, err := ComputeDigest(context.Background(), src, digest.SHA1, Options{ChunkSize: 333})
	if err != nil {
		t.Fatal(err)
	}
	b, err := ComputeDigest(context.Background(), src, digest.SHA1, Options{ChunkSize: 333})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("%s != %s", a, b)
	}
}

func TestReadErrorFailsJob(t *testing.T) {
	src := &testutil.FailingSource{Data: testutil.Pattern(10_000), FailAfter: 4096}
	job := NewJob(digest.SHA256, src.Size())
	sawDone := false
	got, err := job.Run(context.Background(), src, Options{ChunkSize: 1024, OnProgress: func(s Sample) {
		if s.Done() {
			sawDone = true
		}
	}})
	if got != "" {
		t.Fatalf("unexpected result %q", got)
	}
	var re *digest.ReadError
	if !errors.As(err, &re) {
		t.Fatalf("want ReadError, got %v", err)
	}
	if re.Offset != 4096 || !errors.Is(err, testutil.ErrInjected) {
		t.Fatalf("read error %+v", re)
	}
	if job.State() != Failed || job.Result() != "" || !errors.Is(job.Err(), testutil.ErrInjected) {
		t.Fatalf("job state %s result %q err %v", job.State(), job.Result(), job.Err())
	}
	if job.BytesProcessed() != 4096 {
		t.Fatalf("processed %d", job.BytesProcessed())
	}
	if sawDone {
		t.Fatal("a failed job must not report a terminal sample")
	}
}

func TestShortSourceIsReadError(t *testing.T) {
	// Size claims more than ReadAt can deliver.
	src := &lyingSource{Bytes: source.FromText("abc"), size: 10}
	_, err := ComputeDigest(context.Background(), src, digest.MD5, Options{})
	if !digest.IsReadError(err) {
		t.Fatalf("want ReadError, got %v", err)
	}
}

type lyingSource struct {
	*source.Bytes
	size int64
}

func (s *lyingSource) Size() int64 { return s.size }

func TestUnsupportedAlgorithm(t *testing.T) {
	job := NewJob(digest.Algorithm(0), 3)
	_, err := job.Run(context.Background(), source.FromText("abc"), Options{})
	if !errors.Is(err, digest.ErrUnsupportedAlgorithm) {
		t.Fatalf("got %v", err)
	}
	if job.State() != Failed {
		t.Fatalf("state %s", job.State())
	}
}

func TestCancelAtChunkBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clk := newStepClock(50 * time.Millisecond)
	job := NewJob(digest.SHA256, 10_000)
	_, err := job.Run(ctx, source.FromBytes("p", testutil.Pattern(10_000)), Options{
		ChunkSize:  100,
		Interval:   100 * time.Millisecond,
		Now:        clk.Now,
		OnProgress: func(Sample) { cancel() },
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
	if job.State() != Cancelled || job.Result() != "" {
		t.Fatalf("state %s result %q", job.State(), job.Result())
	}
	if p := job.BytesProcessed(); p == 0 || p >= 10_000 {
		t.Fatalf("processed %d", p)
	}
}

func TestJobRunsOnce(t *testing.T) {
	job := NewJob(digest.MD5, 3)
	if _, err := job.Run(context.Background(), source.FromText("abc"), Options{}); err != nil {
		t.Fatal(err)
	}
	if _, err := job.Run(context.Background(), source.FromText("abc"), Options{}); err == nil {
		t.Fatal("second Run should fail")
	}
	if job.State() != Completed || job.Result() != "900150983cd24fb0d6963f7d28e17f72" {
		t.Fatalf("terminal state changed: %s %q", job.State(), job.Result())
	}
}

func TestInvalidOptions(t *testing.T) {
	if _, err := ComputeDigest(context.Background(), source.FromText("x"), digest.MD5, Options{ChunkSize: -1}); err == nil {
		t.Fatal("negative chunk size should fail")
	}
	if _, err := ComputeDigest(context.Background(), nil, digest.MD5, Options{}); err == nil {
		t.Fatal("nil source should fail")
	}
}

func TestPercent(t *testing.T) {
	cases := []struct {
		p, total int64
		done     bool
		want     float64
	}{
		{0, 0, false, 0},
		{0, 0, true, 100},
		{50, 200, false, 25},
		{300, 200, false, 100},
		{-1, 200, false, 0},
	}
	for _, tc := range cases {
		if got := Percent(tc.p, tc.total, tc.done); got != tc.want {
			t.Errorf("Percent(%d,%d,%v) = %v, want %v", tc.p, tc.total, tc.done, got, tc.want)
		}
	}
}
