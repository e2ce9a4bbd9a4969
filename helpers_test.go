package kmertop

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

// writeFastq writes one 4-line record per sequence and returns the path.
func writeFastq(t *testing.T, seqs ...string) string {
	t.Helper()
	var sb strings.Builder
	for i, s := range seqs {
		fmt.Fprintf(&sb, "@read%d\n%s\n+\n%s\n", i, s, strings.Repeat("I", len(s)))
	}
	return writeFile(t, "reads.fq", sb.String())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// randomReads returns n reads of length l over ACGT, with a few planted
// motifs so that some k-mers repeat often.
func randomReads(seed uint64, n, l int) []string {
	const alphabet = "ACGT"
	motifs := []string{"ACGTACGTAC", "TTTTGGGGCC", "GATTACAGAT"}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	reads := make([]string, n)
	for i := range reads {
		b := make([]byte, l)
		for j := range b {
			b[j] = alphabet[rng.IntN(4)]
		}
		if rng.IntN(3) == 0 {
			m := motifs[rng.IntN(len(motifs))]
			copy(b[rng.IntN(l-len(m)):], m)
		}
		reads[i] = string(b)
	}
	return reads
}

// exactTop computes the expected result by counting every window exactly.
// Only k-mers seen at least twice are reported.
func exactTop(reads []string, k, n int) []Record {
	counts := make(map[string]uint64)
	for _, r := range reads {
		for i := 0; i < len(r)-k; i++ {
			counts[r[i:i+k]]++
		}
	}
	var recs []Record
	for tok, c := range counts {
		if c >= 2 {
			recs = append(recs, Record{Token: tok, Count: c})
		}
	}
	slices.SortFunc(recs, compareRecords)
	if len(recs) > n {
		recs = recs[:n]
	}
	return recs
}

// collect drains a TokenReader into strings.
func collect(t *testing.T, r TokenReader) []string {
	t.Helper()
	var out []string
	for r.Next() {
		out = append(out, string(r.Token()))
	}
	if err := r.Err(); err != nil {
		t.Fatalf("token reader: %v", err)
	}
	return out
}

// sliceSource is an in-memory TokenSource.
type sliceSource []string

func (s sliceSource) Open() (TokenReader, error) {
	return &sliceReader{tokens: s, pos: -1}, nil
}

type sliceReader struct {
	tokens []string
	pos    int
}

func (r *sliceReader) Next() bool {
	r.pos++
	return r.pos < len(r.tokens)
}

func (r *sliceReader) Token() []byte { return []byte(r.tokens[r.pos]) }
func (r *sliceReader) Err() error    { return nil }
func (r *sliceReader) Close() error  { return nil }

// failingSource yields its tokens, then fails with err on every open.
type failingSource struct {
	tokens []string
	err    error
}

func (s failingSource) Open() (TokenReader, error) {
	return &failingReader{sliceReader: sliceReader{tokens: s.tokens, pos: -1}, err: s.err}, nil
}

type failingReader struct {
	sliceReader
	err error
}

func (r *failingReader) Err() error {
	if r.pos >= len(r.tokens) {
		return r.err
	}
	return nil
}

func recordsEqual(a, b []Record) bool {
	return slices.Equal(a, b)
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
