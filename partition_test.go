package kmertop

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/jcalabro/kmertop/filter"
	"github.com/pkg/errors"
)

func testPlan(iters, parts, capacity uint64) Plan {
	return Plan{Strategy: Partitioned, Iterations: iters, Partitions: parts, FilterCapacity: capacity}
}

func TestShardCompleteness(t *testing.T) {
	reads := randomReads(3, 50, 60)
	src, err := OpenSource(writeFastq(t, reads...), 6)
	if err != nil {
		t.Fatalf("OpenSource: %v", err)
	}
	r, _ := src.Open()
	all := collect(t, r)
	r.Close()

	for _, codec := range Codecs {
		t.Run(string(codec), func(t *testing.T) {
			c := &PartitionedCounter{Plan: testPlan(3, 4, 1000), Codec: codec, Dir: t.TempDir()}

			var sharded []string
			for it := range c.Plan.Iterations {
				paths, err := c.shard(src, it)
				if err != nil {
					t.Fatalf("shard %d: %v", it, err)
				}
				if len(paths) != 4 {
					t.Fatalf("expected 4 partition files, got %d", len(paths))
				}
				for j, path := range paths {
					pr, err := openPartition(path, codec)
					if err != nil {
						t.Fatalf("openPartition: %v", err)
					}
					for _, tok := range collect(t, pr) {
						h := PartitionHash([]byte(tok))
						if h%3 != it || (h/3)%4 != uint64(j) {
							t.Errorf("token %s landed in iteration %d partition %d", tok, it, j)
						}
						sharded = append(sharded, tok)
					}
					pr.Close()
				}
				c.removeAll(paths)
			}

			want := slices.Clone(all)
			slices.Sort(want)
			slices.Sort(sharded)
			if !slices.Equal(sharded, want) {
				t.Errorf("partitions hold %d tokens, input has %d", len(sharded), len(want))
			}
		})
	}
}

func TestShardCustomHash(t *testing.T) {
	dir := t.TempDir()
	c := &PartitionedCounter{
		Plan: testPlan(2, 3, 10),
		Dir:  dir,
		Hash: func([]byte) uint64 { return 5 }, // iteration 1, partition 2
	}
	src := sliceSource{"AAA", "CCC", "AAA"}

	paths, err := c.shard(src, 0)
	if err != nil {
		t.Fatalf("shard: %v", err)
	}
	for _, p := range paths {
		if info, _ := os.Stat(p); info.Size() != 0 {
			t.Errorf("iteration 0: expected %s to be empty", p)
		}
	}
	c.removeAll(paths)

	paths, err = c.shard(src, 1)
	if err != nil {
		t.Fatalf("shard: %v", err)
	}
	data, err := os.ReadFile(paths[2])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "AAA\nCCC\nAAA\n" {
		t.Errorf("partition 2 holds %q", data)
	}
	c.removeAll(paths)
}

func TestPartitionedMatchesSinglePass(t *testing.T) {
	const k, n = 7, 30
	reads := randomReads(11, 150, 70)
	src, err := OpenSource(writeFastq(t, reads...), k)
	if err != nil {
		t.Fatalf("OpenSource: %v", err)
	}
	want := exactTop(reads, k, n)

	for _, codec := range Codecs {
		t.Run(string(codec), func(t *testing.T) {
			dir := t.TempDir()
			top := NewTopK(n)
			c := &PartitionedCounter{
				Plan:   testPlan(2, 5, src.Total()),
				Filter: filter.Options{FPRate: 0},
				Codec:  codec,
				Dir:    dir,
			}
			if err := c.Count(src, top); err != nil {
				t.Fatalf("Count: %v", err)
			}
			if got := top.Results(); !recordsEqual(got, want) {
				t.Errorf("got %v\nwant %v", got, want)
			}
			if names := dirEntries(t, dir); len(names) != 0 {
				t.Errorf("expected partition files to be removed, found %v", names)
			}
		})
	}
}

func TestPartitionedMappedFilters(t *testing.T) {
	dir := t.TempDir()
	c := &PartitionedCounter{
		Plan:   testPlan(2, 2, 100),
		Filter: filter.Options{FPRate: 0.001, Dir: dir},
		Dir:    dir,
	}
	top := NewTopK(2)
	if err := c.Count(sliceSource{"AC", "AC", "GT", "AC", "GT", "TT"}, top); err != nil {
		t.Fatalf("Count: %v", err)
	}
	want := []Record{{Token: "AC", Count: 3}, {Token: "GT", Count: 2}}
	if got := top.Results(); !recordsEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if names := dirEntries(t, dir); len(names) != 0 {
		t.Errorf("expected scratch files to be removed, found %v", names)
	}
}

func TestPartitionedEvents(t *testing.T) {
	var kinds []EventKind
	c := &PartitionedCounter{
		Plan:     testPlan(2, 3, 10),
		Filter:   filter.Options{FPRate: 0.01},
		Dir:      t.TempDir(),
		Observer: func(e Event) { kinds = append(kinds, e.Kind) },
	}
	if err := c.Count(sliceSource{"AAA", "CCC", "AAA"}, NewTopK(1)); err != nil {
		t.Fatalf("Count: %v", err)
	}

	round := []EventKind{EventShardStart, EventShardDone,
		EventPassStart, EventPassDone, EventPassStart, EventPassDone, EventPassStart, EventPassDone}
	want := append(slices.Clone(round), round...)
	if !slices.Equal(kinds, want) {
		t.Errorf("events = %v, want %v", kinds, want)
	}
}

func TestPartitionedFilterFailureCleansUp(t *testing.T) {
	dir := t.TempDir()
	c := &PartitionedCounter{
		Plan:   testPlan(1, 3, 10),
		Filter: filter.Options{Kind: "cuckoo", FPRate: 0.01},
		Dir:    dir,
	}
	err := c.Count(sliceSource{"AAA", "CCC", "GGG"}, NewTopK(1))
	if !errors.Is(err, ErrResource) {
		t.Fatalf("expected ErrResource, got %v", err)
	}
	if names := dirEntries(t, dir); len(names) != 0 {
		t.Errorf("expected partition files to be removed after failure, found %v", names)
	}
}

func TestPartitionedMissingDir(t *testing.T) {
	c := &PartitionedCounter{
		Plan:   testPlan(1, 2, 10),
		Filter: filter.Options{FPRate: 0.01},
		Dir:    filepath.Join(t.TempDir(), "missing"),
	}
	err := c.Count(sliceSource{"AAA"}, NewTopK(1))
	if !errors.Is(err, ErrResource) {
		t.Errorf("expected ErrResource, got %v", err)
	}
}

func TestPartitionedExistingFileIsNotClobbered(t *testing.T) {
	dir := t.TempDir()
	c := &PartitionedCounter{Plan: testPlan(1, 2, 10), Filter: filter.Options{FPRate: 0.01}, Dir: dir}
	stale := c.partitionPath(1)
	if err := os.WriteFile(stale, []byte("stale\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	err := c.Count(sliceSource{"AAA"}, NewTopK(1))
	if !errors.Is(err, ErrResource) {
		t.Fatalf("expected ErrResource, got %v", err)
	}
	if names := dirEntries(t, dir); !slices.Equal(names, []string{"1.part"}) {
		t.Errorf("expected only the pre-existing file to remain, found %v", names)
	}
}

func TestPartitionedInvalidPlan(t *testing.T) {
	tests := []struct {
		name string
		plan Plan
	}{
		{"zero iterations", testPlan(0, 2, 10)},
		{"zero partitions", testPlan(1, 0, 10)},
		{"zero capacity", testPlan(1, 2, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			c := &PartitionedCounter{Plan: tt.plan, Filter: filter.Options{FPRate: 0.01}, Dir: dir}
			err := c.Count(sliceSource{"AAA", "AAA"}, NewTopK(1))
			if !errors.Is(err, ErrParameter) {
				t.Errorf("expected ErrParameter, got %v", err)
			}
			if names := dirEntries(t, dir); len(names) != 0 {
				t.Errorf("expected no partition files, found %v", names)
			}
		})
	}
}

func TestPartitionedReadFailureCleansUp(t *testing.T) {
	errRead := errors.New("disk went away")
	dir := t.TempDir()
	c := &PartitionedCounter{Plan: testPlan(2, 3, 10), Filter: filter.Options{FPRate: 0.01}, Dir: dir}

	err := c.Count(failingSource{tokens: []string{"AAA", "CCC", "GGG", "TTT"}, err: errRead}, NewTopK(1))
	if !errors.Is(err, errRead) {
		t.Fatalf("expected the read error, got %v", err)
	}
	if names := dirEntries(t, dir); len(names) != 0 {
		t.Errorf("expected partition files to be removed after failure, found %v", names)
	}
}

func TestPartitionedKeepsCarriageReturns(t *testing.T) {
	src := sliceSource{"AC\r", "AC\r", "C\rG", "AC\r", "C\rG"}
	want := []Record{{Token: "AC\r", Count: 3}, {Token: "C\rG", Count: 2}}

	for _, codec := range Codecs {
		t.Run(string(codec), func(t *testing.T) {
			top := NewTopK(5)
			c := &PartitionedCounter{Plan: testPlan(2, 2, 10), Filter: filter.Options{FPRate: 0}, Codec: codec, Dir: t.TempDir()}
			if err := c.Count(src, top); err != nil {
				t.Fatalf("Count: %v", err)
			}
			if got := top.Results(); !recordsEqual(got, want) {
				t.Errorf("partitioned got %q, want %q", got, want)
			}
		})
	}

	r, _ := src.Open()
	got, err := CountTokenReader(r, 5, filter.Options{Capacity: 10, FPRate: 0})
	if err != nil {
		t.Fatalf("CountTokenReader: %v", err)
	}
	if !recordsEqual(got, want) {
		t.Errorf("single-pass got %q, want %q", got, want)
	}
}
