package kmertop

import (
	"math"

	"github.com/pkg/errors"
)

const (
	// DefaultAlphabet is the number of nucleotide symbols.
	DefaultAlphabet = 4

	// DefaultTokenOverhead is the estimated number of bytes a counted token
	// costs in memory beyond its own k bytes: a 16-byte string header, an
	// 8-byte count and the map's per-entry slot and hash bookkeeping.
	// It is a heuristic, tunable through Budget.TokenOverhead.
	DefaultTokenOverhead = 48

	// memoryShare is the share of the memory budget a pass may use; the
	// rest is headroom.
	memoryShare = 0.7
)

// Strategy is the counting algorithm chosen for a run.
type Strategy int

const (
	// SinglePass counts every token in one in-memory pass.
	SinglePass Strategy = iota
	// Partitioned shards tokens to disk and counts one shard at a time.
	Partitioned
)

func (s Strategy) String() string {
	switch s {
	case SinglePass:
		return "single-pass"
	case Partitioned:
		return "partitioned"
	default:
		return "unknown"
	}
}

// Budget holds the inputs of the planner.
type Budget struct {
	TotalTokens uint64
	K           int
	DiskBits    uint64
	MemoryBits  uint64
	Alphabet    int

	// TokenOverhead is the in-memory bookkeeping cost of one counted token
	// in bytes. Zero means DefaultTokenOverhead.
	TokenOverhead int
}

// Plan is the resource plan for a run.
type Plan struct {
	Strategy       Strategy
	Iterations     uint64
	Partitions     uint64
	FilterCapacity uint64

	// Universe is the largest possible number of distinct tokens.
	Universe uint64
	// MemBitsPerToken is the in-memory cost of one counted token.
	MemBitsPerToken uint64
	// DiskBitsPerToken is the cost of one token in a partition file.
	DiskBitsPerToken uint64
}

// NewPlan computes how many iterations and partitions keep a run inside
// its disk and memory budgets, how large each pass's filter must be, and
// which strategy to use. It is a pure function of b.
//
// The partitioned strategy is chosen when counting every possible distinct
// token in memory would exceed 70% of the memory budget.
func NewPlan(b Budget) (Plan, error) {
	switch {
	case b.TotalTokens == 0:
		return Plan{}, errors.Wrap(ErrParameter, "total token count must be positive")
	case b.K <= 0:
		return Plan{}, errors.Wrapf(ErrParameter, "k must be positive, got %d", b.K)
	case b.DiskBits == 0:
		return Plan{}, errors.Wrap(ErrParameter, "disk budget must be positive")
	case b.MemoryBits == 0:
		return Plan{}, errors.Wrap(ErrParameter, "memory budget must be positive")
	case b.Alphabet < 1:
		return Plan{}, errors.Wrapf(ErrParameter, "alphabet size must be positive, got %d", b.Alphabet)
	case b.TokenOverhead < 0:
		return Plan{}, errors.Wrapf(ErrParameter, "token overhead must not be negative, got %d", b.TokenOverhead)
	}

	overhead := b.TokenOverhead
	if overhead == 0 {
		overhead = DefaultTokenOverhead
	}

	p := Plan{
		Universe:         universe(b.Alphabet, b.K, b.TotalTokens),
		MemBitsPerToken:  uint64(b.K+overhead) * 8,
		DiskBitsPerToken: uint64(b.K+1) * 8,
	}

	u := float64(p.Universe)
	memNeeded := u * float64(p.MemBitsPerToken)
	memAvailable := memoryShare * float64(b.MemoryBits)

	p.Iterations = ceilCount(u * float64(p.DiskBitsPerToken) / float64(b.DiskBits))
	p.Partitions = ceilCount(memNeeded / (memAvailable * float64(p.Iterations)))

	if memAvailable < memNeeded {
		p.Strategy = Partitioned
		p.FilterCapacity = ceilCount(u / float64(p.Iterations*p.Partitions))
	} else {
		p.Strategy = SinglePass
		p.FilterCapacity = p.Universe
	}
	return p, nil
}

// universe returns min(alphabet^k, total) without overflowing.
func universe(alphabet, k int, total uint64) uint64 {
	if alphabet == 1 {
		return 1
	}
	n := uint64(1)
	for range k {
		if n >= total || n > math.MaxUint64/uint64(alphabet) {
			return total
		}
		n *= uint64(alphabet)
	}
	return min(n, total)
}

// ceilCount rounds x up to a count of at least one.
func ceilCount(x float64) uint64 {
	c := math.Ceil(x)
	if c < 1 || math.IsNaN(c) {
		return 1
	}
	if c >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(c)
}
