package filter

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidParams is returned when a filter can't be sized from the
// requested capacity and false positive rate.
var ErrInvalidParams = errors.New("filter: invalid parameters")

// Filter is an approximate set of tokens. Test never reports false for a
// token that was added; it may report true for one that was not.
//
// A Filter is owned by a single counting pass and must be closed when the
// pass ends, which releases its backing storage.
type Filter interface {
	// Add inserts data into the filter.
	Add(data []byte)
	// Test reports whether data might have been added.
	Test(data []byte) bool
	// Count returns the number of Add calls.
	Count() uint64
	// Close releases the backing storage. It is safe to call more than once.
	Close() error
}

// Kind selects a Filter implementation.
type Kind string

const (
	// Blocked is the cache-line blocked one-hashing filter in this package.
	Blocked Kind = "blocked"
	// Bitset is a classic bloom filter backed by bits-and-blooms/bloom.
	Bitset Kind = "bitset"
	// Blob is greatroar/blobloom's blocked bloom filter.
	Blob Kind = "blob"
)

// Kinds lists every supported Kind.
var Kinds = []Kind{Blocked, Bitset, Blob}

// ParseKind converts a name into a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown filter kind %q (valid: %v)", s, Kinds)
}

// Options configures a new Filter.
type Options struct {
	Kind Kind

	// Capacity is the number of distinct items the filter is sized for.
	Capacity uint64

	// FPRate is the target false positive rate at Capacity, in [0, 1).
	FPRate float64

	// Dir, when set, puts the bit array of a Blocked filter in a
	// memory-mapped scratch file created inside Dir instead of on the heap.
	Dir string
}

// New creates a Filter sized for opts.Capacity items at opts.FPRate.
func New(opts Options) (Filter, error) {
	if opts.Capacity == 0 {
		return nil, errors.Wrap(ErrInvalidParams, "capacity must be positive")
	}
	rate, ok := normalizeRate(opts.FPRate)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidParams, "false positive rate %v is not in [0, 1)", opts.FPRate)
	}

	switch opts.Kind {
	case Blocked, "":
		numBlocks, k, _ := OptimalParams(opts.Capacity, rate)
		if opts.Dir != "" {
			f, err := newMappedBlocked(opts.Dir, numBlocks, k)
			if err != nil {
				return nil, err
			}
			return f, nil
		}
		return NewBlocked(numBlocks, k), nil
	case Bitset:
		return newBitset(opts.Capacity, rate), nil
	case Blob:
		return newBlob(opts.Capacity, rate), nil
	default:
		return nil, errors.Wrapf(ErrInvalidParams, "unknown filter kind %q", opts.Kind)
	}
}
