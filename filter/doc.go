// Package filter provides the approximate membership filters used to absorb
// the first occurrence of every k-mer during counting.
//
// A bloom filter answers "possibly present" or "definitely absent". False
// positive matches are possible, but false negatives are not: once a token
// has been added, Test always reports it.
//
// # Implementations
//
// Three kinds are available through [New]:
//
// [Blocked] is the default. Memory is divided into 512-bit (64-byte) blocks
// that match the CPU cache line size, and all k probes for one token land in
// the same block. Instead of k independent hash functions it computes a
// single xxh3 hash and derives the k bit positions with modulo operations
// against distinct segment sizes (one-hashing). Its bit array can live on
// the heap or, when [Options.Dir] is set, in a memory-mapped scratch file
// that Close deletes.
//
// [Bitset] wraps github.com/bits-and-blooms/bloom/v3, a classic bloom filter
// with independent probes across the whole bit array.
//
// [Blob] wraps github.com/greatroar/blobloom, fed with xxh3 hashes.
//
// # Choosing Parameters
//
// Filters are sized from the number of distinct items they will see and a
// target false positive rate:
//
//	f, err := filter.New(filter.Options{Capacity: 1_000_000, FPRate: 0.01})
//
// The rate must be below 1. Rates under [MinFPRate], including 0, are raised
// to it since no bloom filter reaches an error rate of zero.
//
// # Memory Usage
//
// For a filter sized for n items with false positive rate p:
//
//	memory_bits ≈ -n * ln(p) / (ln(2))²
//
// Example: 1 million items at 1% FP rate ≈ 1.2 MB
//
// # Thread Safety
//
// No implementation is safe for concurrent use.
package filter
