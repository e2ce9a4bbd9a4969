package filter

import "github.com/bits-and-blooms/bloom/v3"

// bitsetFilter adapts a classic bits-and-blooms bloom filter.
type bitsetFilter struct {
	bf    *bloom.BloomFilter
	count uint64
}

func newBitset(capacity uint64, fpRate float64) *bitsetFilter {
	return &bitsetFilter{bf: bloom.NewWithEstimates(uint(capacity), fpRate)}
}

func (f *bitsetFilter) Add(data []byte) {
	f.bf.Add(data)
	f.count++
}

func (f *bitsetFilter) Test(data []byte) bool { return f.bf.Test(data) }

func (f *bitsetFilter) Count() uint64 { return f.count }

func (f *bitsetFilter) Close() error {
	f.bf = nil
	return nil
}
