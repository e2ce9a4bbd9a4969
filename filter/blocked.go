package filter

import (
	"math/bits"
	"unsafe"
)

// cacheLineSize is the size of a CPU cache line in bytes.
const cacheLineSize = 64

// BlockedFilter is a non-thread-safe bloom filter using cache-line blocked
// one-hashing.
//
// The bit array is divided into 512-bit (64-byte) blocks that fit in a
// single CPU cache line. Each block is partitioned into k segments of
// distinct sizes, so a single xxh3 hash yields k independent bit positions
// via modulo operations and every probe for a token touches one cache line.
type BlockedFilter struct {
	raw       []byte       // heap allocation backing blocks, nil when mapped
	store     *mappedStore // file-backed storage, nil when on the heap
	blocks    []uint64     // 8 uint64s per block = 512 bits
	numBlocks uint64
	k         uint32
	sizes     []uint32 // segment sizes
	offsets   []uint32 // segment start bits within a block
	count     uint64
}

// NewBlocked creates a heap-backed filter with numBlocks 512-bit blocks and
// k probes per item. An unsupported k falls back to 7.
func NewBlocked(numBlocks uint64, k uint32) *BlockedFilter {
	f := newBlockedShape(numBlocks, k)
	f.raw, f.blocks = makeAlignedUint64Slice(int(f.numBlocks * BlockWords))
	return f
}

// newMappedBlocked creates a filter whose blocks live in a memory-mapped
// scratch file inside dir. The file is removed by Close.
func newMappedBlocked(dir string, numBlocks uint64, k uint32) (*BlockedFilter, error) {
	f := newBlockedShape(numBlocks, k)
	store, err := openMappedStore(dir, int(f.numBlocks*BlockWords*8))
	if err != nil {
		return nil, err
	}
	f.store = store
	f.blocks = store.words()
	return f, nil
}

func newBlockedShape(numBlocks uint64, k uint32) *BlockedFilter {
	numBlocks = max(numBlocks, 1)
	sizes := segments(k)
	if sizes == nil {
		k = 7
		sizes = segments(k)
	}
	return &BlockedFilter{
		numBlocks: numBlocks,
		k:         k,
		sizes:     sizes,
		offsets:   segmentOffsets(sizes),
	}
}

// makeAlignedUint64Slice allocates a cache-line aligned slice of uint64.
// Returns the raw byte slice (to keep alive for GC) and the aligned uint64 slice.
func makeAlignedUint64Slice(n int) ([]byte, []uint64) {
	raw := make([]byte, n*8+cacheLineSize-1)
	addr := uintptr(unsafe.Pointer(&raw[0]))
	offset := (cacheLineSize - int(addr%cacheLineSize)) % cacheLineSize
	aligned := unsafe.Slice((*uint64)(unsafe.Pointer(&raw[offset])), n)
	return raw, aligned
}

// Add adds data to the filter.
func (f *BlockedFilter) Add(data []byte) {
	blockIdx, intraHash := splitHash(hashToken(data), f.numBlocks)
	base := blockIdx * BlockWords
	for i := uint32(0); i < f.k; i++ {
		bitPos := f.offsets[i] + (intraHash % f.sizes[i])
		f.blocks[base+uint64(bitPos/64)] |= 1 << (bitPos % 64)
	}
	f.count++
}

// Test reports whether data might be in the filter.
func (f *BlockedFilter) Test(data []byte) bool {
	blockIdx, intraHash := splitHash(hashToken(data), f.numBlocks)
	base := blockIdx * BlockWords
	for i := uint32(0); i < f.k; i++ {
		bitPos := f.offsets[i] + (intraHash % f.sizes[i])
		if f.blocks[base+uint64(bitPos/64)]&(1<<(bitPos%64)) == 0 {
			return false
		}
	}
	return true
}

// Count returns the number of items added.
func (f *BlockedFilter) Count() uint64 {
	return f.count
}

// Cap returns the size of the bit array.
func (f *BlockedFilter) Cap() uint64 {
	return f.numBlocks * BlockBits
}

// K returns the number of probes per item.
func (f *BlockedFilter) K() uint32 {
	return f.k
}

// NumBlocks returns the number of 512-bit blocks.
func (f *BlockedFilter) NumBlocks() uint64 {
	return f.numBlocks
}

// Mapped reports whether the bit array lives in a memory-mapped file.
func (f *BlockedFilter) Mapped() bool {
	return f.store != nil
}

// EstimatedFillRatio returns the proportion of bits that are set.
func (f *BlockedFilter) EstimatedFillRatio() float64 {
	var set uint64
	for _, word := range f.blocks {
		set += uint64(bits.OnesCount64(word))
	}
	return float64(set) / float64(f.numBlocks*BlockBits)
}

// EstimatedFalsePositiveRate estimates the current false positive rate
// from the number of items added.
func (f *BlockedFilter) EstimatedFalsePositiveRate() float64 {
	return EstimateFalsePositiveRate(f.numBlocks, f.k, f.count)
}

// Close releases the bit array. A mapped filter's file is unmapped and
// deleted. The filter must not be used afterwards.
func (f *BlockedFilter) Close() error {
	f.blocks = nil
	f.raw = nil
	if f.store == nil {
		return nil
	}
	store := f.store
	f.store = nil
	return store.close()
}
