package filter

import "math"

const (
	// BlockBits is the number of bits per block (one CPU cache line).
	BlockBits = 512
	// BlockWords is the number of uint64s per block.
	BlockWords = BlockBits / 64 // 8
	// MinFPRate is the smallest false positive rate a filter is sized for.
	// Requests below it (including 0) are raised to it.
	MinFPRate = 1e-6
	// ln2 is the natural logarithm of 2.
	ln2 = 0.6931471805599453
	// ln2Squared is ln(2)^2.
	ln2Squared = 0.4804530139182014
	// minK and maxK bound the number of probes per item.
	minK = 3
	maxK = 14
)

// primePartitions holds, for each supported probe count k, k strictly
// distinct segment sizes that sum to exactly 512 bits.
//
// For odd k one value is even: an odd count of odd numbers can't sum to 512.
var primePartitions = map[uint32][]uint32{
	3:  {167, 173, 172},
	4:  {109, 127, 137, 139},
	5:  {97, 101, 103, 109, 102},
	6:  {61, 79, 83, 89, 97, 103},
	7:  {61, 67, 71, 79, 83, 89, 62},
	8:  {37, 47, 53, 61, 67, 71, 79, 97},
	9:  {41, 43, 47, 53, 59, 67, 71, 73, 58},
	10: {31, 37, 41, 43, 47, 53, 59, 61, 67, 73},
	11: {29, 31, 37, 41, 43, 44, 47, 53, 59, 61, 67},
	12: {17, 23, 29, 31, 37, 41, 43, 47, 53, 59, 61, 71},
	13: {17, 19, 23, 29, 31, 37, 41, 43, 47, 52, 53, 59, 61},
	14: {11, 13, 17, 19, 23, 29, 31, 37, 41, 47, 53, 59, 61, 71},
}

// normalizeRate validates a false positive rate and raises it to MinFPRate.
func normalizeRate(fpRate float64) (float64, bool) {
	if math.IsNaN(fpRate) || fpRate >= 1 {
		return 0, false
	}
	return max(fpRate, MinFPRate), true
}

// OptimalParams returns the number of 512-bit blocks, the number of probes
// and the ideal bits per item for a filter holding capacity items at the
// given false positive rate. The rate must already be normalized.
func OptimalParams(capacity uint64, fpRate float64) (numBlocks uint64, k uint32, bitsPerItem float64) {
	capacity = max(capacity, 1)

	bitsPerItem = -math.Log(fpRate) / ln2Squared
	totalBits := float64(capacity) * bitsPerItem
	numBlocks = max(uint64(math.Ceil(totalBits/BlockBits)), 1)

	// k is derived from the bits actually allocated after block rounding.
	actualBitsPerItem := float64(numBlocks*BlockBits) / float64(capacity)
	k = uint32(math.Round(actualBitsPerItem * ln2))
	k = min(max(k, minK), maxK)

	return numBlocks, k, bitsPerItem
}

// segments returns the segment sizes for k probes, or nil if k is unsupported.
func segments(k uint32) []uint32 {
	return primePartitions[k]
}

// segmentOffsets returns the starting bit of every segment within a block.
func segmentOffsets(sizes []uint32) []uint32 {
	offsets := make([]uint32, len(sizes))
	var cumulative uint32
	for i, p := range sizes {
		offsets[i] = cumulative
		cumulative += p
	}
	return offsets
}

// EstimateFalsePositiveRate estimates the false positive rate of a blocked
// filter after itemsAdded insertions: (1 - e^(-kn/m))^k.
func EstimateFalsePositiveRate(numBlocks uint64, k uint32, itemsAdded uint64) float64 {
	m := float64(numBlocks * BlockBits)
	n := float64(itemsAdded)
	if m == 0 || n == 0 {
		return 0
	}
	kf := float64(k)
	return math.Pow(1-math.Exp(-kf*n/m), kf)
}
