package filter

import "github.com/zeebo/xxh3"

// hashToken returns the xxh3 hash of a token.
func hashToken(data []byte) uint64 {
	return xxh3.Hash(data)
}

// splitHash splits a 64-bit hash into a block index (from the upper 32 bits)
// and the intra-block hash (the lower 32 bits).
func splitHash(h uint64, numBlocks uint64) (blockIdx uint64, intraHash uint32) {
	blockIdx = (h >> 32) % numBlocks
	intraHash = uint32(h)
	return
}
