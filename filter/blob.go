package filter

import "github.com/greatroar/blobloom"

// blobFilter adapts blobloom, which takes pre-computed 64-bit hashes.
type blobFilter struct {
	bf    *blobloom.Filter
	count uint64
}

func newBlob(capacity uint64, fpRate float64) *blobFilter {
	return &blobFilter{bf: blobloom.NewOptimized(blobloom.Config{
		Capacity: capacity,
		FPRate:   fpRate,
	})}
}

func (f *blobFilter) Add(data []byte) {
	f.bf.Add(hashToken(data))
	f.count++
}

func (f *blobFilter) Test(data []byte) bool { return f.bf.Has(hashToken(data)) }

func (f *blobFilter) Count() uint64 { return f.count }

func (f *blobFilter) Close() error {
	f.bf = nil
	return nil
}
