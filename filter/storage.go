package filter

import (
	"os"
	"unsafe"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
)

// mappedStore is a zero-filled scratch file mapped read-write into memory.
// Each store gets its own file name, so concurrent passes never collide.
type mappedStore struct {
	file *os.File
	mm   mmap.MMap
}

func openMappedStore(dir string, size int) (*mappedStore, error) {
	file, err := os.CreateTemp(dir, "filter-*.bits")
	if err != nil {
		return nil, errors.Wrap(err, "create filter backing file")
	}
	discard := func() {
		_ = file.Close()
		_ = os.Remove(file.Name())
	}
	if err := file.Truncate(int64(size)); err != nil {
		discard()
		return nil, errors.Wrapf(err, "size filter backing file %s to %d bytes", file.Name(), size)
	}
	mm, err := mmap.Map(file, mmap.RDWR, 0)
	if err != nil {
		discard()
		return nil, errors.Wrapf(err, "map filter backing file %s", file.Name())
	}
	return &mappedStore{file: file, mm: mm}, nil
}

// words views the mapping as uint64s. Mappings are page aligned, which
// keeps every block on its own cache line.
func (s *mappedStore) words() []uint64 {
	return unsafe.Slice((*uint64)(unsafe.Pointer(&s.mm[0])), len(s.mm)/8)
}

// path returns the backing file's name.
func (s *mappedStore) path() string {
	return s.file.Name()
}

// close unmaps, closes and deletes the backing file, reporting the first
// failure after attempting all three.
func (s *mappedStore) close() error {
	var first error
	if err := s.mm.Unmap(); err != nil {
		first = errors.Wrapf(err, "unmap %s", s.path())
	}
	if err := s.file.Close(); err != nil && first == nil {
		first = errors.Wrapf(err, "close %s", s.path())
	}
	if err := os.Remove(s.path()); err != nil && first == nil {
		first = errors.Wrapf(err, "remove %s", s.path())
	}
	return first
}
