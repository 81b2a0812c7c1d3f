// Package btrfstest provides an in-memory stand-in for the btrfs
// TREE_SEARCH_V2 ioctl, for use in tests.
package btrfstest

import (
	"encoding/binary"
	"math"
	"sort"
	"sync"
	"syscall"

	"github.com/zhengshuai-xiao/compsize/pkg/btrfs"
)

// FS answers TREE_SEARCH_V2 calls from a per-inode list of extent records
// the way the kernel does: records are returned in offset order, starting
// at key.MinOffset, as many as fit in the result buffer.
type FS struct {
	mu        sync.Mutex
	files     map[uint64][]btrfs.SearchItem
	pageSizes map[uint64][]int
	errs      map[uint64]error
	calls     map[uint64][]btrfs.SearchKey
}

func New() *FS {
	return &FS{
		files:     make(map[uint64][]btrfs.SearchItem),
		pageSizes: make(map[uint64][]int),
		errs:      make(map[uint64]error),
		calls:     make(map[uint64][]btrfs.SearchKey),
	}
}

// AddItems registers records for ino. ObjectID and Type of each header are
// filled in when left zero.
func (f *FS) AddItems(ino uint64, items ...btrfs.SearchItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range items {
		if it.Header.ObjectID == 0 {
			it.Header.ObjectID = ino
		}
		if it.Header.Type == 0 {
			it.Header.Type = btrfs.ExtentDataKey
		}
		f.files[ino] = append(f.files[ino], it)
	}
	sort.SliceStable(f.files[ino], func(i, j int) bool {
		return f.files[ino][i].Header.Offset < f.files[ino][j].Header.Offset
	})
}

// SetPageSizes caps the number of records returned by successive calls for
// ino. Calls past the end of the list are limited by buffer space only.
func (f *FS) SetPageSizes(ino uint64, sizes ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageSizes[ino] = append([]int(nil), sizes...)
}

// FailWith makes every call for ino return err.
func (f *FS) FailWith(ino uint64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[ino] = err
}

// Calls returns the keys of all calls issued for ino so far.
func (f *FS) Calls(ino uint64) []btrfs.SearchKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]btrfs.SearchKey(nil), f.calls[ino]...)
}

// Ioctl has the btrfs.SearchIoctl signature. fd is ignored, the inode is
// taken from the key.
func (f *FS) Ioctl(fd uintptr, args []byte) error {
	key := btrfs.DecodeSearchKey(args)
	bufSize := int(binary.LittleEndian.Uint64(args[btrfs.SearchKeySize:btrfs.SearchArgsHeaderSize]))
	buf := args[btrfs.SearchArgsHeaderSize : btrfs.SearchArgsHeaderSize+bufSize]
	ino := key.MinObjectID

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[ino] = append(f.calls[ino], key)
	if err, ok := f.errs[ino]; ok {
		return err
	}

	limit := math.MaxInt
	if sizes := f.pageSizes[ino]; len(sizes) > 0 {
		limit = sizes[0]
		f.pageSizes[ino] = sizes[1:]
	}

	var (
		pos, n int
		rec    []byte
	)
	for _, it := range f.files[ino] {
		h := it.Header
		if h.ObjectID < key.MinObjectID || h.ObjectID > key.MaxObjectID ||
			h.Type < key.MinType || h.Type > key.MaxType ||
			h.Offset < key.MinOffset || h.Offset > key.MaxOffset {
			continue
		}
		if n >= limit || uint32(n) >= key.NrItems {
			break
		}
		rec = btrfs.AppendSearchItem(rec[:0], it)
		if pos+len(rec) > len(buf) {
			if n == 0 {
				return syscall.EOVERFLOW
			}
			break
		}
		copy(buf[pos:], rec)
		pos += len(rec)
		n++
	}

	key.NrItems = uint32(n)
	key.Encode(args)
	return nil
}
