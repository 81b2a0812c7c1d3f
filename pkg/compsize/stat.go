package compsize

import (
	"github.com/zhengshuai-xiao/compsize/internal/compression"
	"github.com/zhengshuai-xiao/compsize/pkg/btrfs"
)

// Stat is the aggregate of a run, or of the part of it one worker saw.
type Stat struct {
	NFile   uint64
	NInline uint64
	NRef    uint64
	NExtent uint64
	// NSkipped counts files that could not be opened or walked when errors
	// are being skipped.
	NSkipped uint64

	Compression [compression.NumTypes]btrfs.ExtentStat
	Prealloc    btrfs.ExtentStat
}

// Merge adds o into s field by field.
func (s *Stat) Merge(o *Stat) {
	s.NFile += o.NFile
	s.NInline += o.NInline
	s.NRef += o.NRef
	s.NExtent += o.NExtent
	s.NSkipped += o.NSkipped
	for i := range s.Compression {
		s.Compression[i].Add(o.Compression[i])
	}
	s.Prealloc.Add(o.Prealloc)
}

// Total sums every compression bucket and prealloc.
func (s *Stat) Total() btrfs.ExtentStat {
	var t btrfs.ExtentStat
	for _, c := range s.Compression {
		t.Add(c)
	}
	t.Add(s.Prealloc)
	return t
}

// account applies one classified extent. first is whether this run has
// not seen the extent's physical id before; it is ignored for inline
// extents, which are never shared.
func (s *Stat) account(ext btrfs.Extent, first bool) {
	switch ext.Key.Type {
	case btrfs.ExtentInline:
		s.NInline++
		s.Compression[ext.Compression.Index()].Add(ext.Stat)
	case btrfs.ExtentRegular:
		s.NRef++
		s.addShared(&s.Compression[ext.Compression.Index()], ext.Stat, first)
	case btrfs.ExtentPrealloc:
		s.NRef++
		s.addShared(&s.Prealloc, ext.Stat, first)
	}
}

func (s *Stat) addShared(bucket *btrfs.ExtentStat, es btrfs.ExtentStat, first bool) {
	if first {
		s.NExtent++
		bucket.Disk += es.Disk
		bucket.Uncompressed += es.Uncompressed
	}
	bucket.Referenced += es.Referenced
}
