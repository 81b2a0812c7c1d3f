package btrfs

import (
	"fmt"

	"github.com/zhengshuai-xiao/compsize/internal/compression"
)

// ExtentKey identifies a physical extent. ID is the disk byte number in
// MinAllocUnit units and is meaningless for inline extents.
type ExtentKey struct {
	Type ExtentType
	ID   uint64
}

// ExtentStat is a byte triple. Disk is what the extent occupies,
// Uncompressed its logical size and Referenced the part this file range
// actually uses.
type ExtentStat struct {
	Disk         uint64
	Uncompressed uint64
	Referenced   uint64
}

func (s *ExtentStat) Add(o ExtentStat) {
	s.Disk += o.Disk
	s.Uncompressed += o.Uncompressed
	s.Referenced += o.Referenced
}

func (s ExtentStat) IsZero() bool {
	return s == ExtentStat{}
}

// Extent is a classified extent-data record.
type Extent struct {
	Key         ExtentKey
	Compression compression.CompressionType
	Stat        ExtentStat
}

// Classify turns a decoded record into an Extent. ok is false for holes.
func Classify(item SearchItem) (ext Extent, ok bool, err error) {
	hdr, fei := item.Header, item.Item

	if hdr.Len < FileExtentInlineHeaderSize {
		return Extent{}, false, &ParseError{Offset: hdr.Offset,
			Reason: fmt.Sprintf("extent item is %d bytes, shorter than its %d byte header", hdr.Len, FileExtentInlineHeaderSize)}
	}
	comp, err := compression.FromCode(fei.Compression)
	if err != nil {
		return Extent{}, false, &ParseError{Offset: hdr.Offset, Reason: "bad compression", Err: err}
	}
	typ := ExtentType(fei.Type)
	if !typ.valid() {
		return Extent{}, false, &ParseError{Offset: hdr.Offset, Reason: fmt.Sprintf("invalid extent type %d", fei.Type)}
	}

	if typ == ExtentInline {
		return Extent{
			Key:         ExtentKey{Type: typ},
			Compression: comp,
			Stat: ExtentStat{
				Disk:         uint64(hdr.Len) - FileExtentInlineHeaderSize,
				Uncompressed: fei.RAMBytes,
				Referenced:   fei.RAMBytes,
			},
		}, true, nil
	}

	if hdr.Len != FileExtentItemSize {
		return Extent{}, false, &ParseError{Offset: hdr.Offset,
			Reason: fmt.Sprintf("regular extent's header not %d bytes (%d) long", FileExtentItemSize, hdr.Len)}
	}
	if fei.DiskBytenr == 0 {
		// hole
		return Extent{}, false, nil
	}
	if fei.DiskBytenr&(MinAllocUnit-1) != 0 {
		return Extent{}, false, &ParseError{Offset: hdr.Offset,
			Reason: fmt.Sprintf("extent not 4k aligned at %#x", fei.DiskBytenr)}
	}

	return Extent{
		Key:         ExtentKey{Type: typ, ID: fei.DiskBytenr >> minAllocUnitShift},
		Compression: comp,
		Stat: ExtentStat{
			Disk:         fei.DiskNumBytes,
			Uncompressed: fei.RAMBytes,
			Referenced:   fei.NumBytes,
		},
	}, true, nil
}
