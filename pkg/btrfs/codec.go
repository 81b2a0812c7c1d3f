package btrfs

import (
	"math"

	"github.com/zhengshuai-xiao/compsize/internal"
)

// struct btrfs_ioctl_search_header, 32 bytes:
//
//	transid  u64 @0
//	objectid u64 @8
//	offset   u64 @16
//	type     u32 @24
//	len      u32 @28
const (
	SearchHeaderSize = 32

	hdrTransIDOff  = 0
	hdrObjectIDOff = 8
	hdrOffsetOff   = 16
	hdrTypeOff     = 24
	hdrLenOff      = 28
)

// struct btrfs_file_extent_item, packed. Inline extents stop after the type
// byte and carry their data instead of the last four fields.
const (
	FileExtentInlineHeaderSize = 21
	FileExtentItemSize         = 53

	feiGenerationOff    = 0
	feiRAMBytesOff      = 8
	feiCompressionOff   = 16
	feiEncryptionOff    = 17
	feiOtherEncodingOff = 18
	feiTypeOff          = 20
	feiDiskBytenrOff    = 21
	feiDiskNumBytesOff  = 29
	feiOffsetOff        = 37
	feiNumBytesOff      = 45
)

// struct btrfs_ioctl_search_key, 104 bytes, followed in
// btrfs_ioctl_search_args_v2 by buf_size u64 and the result buffer.
const (
	SearchKeySize        = 104
	SearchArgsHeaderSize = SearchKeySize + 8
	keyTreeIDOff         = 0
	keyMinObjectIDOff    = 8
	keyMaxObjectIDOff    = 16
	keyMinOffsetOff      = 24
	keyMaxOffsetOff      = 32
	keyMinTransIDOff     = 40
	keyMaxTransIDOff     = 48
	keyMinTypeOff        = 56
	keyMaxTypeOff        = 60
	keyNrItemsOff        = 64
	keyUnusedOff         = 68
	keyUnused1Off        = 72
	keyUnused2Off        = 80
	keyUnused3Off        = 88
	keyUnused4Off        = 96
	argsBufSizeOff       = SearchKeySize
	argsBufOff           = SearchArgsHeaderSize
)

type SearchHeader struct {
	TransID  uint64
	ObjectID uint64
	Offset   uint64
	Type     uint32
	Len      uint32
}

type FileExtentItem struct {
	Generation    uint64
	RAMBytes      uint64
	Compression   uint8
	Encryption    uint8
	OtherEncoding uint16
	Type          uint8

	// Only present for non-inline extents.
	DiskBytenr   uint64
	DiskNumBytes uint64
	Offset       uint64
	NumBytes     uint64
}

// SearchItem is one record of a TREE_SEARCH_V2 result page.
type SearchItem struct {
	Header SearchHeader
	Item   FileExtentItem
}

// SearchKey selects the items a TREE_SEARCH_V2 call returns. NrItems is an
// in/out field: the kernel overwrites it with the number of items written.
type SearchKey struct {
	TreeID      uint64
	MinObjectID uint64
	MaxObjectID uint64
	MinOffset   uint64
	MaxOffset   uint64
	MinTransID  uint64
	MaxTransID  uint64
	MinType     uint32
	MaxType     uint32
	NrItems     uint32
}

// ExtentDataSearchKey returns the key for every EXTENT_DATA item of ino.
// TreeID 0 means the subvolume tree of the fd the ioctl is issued on.
func ExtentDataSearchKey(ino uint64) SearchKey {
	return SearchKey{
		TreeID:      0,
		MinObjectID: ino,
		MaxObjectID: ino,
		MinOffset:   0,
		MaxOffset:   math.MaxUint64,
		MinTransID:  0,
		MaxTransID:  math.MaxUint64,
		MinType:     ExtentDataKey,
		MaxType:     ExtentDataKey,
		NrItems:     math.MaxUint32,
	}
}

// Encode writes the key into b[:SearchKeySize], zeroing the reserved fields.
func (k *SearchKey) Encode(b []byte) {
	internal.PutLEUint64At(b, keyTreeIDOff, k.TreeID)
	internal.PutLEUint64At(b, keyMinObjectIDOff, k.MinObjectID)
	internal.PutLEUint64At(b, keyMaxObjectIDOff, k.MaxObjectID)
	internal.PutLEUint64At(b, keyMinOffsetOff, k.MinOffset)
	internal.PutLEUint64At(b, keyMaxOffsetOff, k.MaxOffset)
	internal.PutLEUint64At(b, keyMinTransIDOff, k.MinTransID)
	internal.PutLEUint64At(b, keyMaxTransIDOff, k.MaxTransID)
	internal.PutLEUint32At(b, keyMinTypeOff, k.MinType)
	internal.PutLEUint32At(b, keyMaxTypeOff, k.MaxType)
	internal.PutLEUint32At(b, keyNrItemsOff, k.NrItems)
	internal.PutLEUint32At(b, keyUnusedOff, 0)
	internal.PutLEUint64At(b, keyUnused1Off, 0)
	internal.PutLEUint64At(b, keyUnused2Off, 0)
	internal.PutLEUint64At(b, keyUnused3Off, 0)
	internal.PutLEUint64At(b, keyUnused4Off, 0)
}

// DecodeSearchKey is the inverse of Encode.
func DecodeSearchKey(b []byte) SearchKey {
	return SearchKey{
		TreeID:      internal.LEUint64At(b, keyTreeIDOff),
		MinObjectID: internal.LEUint64At(b, keyMinObjectIDOff),
		MaxObjectID: internal.LEUint64At(b, keyMaxObjectIDOff),
		MinOffset:   internal.LEUint64At(b, keyMinOffsetOff),
		MaxOffset:   internal.LEUint64At(b, keyMaxOffsetOff),
		MinTransID:  internal.LEUint64At(b, keyMinTransIDOff),
		MaxTransID:  internal.LEUint64At(b, keyMaxTransIDOff),
		MinType:     internal.LEUint32At(b, keyMinTypeOff),
		MaxType:     internal.LEUint32At(b, keyMaxTypeOff),
		NrItems:     internal.LEUint32At(b, keyNrItemsOff),
	}
}

// DecodeSearchHeader decodes b[:SearchHeaderSize].
func DecodeSearchHeader(b []byte) SearchHeader {
	return SearchHeader{
		TransID:  internal.LEUint64At(b, hdrTransIDOff),
		ObjectID: internal.LEUint64At(b, hdrObjectIDOff),
		Offset:   internal.LEUint64At(b, hdrOffsetOff),
		Type:     internal.LEUint32At(b, hdrTypeOff),
		Len:      internal.LEUint32At(b, hdrLenOff),
	}
}

// DecodeFileExtentItem decodes an extent-data payload. Fields that do not
// fit in payload are left zero; Classify rejects such records.
func DecodeFileExtentItem(payload []byte) FileExtentItem {
	var it FileExtentItem
	if len(payload) < FileExtentInlineHeaderSize {
		return it
	}
	it.Generation = internal.LEUint64At(payload, feiGenerationOff)
	it.RAMBytes = internal.LEUint64At(payload, feiRAMBytesOff)
	it.Compression = payload[feiCompressionOff]
	it.Encryption = payload[feiEncryptionOff]
	it.OtherEncoding = internal.LEUint16At(payload, feiOtherEncodingOff)
	it.Type = payload[feiTypeOff]
	if ExtentType(it.Type) == ExtentInline || len(payload) < FileExtentItemSize {
		return it
	}
	it.DiskBytenr = internal.LEUint64At(payload, feiDiskBytenrOff)
	it.DiskNumBytes = internal.LEUint64At(payload, feiDiskNumBytesOff)
	it.Offset = internal.LEUint64At(payload, feiOffsetOff)
	it.NumBytes = internal.LEUint64At(payload, feiNumBytesOff)
	return it
}

// DecodeSearchItem decodes the record starting at b[0]. The caller
// guarantees len(b) >= SearchHeaderSize + header.Len.
func DecodeSearchItem(b []byte) SearchItem {
	hdr := DecodeSearchHeader(b)
	payload := b[SearchHeaderSize : SearchHeaderSize+int(hdr.Len)]
	return SearchItem{Header: hdr, Item: DecodeFileExtentItem(payload)}
}

// AppendSearchItem encodes item the way the kernel lays it out in a result
// page. For inline extents Header.Len decides the payload size and the
// inline data bytes are zero.
func AppendSearchItem(dst []byte, item SearchItem) []byte {
	start := len(dst)
	dst = append(dst, make([]byte, SearchHeaderSize+int(item.Header.Len))...)
	b := dst[start:]

	internal.PutLEUint64At(b, hdrTransIDOff, item.Header.TransID)
	internal.PutLEUint64At(b, hdrObjectIDOff, item.Header.ObjectID)
	internal.PutLEUint64At(b, hdrOffsetOff, item.Header.Offset)
	internal.PutLEUint32At(b, hdrTypeOff, item.Header.Type)
	internal.PutLEUint32At(b, hdrLenOff, item.Header.Len)

	p := b[SearchHeaderSize:]
	if len(p) < FileExtentInlineHeaderSize {
		return dst
	}
	internal.PutLEUint64At(p, feiGenerationOff, item.Item.Generation)
	internal.PutLEUint64At(p, feiRAMBytesOff, item.Item.RAMBytes)
	p[feiCompressionOff] = item.Item.Compression
	p[feiEncryptionOff] = item.Item.Encryption
	internal.PutLEUint16At(p, feiOtherEncodingOff, item.Item.OtherEncoding)
	p[feiTypeOff] = item.Item.Type
	if ExtentType(item.Item.Type) == ExtentInline || len(p) < FileExtentItemSize {
		return dst
	}
	internal.PutLEUint64At(p, feiDiskBytenrOff, item.Item.DiskBytenr)
	internal.PutLEUint64At(p, feiDiskNumBytesOff, item.Item.DiskNumBytes)
	internal.PutLEUint64At(p, feiOffsetOff, item.Item.Offset)
	internal.PutLEUint64At(p, feiNumBytesOff, item.Item.NumBytes)
	return dst
}
