package btrfs

import (
	"errors"
	"fmt"
)

const (
	ioctlMagic          = 0x94
	ioctlTreeSearchV2Nr = 17

	// ExtentDataKey is BTRFS_EXTENT_DATA_KEY, the item type of file extents.
	ExtentDataKey uint32 = 108

	// MinAllocUnit is the smallest data allocation unit; every non-inline
	// disk_bytenr is a multiple of it.
	MinAllocUnit      = 4096
	minAllocUnitShift = 12

	// LastPageThreshold: a page returning this many items or fewer is the
	// last one, no further ioctl is issued for the session.
	LastPageThreshold = 512

	// SearchV2MinKernel is the first Linux release with TREE_SEARCH_V2.
	SearchV2MinKernel = "3.16"

	// DefaultSearchBufferSize is the result buffer carried by SearchArgs.
	DefaultSearchBufferSize = 64 * 1024
)

// ExtentType is the btrfs_file_extent_item.type byte.
type ExtentType uint8

const (
	ExtentInline   ExtentType = 0
	ExtentRegular  ExtentType = 1
	ExtentPrealloc ExtentType = 2
)

func (t ExtentType) String() string {
	switch t {
	case ExtentInline:
		return "inline"
	case ExtentRegular:
		return "regular"
	case ExtentPrealloc:
		return "prealloc"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

func (t ExtentType) valid() bool {
	return t <= ExtentPrealloc
}

var (
	ErrNotBtrfs    = errors.New("not btrfs (or SEARCH_V2 unsupported)")
	ErrCorruptPage = errors.New("search result overruns buffer")
	ErrInterrupted = errors.New("search interrupted")
)

// SearchError is a failed TREE_SEARCH_V2 page load. It is fatal for the run.
type SearchError struct {
	Ino uint64
	Err error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("SEARCH_V2 (ino %d): %v", e.Ino, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// ParseError is a structurally invalid extent record.
type ParseError struct {
	// Offset is the logical file offset from the record header.
	Offset uint64
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extent at offset %d: %s: %v", e.Offset, e.Reason, e.Err)
	}
	return fmt.Sprintf("extent at offset %d: %s", e.Offset, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }
