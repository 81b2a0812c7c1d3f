package btrfs

import (
	"math"

	"github.com/zhengshuai-xiao/compsize/internal"
)

var logger = internal.GetLogger("btrfs")

// SearchIoctl issues BTRFS_IOC_TREE_SEARCH_V2 on fd. args is the complete
// btrfs_ioctl_search_args_v2 block: encoded key, buf_size, result buffer.
type SearchIoctl func(fd uintptr, args []byte) error

// SearchArgs is the ioctl argument block. It is large, so a caller keeps one
// per goroutine and reuses it for every file; it is not safe for concurrent
// use and only one Session may be active on it at a time.
type SearchArgs struct {
	raw       []byte
	key       SearchKey
	ioctl     SearchIoctl
	interrupt func() bool
}

func NewSearchArgs() *SearchArgs {
	return NewSearchArgsWithIoctl(treeSearchV2, DefaultSearchBufferSize)
}

// NewSearchArgsWithIoctl builds a SearchArgs issuing its page loads through
// fn with a bufSize result buffer. A nil fn is the kernel ioctl, bufSize <= 0
// selects the default.
func NewSearchArgsWithIoctl(fn SearchIoctl, bufSize int) *SearchArgs {
	if fn == nil {
		fn = treeSearchV2
	}
	if bufSize <= 0 {
		bufSize = DefaultSearchBufferSize
	}
	return &SearchArgs{
		raw:   make([]byte, argsBufOff+bufSize),
		ioctl: fn,
	}
}

// SetInterrupt installs fn, polled before and after every page load. Once it
// reports true the active session fails with ErrInterrupted.
func (a *SearchArgs) SetInterrupt(fn func() bool) {
	a.interrupt = fn
}

func (a *SearchArgs) BufferSize() int {
	return len(a.raw) - argsBufOff
}

func (a *SearchArgs) interrupted() bool {
	return a.interrupt != nil && a.interrupt()
}

// Search resets the key to every EXTENT_DATA item of ino and loads the first
// page. The result buffer is not cleared between sessions.
func (a *SearchArgs) Search(fd uintptr, ino uint64) (*Session, error) {
	a.key = ExtentDataSearchKey(ino)
	s := &Session{args: a, fd: fd, ino: ino}
	if err := s.loadPage(); err != nil {
		return nil, err
	}
	return s, nil
}

// Session walks the extent records of one inode, page by page.
type Session struct {
	args *SearchArgs
	fd   uintptr
	ino  uint64

	pos        int
	nrest      uint32
	last       bool
	lastOffset uint64
	pages      int
}

func (s *Session) loadPage() error {
	a := s.args
	if a.interrupted() {
		return ErrInterrupted
	}
	a.key.NrItems = math.MaxUint32
	a.key.Encode(a.raw)
	internal.PutLEUint64At(a.raw, argsBufSizeOff, uint64(a.BufferSize()))
	if err := a.ioctl(s.fd, a.raw); err != nil {
		return &SearchError{Ino: s.ino, Err: err}
	}
	s.pages++
	s.nrest = internal.LEUint32At(a.raw, keyNrItemsOff)
	s.last = s.nrest <= LastPageThreshold
	s.pos = 0
	logger.Tracef("ino %d: page %d min_offset %d returned %d items", s.ino, s.pages, a.key.MinOffset, s.nrest)
	if a.interrupted() {
		return ErrInterrupted
	}
	return nil
}

// Next returns the next record. ok is false once the session is exhausted.
func (s *Session) Next() (item SearchItem, ok bool, err error) {
	if s.nrest == 0 {
		if s.last || s.lastOffset == math.MaxUint64 {
			return SearchItem{}, false, nil
		}
		s.args.key.MinOffset = s.lastOffset + 1
		if err := s.loadPage(); err != nil {
			return SearchItem{}, false, err
		}
		if s.nrest == 0 {
			return SearchItem{}, false, nil
		}
	}

	buf := s.args.raw[argsBufOff:]
	if s.pos+SearchHeaderSize > len(buf) {
		return SearchItem{}, false, &SearchError{Ino: s.ino, Err: ErrCorruptPage}
	}
	end := s.pos + SearchHeaderSize + int(internal.LEUint32At(buf, s.pos+hdrLenOff))
	if end > len(buf) {
		return SearchItem{}, false, &SearchError{Ino: s.ino, Err: ErrCorruptPage}
	}
	item = DecodeSearchItem(buf[s.pos:end])
	s.pos = end
	s.nrest--
	s.lastOffset = item.Header.Offset
	return item, true, nil
}

// Pages reports how many page loads the session issued so far.
func (s *Session) Pages() int {
	return s.pages
}
