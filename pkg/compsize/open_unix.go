//go:build unix

package compsize

import (
	"io/fs"
	"syscall"

	"golang.org/x/sys/unix"
)

const openFlags = unix.O_RDONLY | unix.O_NOFOLLOW | unix.O_NOCTTY | unix.O_NONBLOCK | unix.O_CLOEXEC

func openFile(path string) (int, error) {
	for {
		fd, err := unix.Open(path, openFlags, 0)
		if err == unix.EINTR {
			continue
		}
		return fd, err
	}
}

func closeFile(fd int) error {
	return unix.Close(fd)
}

func fileIdentity(info fs.FileInfo) (ino, dev uint64, ok bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, false
	}
	return uint64(st.Ino), uint64(st.Dev), true
}
