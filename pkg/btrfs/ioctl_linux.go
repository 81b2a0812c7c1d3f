//go:build linux

package btrfs

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// _IOWR(BTRFS_IOCTL_MAGIC, 17, struct btrfs_ioctl_search_args_v2). The size
// field covers the fixed part only, the result buffer is a flexible array.
var ioctlTreeSearchV2 = iowr(ioctlMagic, ioctlTreeSearchV2Nr, SearchArgsHeaderSize)

func iowr(typ, nr, size uintptr) uintptr {
	const (
		iocRead  = 2
		iocWrite = 1
	)
	return (iocRead|iocWrite)<<30 | size<<16 | typ<<8 | nr
}

func treeSearchV2(fd uintptr, args []byte) error {
	// Retry on EINTR, matching Go's standard library.
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, ioctlTreeSearchV2, uintptr(unsafe.Pointer(&args[0])))
		switch errno {
		case 0:
			return nil
		case unix.EINTR:
			continue
		case unix.ENOTTY, unix.EOPNOTSUPP:
			return fmt.Errorf("%w: %w", ErrNotBtrfs, errno)
		default:
			return errno
		}
	}
}

// KernelRelease returns uname -r.
func KernelRelease() (string, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "", err
	}
	return unix.ByteSliceToString(uts.Release[:]), nil
}
