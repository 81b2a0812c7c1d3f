//go:build !unix

package compsize

import (
	"io/fs"

	"github.com/zhengshuai-xiao/compsize/internal"
)

func openFile(path string) (int, error) {
	return -1, internal.ENOTSUP
}

func closeFile(fd int) error {
	return internal.ENOTSUP
}

func fileIdentity(info fs.FileInfo) (ino, dev uint64, ok bool) {
	return 0, 0, false
}
