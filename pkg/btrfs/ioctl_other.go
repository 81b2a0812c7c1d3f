//go:build !linux

package btrfs

import (
	"fmt"

	"github.com/zhengshuai-xiao/compsize/internal"
)

func treeSearchV2(fd uintptr, args []byte) error {
	return fmt.Errorf("%w: %w", ErrNotBtrfs, internal.ENOTSUP)
}

func KernelRelease() (string, error) {
	return "", internal.ENOTSUP
}
