package compsize

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileEntry is a regular file queued for the workers.
type FileEntry struct {
	Path string
	Ino  uint64
	Dev  uint64
}

var errStopWalk = errors.New("walk stopped")

type walker struct {
	oneFileSystem bool
	skipErrors    bool
	stopped       func() bool
	// skip records an open or walk failure that is being tolerated
	skip func(path string, err error)
}

// walk calls emit for every regular file under root, root itself included.
// Symlinks are never followed and non-regular files are ignored.
func (w *walker) walk(ctx context.Context, root string, emit func(FileEntry) error) error {
	rootInfo, err := os.Stat(root)
	if err != nil {
		if w.skipErrors {
			w.skip(root, err)
			return nil
		}
		return err
	}
	_, rootDev, _ := fileIdentity(rootInfo)

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if w.stopped() || ctx.Err() != nil {
			return errStopWalk
		}
		if err != nil {
			if !w.skipErrors {
				return err
			}
			w.skip(path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// removed while we were walking
				return nil
			}
			if !w.skipErrors {
				return err
			}
			w.skip(path, err)
			return nil
		}
		ino, dev, ok := fileIdentity(info)
		if !ok {
			return fmt.Errorf("%s: no inode information", path)
		}
		if w.oneFileSystem && dev != rootDev {
			logger.Debugf("%s: on another filesystem, skipped", path)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		return emit(FileEntry{Path: path, Ino: ino, Dev: dev})
	})
	if errors.Is(err, errStopWalk) {
		return nil
	}
	return err
}
