package compsize

import (
	"context"
	"errors"
	"fmt"

	"github.com/zhengshuai-xiao/compsize/pkg/btrfs"
)

const progressEvery = 10000

// worker owns its search buffer and partial Stat; the extent set is the
// only thing it shares.
type worker struct {
	id   int
	run  *runState
	args *btrfs.SearchArgs
	stat Stat
}

func newWorker(id int, rs *runState) *worker {
	args := btrfs.NewSearchArgsWithIoctl(rs.ioctl, rs.bufSize)
	args.SetInterrupt(rs.stopped)
	return &worker{id: id, run: rs, args: args}
}

func (w *worker) loop(ctx context.Context, queue <-chan FileEntry) error {
	defer func() {
		logger.Debugf("worker %d done: %d files, %d refs, %d new extents", w.id, w.stat.NFile, w.stat.NRef, w.stat.NExtent)
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case fe, ok := <-queue:
			if !ok || w.run.stopped() {
				return nil
			}
			if err := w.processFile(ctx, fe); err != nil {
				w.run.cancel()
				return err
			}
		}
	}
}

func (w *worker) processFile(ctx context.Context, fe FileEntry) error {
	fd, err := openFile(fe.Path)
	if err != nil {
		if w.run.skipErrors {
			logger.Warnf("open(%q): %v, skipped", fe.Path, err)
			w.stat.NSkipped++
			return nil
		}
		return fmt.Errorf("open(%q): %w", fe.Path, err)
	}
	defer closeFile(fd)

	w.stat.NFile++
	if w.stat.NFile%progressEvery == 0 {
		logger.Debugf("worker %d: %d files", w.id, w.stat.NFile)
	}

	session, err := w.args.Search(uintptr(fd), fe.Ino)
	if err != nil {
		return w.searchErr(fe.Path, err)
	}
	for {
		item, ok, err := session.Next()
		if err != nil {
			return w.searchErr(fe.Path, err)
		}
		if !ok {
			break
		}
		ext, ok, err := btrfs.Classify(item)
		if err != nil {
			return fmt.Errorf("%s: %w", fe.Path, err)
		}
		if !ok {
			continue
		}
		first := false
		if ext.Key.Type != btrfs.ExtentInline {
			if first, err = w.run.set.Insert(ctx, ext.Key.ID); err != nil {
				return fmt.Errorf("%s: %w", fe.Path, err)
			}
		}
		w.stat.account(ext, first)
	}
	logger.Tracef("%s: %d pages", fe.Path, session.Pages())
	return nil
}

func (w *worker) searchErr(path string, err error) error {
	if errors.Is(err, btrfs.ErrInterrupted) {
		return nil
	}
	return fmt.Errorf("%s: %w", path, err)
}
