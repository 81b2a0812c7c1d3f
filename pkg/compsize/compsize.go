// Package compsize measures the on-disk footprint of files on btrfs: it walks
// the given paths, reads every file's extent records and credits each shared
// physical extent once per run.
package compsize

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/zhengshuai-xiao/compsize/internal"
	"github.com/zhengshuai-xiao/compsize/pkg/btrfs"
	"golang.org/x/sync/errgroup"
)

var logger = internal.GetLogger("compsize")

type Options struct {
	Workers       int
	QueueSize     int
	OneFileSystem bool
	// SkipErrors turns open and walk failures into warnings.
	SkipErrors bool

	// Set defaults to a fresh MemoryExtentSet. A caller supplied set is not
	// closed by Run.
	Set ExtentSet
	// Ioctl and SearchBufferSize default to the kernel call and
	// btrfs.DefaultSearchBufferSize.
	Ioctl            btrfs.SearchIoctl
	SearchBufferSize int
}

type Compsize struct {
	opts Options
}

func New(opts Options) *Compsize {
	if opts.Workers <= 0 {
		opts.Workers = internal.DefaultWorkers()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = internal.DefaultQueueSize
	}
	return &Compsize{opts: opts}
}

// runState is what the producer and the workers of one Run share.
type runState struct {
	set        ExtentSet
	ioctl      btrfs.SearchIoctl
	bufSize    int
	skipErrors bool

	// cancelSignal is set once, on the first fatal error or when the
	// caller's context ends.
	cancelSignal atomic.Bool
}

func (rs *runState) cancel()       { rs.cancelSignal.Store(true) }
func (rs *runState) stopped() bool { return rs.cancelSignal.Load() }

// Run processes every root and returns the merged statistics. On error the
// statistics gathered until the pipeline stopped are returned as well.
func (c *Compsize) Run(ctx context.Context, roots []string) (Stat, error) {
	set := c.opts.Set
	if set == nil {
		mem := NewMemoryExtentSet()
		defer mem.Close()
		set = mem
	}
	rs := &runState{
		set:        set,
		ioctl:      c.opts.Ioctl,
		bufSize:    c.opts.SearchBufferSize,
		skipErrors: c.opts.SkipErrors,
	}

	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, rs.cancel)
	defer stop()

	queue := make(chan FileEntry, c.opts.QueueSize)
	var walked Stat
	g.Go(func() error {
		defer close(queue)
		w := &walker{
			oneFileSystem: c.opts.OneFileSystem,
			skipErrors:    c.opts.SkipErrors,
			stopped:       rs.stopped,
			skip: func(path string, err error) {
				logger.Warnf("%s: %v, skipped", path, err)
				walked.NSkipped++
			},
		}
		for _, root := range roots {
			if rs.stopped() {
				return nil
			}
			err := w.walk(gctx, root, func(fe FileEntry) error {
				if rs.stopped() {
					return errStopWalk
				}
				select {
				case queue <- fe:
					return nil
				case <-gctx.Done():
					return errStopWalk
				}
			})
			if err != nil {
				rs.cancel()
				return fmt.Errorf("walk %s: %w", root, err)
			}
		}
		return nil
	})

	workers := make([]*worker, c.opts.Workers)
	for i := range workers {
		w := newWorker(i, rs)
		workers[i] = w
		g.Go(func() error {
			return w.loop(gctx, queue)
		})
	}
	logger.Debugf("started %d workers, queue size %d", len(workers), c.opts.QueueSize)

	err := g.Wait()
	total := walked
	for _, w := range workers {
		total.Merge(&w.stat)
	}
	if err == nil {
		err = ctx.Err()
	}

	if logger.IsLevelEnabled(logrus.DebugLevel) {
		if n, lerr := set.Len(context.Background()); lerr == nil {
			logger.Debugf("%d files, %d distinct extents in set", total.NFile, n)
		}
	}
	return total, err
}

// Check maps a finished run with nothing to report to internal.ErrNoFiles
// or internal.ErrNoExtents.
func (s *Stat) Check() error {
	if s.NFile == 0 {
		return internal.ErrNoFiles
	}
	if s.NRef+s.NInline == 0 {
		return internal.ErrNoExtents
	}
	return nil
}
