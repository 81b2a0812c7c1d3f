package compsize

import (
	"context"

	"github.com/zhengshuai-xiao/compsize/internal"
)

// ExtentSet remembers the physical extents a run has already credited. It
// is shared by all workers.
type ExtentSet interface {
	// Insert reports whether id was absent. For any id exactly one of
	// all concurrent and later callers sees true.
	Insert(ctx context.Context, id uint64) (bool, error)
	// Len is the number of distinct ids inserted so far.
	Len(ctx context.Context) (uint64, error)
	Close() error
}

// MemoryExtentSet keeps the set in process.
type MemoryExtentSet struct {
	set *internal.ShardedUInt64Set
}

func NewMemoryExtentSet() *MemoryExtentSet {
	return &MemoryExtentSet{set: internal.NewShardedUInt64Set(0)}
}

func (m *MemoryExtentSet) Insert(_ context.Context, id uint64) (bool, error) {
	return m.set.Insert(id), nil
}

func (m *MemoryExtentSet) Len(context.Context) (uint64, error) {
	return uint64(m.set.Len()), nil
}

func (m *MemoryExtentSet) Close() error { return nil }
