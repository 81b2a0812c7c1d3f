//go:build unix

package compsize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhengshuai-xiao/compsize/internal"
	"github.com/zhengshuai-xiao/compsize/internal/compression"
	"github.com/zhengshuai-xiao/compsize/pkg/btrfs"
	"github.com/zhengshuai-xiao/compsize/pkg/btrfs/btrfstest"
)

// touch creates path (and its parents) and returns its inode number.
func touch(t *testing.T, path string) uint64 {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	info, err := os.Stat(path)
	require.NoError(t, err)
	ino, _, ok := fileIdentity(info)
	require.True(t, ok)
	return ino
}

func inlineRecord(offset uint64, dataLen uint32, ram uint64, comp compression.CompressionType) btrfs.SearchItem {
	return btrfs.SearchItem{
		Header: btrfs.SearchHeader{Offset: offset, Len: btrfs.FileExtentInlineHeaderSize + dataLen},
		Item:   btrfs.FileExtentItem{RAMBytes: ram, Compression: uint8(comp), Type: uint8(btrfs.ExtentInline)},
	}
}

func extentRecord(typ btrfs.ExtentType, offset, bytenr, disk, ram, num uint64, comp compression.CompressionType) btrfs.SearchItem {
	return btrfs.SearchItem{
		Header: btrfs.SearchHeader{Offset: offset, Len: btrfs.FileExtentItemSize},
		Item: btrfs.FileExtentItem{
			RAMBytes:     ram,
			Compression:  uint8(comp),
			Type:         uint8(typ),
			DiskBytenr:   bytenr,
			DiskNumBytes: disk,
			NumBytes:     num,
		},
	}
}

func runWith(t *testing.T, fs *btrfstest.FS, opts Options, roots ...string) (Stat, error) {
	t.Helper()
	opts.Ioctl = fs.Ioctl
	return New(opts).Run(context.Background(), roots)
}

func TestRunInlineFile(t *testing.T) {
	dir := t.TempDir()
	fs := btrfstest.New()
	fs.AddItems(touch(t, filepath.Join(dir, "small")), inlineRecord(0, 60, 100, compression.Compress_none))

	st, err := runWith(t, fs, Options{Workers: 2}, dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.NFile)
	assert.Equal(t, uint64(1), st.NInline)
	assert.Zero(t, st.NRef)
	assert.Zero(t, st.NExtent)
	assert.Equal(t, btrfs.ExtentStat{Disk: 60, Uncompressed: 100, Referenced: 100}, st.Compression[compression.Compress_none])
	assert.NoError(t, st.Check())
}

func TestRunSharedExtentCreditedOnce(t *testing.T) {
	dir := t.TempDir()
	fs := btrfstest.New()
	shared := extentRecord(btrfs.ExtentRegular, 0, 1<<30, 4096, 4096, 4096, compression.Compress_none)
	fs.AddItems(touch(t, filepath.Join(dir, "a")), shared)
	fs.AddItems(touch(t, filepath.Join(dir, "b")), shared)

	st, err := runWith(t, fs, Options{Workers: 4}, dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), st.NFile)
	assert.Equal(t, uint64(2), st.NRef)
	assert.Equal(t, uint64(1), st.NExtent)
	assert.Equal(t, btrfs.ExtentStat{Disk: 4096, Uncompressed: 4096, Referenced: 8192}, st.Compression[compression.Compress_none])
}

func TestRunPreallocBucket(t *testing.T) {
	dir := t.TempDir()
	fs := btrfstest.New()
	fs.AddItems(touch(t, filepath.Join(dir, "fallocated")),
		extentRecord(btrfs.ExtentPrealloc, 0, 2<<20, 4096, 0, 0, compression.Compress_none))

	st, err := runWith(t, fs, Options{}, dir)
	require.NoError(t, err)
	assert.Equal(t, btrfs.ExtentStat{Disk: 4096}, st.Prealloc)
	for i, c := range st.Compression {
		assert.True(t, c.IsZero(), "bucket %d", i)
	}
	assert.Equal(t, uint64(1), st.NRef)
	assert.Equal(t, uint64(1), st.NExtent)
	assert.NoError(t, st.Check())
}

func TestRunManyFilesConcurrently(t *testing.T) {
	dir := t.TempDir()
	fs := btrfstest.New()

	const files = 200
	var wantRef uint64
	for i := 0; i < files; i++ {
		ino := touch(t, filepath.Join(dir, fmt.Sprintf("d%d", i%5), fmt.Sprintf("f%d", i)))
		comp := compression.CompressionType(i % compression.NumTypes)
		fs.AddItems(ino,
			// extents shared by everybody with the same compression
			extentRecord(btrfs.ExtentRegular, 0, uint64(1+int(comp))<<20, 4096, 8192, 2048, comp),
			// one private extent per file
			extentRecord(btrfs.ExtentRegular, 8192, uint64(100+i)<<20, 4096, 4096, 4096, comp),
			// a hole
			extentRecord(btrfs.ExtentRegular, 12288, 0, 0, 4096, 4096, comp),
		)
		wantRef += 2048 + 4096
	}

	st, err := runWith(t, fs, Options{Workers: 8, QueueSize: 3}, dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(files), st.NFile)
	assert.Equal(t, uint64(2*files), st.NRef)
	assert.Equal(t, uint64(compression.NumTypes+files), st.NExtent)

	total := st.Total()
	assert.Equal(t, uint64(4096*(compression.NumTypes+files)), total.Disk)
	assert.Equal(t, uint64(8192*compression.NumTypes+4096*files), total.Uncompressed)
	assert.Equal(t, wantRef, total.Referenced)
	for _, c := range compression.All() {
		assert.Equal(t, uint64(4096*(1+files/compression.NumTypes)), st.Compression[c].Disk, c.String())
	}
}

func TestRunExtentSetSharedAcrossRoots(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	fs := btrfstest.New()
	rec := extentRecord(btrfs.ExtentRegular, 0, 1<<20, 4096, 16384, 16384, compression.Compress_zstd)
	fs.AddItems(touch(t, filepath.Join(a, "x")), rec)
	fs.AddItems(touch(t, filepath.Join(b, "y")), rec)

	st, err := runWith(t, fs, Options{}, a, b)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.NExtent)
	assert.Equal(t, btrfs.ExtentStat{Disk: 4096, Uncompressed: 16384, Referenced: 32768}, st.Compression[compression.Compress_zstd])
}

func TestRunWithRedisSet(t *testing.T) {
	mr := miniredis.RunT(t)
	set, err := NewRedisExtentSet(context.Background(), mr.Addr(), "e2e", time.Minute)
	require.NoError(t, err)
	defer set.Close()

	dir := t.TempDir()
	fs := btrfstest.New()
	shared := extentRecord(btrfs.ExtentRegular, 0, 1<<20, 4096, 4096, 4096, compression.Compress_lzo)
	for i := 0; i < 10; i++ {
		fs.AddItems(touch(t, filepath.Join(dir, fmt.Sprint(i))), shared)
	}

	st, err := runWith(t, fs, Options{Set: set, Workers: 4}, dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), st.NRef)
	assert.Equal(t, uint64(1), st.NExtent)
	assert.Equal(t, uint64(4096), st.Compression[compression.Compress_lzo].Disk)

	members, err := mr.Members(redisExtentKey("e2e"))
	require.NoError(t, err)
	assert.Equal(t, []string{"256"}, members)
}

func TestRunSingleFileRoot(t *testing.T) {
	dir := t.TempDir()
	fs := btrfstest.New()
	path := filepath.Join(dir, "only")
	fs.AddItems(touch(t, path), inlineRecord(0, 5, 5, compression.Compress_none))
	touch(t, filepath.Join(dir, "other"))

	st, err := runWith(t, fs, Options{}, path)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.NFile)
}

func TestRunIgnoresSymlinksAndSpecialFiles(t *testing.T) {
	dir := t.TempDir()
	fs := btrfstest.New()
	target := filepath.Join(dir, "target")
	fs.AddItems(touch(t, target), inlineRecord(0, 5, 5, compression.Compress_none))
	require.NoError(t, os.Symlink(target, filepath.Join(dir, "link")))
	require.NoError(t, syscall.Mkfifo(filepath.Join(dir, "fifo"), 0o644))

	st, err := runWith(t, fs, Options{}, dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.NFile)
	assert.Equal(t, uint64(1), st.NInline)
}

func TestRunNothingToReport(t *testing.T) {
	dir := t.TempDir()
	st, err := runWith(t, btrfstest.New(), Options{}, dir)
	require.NoError(t, err)
	assert.ErrorIs(t, st.Check(), internal.ErrNoFiles)

	fs := btrfstest.New()
	// an empty file and a sparse one
	touch(t, filepath.Join(dir, "empty"))
	fs.AddItems(touch(t, filepath.Join(dir, "sparse")), extentRecord(btrfs.ExtentRegular, 0, 0, 0, 1<<20, 1<<20, compression.Compress_none))
	st, err = runWith(t, fs, Options{}, dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), st.NFile)
	assert.ErrorIs(t, st.Check(), internal.ErrNoExtents)
}

func TestRunNotBtrfs(t *testing.T) {
	dir := t.TempDir()
	fs := btrfstest.New()
	for i := 0; i < 20; i++ {
		fs.FailWith(touch(t, filepath.Join(dir, fmt.Sprint(i))), fmt.Errorf("%w: %w", btrfs.ErrNotBtrfs, syscall.ENOTTY))
	}

	st, err := runWith(t, fs, Options{Workers: 4}, dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, btrfs.ErrNotBtrfs)
	assert.Contains(t, err.Error(), dir)
	// every file that got opened is counted, fewer than all of them
	// because the run stops early
	assert.GreaterOrEqual(t, st.NFile, uint64(1))
	assert.LessOrEqual(t, st.NFile, uint64(20))
}

func TestRunParseErrorKeepsPartialStats(t *testing.T) {
	dir := t.TempDir()
	fs := btrfstest.New()
	bad := filepath.Join(dir, "bad")
	fs.AddItems(touch(t, bad),
		inlineRecord(0, 10, 10, compression.Compress_none),
		extentRecord(btrfs.ExtentRegular, 4096, 4097, 4096, 4096, 4096, compression.Compress_none))

	st, err := runWith(t, fs, Options{Workers: 1}, dir)
	require.Error(t, err)
	var pe *btrfs.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, uint64(4096), pe.Offset)
	assert.Contains(t, err.Error(), bad)
	assert.Equal(t, uint64(1), st.NInline)
}

func TestRunMissingRoot(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")

	_, err := runWith(t, btrfstest.New(), Options{}, missing)
	assert.ErrorIs(t, err, os.ErrNotExist)

	dir := t.TempDir()
	fs := btrfstest.New()
	fs.AddItems(touch(t, filepath.Join(dir, "f")), inlineRecord(0, 1, 1, compression.Compress_none))
	st, err := runWith(t, fs, Options{SkipErrors: true}, missing, dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.NSkipped)
	assert.Equal(t, uint64(1), st.NFile)
}

func TestRunCancelledContext(t *testing.T) {
	dir := t.TempDir()
	fs := btrfstest.New()
	for i := 0; i < 50; i++ {
		fs.AddItems(touch(t, filepath.Join(dir, fmt.Sprint(i))), inlineRecord(0, 1, 1, compression.Compress_none))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st, err := New(Options{Ioctl: fs.Ioctl}).Run(ctx, []string{dir})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, st.NFile, uint64(50))
}

func TestWorkerStopsOnCancelSignal(t *testing.T) {
	fs := btrfstest.New()
	dir := t.TempDir()
	path := filepath.Join(dir, "big")
	ino := touch(t, path)
	items := make([]btrfs.SearchItem, 1000)
	for i := range items {
		items[i] = extentRecord(btrfs.ExtentRegular, uint64(i)*4096, uint64(i+1)<<12, 4096, 4096, 4096, compression.Compress_none)
	}
	fs.AddItems(ino, items...)
	fs.SetPageSizes(ino, 600)

	rs := &runState{set: NewMemoryExtentSet(), ioctl: fs.Ioctl}
	w := newWorker(0, rs)
	rs.cancel()
	require.NoError(t, w.processFile(context.Background(), FileEntry{Path: path, Ino: ino}))
	// the first page load is refused, nothing is credited
	assert.Equal(t, uint64(1), w.stat.NFile)
	assert.Zero(t, w.stat.NRef)
	assert.Empty(t, fs.Calls(ino))
}
