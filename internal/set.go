package internal

import "sync"

const defaultSetShards = 64

type uint64Shard struct {
	mu sync.Mutex
	m  map[uint64]struct{}
}

// ShardedUInt64Set is a uint64 set safe for concurrent use. Items are spread
// over independently locked shards so that writers touching different shards
// do not contend.
type ShardedUInt64Set struct {
	shards []uint64Shard
	mask   uint64
}

// NewShardedUInt64Set creates a set with n shards, rounded up to a power of
// two. n <= 0 selects the default.
func NewShardedUInt64Set(n int) *ShardedUInt64Set {
	if n <= 0 {
		n = defaultSetShards
	}
	size := 1
	for size < n {
		size <<= 1
	}
	s := &ShardedUInt64Set{
		shards: make([]uint64Shard, size),
		mask:   uint64(size - 1),
	}
	for i := range s.shards {
		s.shards[i].m = make(map[uint64]struct{})
	}
	return s
}

func (s *ShardedUInt64Set) shard(item uint64) *uint64Shard {
	// fibonacci hashing, neighbouring extent ids land on different shards
	return &s.shards[(item*0x9E3779B97F4A7C15>>32)&s.mask]
}

// Insert adds item and reports whether it was absent before. For any item
// exactly one caller ever observes true.
func (s *ShardedUInt64Set) Insert(item uint64) bool {
	sh := s.shard(item)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, exists := sh.m[item]; exists {
		return false
	}
	sh.m[item] = struct{}{}
	return true
}

func (s *ShardedUInt64Set) Contains(item uint64) bool {
	sh := s.shard(item)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	_, exists := sh.m[item]
	return exists
}

// Len locks each shard in turn; the result is exact only when no Insert runs
// concurrently.
func (s *ShardedUInt64Set) Len() int {
	total := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		total += len(sh.m)
		sh.mu.Unlock()
	}
	return total
}
