// Package memory holds process-local implementations of the storage ports.
// They back single-instance deployments and tests; every mutation takes the
// lock of the shard owning its key, so unrelated keys never contend.
package memory

import (
	"hash/fnv"
	"sync"
)

const defaultShards = 32

type shard[V any] struct {
	mu sync.Mutex
	m  map[string]V
}

// shardedMap is a string-keyed map split across independently locked shards.
type shardedMap[V any] struct {
	shards []*shard[V]
}

func newShardedMap[V any](n int) *shardedMap[V] {
	if n <= 0 {
		n = defaultShards
	}
	sm := &shardedMap[V]{shards: make([]*shard[V], n)}
	for i := range sm.shards {
		sm.shards[i] = &shard[V]{m: make(map[string]V)}
	}
	return sm
}

// shardFor maps a key deterministically to its shard.
func (sm *shardedMap[V]) shardFor(key string) *shard[V] {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return sm.shards[h.Sum32()%uint32(len(sm.shards))]
}

// with runs fn while holding the lock of key's shard.
func (sm *shardedMap[V]) with(key string, fn func(m map[string]V)) {
	s := sm.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.m)
}

// deleteIf removes every entry for which drop returns true and reports how
// many were removed. Shards are visited one at a time.
func (sm *shardedMap[V]) deleteIf(drop func(key string, v V) bool) int {
	removed := 0
	for _, s := range sm.shards {
		s.mu.Lock()
		for k, v := range s.m {
			if drop(k, v) {
				delete(s.m, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}
