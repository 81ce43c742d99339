// Package syncutil holds small concurrency helpers shared across services.
package syncutil

import (
	"hash/fnv"
	"sync"
)

const shardCount = 256

// ShardedMutex serializes work per string key using a fixed pool of
// mutexes. Profile rebuilds lock on party or bank identifiers, and the
// key space is unbounded, so memory stays constant at the cost of
// occasional false sharing when two keys land in the same shard.
type ShardedMutex struct {
	shards [shardCount]sync.Mutex
}

// Lock acquires the shard for key and returns its unlock function.
func (s *ShardedMutex) Lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	mu := &s.shards[h.Sum32()%shardCount]
	mu.Lock()
	return mu.Unlock
}
