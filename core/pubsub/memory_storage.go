package pubsub

import (
	"context"
	"slices"
	"sync"
)

// MemoryStorageStats provides observability metrics for monitoring and debugging
type MemoryStorageStats struct {
	Lists int // Number of non-empty lists
	Blobs int // Number of stored blobs
	Items int // Total number of list elements across all lists
}

// MemoryStorage implements Store in process memory for testing and local development.
// Values are copied on the way in and out, so callers may reuse their buffers.
type MemoryStorage struct {
	mu    sync.RWMutex
	lists map[string][][]byte
	blobs map[string][]byte
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		lists: make(map[string][][]byte),
		blobs: make(map[string][]byte),
	}
}

// Append adds a copy of value to the tail of the list at key.
func (ms *MemoryStorage) Append(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.lists[key] = append(ms.lists[key], slices.Clone(value))
	return nil
}

// ReadRange returns copies of the elements between start and end inclusive.
func (ms *MemoryStorage) ReadRange(ctx context.Context, key string, start, end int64) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	list := ms.lists[key]
	lo, hi, ok := NormalizeRange(int64(len(list)), start, end)
	if !ok {
		return [][]byte{}, nil
	}

	out := make([][]byte, 0, hi-lo+1)
	for _, v := range list[lo : hi+1] {
		out = append(out, slices.Clone(v))
	}
	return out, nil
}

// Trim removes the first count elements. Trimming everything deletes the list.
func (ms *MemoryStorage) Trim(ctx context.Context, key string, count int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if count <= 0 {
		return nil
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	list := ms.lists[key]
	if count >= int64(len(list)) {
		delete(ms.lists, key)
		return nil
	}
	ms.lists[key] = slices.Clone(list[count:])
	return nil
}

// GetBlob returns a copy of the blob at key, or nil when absent.
func (ms *MemoryStorage) GetBlob(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	v, ok := ms.blobs[key]
	if !ok {
		return nil, nil
	}
	return slices.Clone(v), nil
}

// SetBlob stores a copy of value at key.
func (ms *MemoryStorage) SetBlob(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	v := slices.Clone(value)
	if v == nil {
		v = []byte{}
	}
	ms.blobs[key] = v
	return nil
}

// Delete removes key from both the list and blob namespaces.
func (ms *MemoryStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.lists, key)
	delete(ms.blobs, key)
	return nil
}

// Len returns the number of elements in the list at key.
func (ms *MemoryStorage) Len(key string) int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.lists[key])
}

// Exists reports whether key holds a list or a blob.
func (ms *MemoryStorage) Exists(key string) bool {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	_, list := ms.lists[key]
	_, blob := ms.blobs[key]
	return list || blob
}

// Stats returns current storage statistics.
func (ms *MemoryStorage) Stats() MemoryStorageStats {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	stats := MemoryStorageStats{Lists: len(ms.lists), Blobs: len(ms.blobs)}
	for _, list := range ms.lists {
		stats.Items += len(list)
	}
	return stats
}

// NormalizeRange converts Redis-style inclusive indexes into bounds for a list
// of length n. ok is false when the range selects nothing.
func NormalizeRange(n, start, end int64) (lo, hi int64, ok bool) {
	if start < 0 {
		start += n
	}
	if end < 0 {
		end += n
	}
	if start < 0 {
		start = 0
	}
	if end >= n {
		end = n - 1
	}
	if n == 0 || start > end || start >= n {
		return 0, 0, false
	}
	return start, end, true
}
