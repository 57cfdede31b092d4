package pubsub

import "context"

// Store is the ordered-list and blob backend shared by the broker and clients.
//
// List positions follow Redis LRANGE conventions: indexes are zero based and
// negative indexes count from the tail, so ReadRange(ctx, key, 0, -1) returns
// the whole list. Reading a missing list yields an empty slice.
//
// No atomic pop is required. Draining is ReadRange followed by Trim with the
// number of elements just read, so items appended between the two calls stay
// in the list and surface on the next drain.
type Store interface {
	// Append atomically adds value to the tail of the list at key.
	Append(ctx context.Context, key string, value []byte) error

	// ReadRange returns the elements between start and end inclusive.
	ReadRange(ctx context.Context, key string, start, end int64) ([][]byte, error)

	// Trim removes the first count elements of the list at key.
	Trim(ctx context.Context, key string, count int64) error

	// GetBlob returns the blob stored at key, or nil when it is absent.
	GetBlob(ctx context.Context, key string) ([]byte, error)

	// SetBlob stores value at key, replacing any previous value.
	SetBlob(ctx context.Context, key string, value []byte) error

	// Delete removes key, whether it holds a list or a blob.
	Delete(ctx context.Context, key string) error
}

// drain reads every element currently queued at key and trims exactly that
// many from the head. An empty list causes no mutation.
func drain(ctx context.Context, store Store, key string) ([][]byte, error) {
	items, err := store.ReadRange(ctx, key, 0, -1)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	if err := store.Trim(ctx, key, int64(len(items))); err != nil {
		return nil, err
	}
	return items, nil
}
