// Package localstore provides the durable local key/value cache that
// keeps board preferences available across sessions and network
// failures.
package localstore

import "context"

// Store is a durable key/value store. Get reports a miss with
// ok=false; errors are reserved for transport or storage failures.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
