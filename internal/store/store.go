// Package store provides durable key-value storage for cache persistence.
//
// A KVStore maps a namespace to an opaque serialized blob. Implementations
// must tolerate first-run absence: Get on a missing namespace returns
// (nil, nil), not an error. Corrupt blobs are the caller's problem to detect;
// the store only moves bytes.
package store

// KVStore is the durable key-value boundary shared by the content caches.
type KVStore interface {
	// Get returns the blob stored under namespace, or (nil, nil) if absent.
	Get(namespace string) ([]byte, error)

	// Set replaces the blob stored under namespace.
	Set(namespace string, blob []byte) error

	// Remove deletes the namespace. Removing an absent namespace is not an
	// error.
	Remove(namespace string) error
}
