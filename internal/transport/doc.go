// Package transport defines the backend capability every driver runs against.
//
// A Transport stores and fetches opaque values by key. Each variant lives in
// its own subpackage and owns its connection resources:
//
//   - binary: RESP cache protocol (go-redis)
//   - text: memcached text protocol (gomemcache)
//   - httpcache: REST and OData cache endpoints
//   - script: an external search script run once per operation
//   - memory: an in-process node for dry runs and tests
//
// # Failures
//
// Implementations return *Error values classified as Transient, Protocol or
// Fatal, and wrap ErrAbsent when a key does not exist:
//
//	v, err := t.Get(ctx, key)
//	switch {
//	case transport.IsAbsent(err):
//	    // missing entry
//	case transport.IsTransient(err):
//	    // reset, timeout, no response
//	}
package transport
