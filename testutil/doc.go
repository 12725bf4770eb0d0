// Package testutil provides in-memory test doubles for the transport layer.
// FakeBucket reproduces the stream semantics the object store depends on
// (ordering, rollup, purge, pending counts) without a server, so package
// tests can exercise full read/write/watch paths synchronously.
package testutil
