// Package objectstream implements an object store layered on NATS JetStream
// streams. Large binary objects are split into bounded-size chunks, published
// as individually addressed stream messages, and reassembled on read through
// a dedicated ordered consumer, with end-to-end integrity verified by a
// SHA-256 digest. A parallel metadata channel keeps one current record per
// object name, supporting atomic replace, soft delete, cross-bucket links,
// and change notification.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│        objectstore.Store            │  Put, Get, Delete, AddLink,
//	│  (chunking, digests, metadata)      │  UpdateMeta, Watch
//	└─────────────────────────────────────┘
//	           ↓ publishes / consumes
//	┌─────────────────────────────────────┐
//	│        JetStream bucket stream      │  $OBS.<bucket>.C.<generation>
//	│  (ordered, rollup-compacted)        │  $OBS.<bucket>.M.<encoded name>
//	└─────────────────────────────────────┘
//	           ↓ over
//	┌─────────────────────────────────────┐
//	│        natsclient.Client            │  Connection lifecycle,
//	│  (circuit breaker, provisioning)    │  bucket provisioning, metrics
//	└─────────────────────────────────────┘
//
// # Packages
//
//   - objectstore: the store itself (chunk writer, chunk reader, metadata
//     lifecycle, linker, watcher)
//   - natsclient: NATS connection management and object-bucket provisioning
//   - errors: classified error handling shared across packages
//   - metric: Prometheus metrics registry and HTTP exposition
//   - pkg/retry: exponential backoff used during provisioning
//   - testutil: in-memory JetStream fake for unit tests
//
// # Basic usage
//
//	client, _ := natsclient.NewClient("nats://localhost:4222")
//	_ = client.Connect(ctx)
//
//	store, _ := objectstore.New(ctx, client, objectstore.Config{Bucket: "assets"})
//
//	info, _ := store.PutBytes(ctx, "images/logo.png", data)
//	payload, _, _ := store.Get(ctx, "images/logo.png")
//
// Chunk order is guaranteed by JetStream's per-subject ordering; metadata
// compaction relies on the Nats-Rollup publish header. The store layer adds
// no retries of its own; transient failures surface to the caller.
package objectstream
