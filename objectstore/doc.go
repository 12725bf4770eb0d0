// Package objectstore implements an object store layered on a JetStream
// stream. Objects are split into bounded-size chunks published under a
// per-write generation subject, and a parallel metadata subject carries
// exactly one current record per object name, compacted by rollup.
//
// A write streams its source through a SHA-256 digest while chunking, then
// commits with a single metadata publish; readers see either the previous
// complete object or the new one. A read drives an ordered consumer over the
// object's chunk subject and verifies digest, size, and chunk count against
// the committed record before reporting success.
//
// Soft delete, rename, cross-bucket links, and change watching all operate
// on the metadata channel only; chunk data is addressed solely by generation
// id and never moves.
//
// Stores are built over a natsclient.Client with New, or over the narrow
// Publisher and BucketStream transport interfaces with NewWithTransport for
// embedding and tests.
package objectstore
