package objectstore

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/objectstream/errors"
	"github.com/c360/objectstream/testutil"
)

func newTestStore(t *testing.T, bucket string) (*Store, *testutil.FakeBucket) {
	t.Helper()
	fake := testutil.NewFakeBucket()
	store, err := NewWithTransport(fake, fake, DefaultConfig(bucket))
	require.NoError(t, err)
	return store, fake
}

func sha256Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return "SHA-256=" + base64.RawURLEncoding.EncodeToString(sum[:])
}

func TestPutGetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t, "rt")
	ctx := context.Background()

	payload := make([]byte, 300*1024) // forces multiple default-size chunks
	_, err := rand.Read(payload)
	require.NoError(t, err)

	info, err := store.Put(ctx, ObjectMeta{Name: "blob", Description: "test blob"}, bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, "blob", info.Name)
	assert.Equal(t, "rt", info.Bucket)
	assert.Equal(t, uint64(len(payload)), info.Size)
	assert.Equal(t, uint32(3), info.Chunks)
	assert.Equal(t, sha256Digest(payload), info.Digest)
	assert.NotEmpty(t, info.Generation)
	assert.False(t, info.Deleted)

	got, gotInfo, err := store.Get(ctx, "blob")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, info.Generation, gotInfo.Generation)
	assert.Equal(t, info.Digest, gotInfo.Digest)
}

func TestPutChunkCount(t *testing.T) {
	store, _ := newTestStore(t, "chunks")
	ctx := context.Background()

	tests := []struct {
		payloadLen int
		chunkSize  uint32
		wantChunks uint32
	}{
		{0, 4, 0},
		{1, 4, 1},
		{4, 4, 1},
		{5, 4, 2},
		{10, 4, 3},
		{12, 4, 3},
	}
	for _, tt := range tests {
		name := fmt.Sprintf("len%d-c%d", tt.payloadLen, tt.chunkSize)
		payload := bytes.Repeat([]byte{0x5a}, tt.payloadLen)
		meta := ObjectMeta{Name: name, Opts: &MetaOptions{MaxChunkSize: tt.chunkSize}}

		info, err := store.Put(ctx, meta, bytes.NewReader(payload))
		require.NoError(t, err, name)
		assert.Equal(t, tt.wantChunks, info.Chunks, name)
		assert.Equal(t, uint64(tt.payloadLen), info.Size, name)

		got, _, err := store.Get(ctx, name)
		require.NoError(t, err, name)
		if tt.payloadLen == 0 {
			assert.Empty(t, got, name)
		} else {
			assert.Equal(t, payload, got, name)
		}
	}
}

func TestPutEmptyObject(t *testing.T) {
	store, _ := newTestStore(t, "empty")
	ctx := context.Background()

	info, err := store.PutBytes(ctx, "nothing", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), info.Size)
	assert.Equal(t, uint32(0), info.Chunks)
	assert.Equal(t, sha256Digest(nil), info.Digest)

	got, gotInfo, err := store.Get(ctx, "nothing")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, uint32(0), gotInfo.Chunks)
}

func TestPutValidation(t *testing.T) {
	store, _ := newTestStore(t, "val")
	ctx := context.Background()

	_, err := store.PutBytes(ctx, "bad name", []byte("x"))
	assert.ErrorIs(t, err, errors.ErrInvalidObjectName)

	_, err = store.PutBytes(ctx, "", []byte("x"))
	assert.ErrorIs(t, err, errors.ErrInvalidObjectName)

	meta := ObjectMeta{Name: "linked", Opts: &MetaOptions{Link: &Link{Bucket: "val", Name: "other"}}}
	_, err = store.Put(ctx, meta, bytes.NewReader([]byte("x")))
	assert.ErrorIs(t, err, errors.ErrLinkNotAllowed)

	meta = ObjectMeta{Name: "huge", Opts: &MetaOptions{MaxChunkSize: 16 * 1024 * 1024}}
	_, err = store.Put(ctx, meta, bytes.NewReader([]byte("x")))
	assert.ErrorIs(t, err, errors.ErrChunkSizeTooLarge)
}

func TestReplacementPurgesOldGeneration(t *testing.T) {
	store, fake := newTestStore(t, "repl")
	ctx := context.Background()

	first, err := store.PutBytes(ctx, "obj", bytes.Repeat([]byte{1}, 1000))
	require.NoError(t, err)
	require.Positive(t, fake.MessageCount(chunkSubject("repl", first.Generation)))

	second, err := store.PutBytes(ctx, "obj", bytes.Repeat([]byte{2}, 1000))
	require.NoError(t, err)
	assert.NotEqual(t, first.Generation, second.Generation)

	// Only the second generation's chunks remain
	assert.Zero(t, fake.MessageCount(chunkSubject("repl", first.Generation)))
	assert.Positive(t, fake.MessageCount(chunkSubject("repl", second.Generation)))

	got, info, err := store.Get(ctx, "obj")
	require.NoError(t, err)
	assert.Equal(t, second.Generation, info.Generation)
	assert.Equal(t, bytes.Repeat([]byte{2}, 1000), got)
}

func TestMetadataRollup(t *testing.T) {
	store, fake := newTestStore(t, "roll")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.PutBytes(ctx, "obj", []byte{byte(i)})
		require.NoError(t, err)
	}

	// Rollup keeps exactly one metadata record per object subject
	assert.Equal(t, 1, fake.MessageCount(metaSubject("roll", "obj")))
}

func TestGetInfo(t *testing.T) {
	store, _ := newTestStore(t, "info")
	ctx := context.Background()

	_, err := store.GetInfo(ctx, "absent")
	assert.ErrorIs(t, err, errors.ErrObjectNotFound)
	assert.True(t, errors.IsNotFound(err))

	put, err := store.PutBytes(ctx, "obj", []byte("payload"))
	require.NoError(t, err)

	info, err := store.GetInfo(ctx, "obj")
	require.NoError(t, err)
	assert.Equal(t, put.Generation, info.Generation)
	assert.Equal(t, uint64(7), info.Size)
	assert.False(t, info.ModTime.IsZero())
}

func TestDelete(t *testing.T) {
	store, fake := newTestStore(t, "del")
	ctx := context.Background()

	info, err := store.PutBytes(ctx, "obj", bytes.Repeat([]byte{7}, 512))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "obj"))

	// Chunks are purged and reads report not found
	assert.Zero(t, fake.MessageCount(chunkSubject("del", info.Generation)))
	_, _, err = store.Get(ctx, "obj")
	assert.True(t, errors.IsNotFound(err))

	// The record survives as a tombstone
	tomb, err := store.GetInfo(ctx, "obj", IncludeDeleted())
	require.NoError(t, err)
	assert.True(t, tomb.Deleted)
	assert.Zero(t, tomb.Size)
	assert.Zero(t, tomb.Chunks)
	assert.Empty(t, tomb.Digest)
}

func TestDeleteIdempotence(t *testing.T) {
	store, _ := newTestStore(t, "deli")
	ctx := context.Background()

	// Deleting an absent key reports not found
	err := store.Delete(ctx, "never-existed")
	assert.True(t, errors.IsNotFound(err))

	_, err = store.PutBytes(ctx, "keep", []byte("untouched"))
	require.NoError(t, err)
	_, err = store.PutBytes(ctx, "gone", []byte("bye"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "gone"))

	// Re-delete reports not found and corrupts nothing
	err = store.Delete(ctx, "gone")
	assert.True(t, errors.IsNotFound(err))

	got, _, err := store.Get(ctx, "keep")
	require.NoError(t, err)
	assert.Equal(t, []byte("untouched"), got)
}

func TestDeleteThenRewrite(t *testing.T) {
	store, _ := newTestStore(t, "rev")
	ctx := context.Background()

	_, err := store.PutBytes(ctx, "obj", []byte("v1"))
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "obj"))

	info, err := store.PutBytes(ctx, "obj", []byte("v2"))
	require.NoError(t, err)
	assert.False(t, info.Deleted)

	got, _, err := store.Get(ctx, "obj")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func TestUpdateMeta(t *testing.T) {
	store, _ := newTestStore(t, "meta")
	ctx := context.Background()

	put, err := store.PutBytes(ctx, "old", []byte("contents"))
	require.NoError(t, err)

	updated, err := store.UpdateMeta(ctx, "old", ObjectMeta{
		Name:        "new",
		Description: "renamed",
		Metadata:    map[string]string{"team": "core"},
	})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Name)
	assert.Equal(t, "renamed", updated.Description)

	// Identity fields survive the rename and chunks never move
	assert.Equal(t, put.Generation, updated.Generation)
	assert.Equal(t, put.Digest, updated.Digest)
	assert.Equal(t, put.Size, updated.Size)

	got, info, err := store.Get(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, []byte("contents"), got)
	assert.Equal(t, "core", info.Metadata["team"])

	// The old name no longer resolves
	_, err = store.GetInfo(ctx, "old")
	assert.True(t, errors.IsNotFound(err))
}

func TestUpdateMetaRenameConflict(t *testing.T) {
	store, _ := newTestStore(t, "conf")
	ctx := context.Background()

	_, err := store.PutBytes(ctx, "a", []byte("aaa"))
	require.NoError(t, err)
	_, err = store.PutBytes(ctx, "b", []byte("bbb"))
	require.NoError(t, err)

	_, err = store.UpdateMeta(ctx, "a", ObjectMeta{Name: "b"})
	assert.True(t, errors.IsConflict(err))

	// Both records are unchanged
	gotA, _, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("aaa"), gotA)
	gotB, _, err := store.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []byte("bbb"), gotB)
}

func TestUpdateMetaRenameOntoDeletedName(t *testing.T) {
	store, _ := newTestStore(t, "tomb")
	ctx := context.Background()

	_, err := store.PutBytes(ctx, "dead", []byte("x"))
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "dead"))

	_, err = store.PutBytes(ctx, "live", []byte("y"))
	require.NoError(t, err)

	// A tombstone does not block the rename
	_, err = store.UpdateMeta(ctx, "live", ObjectMeta{Name: "dead"})
	require.NoError(t, err)

	got, _, err := store.Get(ctx, "dead")
	require.NoError(t, err)
	assert.Equal(t, []byte("y"), got)
}

func TestIntegrityFailureDetection(t *testing.T) {
	store, fake := newTestStore(t, "corrupt")
	ctx := context.Background()

	info, err := store.PutBytes(ctx, "obj", bytes.Repeat([]byte{0xaa}, 2048))
	require.NoError(t, err)

	require.True(t, fake.Tamper(chunkSubject("corrupt", info.Generation), func(data []byte) []byte {
		data[0] ^= 0xff
		return data
	}))

	_, _, err = store.Get(ctx, "obj")
	require.Error(t, err)
	assert.True(t, errors.IsIntegrity(err))

	var ierr *errors.IntegrityError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, "digest", ierr.Field)
}

func TestIntegrityMissingChunk(t *testing.T) {
	store, fake := newTestStore(t, "short")
	ctx := context.Background()

	meta := ObjectMeta{Name: "obj", Opts: &MetaOptions{MaxChunkSize: 8}}
	info, err := store.Put(ctx, meta, bytes.NewReader(bytes.Repeat([]byte{1}, 64)))
	require.NoError(t, err)
	require.Equal(t, uint32(8), info.Chunks)

	// Drop one stored chunk out from under the record
	require.True(t, fake.Tamper(chunkSubject("short", info.Generation), func([]byte) []byte {
		return nil
	}))

	_, _, err = store.Get(ctx, "obj")
	require.Error(t, err)
	assert.True(t, errors.IsIntegrity(err))
}

type closingBuffer struct {
	bytes.Buffer
	closed bool
}

func (c *closingBuffer) Close() error {
	c.closed = true
	return nil
}

func TestGetToSinkClosing(t *testing.T) {
	store, _ := newTestStore(t, "sink")
	ctx := context.Background()

	_, err := store.PutBytes(ctx, "obj", []byte("data"))
	require.NoError(t, err)

	var closed closingBuffer
	_, err = store.GetTo(ctx, "obj", &closed)
	require.NoError(t, err)
	assert.True(t, closed.closed)

	var open closingBuffer
	_, err = store.GetTo(ctx, "obj", &open, LeaveOpen())
	require.NoError(t, err)
	assert.False(t, open.closed)
}

func TestAddLinkSameBucket(t *testing.T) {
	store, _ := newTestStore(t, "links")
	ctx := context.Background()

	payload := []byte("the linked payload")
	target, err := store.PutBytes(ctx, "target", payload)
	require.NoError(t, err)

	link, err := store.AddLink(ctx, "alias", target)
	require.NoError(t, err)
	assert.True(t, link.IsLink())
	assert.Equal(t, "target", link.Opts.Link.Name)
	assert.Equal(t, "links", link.Opts.Link.Bucket)

	// Reading the link yields the target's bytes and record
	got, info, err := store.Get(ctx, "alias")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, target.Digest, info.Digest)
	assert.Equal(t, target.Generation, info.Generation)
}

func TestUpdateMetaLinkKeepsOptionsExclusive(t *testing.T) {
	store, _ := newTestStore(t, "linkmeta")
	ctx := context.Background()

	target, err := store.PutBytes(ctx, "target", []byte("payload"))
	require.NoError(t, err)
	_, err = store.AddLink(ctx, "alias", target)
	require.NoError(t, err)

	// A chunk-size draft on a link record is dropped; the record stays a
	// pure link.
	updated, err := store.UpdateMeta(ctx, "alias", ObjectMeta{
		Name:        "alias",
		Description: "renamed alias",
		Opts:        &MetaOptions{MaxChunkSize: 1024},
	})
	require.NoError(t, err)
	assert.True(t, updated.IsLink())
	assert.Equal(t, uint32(0), updated.Opts.MaxChunkSize)
	assert.Equal(t, "renamed alias", updated.Description)

	stored, err := store.GetInfo(ctx, "alias")
	require.NoError(t, err)
	assert.True(t, stored.IsLink())
	assert.Equal(t, uint32(0), stored.Opts.MaxChunkSize)
}

func TestAddLinkCrossBucket(t *testing.T) {
	ctx := context.Background()

	srcFake := testutil.NewFakeBucket()
	dstFake := testutil.NewFakeBucket()
	lookup := func(_ context.Context, bucket string) (BucketStream, error) {
		switch bucket {
		case "src":
			return srcFake, nil
		case "dst":
			return dstFake, nil
		}
		return nil, errors.ErrBucketNotFound
	}

	src, err := NewWithTransport(srcFake, srcFake, DefaultConfig("src"), WithStreamLookup(lookup))
	require.NoError(t, err)
	dst, err := NewWithTransport(dstFake, dstFake, DefaultConfig("dst"), WithStreamLookup(lookup))
	require.NoError(t, err)

	payload := bytes.Repeat([]byte{0x42}, 4096)
	target, err := src.PutBytes(ctx, "origin", payload)
	require.NoError(t, err)

	_, err = dst.AddLink(ctx, "mirror", target)
	require.NoError(t, err)

	got, info, err := dst.Get(ctx, "mirror")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, target.Digest, info.Digest)
}

func TestAddLinkRejections(t *testing.T) {
	store, _ := newTestStore(t, "badlinks")
	ctx := context.Background()

	target, err := store.PutBytes(ctx, "target", []byte("x"))
	require.NoError(t, err)

	// Target deleted
	deleted := *target
	deleted.Deleted = true
	_, err = store.AddLink(ctx, "ln", &deleted)
	assert.ErrorIs(t, err, errors.ErrLinkNotAllowed)

	// Target is itself a link
	first, err := store.AddLink(ctx, "ln", target)
	require.NoError(t, err)
	_, err = store.AddLink(ctx, "chain", first)
	assert.ErrorIs(t, err, errors.ErrLinkNotAllowed)

	// Name already holds a regular object
	_, err = store.AddLink(ctx, "target", target)
	assert.True(t, errors.IsConflict(err))

	// An existing link may be overwritten
	_, err = store.AddLink(ctx, "ln", target)
	assert.NoError(t, err)

	// Nothing was published for the rejected links
	_, err = store.GetInfo(ctx, "chain")
	assert.True(t, errors.IsNotFound(err))
}

func TestWatchHistory(t *testing.T) {
	store, _ := newTestStore(t, "watch")
	ctx := context.Background()

	_, err := store.PutBytes(ctx, "k1", []byte("1"))
	require.NoError(t, err)
	_, err = store.PutBytes(ctx, "k2", []byte("2"))
	require.NoError(t, err)
	_, err = store.PutBytes(ctx, "k3", []byte("3"))
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "k2"))

	w, err := store.Watch(ctx)
	require.NoError(t, err)
	defer w.Stop()

	var seen []*ObjectInfo
	for i := 0; i < 3; i++ {
		select {
		case info := <-w.Updates():
			seen = append(seen, info)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for update %d", i)
		}
	}

	// Terminal state per key, in stream order: k2's rewrite moved it last
	require.Len(t, seen, 3)
	assert.Equal(t, "k1", seen[0].Name)
	assert.Equal(t, "k3", seen[1].Name)
	assert.Equal(t, "k2", seen[2].Name)
	assert.True(t, seen[2].Deleted)
	assert.False(t, seen[0].Deleted)
}

func TestWatchUpdatesOnly(t *testing.T) {
	store, _ := newTestStore(t, "watchnew")
	ctx := context.Background()

	_, err := store.PutBytes(ctx, "before", []byte("old"))
	require.NoError(t, err)

	w, err := store.Watch(ctx, UpdatesOnly())
	require.NoError(t, err)
	defer w.Stop()

	// Nothing from before the subscription
	select {
	case info := <-w.Updates():
		t.Fatalf("unexpected update for %q", info.Name)
	case <-time.After(100 * time.Millisecond):
	}

	_, err = store.PutBytes(ctx, "after", []byte("new"))
	require.NoError(t, err)

	select {
	case info := <-w.Updates():
		assert.Equal(t, "after", info.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for live update")
	}
}

func TestWatchStopClosesUpdates(t *testing.T) {
	store, _ := newTestStore(t, "watchstop")

	w, err := store.Watch(context.Background(), UpdatesOnly())
	require.NoError(t, err)

	w.Stop()
	w.Stop() // safe to repeat

	select {
	case _, ok := <-w.Updates():
		assert.False(t, ok, "updates channel should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("updates channel not closed after Stop")
	}
}

func TestWatchContextCancelReleasesConsumer(t *testing.T) {
	store, _ := newTestStore(t, "watchctx")

	ctx, cancel := context.WithCancel(context.Background())
	w, err := store.Watch(ctx, UpdatesOnly())
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-w.Updates():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("updates channel not closed after context cancel")
	}
}

func TestNewWithTransportValidation(t *testing.T) {
	fake := testutil.NewFakeBucket()

	_, err := NewWithTransport(nil, fake, DefaultConfig("b"))
	assert.Error(t, err)

	_, err = NewWithTransport(fake, nil, DefaultConfig("b"))
	assert.Error(t, err)

	_, err = NewWithTransport(fake, fake, DefaultConfig("bad.bucket"))
	assert.Error(t, err)

	cfg := DefaultConfig("b")
	cfg.ChunkSize = 64 * 1024 * 1024
	_, err = NewWithTransport(fake, fake, cfg)
	assert.ErrorIs(t, err, errors.ErrChunkSizeTooLarge)
}
