package objectstore

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/c360/objectstream/errors"
	"github.com/c360/objectstream/natsclient"
)

// TestIntegration_ObjectRoundTrip exercises the full path against a real
// JetStream server: chunked write, ordered read, digest verification.
func TestIntegration_ObjectRoundTrip(t *testing.T) {
	ctx := context.Background()

	container, client := startStoreEnv(ctx, t)
	defer container.Terminate(ctx)
	defer client.Close(ctx)

	cfg := DefaultConfig("it-roundtrip")
	cfg.Storage = jetstream.MemoryStorage
	cfg.ChunkSize = 32 * 1024
	store, err := New(ctx, client, cfg)
	require.NoError(t, err)

	payload := make([]byte, 200*1024)
	_, err = rand.Read(payload)
	require.NoError(t, err)

	info, err := store.Put(ctx, ObjectMeta{Name: "big/blob.bin"}, bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, uint64(len(payload)), info.Size)
	assert.Equal(t, uint32(7), info.Chunks)

	got, gotInfo, err := store.Get(ctx, "big/blob.bin")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, info.Digest, gotInfo.Digest)
}

// TestIntegration_ReplaceAndDelete verifies rollup and purge against the
// real server's retention behavior.
func TestIntegration_ReplaceAndDelete(t *testing.T) {
	ctx := context.Background()

	container, client := startStoreEnv(ctx, t)
	defer container.Terminate(ctx)
	defer client.Close(ctx)

	cfg := DefaultConfig("it-replace")
	cfg.Storage = jetstream.MemoryStorage
	store, err := New(ctx, client, cfg)
	require.NoError(t, err)

	_, err = store.PutBytes(ctx, "obj", []byte("first"))
	require.NoError(t, err)
	second, err := store.PutBytes(ctx, "obj", []byte("second"))
	require.NoError(t, err)

	got, info, err := store.Get(ctx, "obj")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
	assert.Equal(t, second.Generation, info.Generation)

	require.NoError(t, store.Delete(ctx, "obj"))
	_, _, err = store.Get(ctx, "obj")
	assert.True(t, errors.IsNotFound(err))

	tomb, err := store.GetInfo(ctx, "obj", IncludeDeleted())
	require.NoError(t, err)
	assert.True(t, tomb.Deleted)
}

// TestIntegration_Watch verifies history replay and live delivery
func TestIntegration_Watch(t *testing.T) {
	ctx := context.Background()

	container, client := startStoreEnv(ctx, t)
	defer container.Terminate(ctx)
	defer client.Close(ctx)

	cfg := DefaultConfig("it-watch")
	cfg.Storage = jetstream.MemoryStorage
	store, err := New(ctx, client, cfg)
	require.NoError(t, err)

	_, err = store.PutBytes(ctx, "k1", []byte("1"))
	require.NoError(t, err)
	_, err = store.PutBytes(ctx, "k2", []byte("2"))
	require.NoError(t, err)

	w, err := store.Watch(ctx)
	require.NoError(t, err)
	defer w.Stop()

	names := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case info := <-w.Updates():
			names[info.Name] = true
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for history replay")
		}
	}
	assert.True(t, names["k1"])
	assert.True(t, names["k2"])

	_, err = store.PutBytes(ctx, "k3", []byte("3"))
	require.NoError(t, err)

	select {
	case info := <-w.Updates():
		assert.Equal(t, "k3", info.Name)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for live update")
	}
}

// startStoreEnv starts a JetStream-enabled NATS container and a connected
// client for store tests.
func startStoreEnv(ctx context.Context, t *testing.T) (testcontainers.Container, *natsclient.Client) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "nats:latest",
		ExposedPorts: []string{"4222/tcp"},
		WaitingFor:   wait.ForListeningPort("4222/tcp"),
		Cmd:          []string{"-js"},
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "4222")
	require.NoError(t, err)

	client, err := natsclient.NewClient(fmt.Sprintf("nats://%s:%s", host, port.Port()))
	require.NoError(t, err)
	require.NoError(t, client.Connect(ctx))

	// Wait for JetStream to be fully ready
	time.Sleep(200 * time.Millisecond)

	return container, client
}
