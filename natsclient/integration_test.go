package natsclient

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestIntegration_ConnectToRealNATS tests connection to a real NATS server
func TestIntegration_ConnectToRealNATS(t *testing.T) {
	ctx := context.Background()

	natsContainer, natsURL := startNATSContainer(ctx, t, false)
	defer natsContainer.Terminate(ctx)

	client, err := NewClient(natsURL)
	require.NoError(t, err)
	err = client.Connect(ctx)
	require.NoError(t, err)
	defer client.Close(ctx)

	assert.True(t, client.IsHealthy())
	assert.Equal(t, StatusConnected, client.Status())

	rtt, err := client.RTT()
	assert.NoError(t, err)
	assert.Greater(t, rtt, time.Duration(0))
}

// TestIntegration_EnsureStream verifies stream provisioning is idempotent
func TestIntegration_EnsureStream(t *testing.T) {
	ctx := context.Background()

	natsContainer, natsURL := startNATSContainer(ctx, t, true)
	defer natsContainer.Terminate(ctx)

	client, err := NewClient(natsURL)
	require.NoError(t, err)
	require.NoError(t, client.Connect(ctx))
	defer client.Close(ctx)

	cfg := jetstream.StreamConfig{
		Name:        "OBS_ensure",
		Subjects:    []string{"$OBS.ensure.>"},
		Storage:     jetstream.MemoryStorage,
		AllowRollup: true,
	}

	stream, err := client.EnsureStream(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, stream)

	// Second call finds the existing stream instead of failing
	again, err := client.EnsureStream(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, again)

	info, err := again.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, "OBS_ensure", info.Config.Name)
	assert.True(t, info.Config.AllowRollup)
}

// TestIntegration_StreamLifecycle tests create, get, and delete
func TestIntegration_StreamLifecycle(t *testing.T) {
	ctx := context.Background()

	natsContainer, natsURL := startNATSContainer(ctx, t, true)
	defer natsContainer.Terminate(ctx)

	client, err := NewClient(natsURL)
	require.NoError(t, err)
	require.NoError(t, client.Connect(ctx))
	defer client.Close(ctx)

	cfg := jetstream.StreamConfig{
		Name:     "OBS_lifecycle",
		Subjects: []string{"$OBS.lifecycle.>"},
		Storage:  jetstream.MemoryStorage,
	}

	_, err = client.CreateStream(ctx, cfg)
	require.NoError(t, err)

	stream, err := client.GetStream(ctx, "OBS_lifecycle")
	require.NoError(t, err)
	require.NotNil(t, stream)

	require.NoError(t, client.DeleteStream(ctx, "OBS_lifecycle"))

	_, err = client.GetStream(ctx, "OBS_lifecycle")
	assert.Error(t, err)
}

// TestIntegration_ObjectBucketLifecycle tests the bucket provisioning helpers
func TestIntegration_ObjectBucketLifecycle(t *testing.T) {
	ctx := context.Background()

	natsContainer, natsURL := startNATSContainer(ctx, t, true)
	defer natsContainer.Terminate(ctx)

	client, err := NewClient(natsURL)
	require.NoError(t, err)
	require.NoError(t, client.ConnectWithRetry(ctx))
	defer client.Close(ctx)

	cfg := BucketConfig{
		Name:        "artifacts",
		Description: "bucket lifecycle test",
		Storage:     jetstream.MemoryStorage,
	}

	stream, err := client.CreateObjectBucket(ctx, cfg)
	require.NoError(t, err)

	info, err := stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, "OBS_artifacts", info.Config.Name)
	assert.Contains(t, info.Config.Subjects, "$OBS.artifacts.C.>")
	assert.Contains(t, info.Config.Subjects, "$OBS.artifacts.M.>")
	assert.True(t, info.Config.AllowRollup)

	// Creating again finds the provisioned stream
	_, err = client.CreateObjectBucket(ctx, cfg)
	require.NoError(t, err)

	got, err := client.GetObjectBucket(ctx, "artifacts")
	require.NoError(t, err)
	require.NotNil(t, got)

	require.NoError(t, client.DeleteObjectBucket(ctx, "artifacts"))

	_, err = client.GetObjectBucket(ctx, "artifacts")
	assert.Error(t, err)
}

// startNATSContainer starts a NATS container, optionally with JetStream
func startNATSContainer(ctx context.Context, t *testing.T, withJS bool) (testcontainers.Container, string) {
	t.Helper()

	cmd := []string{"-m", "8222"}
	if withJS {
		cmd = append(cmd, "-js")
	}
	req := testcontainers.ContainerRequest{
		Image:        "nats:latest",
		ExposedPorts: []string{"4222/tcp", "8222/tcp"},
		WaitingFor:   wait.ForListeningPort("4222/tcp"),
		Cmd:          cmd,
	}

	natsContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := natsContainer.Host(ctx)
	require.NoError(t, err)

	port, err := natsContainer.MappedPort(ctx, "4222")
	require.NoError(t, err)

	natsURL := fmt.Sprintf("nats://%s:%s", host, port.Port())

	// Wait for NATS to be fully ready
	time.Sleep(200 * time.Millisecond)

	return natsContainer, natsURL
}
