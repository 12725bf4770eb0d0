package natsclient

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/objectstream/errors"
)

func TestBucketConfig_StreamConfig(t *testing.T) {
	cfg := BucketConfig{
		Name:        "assets",
		Description: "build artifacts",
		MaxBytes:    1 << 30,
		MaxAge:      24 * time.Hour,
		Storage:     jetstream.FileStorage,
	}

	sc := cfg.streamConfig()
	assert.Equal(t, "OBS_assets", sc.Name)
	assert.Equal(t, []string{"$OBS.assets.C.>", "$OBS.assets.M.>"}, sc.Subjects)
	assert.Equal(t, 1, sc.Replicas, "zero replicas defaults to 1")
	assert.Equal(t, jetstream.DiscardOld, sc.Discard)
	assert.True(t, sc.AllowRollup)
	assert.True(t, sc.AllowDirect)
	assert.Equal(t, int64(1<<30), sc.MaxBytes)
	assert.Equal(t, 24*time.Hour, sc.MaxAge)
}

func TestCreateObjectBucket_InvalidName(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	tests := []string{"", "has space", "dotted.name", "wild*card", "a>b"}
	for _, name := range tests {
		_, err := client.CreateObjectBucket(t.Context(), BucketConfig{Name: name})
		assert.Error(t, err, name)
		assert.True(t, errors.IsInvalid(err), name)
	}
}

func TestObjectBucketOps_NotConnected(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	_, err = client.CreateObjectBucket(t.Context(), BucketConfig{Name: "assets"})
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = client.GetObjectBucket(t.Context(), "assets")
	assert.ErrorIs(t, err, ErrNotConnected)

	err = client.DeleteObjectBucket(t.Context(), "assets")
	assert.ErrorIs(t, err, ErrNotConnected)
}
