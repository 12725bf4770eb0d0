package natsclient

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/objectstream/errors"
)

// Subject layout of an object bucket's backing stream. Chunk payloads and
// metadata records each get their own wildcard so consumers can filter.
const (
	bucketStreamPrefix  = "OBS_"
	bucketSubjectPrefix = "$OBS."
)

var bucketNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// BucketConfig describes an object bucket's backing stream for provisioning
// through the client, without pulling in the store layer.
type BucketConfig struct {
	// Name names the bucket. Must be subject-token safe.
	Name string

	// Description is stored on the backing stream.
	Description string

	// MaxBytes limits the backing stream size. Zero means unlimited.
	MaxBytes int64

	// MaxAge expires stream messages. Zero means no expiry.
	MaxAge time.Duration

	// Replicas is the stream replication factor. Zero means 1.
	Replicas int

	// Storage selects file or memory storage.
	Storage jetstream.StorageType
}

// streamConfig derives the backing stream configuration. Rollup must be
// allowed so metadata writes can compact their subject.
func (c BucketConfig) streamConfig() jetstream.StreamConfig {
	replicas := c.Replicas
	if replicas == 0 {
		replicas = 1
	}
	return jetstream.StreamConfig{
		Name:        bucketStreamPrefix + c.Name,
		Description: c.Description,
		Subjects: []string{
			bucketSubjectPrefix + c.Name + ".C.>",
			bucketSubjectPrefix + c.Name + ".M.>",
		},
		MaxBytes:    c.MaxBytes,
		MaxAge:      c.MaxAge,
		Replicas:    replicas,
		Storage:     c.Storage,
		Discard:     jetstream.DiscardOld,
		AllowRollup: true,
		AllowDirect: true,
	}
}

// CreateObjectBucket provisions the backing stream for an object bucket,
// returning the existing stream when another process got there first.
func (m *Client) CreateObjectBucket(ctx context.Context, cfg BucketConfig) (jetstream.Stream, error) {
	if !bucketNameRe.MatchString(cfg.Name) {
		return nil, errors.WrapInvalid(fmt.Errorf("invalid bucket name %q", cfg.Name),
			"Client", "CreateObjectBucket", "validate bucket name")
	}
	return m.EnsureStream(ctx, cfg.streamConfig())
}

// GetObjectBucket looks up an object bucket's backing stream.
func (m *Client) GetObjectBucket(ctx context.Context, name string) (jetstream.Stream, error) {
	return m.GetStream(ctx, bucketStreamPrefix+name)
}

// DeleteObjectBucket deletes an object bucket's backing stream, and with it
// every chunk and metadata record the bucket holds.
func (m *Client) DeleteObjectBucket(ctx context.Context, name string) error {
	return m.DeleteStream(ctx, bucketStreamPrefix+name)
}
