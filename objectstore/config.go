package objectstore

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/objectstream/errors"
)

const (
	// DefaultChunkSize is the chunk size used when the caller does not
	// override it per object.
	DefaultChunkSize = 128 * 1024

	// maxChunkSize caps per-object overrides. Chunks travel as single
	// messages, so they must stay well under the server's max payload.
	maxChunkSize = 8 * 1024 * 1024
)

// Config describes one bucket and its backing stream.
type Config struct {
	// Bucket names the object bucket. Must be subject-token safe.
	Bucket string `json:"bucket" yaml:"bucket"`

	// Description is stored on the backing stream.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// ChunkSize is the default write chunk size for this bucket.
	ChunkSize uint32 `json:"chunk_size,omitempty" yaml:"chunk_size,omitempty"`

	// MaxBytes limits the backing stream size. Zero means unlimited.
	MaxBytes int64 `json:"max_bytes,omitempty" yaml:"max_bytes,omitempty"`

	// MaxAge expires stream messages. Zero means no expiry.
	MaxAge time.Duration `json:"max_age,omitempty" yaml:"max_age,omitempty"`

	// Replicas is the stream replication factor. Zero means 1.
	Replicas int `json:"replicas,omitempty" yaml:"replicas,omitempty"`

	// Storage selects file or memory storage for the backing stream.
	Storage jetstream.StorageType `json:"storage,omitempty" yaml:"storage,omitempty"`
}

// DefaultConfig returns a Config with production defaults for the named
// bucket.
func DefaultConfig(bucket string) Config {
	return Config{
		Bucket:    bucket,
		ChunkSize: DefaultChunkSize,
		Replicas:  1,
		Storage:   jetstream.FileStorage,
	}
}

// Validate checks the configuration before any stream is touched.
func (c Config) Validate() error {
	if err := validateBucketName(c.Bucket); err != nil {
		return errors.WrapInvalid(err, "ObjectStore", "Validate", "validate bucket name")
	}
	if c.ChunkSize > maxChunkSize {
		return errors.WrapInvalid(errors.ErrChunkSizeTooLarge, "ObjectStore", "Validate", "validate chunk size")
	}
	if c.Replicas < 0 || c.Replicas > 5 {
		return errors.WrapInvalid(fmt.Errorf("replicas %d out of range", c.Replicas), "ObjectStore", "Validate", "validate replicas")
	}
	return nil
}

// chunkSize returns the effective default chunk size for the bucket
func (c Config) chunkSize() uint32 {
	if c.ChunkSize == 0 {
		return DefaultChunkSize
	}
	return c.ChunkSize
}

// streamConfig derives the backing stream configuration. Rollup must be
// allowed so metadata writes can compact their subject, and discard stays
// old so the stream never rejects writes when size-limited.
func (c Config) streamConfig() jetstream.StreamConfig {
	replicas := c.Replicas
	if replicas == 0 {
		replicas = 1
	}
	return jetstream.StreamConfig{
		Name:        streamName(c.Bucket),
		Description: c.Description,
		Subjects:    []string{chunkWildcard(c.Bucket), metaWildcard(c.Bucket)},
		MaxBytes:    c.MaxBytes,
		MaxAge:      c.MaxAge,
		Replicas:    replicas,
		Storage:     c.Storage,
		Discard:     jetstream.DiscardOld,
		AllowRollup: true,
		AllowDirect: true,
	}
}
