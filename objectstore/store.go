package objectstore

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/objectstream/errors"
	"github.com/c360/objectstream/metric"
	"github.com/c360/objectstream/natsclient"
)

// Publisher is the write half of the transport: acknowledged publishes into
// the bucket stream. Satisfied by jetstream.JetStream.
type Publisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// BucketStream is the read half of the transport: last-per-subject lookup,
// subject purge, and ordered consumption. Satisfied by jetstream.Stream.
type BucketStream interface {
	GetLastMsgForSubject(ctx context.Context, subject string) (*jetstream.RawStreamMsg, error)
	Purge(ctx context.Context, opts ...jetstream.StreamPurgeOpt) error
	OrderedConsumer(ctx context.Context, cfg jetstream.OrderedConsumerConfig) (jetstream.Consumer, error)
}

// StreamLookup resolves another bucket's stream, used when following
// cross-bucket links.
type StreamLookup func(ctx context.Context, bucket string) (BucketStream, error)

// Store is an object bucket layered on one stream. All methods are safe for
// concurrent use; writers to the same object name race at the metadata
// record, last write wins.
type Store struct {
	cfg     Config
	js      Publisher
	stream  BucketStream
	lookup  StreamLookup
	logger  *slog.Logger
	metrics *storeMetrics
}

// StoreOption customizes a Store at construction.
type StoreOption func(*Store) error

// WithLogger sets the structured logger for purge warnings and watch
// diagnostics.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		s.logger = logger
		return nil
	}
}

// WithMetrics registers per-bucket operation metrics on the given registry.
func WithMetrics(registry *metric.MetricsRegistry) StoreOption {
	return func(s *Store) error {
		if registry == nil {
			return fmt.Errorf("metrics registry cannot be nil")
		}
		m, err := newStoreMetrics(registry, s.cfg.Bucket)
		if err != nil {
			return err
		}
		s.metrics = m
		return nil
	}
}

// WithStreamLookup enables cross-bucket link resolution for stores built
// with NewWithTransport. Stores built with New get a client-backed lookup
// automatically.
func WithStreamLookup(lookup StreamLookup) StoreOption {
	return func(s *Store) error {
		if lookup == nil {
			return fmt.Errorf("stream lookup cannot be nil")
		}
		s.lookup = lookup
		return nil
	}
}

// New ensures the bucket's backing stream exists and returns a Store bound
// to it through the given client.
func New(ctx context.Context, client *natsclient.Client, cfg Config, opts ...StoreOption) (*Store, error) {
	if client == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("client cannot be nil"), "ObjectStore", "New", "validate client")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	js, err := client.JetStream()
	if err != nil {
		return nil, errors.WrapTransient(err, "ObjectStore", "New", "access jetstream")
	}
	stream, err := client.EnsureStream(ctx, cfg.streamConfig())
	if err != nil {
		return nil, errors.WrapTransient(err, "ObjectStore", "New", fmt.Sprintf("ensure stream for bucket %q", cfg.Bucket))
	}

	opts = append([]StoreOption{WithStreamLookup(clientLookup(client))}, opts...)
	return NewWithTransport(js, stream, cfg, opts...)
}

// NewWithTransport builds a Store over caller-supplied transport halves.
// The stream must already exist and carry the bucket's subject space.
func NewWithTransport(js Publisher, stream BucketStream, cfg Config, opts ...StoreOption) (*Store, error) {
	if js == nil || stream == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("transport cannot be nil"), "ObjectStore", "NewWithTransport", "validate transport")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Store{
		cfg:    cfg,
		js:     js,
		stream: stream,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, errors.WrapInvalid(err, "ObjectStore", "NewWithTransport", "apply option")
		}
	}
	return s, nil
}

// Bucket returns the bucket name this store is bound to.
func (s *Store) Bucket() string {
	return s.cfg.Bucket
}

// clientLookup resolves sibling bucket streams through the shared client.
// Lookup never creates streams; a missing bucket is the caller's error.
func clientLookup(client *natsclient.Client) StreamLookup {
	return func(ctx context.Context, bucket string) (BucketStream, error) {
		if err := validateBucketName(bucket); err != nil {
			return nil, errors.WrapInvalid(err, "ObjectStore", "lookup", fmt.Sprintf("resolve bucket %q", bucket))
		}
		stream, err := client.GetStream(ctx, streamName(bucket))
		if err != nil {
			if stderrors.Is(err, jetstream.ErrStreamNotFound) {
				return nil, errors.WrapInvalid(errors.ErrBucketNotFound, "ObjectStore", "lookup", fmt.Sprintf("resolve bucket %q", bucket))
			}
			return nil, errors.WrapTransient(err, "ObjectStore", "lookup", fmt.Sprintf("get stream for bucket %q", bucket))
		}
		return stream, nil
	}
}

// siblingStore returns a Store bound to another bucket for link traversal.
func (s *Store) siblingStore(ctx context.Context, bucket string) (*Store, error) {
	if s.lookup == nil {
		return nil, errors.WrapInvalid(errors.ErrBucketNotFound, "ObjectStore", "Get",
			fmt.Sprintf("resolve link bucket %q (no stream lookup configured)", bucket))
	}
	stream, err := s.lookup(ctx, bucket)
	if err != nil {
		return nil, err
	}
	return &Store{
		cfg:    Config{Bucket: bucket, ChunkSize: s.cfg.ChunkSize},
		js:     s.js,
		stream: stream,
		lookup: s.lookup,
		logger: s.logger,
	}, nil
}
