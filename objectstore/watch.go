package objectstore

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/objectstream/errors"
)

// WatchOpt customizes a watcher.
type WatchOpt func(*watchOpts)

type watchOpts struct {
	updatesOnly bool
}

// UpdatesOnly starts delivery at the time of subscription, skipping the
// metadata history already in the stream.
func UpdatesOnly() WatchOpt {
	return func(o *watchOpts) {
		o.updatesOnly = true
	}
}

// Watcher delivers metadata records for a bucket as they are written. It
// runs until Stop is called or the watch context is canceled; Updates is
// closed when the watcher ends.
type Watcher struct {
	updates  chan *ObjectInfo
	done     chan struct{}
	stopOnce sync.Once
	messages jetstream.MessagesContext
	logger   *slog.Logger
}

// Updates returns the channel of metadata records. Records arrive in stream
// order. The channel is closed when the watcher stops.
func (w *Watcher) Updates() <-chan *ObjectInfo {
	return w.updates
}

// Stop tears down the watcher's consumer and closes Updates. Safe to call
// more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.messages.Stop()
	})
}

// Watch opens a fresh consumer over every metadata subject in the bucket.
// By default the full record history is replayed before live updates; with
// UpdatesOnly, delivery starts at subscription time. Each call opens an
// independent consumer; watchers are not restartable.
func (s *Store) Watch(ctx context.Context, opts ...WatchOpt) (*Watcher, error) {
	var o watchOpts
	for _, opt := range opts {
		opt(&o)
	}

	policy := jetstream.DeliverAllPolicy
	if o.updatesOnly {
		policy = jetstream.DeliverNewPolicy
	}

	consumer, err := s.stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{metaWildcard(s.cfg.Bucket)},
		DeliverPolicy:  policy,
	})
	if err != nil {
		s.metrics.recordError("watch")
		return nil, errors.WrapTransient(err, "ObjectStore", "Watch", "create metadata consumer")
	}

	messages, err := consumer.Messages()
	if err != nil {
		s.metrics.recordError("watch")
		return nil, errors.WrapTransient(err, "ObjectStore", "Watch", "start metadata delivery")
	}

	w := &Watcher{
		updates:  make(chan *ObjectInfo, 64),
		done:     make(chan struct{}),
		messages: messages,
		logger:   s.logger,
	}

	// Tie the watcher's lifetime to the caller's context so a canceled
	// watch never leaks its consumer.
	go func() {
		select {
		case <-ctx.Done():
			w.Stop()
		case <-w.done:
		}
	}()

	go w.run(s.cfg.Bucket)

	s.metrics.recordWatchOp()
	return w, nil
}

// run pulls metadata records until the iterator is stopped. Malformed
// records are logged and skipped rather than ending the watch.
func (w *Watcher) run(bucket string) {
	defer close(w.updates)

	for {
		msg, err := w.messages.Next()
		if err != nil {
			if !stderrors.Is(err, jetstream.ErrMsgIteratorClosed) {
				w.logger.Warn("watcher stopped on delivery error",
					"bucket", bucket,
					"error", err)
			}
			return
		}

		var info ObjectInfo
		if err := json.Unmarshal(msg.Data(), &info); err != nil {
			w.logger.Warn("skipping malformed metadata record",
				"bucket", bucket,
				"subject", msg.Subject(),
				"error", err)
			continue
		}
		if md, merr := msg.Metadata(); merr == nil {
			info.ModTime = md.Timestamp
		}

		select {
		case w.updates <- &info:
		case <-w.done:
			return
		}
	}
}
