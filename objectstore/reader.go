package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/objectstream/errors"
)

// GetOpt customizes streaming reads.
type GetOpt func(*getOpts)

type getOpts struct {
	leaveOpen bool
}

// LeaveOpen keeps the sink open after GetTo finishes. By default a sink that
// implements io.Closer is closed once the object has been written.
func LeaveOpen() GetOpt {
	return func(o *getOpts) {
		o.leaveOpen = true
	}
}

// Get reads a whole object into memory and returns its bytes alongside the
// verified metadata record.
func (s *Store) Get(ctx context.Context, name string) ([]byte, *ObjectInfo, error) {
	var buf bytes.Buffer
	info, err := s.GetTo(ctx, name, &buf, LeaveOpen())
	if err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), info, nil
}

// GetTo streams an object into sink, following a link if the record is one.
// The object is verified against its stored digest, size, and chunk count;
// any mismatch is reported as an integrity error after the bytes have been
// written. If sink implements io.Closer it is closed on success unless
// LeaveOpen is given.
func (s *Store) GetTo(ctx context.Context, name string, sink io.Writer, opts ...GetOpt) (*ObjectInfo, error) {
	start := time.Now()
	var o getOpts
	for _, opt := range opts {
		opt(&o)
	}

	info, err := s.readTo(ctx, name, sink, true)
	if err != nil {
		s.metrics.recordError("get")
		return nil, err
	}

	if c, ok := sink.(io.Closer); ok && !o.leaveOpen {
		if cerr := c.Close(); cerr != nil {
			s.metrics.recordError("get")
			return nil, errors.WrapTransient(cerr, "ObjectStore", "Get", fmt.Sprintf("close sink for %q", name))
		}
	}

	s.metrics.recordReadOp("get", time.Since(start).Seconds())
	s.metrics.recordRead(info.Size, info.Chunks)
	return info, nil
}

// readTo resolves the metadata record, follows at most one link hop, and
// streams the chunk set. Link chains cannot exist (link creation rejects
// link targets), so a second hop is an invalid record.
func (s *Store) readTo(ctx context.Context, name string, sink io.Writer, followLink bool) (*ObjectInfo, error) {
	info, err := s.getInfo(ctx, name, false)
	if err != nil {
		return nil, err
	}

	if info.IsLink() {
		if !followLink {
			return nil, errors.WrapInvalid(errors.ErrLinkNotAllowed, "ObjectStore", "Get",
				fmt.Sprintf("resolve link %q (targets another link)", name))
		}
		ln := info.Opts.Link
		target := s
		if ln.Bucket != s.cfg.Bucket {
			target, err = s.siblingStore(ctx, ln.Bucket)
			if err != nil {
				return nil, err
			}
		}
		return target.readTo(ctx, ln.Name, sink, false)
	}

	return s.readChunks(ctx, info, sink)
}

// readChunks consumes the object's chunk subject with an ordered consumer
// and verifies the result. Completion is signaled by the stream itself: the
// final chunk reports nothing pending behind it. After completion, delivery
// keeps running and discards until the consumer stops, so a reader that is
// done never leaves unread chunk traffic blocking the shared connection.
func (s *Store) readChunks(ctx context.Context, info *ObjectInfo, sink io.Writer) (*ObjectInfo, error) {
	w := newDigestWriter(sink)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	consumer, err := s.stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{chunkSubject(s.cfg.Bucket, info.Generation)},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "ObjectStore", "Get", fmt.Sprintf("create chunk consumer for %q", info.Name))
	}

	// Empty chunk set: nothing will ever be delivered, so completion must
	// be decided from the consumer's view at creation.
	if ci := consumer.CachedInfo(); ci != nil && ci.NumPending == 0 {
		return s.verify(info, w, 0)
	}

	var (
		received uint32
		finished atomic.Bool
		done     = make(chan error, 1)
	)

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		if finished.Load() {
			return // draining
		}

		md, merr := msg.Metadata()
		if merr != nil {
			finished.Store(true)
			done <- errors.WrapTransient(merr, "ObjectStore", "Get", "read chunk metadata")
			return
		}

		if len(msg.Data()) > 0 {
			if _, werr := w.Write(msg.Data()); werr != nil {
				finished.Store(true)
				done <- errors.WrapTransient(werr, "ObjectStore", "Get", fmt.Sprintf("write chunk to sink for %q", info.Name))
				return
			}
		}
		received++

		if md.NumPending == 0 {
			finished.Store(true)
			done <- nil
		}
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "ObjectStore", "Get", fmt.Sprintf("consume chunks for %q", info.Name))
	}
	defer cc.Stop()

	select {
	case cerr := <-done:
		if cerr != nil {
			return nil, cerr
		}
	case <-ctx.Done():
		return nil, errors.WrapTransient(ctx.Err(), "ObjectStore", "Get", fmt.Sprintf("read chunks for %q", info.Name))
	}

	return s.verify(info, w, received)
}

// verify checks the received stream against the metadata record. The first
// mismatching field is reported; a digest mismatch subsumes the others when
// bytes differ but counts line up.
func (s *Store) verify(info *ObjectInfo, w *digestWriter, received uint32) (*ObjectInfo, error) {
	if got := digestString(w.hash); got != info.Digest {
		return nil, &errors.IntegrityError{Field: "digest", Want: info.Digest, Got: got}
	}
	if w.n != info.Size {
		return nil, &errors.IntegrityError{Field: "size", Want: fmt.Sprint(info.Size), Got: fmt.Sprint(w.n)}
	}
	if received != info.Chunks {
		return nil, &errors.IntegrityError{Field: "chunks", Want: fmt.Sprint(info.Chunks), Got: fmt.Sprint(received)}
	}
	return info, nil
}
