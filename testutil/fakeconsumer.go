package testutil

import (
	"context"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// fakeConsumer delivers a bucket's live messages in sequence order. The
// embedded interface covers the methods the store never calls; invoking one
// of those panics, which is the right failure mode in tests.
type fakeConsumer struct {
	jetstream.Consumer

	bucket         *FakeBucket
	filters        []string
	cursor         uint64
	pendingAtStart uint64
}

func (c *fakeConsumer) CachedInfo() *jetstream.ConsumerInfo {
	return &jetstream.ConsumerInfo{NumPending: c.pendingAtStart}
}

func (c *fakeConsumer) Info(context.Context) (*jetstream.ConsumerInfo, error) {
	return c.CachedInfo(), nil
}

// Consume delivers matching messages to the handler on a background
// goroutine until the returned context is stopped. Messages published after
// the call are delivered as they arrive.
func (c *fakeConsumer) Consume(handler jetstream.MessageHandler, _ ...jetstream.PullConsumeOpt) (jetstream.ConsumeContext, error) {
	cc := &fakeConsumeCtx{bucket: c.bucket, closed: make(chan struct{})}

	go func() {
		defer close(cc.closed)
		cursor := c.cursor
		for {
			c.bucket.mu.Lock()
			for {
				if cc.stopped {
					c.bucket.mu.Unlock()
					return
				}
				msg, behind := c.bucket.nextLocked(c.filters, cursor)
				if msg != nil {
					cursor = msg.seq + 1
					fm := newFakeMsg(msg, behind)
					c.bucket.mu.Unlock()
					handler(fm)
					break
				}
				c.bucket.cond.Wait()
			}
		}
	}()

	return cc, nil
}

// Messages returns a pull iterator over matching messages. Next blocks until
// a message arrives or the iterator is stopped.
func (c *fakeConsumer) Messages(_ ...jetstream.PullMessagesOpt) (jetstream.MessagesContext, error) {
	return &fakeMessagesCtx{bucket: c.bucket, filters: c.filters, cursor: c.cursor}, nil
}

type fakeConsumeCtx struct {
	jetstream.ConsumeContext

	bucket  *FakeBucket
	stopped bool
	closed  chan struct{}
	once    sync.Once
}

func (cc *fakeConsumeCtx) Stop() {
	cc.once.Do(func() {
		cc.bucket.mu.Lock()
		cc.stopped = true
		cc.bucket.mu.Unlock()
		cc.bucket.cond.Broadcast()
	})
}

func (cc *fakeConsumeCtx) Drain() { cc.Stop() }

func (cc *fakeConsumeCtx) Closed() <-chan struct{} { return cc.closed }

type fakeMessagesCtx struct {
	jetstream.MessagesContext

	bucket  *FakeBucket
	filters []string
	cursor  uint64
	stopped bool
}

func (mc *fakeMessagesCtx) Next() (jetstream.Msg, error) {
	mc.bucket.mu.Lock()
	defer mc.bucket.mu.Unlock()

	for {
		if mc.stopped {
			return nil, jetstream.ErrMsgIteratorClosed
		}
		msg, behind := mc.bucket.nextLocked(mc.filters, mc.cursor)
		if msg != nil {
			mc.cursor = msg.seq + 1
			return newFakeMsg(msg, behind), nil
		}
		mc.bucket.cond.Wait()
	}
}

func (mc *fakeMessagesCtx) Stop() {
	mc.bucket.mu.Lock()
	mc.stopped = true
	mc.bucket.mu.Unlock()
	mc.bucket.cond.Broadcast()
}

func (mc *fakeMessagesCtx) Drain() { mc.Stop() }

// fakeMsg is a delivered message snapshot with stream metadata.
type fakeMsg struct {
	jetstream.Msg

	subject string
	header  nats.Header
	data    []byte
	meta    jetstream.MsgMetadata
}

func newFakeMsg(m *storedMsg, behind uint64) *fakeMsg {
	return &fakeMsg{
		subject: m.subject,
		header:  cloneHeader(m.header),
		data:    append([]byte(nil), m.data...),
		meta: jetstream.MsgMetadata{
			Sequence:   jetstream.SequencePair{Stream: m.seq, Consumer: m.seq},
			NumPending: behind,
			Timestamp:  m.ts,
		},
	}
}

func (m *fakeMsg) Subject() string { return m.subject }

func (m *fakeMsg) Headers() nats.Header { return m.header }

func (m *fakeMsg) Data() []byte { return m.data }

func (m *fakeMsg) Metadata() (*jetstream.MsgMetadata, error) {
	meta := m.meta
	return &meta, nil
}

func (m *fakeMsg) Ack() error { return nil }
