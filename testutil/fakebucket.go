package testutil

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// FakeBucket is an in-memory stand-in for one bucket stream. It implements
// the objectstore Publisher and BucketStream transport interfaces with real
// stream semantics: sequence-ordered messages, subject rollup on publish,
// purge by subject, and ordered consumers that report pending counts the way
// the server does. Safe for concurrent use.
type FakeBucket struct {
	mu   sync.Mutex
	cond *sync.Cond
	seq  uint64
	msgs []*storedMsg
}

type storedMsg struct {
	seq     uint64
	subject string
	header  nats.Header
	data    []byte
	ts      time.Time
}

// NewFakeBucket returns an empty in-memory bucket stream.
func NewFakeBucket() *FakeBucket {
	b := &FakeBucket{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// PublishMsg appends a message, honoring the subject rollup header the way
// the server does: prior messages on the same subject are dropped.
func (b *FakeBucket) PublishMsg(_ context.Context, msg *nats.Msg, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if msg.Header.Get(nats.MsgRollup) == nats.MsgRollupSubject {
		kept := b.msgs[:0]
		for _, m := range b.msgs {
			if m.subject != msg.Subject {
				kept = append(kept, m)
			}
		}
		b.msgs = kept
	}

	b.seq++
	stored := &storedMsg{
		seq:     b.seq,
		subject: msg.Subject,
		header:  cloneHeader(msg.Header),
		data:    append([]byte(nil), msg.Data...),
		ts:      time.Now().UTC(),
	}
	b.msgs = append(b.msgs, stored)
	b.cond.Broadcast()

	return &jetstream.PubAck{Stream: "fake", Sequence: stored.seq}, nil
}

// GetLastMsgForSubject returns the newest live message matching the subject,
// or jetstream.ErrMsgNotFound.
func (b *FakeBucket) GetLastMsgForSubject(_ context.Context, subject string) (*jetstream.RawStreamMsg, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := len(b.msgs) - 1; i >= 0; i-- {
		m := b.msgs[i]
		if subjectMatches(subject, m.subject) {
			return &jetstream.RawStreamMsg{
				Subject:  m.subject,
				Sequence: m.seq,
				Header:   cloneHeader(m.header),
				Data:     append([]byte(nil), m.data...),
				Time:     m.ts,
			}, nil
		}
	}
	return nil, jetstream.ErrMsgNotFound
}

// Purge removes messages. Only the purge-by-subject option is interpreted,
// matching how the store uses it.
func (b *FakeBucket) Purge(_ context.Context, opts ...jetstream.StreamPurgeOpt) error {
	var req jetstream.StreamPurgeRequest
	for _, opt := range opts {
		if err := opt(&req); err != nil {
			return err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if req.Subject == "" {
		b.msgs = nil
		return nil
	}
	kept := b.msgs[:0]
	for _, m := range b.msgs {
		if !subjectMatches(req.Subject, m.subject) {
			kept = append(kept, m)
		}
	}
	b.msgs = kept
	return nil
}

// OrderedConsumer opens a consumer over the bucket's live messages. Deliver
// policy all replays from the start; new delivers only messages published
// after this call.
func (b *FakeBucket) OrderedConsumer(_ context.Context, cfg jetstream.OrderedConsumerConfig) (jetstream.Consumer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := &fakeConsumer{
		bucket:  b,
		filters: cfg.FilterSubjects,
		cursor:  1,
	}
	if cfg.DeliverPolicy == jetstream.DeliverNewPolicy {
		c.cursor = b.seq + 1
	}
	c.pendingAtStart = b.pendingLocked(c.filters, c.cursor)
	return c, nil
}

// MessageCount reports live messages matching a subject filter. Exposed for
// assertions about purge behavior.
func (b *FakeBucket) MessageCount(filter string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, m := range b.msgs {
		if subjectMatches(filter, m.subject) {
			n++
		}
	}
	return n
}

// Tamper mutates the payload of the first live message matching the filter
// and reports whether one was found. Used to simulate stored-data corruption.
func (b *FakeBucket) Tamper(filter string, fn func([]byte) []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, m := range b.msgs {
		if subjectMatches(filter, m.subject) {
			m.data = fn(m.data)
			return true
		}
	}
	return false
}

// pendingLocked counts live messages at or past seq that match any filter.
func (b *FakeBucket) pendingLocked(filters []string, seq uint64) uint64 {
	var n uint64
	for _, m := range b.msgs {
		if m.seq >= seq && matchesAny(filters, m.subject) {
			n++
		}
	}
	return n
}

// nextLocked returns the first live message at or past seq matching any
// filter, with the count of matching messages behind it.
func (b *FakeBucket) nextLocked(filters []string, seq uint64) (*storedMsg, uint64) {
	var found *storedMsg
	var behind uint64
	for _, m := range b.msgs {
		if m.seq < seq || !matchesAny(filters, m.subject) {
			continue
		}
		if found == nil {
			found = m
		} else {
			behind++
		}
	}
	return found, behind
}

func cloneHeader(h nats.Header) nats.Header {
	if h == nil {
		return nil
	}
	out := make(nats.Header, len(h))
	for k, v := range h {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func matchesAny(filters []string, subject string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if subjectMatches(f, subject) {
			return true
		}
	}
	return false
}

// subjectMatches implements NATS subject matching with * and > wildcards.
func subjectMatches(filter, subject string) bool {
	if filter == subject {
		return true
	}
	ft := strings.Split(filter, ".")
	st := strings.Split(subject, ".")
	for i, t := range ft {
		if t == ">" {
			return i < len(st)
		}
		if i >= len(st) {
			return false
		}
		if t != "*" && t != st[i] {
			return false
		}
	}
	return len(ft) == len(st)
}
