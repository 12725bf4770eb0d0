package objectstore

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/nats-io/nuid"

	"github.com/c360/objectstream/errors"
)

// InfoOpt customizes metadata lookups.
type InfoOpt func(*infoOpts)

type infoOpts struct {
	includeDeleted bool
}

// IncludeDeleted makes GetInfo return soft-deleted records instead of
// reporting not found.
func IncludeDeleted() InfoOpt {
	return func(o *infoOpts) {
		o.includeDeleted = true
	}
}

// GetInfo fetches the current metadata record for an object. Soft-deleted
// objects report not found unless IncludeDeleted is given.
func (s *Store) GetInfo(ctx context.Context, name string, opts ...InfoOpt) (*ObjectInfo, error) {
	start := time.Now()
	var o infoOpts
	for _, opt := range opts {
		opt(&o)
	}

	info, err := s.getInfo(ctx, name, o.includeDeleted)
	if err != nil {
		s.metrics.recordError("get_info")
		return nil, err
	}
	s.metrics.recordReadOp("get_info", time.Since(start).Seconds())
	return info, nil
}

// getInfo loads and decodes the last metadata record on the object's
// subject. ModTime comes from the stream's message timestamp, which is the
// authoritative write time.
func (s *Store) getInfo(ctx context.Context, name string, includeDeleted bool) (*ObjectInfo, error) {
	if err := validateObjectName(name); err != nil {
		return nil, errors.WrapInvalid(err, "ObjectStore", "GetInfo", fmt.Sprintf("validate name %q", name))
	}

	raw, err := s.stream.GetLastMsgForSubject(ctx, metaSubject(s.cfg.Bucket, name))
	if err != nil {
		if stderrors.Is(err, jetstream.ErrMsgNotFound) {
			return nil, errors.WrapInvalid(errors.ErrObjectNotFound, "ObjectStore", "GetInfo", fmt.Sprintf("lookup %q", name))
		}
		return nil, errors.WrapTransient(err, "ObjectStore", "GetInfo", "fetch metadata record")
	}

	var info ObjectInfo
	if err := json.Unmarshal(raw.Data, &info); err != nil {
		return nil, errors.WrapInvalid(err, "ObjectStore", "GetInfo", "decode metadata record")
	}
	info.ModTime = raw.Time

	if info.Deleted && !includeDeleted {
		return nil, errors.WrapInvalid(errors.ErrObjectNotFound, "ObjectStore", "GetInfo", fmt.Sprintf("lookup %q", name))
	}
	return &info, nil
}

// publishMeta writes a metadata record with a subject rollup so the stream
// retains only the latest record per object.
func (s *Store) publishMeta(ctx context.Context, info *ObjectInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return errors.WrapInvalid(err, "ObjectStore", "publishMeta", "encode metadata record")
	}

	msg := nats.NewMsg(metaSubject(s.cfg.Bucket, info.Name))
	msg.Header.Set(nats.MsgRollup, nats.MsgRollupSubject)
	msg.Data = data

	if _, err := s.js.PublishMsg(ctx, msg); err != nil {
		return errors.WrapTransient(err, "ObjectStore", "publishMeta", fmt.Sprintf("publish metadata for %q", info.Name))
	}
	return nil
}

// UpdateMeta rewrites the caller-visible metadata of a live object. Renames
// keep the existing generation: chunks are addressed by generation, so no
// data moves. Renaming onto a live object fails with a conflict.
func (s *Store) UpdateMeta(ctx context.Context, name string, meta ObjectMeta) (*ObjectInfo, error) {
	start := time.Now()
	info, err := s.updateMeta(ctx, name, meta)
	if err != nil {
		s.metrics.recordError("update_meta")
		return nil, err
	}
	s.metrics.recordWriteOp("update_meta", time.Since(start).Seconds())
	return info, nil
}

func (s *Store) updateMeta(ctx context.Context, name string, meta ObjectMeta) (*ObjectInfo, error) {
	if err := validateObjectName(meta.Name); err != nil {
		return nil, errors.WrapInvalid(err, "ObjectStore", "UpdateMeta", fmt.Sprintf("validate new name %q", meta.Name))
	}
	if meta.Opts != nil && meta.Opts.Link != nil {
		return nil, errors.WrapInvalid(errors.ErrLinkNotAllowed, "ObjectStore", "UpdateMeta", "introduce link")
	}

	info, err := s.getInfo(ctx, name, false)
	if err != nil {
		return nil, err
	}

	renaming := meta.Name != name
	if renaming {
		existing, lerr := s.getInfo(ctx, meta.Name, false)
		if lerr == nil && existing != nil {
			return nil, errors.WrapInvalid(errors.ErrObjectAlreadyExists, "ObjectStore", "UpdateMeta",
				fmt.Sprintf("rename %q to %q", name, meta.Name))
		}
		if lerr != nil && !errors.IsNotFound(lerr) {
			return nil, lerr
		}
	}

	info.Name = meta.Name
	info.Description = meta.Description
	info.Headers = meta.Headers
	info.Metadata = meta.Metadata
	// Link records never carry a chunk size; the option is exclusive with Link.
	if meta.Opts != nil && meta.Opts.MaxChunkSize > 0 && !info.IsLink() {
		if info.Opts == nil {
			info.Opts = &MetaOptions{}
		}
		info.Opts.MaxChunkSize = meta.Opts.MaxChunkSize
	}
	info.ModTime = time.Now().UTC()

	if err := s.publishMeta(ctx, info); err != nil {
		return nil, err
	}

	if renaming {
		// The old subject's record is now stale. Purge it so lookups of
		// the old name report not found instead of the pre-rename record.
		if err := s.purgeSubject(ctx, metaSubject(s.cfg.Bucket, name)); err != nil {
			return nil, err
		}
	}
	return info, nil
}

// Delete soft-deletes an object: the metadata record is rewritten with the
// deleted flag and zeroed content fields, then the chunk set is purged.
// Deleting an absent or already-deleted object reports not found.
func (s *Store) Delete(ctx context.Context, name string) error {
	info, err := s.getInfo(ctx, name, false)
	if err != nil {
		s.metrics.recordError("delete")
		return err
	}

	wasLink := info.IsLink()
	generation := info.Generation

	info.Deleted = true
	info.Size = 0
	info.Chunks = 0
	info.Digest = ""
	info.Opts = nil
	info.ModTime = time.Now().UTC()

	if err := s.publishMeta(ctx, info); err != nil {
		s.metrics.recordError("delete")
		return err
	}

	// Links carry no chunks of their own; purging would touch nothing.
	if !wasLink && generation != "" {
		if err := s.purgeSubject(ctx, chunkSubject(s.cfg.Bucket, generation)); err != nil {
			s.metrics.recordError("delete")
			return err
		}
	}

	s.metrics.recordDeleteOp()
	return nil
}

// purgeSubject purges one subject, treating not-found from the server as
// success: an empty subject is already the desired state.
func (s *Store) purgeSubject(ctx context.Context, subject string) error {
	err := s.stream.Purge(ctx, jetstream.WithPurgeSubject(subject))
	if err == nil {
		return nil
	}
	if stderrors.Is(err, jetstream.ErrStreamNotFound) || strings.Contains(err.Error(), "not found") {
		return nil
	}
	return errors.WrapTransient(err, "ObjectStore", "purgeSubject", fmt.Sprintf("purge %q", subject))
}

// newGeneration mints a chunk-set id. Ids are subject-token safe and unique
// per write, never reused across generations of the same name.
func newGeneration() string {
	return nuid.Next()
}
