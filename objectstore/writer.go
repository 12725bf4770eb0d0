package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/objectstream/errors"
)

// Put streams an object into the bucket: the source is chunked under a fresh
// generation, hashed as it is read, and committed by a single metadata
// record. Readers either see the previous complete object or the new one,
// never a partial write. Replacing an object purges the superseded chunk set
// on a best-effort basis after commit.
func (s *Store) Put(ctx context.Context, meta ObjectMeta, src io.Reader) (*ObjectInfo, error) {
	start := time.Now()
	info, err := s.put(ctx, meta, src)
	if err != nil {
		s.metrics.recordError("put")
		return nil, err
	}
	s.metrics.recordWriteOp("put", time.Since(start).Seconds())
	s.metrics.recordWrite(info.Size, info.Chunks)
	return info, nil
}

// PutBytes stores a byte slice under the given name with default metadata.
func (s *Store) PutBytes(ctx context.Context, name string, data []byte) (*ObjectInfo, error) {
	return s.Put(ctx, ObjectMeta{Name: name}, bytes.NewReader(data))
}

func (s *Store) put(ctx context.Context, meta ObjectMeta, src io.Reader) (*ObjectInfo, error) {
	if err := validateObjectName(meta.Name); err != nil {
		return nil, errors.WrapInvalid(err, "ObjectStore", "Put", fmt.Sprintf("validate name %q", meta.Name))
	}
	if meta.Opts != nil && meta.Opts.Link != nil {
		return nil, errors.WrapInvalid(errors.ErrLinkNotAllowed, "ObjectStore", "Put", "validate metadata options")
	}
	if src == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("source reader cannot be nil"), "ObjectStore", "Put", "validate source")
	}

	chunkSize := s.cfg.chunkSize()
	if meta.Opts != nil && meta.Opts.MaxChunkSize > 0 {
		chunkSize = meta.Opts.MaxChunkSize
	}
	if chunkSize > maxChunkSize {
		return nil, errors.WrapInvalid(errors.ErrChunkSizeTooLarge, "ObjectStore", "Put",
			fmt.Sprintf("validate chunk size %d", chunkSize))
	}

	// Remember what this write supersedes so its chunks can be purged after
	// commit. Deleted records are included: their generation field still
	// names an already-purged chunk set, which is harmless to purge again.
	prior, err := s.getInfo(ctx, meta.Name, true)
	if err != nil && !errors.IsNotFound(err) {
		return nil, err
	}

	info := &ObjectInfo{
		ObjectMeta: meta,
		Bucket:     s.cfg.Bucket,
		Generation: newGeneration(),
	}

	reader := newDigestReader(src)
	subject := chunkSubject(s.cfg.Bucket, info.Generation)
	buf := make([]byte, chunkSize)

	for {
		n, rerr := io.ReadFull(reader, buf)
		if n > 0 {
			msg := nats.NewMsg(subject)
			msg.Data = buf[:n]
			if _, perr := s.js.PublishMsg(ctx, msg); perr != nil {
				// Orphaned chunks of the failed generation are invisible
				// to readers and reclaimed when the name is next written
				// or deleted.
				return nil, errors.WrapTransient(perr, "ObjectStore", "Put",
					fmt.Sprintf("publish chunk %d of %q", info.Chunks+1, meta.Name))
			}
			info.Size += uint64(n)
			info.Chunks++
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			return nil, errors.WrapTransient(rerr, "ObjectStore", "Put", fmt.Sprintf("read source for %q", meta.Name))
		}
	}

	info.Digest = digestString(reader.hash)
	info.ModTime = time.Now().UTC()

	if err := s.publishMeta(ctx, info); err != nil {
		return nil, err
	}

	// The object is committed; reclaiming the superseded chunk set must not
	// fail the write.
	if prior != nil && prior.Generation != "" && prior.Generation != info.Generation && !prior.IsLink() {
		if perr := s.purgeSubject(ctx, chunkSubject(s.cfg.Bucket, prior.Generation)); perr != nil {
			s.logger.Warn("failed to purge superseded chunk set",
				"bucket", s.cfg.Bucket,
				"object", meta.Name,
				"generation", prior.Generation,
				"error", perr)
		}
	}

	return info, nil
}
