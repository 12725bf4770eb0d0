package objectstore

import (
	"context"
	"fmt"
	"time"

	"github.com/c360/objectstream/errors"
)

// AddLink creates a named link to an existing object, possibly in another
// bucket. The target must be live and must not itself be a link: link chains
// are rejected at creation so reads resolve in a single hop. A link may
// overwrite a previous link under the same name, but never a regular object.
func (s *Store) AddLink(ctx context.Context, name string, target *ObjectInfo) (*ObjectInfo, error) {
	start := time.Now()
	info, err := s.addLink(ctx, name, target)
	if err != nil {
		s.metrics.recordError("add_link")
		return nil, err
	}
	s.metrics.recordWriteOp("add_link", time.Since(start).Seconds())
	return info, nil
}

func (s *Store) addLink(ctx context.Context, name string, target *ObjectInfo) (*ObjectInfo, error) {
	if err := validateObjectName(name); err != nil {
		return nil, errors.WrapInvalid(err, "ObjectStore", "AddLink", fmt.Sprintf("validate name %q", name))
	}
	if target == nil || target.Name == "" || target.Bucket == "" {
		return nil, errors.WrapInvalid(errors.ErrLinkNotAllowed, "ObjectStore", "AddLink", "validate target")
	}
	if target.Deleted {
		return nil, errors.WrapInvalid(errors.ErrLinkNotAllowed, "ObjectStore", "AddLink",
			fmt.Sprintf("validate target %q (deleted)", target.Name))
	}
	if target.IsLink() {
		return nil, errors.WrapInvalid(errors.ErrLinkNotAllowed, "ObjectStore", "AddLink",
			fmt.Sprintf("validate target %q (is a link)", target.Name))
	}

	existing, err := s.getInfo(ctx, name, false)
	if err == nil && existing != nil && !existing.IsLink() {
		return nil, errors.WrapInvalid(errors.ErrObjectAlreadyExists, "ObjectStore", "AddLink",
			fmt.Sprintf("create link %q over regular object", name))
	}
	if err != nil && !errors.IsNotFound(err) {
		return nil, err
	}

	info := &ObjectInfo{
		ObjectMeta: ObjectMeta{
			Name: name,
			Opts: &MetaOptions{Link: &Link{Bucket: target.Bucket, Name: target.Name}},
		},
		Bucket:     s.cfg.Bucket,
		Generation: newGeneration(),
		ModTime:    time.Now().UTC(),
	}

	if err := s.publishMeta(ctx, info); err != nil {
		return nil, err
	}
	return info, nil
}
