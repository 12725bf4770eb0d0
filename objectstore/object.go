package objectstore

import (
	"encoding/base64"
	"regexp"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/objectstream/errors"
)

// Subject layout inside a bucket stream. Chunk subjects are keyed by
// generation id (already subject-safe), metadata subjects by a reversible
// encoding of the object name.
const (
	subjectPrefix    = "$OBS."
	streamNamePrefix = "OBS_"
)

// Link points a metadata record at an object in this or another bucket.
// A record carrying a link has no chunk data of its own, and a link must
// not target another link.
type Link struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// MetaOptions holds the mutually exclusive per-object options: a chunk size
// override for regular objects, or a link descriptor for link records.
type MetaOptions struct {
	Link         *Link  `json:"link,omitempty"`
	MaxChunkSize uint32 `json:"max_chunk_size,omitempty"`
}

// ObjectMeta is the caller-supplied portion of an object's metadata record.
type ObjectMeta struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Headers     nats.Header       `json:"headers,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Opts        *MetaOptions      `json:"options,omitempty"`
}

// ObjectInfo is the durable metadata record for one object: caller metadata
// plus the identity and integrity fields the store maintains. Exactly one
// record is current per (bucket, name); chunks are addressed solely by
// Generation, so renaming never moves them.
type ObjectInfo struct {
	ObjectMeta
	Bucket     string    `json:"bucket"`
	Generation string    `json:"generation"`
	Size       uint64    `json:"size"`
	Chunks     uint32    `json:"chunks"`
	Digest     string    `json:"digest,omitempty"`
	ModTime    time.Time `json:"mod_time"`
	Deleted    bool      `json:"deleted,omitempty"`
}

// IsLink reports whether this record is a link to another object
func (i *ObjectInfo) IsLink() bool {
	return i.Opts != nil && i.Opts.Link != nil
}

var (
	objectNameRe = regexp.MustCompile(`^[-/_=.A-Za-z0-9]+$`)
	bucketNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// validateObjectName checks an object name before any transport call
func validateObjectName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.ErrInvalidObjectName
	}
	if !objectNameRe.MatchString(name) {
		return errors.ErrInvalidObjectName
	}
	return nil
}

// validateBucketName checks a bucket name, which must be subject-token safe
func validateBucketName(bucket string) error {
	if bucket == "" || !bucketNameRe.MatchString(bucket) {
		return errors.ErrInvalidObjectName
	}
	return nil
}

// streamName returns the backing stream name for a bucket
func streamName(bucket string) string {
	return streamNamePrefix + bucket
}

// chunkSubject returns the subject carrying one generation's chunks
func chunkSubject(bucket, generation string) string {
	return subjectPrefix + bucket + ".C." + generation
}

// chunkWildcard matches all chunk subjects in a bucket
func chunkWildcard(bucket string) string {
	return subjectPrefix + bucket + ".C.>"
}

// metaSubject returns the metadata subject for one object name. The name is
// base64url-encoded without padding: collision-free, reversible, and safe as
// a subject token (names may contain "." and "/").
func metaSubject(bucket, name string) string {
	return subjectPrefix + bucket + ".M." + encodeName(name)
}

// metaWildcard matches all metadata subjects in a bucket
func metaWildcard(bucket string) string {
	return subjectPrefix + bucket + ".M.>"
}

// encodeName encodes an object name for use as a subject token
func encodeName(name string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(name))
}

// decodeName reverses encodeName
func decodeName(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", errors.WrapInvalid(err, "ObjectStore", "decodeName", "decode subject token")
	}
	return string(raw), nil
}
