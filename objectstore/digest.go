package objectstore

import (
	"crypto/sha256"
	"encoding/base64"
	"hash"
	"io"
)

const digestPrefix = "SHA-256="

// digestString renders a finished hash in the stored digest form
func digestString(h hash.Hash) string {
	return digestPrefix + base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// digestReader hashes everything read through it. Used on the write path so
// the digest covers exactly the bytes that were chunked and published.
type digestReader struct {
	src  io.Reader
	hash hash.Hash
}

func newDigestReader(src io.Reader) *digestReader {
	return &digestReader{src: src, hash: sha256.New()}
}

func (r *digestReader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)
	if n > 0 {
		r.hash.Write(p[:n])
	}
	return n, err
}

// digestWriter hashes and counts everything written through it. Used on the
// read path so integrity verification covers exactly the bytes delivered to
// the caller's sink.
type digestWriter struct {
	sink io.Writer
	hash hash.Hash
	n    uint64
}

func newDigestWriter(sink io.Writer) *digestWriter {
	return &digestWriter{sink: sink, hash: sha256.New()}
}

func (w *digestWriter) Write(p []byte) (int, error) {
	n, err := w.sink.Write(p)
	if n > 0 {
		w.hash.Write(p[:n])
		w.n += uint64(n)
	}
	return n, err
}
