// Package store provides a simple, goroutine safe key-value interface. Instead
// of values being an opaque array of bytes, though, they are a stream. This
// approach allows large bundles to be stored easily.
//
// Values are write-once: a key becomes visible only when the writer returned
// by Create is closed successfully. A writer which also implements Aborter
// can instead be abandoned, leaving nothing behind under its key.
//
// Probably the most important implementation is the FileSystem. The other
// stores are useful for testing or other specialized situations.
package store

import (
	"io"

	"github.com/pkg/errors"
)

// ReadAtCloser combines the io.ReaderAt and io.Closer interfaces.
type ReadAtCloser interface {
	io.ReaderAt
	io.Closer
}

// Store defines the basic stream based key-value store.
// Items are immutable once stored, but they may be deleted and then replaced
// with a new value.
//
// Since the FileSystem store uses the key as file names, keys should not
// contain forbidden filesystem characters, such as '/'.
//
// Open() returns a ReadAtCloser instead of a ReadCloser since the bundle
// reader needs random access to the zip central directory.
type Store interface {
	ROStore
	Create(key string) (io.WriteCloser, error)
	Delete(key string) error
}

// ROStore is the read-only pieces of a Store. It allows one to list contents,
// and to retrieve data.
type ROStore interface {
	List() <-chan string
	ListPrefix(prefix string) ([]string, error)
	Open(key string) (ReadAtCloser, int64, error)
}

// Aborter is implemented by the writers returned from Create which are able
// to discard everything written so far instead of committing it. After Abort
// the key is left as if Create had never been called.
type Aborter interface {
	Abort() error
}

var (
	// ErrKeyExists indicates an attempt to create a key which already exists
	ErrKeyExists = errors.New("key already exists")

	// ErrNotExist indicates the key is not in the store
	ErrNotExist = errors.New("key does not exist")
)

// Abort discards the content of w if it is an Aborter. Otherwise w is closed
// and the key is deleted from s.
func Abort(s Store, key string, w io.WriteCloser) error {
	if a, ok := w.(Aborter); ok {
		return a.Abort()
	}
	err := w.Close()
	if err2 := s.Delete(key); err == nil {
		err = err2
	}
	return err
}

// NewReader converts a ReaderAt into a io.Reader. It is here as a utility to
// help work with the ReadAtCloser returned by Open.
func NewReader(r io.ReaderAt) io.Reader {
	return &reader{r: r}
}

type reader struct {
	r   io.ReaderAt
	off int64
}

func (r *reader) Read(p []byte) (n int, err error) {
	n, err = r.r.ReadAt(p, r.off)
	r.off += int64(n)
	if err == io.EOF && n > 0 {
		// reading less than a full buffer is not an error for
		// an io.Reader
		err = nil
	}
	return
}
