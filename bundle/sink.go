package bundle

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/cchangelabs/openepd/store"
)

// A sink is where a Writer puts the archive. Nothing is visible at the
// destination until commit succeeds.
type sink interface {
	io.Writer
	commit() error
	abort() error
}

// fileSink writes into a temporary file next to the target and renames it
// into place on commit.
type fileSink struct {
	*os.File
	target string
}

func newFileSink(path string) (*fileSink, error) {
	if _, err := os.Lstat(path); err == nil {
		return nil, errors.Wrapf(ErrTargetExists, "%s", path)
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, err
	}
	return &fileSink{File: f, target: path}, nil
}

func (fs *fileSink) commit() error {
	err := fs.File.Sync()
	err = multierr.Append(err, fs.File.Close())
	if err == nil {
		if _, err2 := os.Lstat(fs.target); err2 == nil {
			err = errors.Wrapf(ErrTargetExists, "%s", fs.target)
		}
	}
	if err == nil {
		err = os.Rename(fs.File.Name(), fs.target)
	}
	if err != nil {
		os.Remove(fs.File.Name())
	}
	return err
}

func (fs *fileSink) abort() error {
	// the file may already be closed by a failed commit
	fs.File.Close()
	err := os.Remove(fs.File.Name())
	if os.IsNotExist(err) {
		err = nil
	}
	return err
}

// storeSink writes to a key in a store.
type storeSink struct {
	io.WriteCloser
	s   store.Store
	key string
}

func newStoreSink(s store.Store, key string) (*storeSink, error) {
	if rc, _, err := s.Open(key); err == nil {
		rc.Close()
		return nil, errors.Wrapf(ErrTargetExists, "key %q", key)
	}
	w, err := s.Create(key)
	if err == store.ErrKeyExists {
		return nil, errors.Wrapf(ErrTargetExists, "key %q", key)
	} else if err != nil {
		return nil, err
	}
	return &storeSink{WriteCloser: w, s: s, key: key}, nil
}

func (ss *storeSink) commit() error {
	err := ss.WriteCloser.Close()
	if errors.Cause(err) == store.ErrKeyExists {
		return errors.Wrapf(ErrTargetExists, "key %q", ss.key)
	}
	return err
}

func (ss *storeSink) abort() error {
	return store.Abort(ss.s, ss.key, ss.WriteCloser)
}

// streamSink writes to a caller owned stream. An aborted stream is left
// without a zip central directory, so it will not open as a bundle.
type streamSink struct {
	io.Writer
}

func (streamSink) commit() error { return nil }
func (streamSink) abort() error  { return nil }
