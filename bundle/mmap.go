package bundle

import (
	"bytes"
	"os"

	"github.com/edsrzf/mmap-go"
	"go.uber.org/multierr"

	"github.com/cchangelabs/openepd/store"
)

// mappedFile is a read-only memory mapping of a bundle file.
type mappedFile struct {
	*bytes.Reader
	m mmap.MMap
	f *os.File
}

func (mf *mappedFile) Close() error {
	var err error
	if mf.m != nil {
		err = mf.m.Unmap()
		mf.m = nil
	}
	return multierr.Append(err, mf.f.Close())
}

// mapFile maps f into memory. Empty files cannot be mapped, so they are read
// through f directly; they are never valid bundles anyway.
func mapFile(f *os.File) (store.ReadAtCloser, int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, 0, err
	}
	if fi.Size() == 0 {
		return f, 0, nil
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, 0, err
	}
	return &mappedFile{Reader: bytes.NewReader(m), m: m, f: f}, fi.Size(), nil
}
