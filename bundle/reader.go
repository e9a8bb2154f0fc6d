package bundle

import (
	"bytes"
	"io"
	"iter"
	"os"
	"reflect"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/cchangelabs/openepd/store"
)

// A Reader gives random access to the assets of a bundle. The manifest is
// parsed and checked once when the Reader is opened; payloads are only read
// when asked for.
//
// A Reader never changes after it is opened, and is safe for concurrent use
// if the underlying io.ReaderAt is.
type Reader struct {
	m      *Manifest
	blobs  *blobReader
	byID   map[AssetID]int
	out    map[AssetID][]int // relation indices by source
	closer io.Closer
	opts   options
}

// Open reads the bundle held in r, which is size bytes long. The bundle is
// rejected with ErrManifestCorrupt or ErrDanglingReference if its manifest
// cannot be read or does not describe a consistent bundle.
//
// Closing the Reader does not close r.
func Open(r io.ReaderAt, size int64, opts ...Option) (*Reader, error) {
	o := buildOptions(opts)
	blobs, err := newBlobReader(r, size)
	if err != nil {
		return nil, errors.Wrapf(ErrManifestCorrupt, "not a bundle archive: %v", err)
	}
	data, err := blobs.readManifest()
	if err != nil {
		return nil, err
	}
	m, err := o.codecs.Decode(data)
	if err != nil {
		return nil, err
	}
	if v := Validate(m.Assets, m.Relations, o.policy); len(v) > 0 {
		verr := &ValidationError{Err: ErrManifestCorrupt, Violations: v}
		for _, x := range v {
			if x.IsDangling() {
				verr.Err = ErrDanglingReference
				break
			}
		}
		return nil, verr
	}
	rd := &Reader{
		m:     m,
		blobs: blobs,
		byID:  make(map[AssetID]int, len(m.Assets)),
		out:   make(map[AssetID][]int),
		opts:  o,
	}
	for i, a := range m.Assets {
		rd.byID[a.ID] = i
	}
	for i, rel := range m.Relations {
		rd.out[rel.From] = append(rd.out[rel.From], i)
	}
	o.logger.Info("opened bundle",
		zap.String("bundle_id", m.BundleID),
		zap.Stringer("version", m.Version),
		zap.Int("assets", len(m.Assets)),
		zap.Int("relations", len(m.Relations)))
	return rd, nil
}

// OpenFile opens the bundle at path. The file is memory mapped and stays
// mapped until the Reader is closed.
func OpenFile(path string, opts ...Option) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	src, size, err := mapFile(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	rd, err := Open(src, size, opts...)
	if err != nil {
		src.Close()
		return nil, err
	}
	rd.closer = src
	return rd, nil
}

// OpenStore opens the bundle stored under key in s. The store handle is
// held until the Reader is closed.
func OpenStore(s store.ROStore, key string, opts ...Option) (*Reader, error) {
	src, size, err := s.Open(key)
	if err != nil {
		return nil, err
	}
	rd, err := Open(src, size, opts...)
	if err != nil {
		src.Close()
		return nil, err
	}
	rd.closer = src
	return rd, nil
}

// Close releases the source the Reader was opened from, if the Reader owns
// it. Calling Close more than once is harmless.
func (rd *Reader) Close() error {
	if rd.closer == nil {
		return nil
	}
	err := rd.closer.Close()
	rd.closer = nil
	return err
}

// Manifest returns a copy of the bundle manifest.
func (rd *Reader) Manifest() *Manifest {
	return rd.m.Copy()
}

// Assets iterates over every asset in manifest order.
func (rd *Reader) Assets() iter.Seq[Asset] {
	return func(yield func(Asset) bool) {
		for _, a := range rd.m.Assets {
			if !yield(a) {
				return
			}
		}
	}
}

// AssetByID returns the asset with the given id, or ErrNotFound.
func (rd *Reader) AssetByID(id AssetID) (Asset, error) {
	i, ok := rd.byID[id]
	if !ok {
		return Asset{}, errors.Wrapf(ErrNotFound, "asset %q", id)
	}
	return rd.m.Assets[i], nil
}

// RootAssets iterates over the root assets matched by filter, in manifest
// order. The sequence may be iterated any number of times.
func (rd *Reader) RootAssets(filter AssetFilter) iter.Seq[Asset] {
	return func(yield func(Asset) bool) {
		for _, a := range rd.m.Assets {
			if a.IsRoot && filter.match(a) {
				if !yield(a) {
					return
				}
			}
		}
	}
}

// GetFirstRootAsset returns the first root asset of type t, or ErrNotFound.
func (rd *Reader) GetFirstRootAsset(t AssetType) (Asset, error) {
	for a := range rd.RootAssets(OfType(t)) {
		return a, nil
	}
	return Asset{}, errors.Wrapf(ErrNotFound, "no root asset of type %q", t)
}

// Relatives iterates over the targets of the relations leaving a, in the
// order the relations were added. An empty rel matches every relation type.
func (rd *Reader) Relatives(a Asset, rel RelType) iter.Seq[Asset] {
	return func(yield func(Asset) bool) {
		for _, i := range rd.out[a.ID] {
			r := rd.m.Relations[i]
			if rel != "" && r.Type != rel {
				continue
			}
			if !yield(rd.m.Assets[rd.byID[r.To]]) {
				return
			}
		}
	}
}

// GetRelatives returns every asset Relatives would yield.
func (rd *Reader) GetRelatives(a Asset, rel RelType) []Asset {
	var out []Asset
	for x := range rd.Relatives(a, rel) {
		out = append(out, x)
	}
	return out
}

// GetFirstRelativeAsset returns the first asset related to a by rel, or
// ErrNotFound.
func (rd *Reader) GetFirstRelativeAsset(a Asset, rel RelType) (Asset, error) {
	for x := range rd.Relatives(a, rel) {
		return x, nil
	}
	return Asset{}, errors.Wrapf(ErrNotFound, "no %q relative of %q", rel, a.ID)
}

// Translations returns the translations of a.
func (rd *Reader) Translations(a Asset) []Asset {
	return rd.GetRelatives(a, RelTranslation)
}

// lookup resolves a caller supplied asset against the manifest so stale or
// hand built Asset values cannot reach arbitrary entries.
func (rd *Reader) lookup(a Asset) (Asset, error) {
	i, ok := rd.byID[a.ID]
	if !ok {
		return Asset{}, errors.Wrapf(ErrNotFound, "asset %q", a.ID)
	}
	return rd.m.Assets[i], nil
}

// ReadBlobAsset calls fn with the payload of the blob asset a. The payload
// is closed when fn returns. Errors returned by fn are passed back.
func (rd *Reader) ReadBlobAsset(a Asset, fn func(io.Reader) error) error {
	a, err := rd.lookup(a)
	if err != nil {
		return err
	}
	if !a.IsBlob() {
		return errors.Wrapf(ErrNotABlob, "asset %q", a.ID)
	}
	return rd.readPayload(a, fn)
}

// ReadObjectAsset decodes the object asset a into obj, which must be a
// pointer to a type whose AssetType matches the asset.
func (rd *Reader) ReadObjectAsset(a Asset, obj Object) error {
	a, err := rd.lookup(a)
	if err != nil {
		return err
	}
	if a.IsBlob() {
		return errors.Wrapf(ErrNotAnObject, "asset %q", a.ID)
	}
	if v := reflect.ValueOf(obj); obj == nil || v.Kind() != reflect.Ptr || v.IsNil() {
		return errors.Wrap(ErrNotAsset, "object must be a non-nil pointer")
	}
	if obj.AssetType() != a.Type {
		return errors.Wrapf(ErrTypeMismatch, "asset %q is %q, not %q", a.ID, a.Type, obj.AssetType())
	}
	codec, err := objectCodecFor(a.MediaType)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	err = rd.readPayload(a, func(r io.Reader) error {
		_, err := io.Copy(&buf, r)
		return err
	})
	if err != nil {
		return err
	}
	if err := codec.Unmarshal(buf.Bytes(), obj); err != nil {
		return errors.Wrapf(ErrDeserializationFailed, "asset %q: %v", a.ID, err)
	}
	return nil
}

// ReadAssetPayload calls fn with the raw payload of any asset, object or
// blob.
func (rd *Reader) ReadAssetPayload(a Asset, fn func(io.Reader) error) error {
	a, err := rd.lookup(a)
	if err != nil {
		return err
	}
	return rd.readPayload(a, fn)
}

func (rd *Reader) readPayload(a Asset, fn func(io.Reader) error) error {
	cr := &countReader{}
	err := rd.blobs.open(a.ref, a.Size, func(r io.Reader) error {
		cr.r = r
		return fn(cr)
	})
	rd.opts.bump("bundle.read.bytes", float64(cr.n))
	if err != nil {
		rd.opts.logger.Debug("asset read failed", zap.String("asset", string(a.ID)), zap.Error(err))
		return err
	}
	rd.opts.bump("bundle.read.assets", 1)
	return nil
}

type countReader struct {
	r io.Reader
	n int64
}

func (c *countReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
