package bundle

import (
	"bytes"
	"fmt"
	"io"
	"mime"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/cchangelabs/openepd/store"
)

// A Writer builds a new bundle. Assets and relations are collected in memory
// and written out together with the manifest when Close is called. If Close
// fails, or Abort is called instead, nothing is left at the destination.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	sink      sink
	blobs     *blobWriter
	opts      options
	assets    []Asset
	relations []Relation
	ids       map[AssetID]bool
	counters  map[AssetType]int
	err       error // first I/O error, after which the archive is unusable
	closed    bool
}

// Create starts a bundle which will be saved at path. It fails with
// ErrTargetExists if path is already present; bundles cannot be amended.
func Create(path string, opts ...Option) (*Writer, error) {
	s, err := newFileSink(path)
	if err != nil {
		return nil, err
	}
	return newWriter(s, opts), nil
}

// CreateInStore starts a bundle which will be saved under key in s.
func CreateInStore(s store.Store, key string, opts ...Option) (*Writer, error) {
	ss, err := newStoreSink(s, key)
	if err != nil {
		return nil, err
	}
	return newWriter(ss, opts), nil
}

// NewWriter starts a bundle which is written to w. The caller owns w; it is
// not closed. Unless Close succeeds, the data written to w is not a
// readable bundle.
func NewWriter(w io.Writer, opts ...Option) *Writer {
	return newWriter(streamSink{w}, opts)
}

func newWriter(s sink, opts []Option) *Writer {
	return &Writer{
		sink:     s,
		blobs:    newBlobWriter(s),
		opts:     buildOptions(opts),
		ids:      make(map[AssetID]bool),
		counters: make(map[AssetType]int),
	}
}

// WriteObjectAsset encodes obj and adds it to the bundle. Object assets are
// root assets unless Root(false) is given.
func (w *Writer) WriteObjectAsset(obj Object, opts ...AssetOption) (Asset, error) {
	if obj == nil || obj.AssetType() == "" {
		return Asset{}, ErrNotAsset
	}
	data, err := w.opts.objects.Marshal(obj)
	if err != nil {
		return Asset{}, errors.Wrapf(err, "encoding %s object", obj.AssetType())
	}
	return w.write(obj.AssetType(), KindObject, w.opts.objects.MediaType(), bytes.NewReader(data), true, opts)
}

// WriteBlobAsset copies r into the bundle as an opaque blob. Blob assets are
// not root assets unless Root(true) is given, so they usually need a
// relation from another asset.
func (w *Writer) WriteBlobAsset(r io.Reader, mediaType string, opts ...AssetOption) (Asset, error) {
	return w.write(AssetBlob, KindBlob, mediaType, r, false, opts)
}

func (w *Writer) write(t AssetType, kind ContentKind, mediaType string, r io.Reader, root bool, opts []AssetOption) (Asset, error) {
	if w.closed {
		return Asset{}, ErrWriterClosed
	}
	if w.err != nil {
		return Asset{}, w.err
	}
	var ao assetOptions
	for _, opt := range opts {
		opt(&ao)
	}
	if ao.root != nil {
		root = *ao.root
	}
	for _, rt := range ao.related {
		if !w.ids[rt.from] {
			return Asset{}, errors.Wrapf(ErrInvalidRelation, "unknown asset %q", rt.from)
		}
	}
	ext := extension(mediaType)
	n := w.counters[t] + 1
	// skip numbers already claimed by WithID or FileName
	for (ao.id == "" && w.ids[defaultID(t, n)]) ||
		(ao.fileName == "" && w.blobs.names[defaultRef(t, n, ext)]) {
		n++
	}
	id := ao.id
	if id == "" {
		id = defaultID(t, n)
	} else if w.ids[id] {
		return Asset{}, errors.Wrapf(ErrDuplicateAsset, "asset %q", id)
	}
	ref := ao.fileName
	if ref == "" {
		ref = defaultRef(t, n, ext)
	}

	now := w.opts.clock.Now()
	info, err := w.blobs.put(ref, now, r)
	if err != nil {
		if errors.Cause(err) == ErrDuplicateAsset {
			return Asset{}, err
		}
		// the zip stream now holds a partial entry
		w.err = err
		return Asset{}, err
	}
	w.counters[t] = n
	w.ids[id] = true

	a := Asset{
		ID:          id,
		Type:        t,
		IsRoot:      root,
		Kind:        kind,
		MediaType:   mediaType,
		DisplayName: ao.displayName,
		Language:    ao.language,
		Comment:     ao.comment,
		CustomType:  ao.customType,
		CustomData:  ao.customData,
		Size:        info.size,
		MD5:         info.md5,
		SHA256:      info.sha256,
		ref:         ref,
	}
	w.assets = append(w.assets, a)
	for _, rt := range ao.related {
		w.relations = append(w.relations, Relation{From: rt.from, To: id, Type: rt.rel})
	}
	w.opts.bump("bundle.write.assets", 1)
	w.opts.bump("bundle.write.bytes", float64(info.size))
	w.opts.logger.Debug("wrote asset",
		zap.String("asset", string(id)),
		zap.String("entry", ref),
		zap.Int64("size", info.size))
	return a, nil
}

func defaultID(t AssetType, n int) AssetID {
	return AssetID(fmt.Sprintf("%s/%06d", t, n))
}

func defaultRef(t AssetType, n int, ext string) string {
	return fmt.Sprintf("%s/%06d%s", t, n, ext)
}

var extensions = map[string]string{
	MediaJSON:         ".json",
	MediaCBOR:         ".cbor",
	"application/pdf": ".pdf",
	"application/xml": ".xml",
	"application/zip": ".zip",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/svg+xml":   ".svg",
	"text/csv":        ".csv",
	"text/plain":      ".txt",
	"text/xml":        ".xml",
}

// extension returns a file extension for an entry of the given media type,
// or "" if none is known.
func extension(mediaType string) string {
	base, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return ""
	}
	if ext, ok := extensions[base]; ok {
		return ext
	}
	if exts, _ := mime.ExtensionsByType(base); len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// AddRelation links two assets already written to this bundle.
func (w *Writer) AddRelation(from, to Asset, rel RelType) error {
	if w.closed {
		return ErrWriterClosed
	}
	if rel == "" {
		return errors.Wrap(ErrInvalidRelation, "empty relation type")
	}
	if !w.ids[from.ID] {
		return errors.Wrapf(ErrInvalidRelation, "unknown asset %q", from.ID)
	}
	if !w.ids[to.ID] {
		return errors.Wrapf(ErrInvalidRelation, "unknown asset %q", to.ID)
	}
	w.relations = append(w.relations, Relation{From: from.ID, To: to.ID, Type: rel})
	return nil
}

// Close checks the bundle, writes the manifest and commits the archive to
// its destination. If the assets and relations do not form a valid bundle a
// *ValidationError listing every problem is returned, and nothing is
// committed. The Writer cannot be used after Close, whatever the result.
func (w *Writer) Close() error {
	if w.closed {
		return ErrWriterClosed
	}
	w.closed = true
	if w.err != nil {
		w.discard()
		return w.err
	}
	if v := Validate(w.assets, w.relations, w.opts.policy); len(v) > 0 {
		w.discard()
		return &ValidationError{Err: ErrValidationFailed, Violations: v}
	}
	m := &Manifest{
		Created:   w.opts.clock.Now().UTC(),
		Generator: w.opts.generator,
		Comment:   w.opts.comment,
		BundleID:  uuid.NewString(),
		Assets:    w.assets,
		Relations: w.relations,
	}
	m.computeStats()
	err := w.blobs.finish(m.Created, func(out io.Writer) error {
		return w.opts.codecs.Encode(out, m)
	})
	if err == nil {
		err = w.sink.commit()
	}
	if err != nil {
		w.discard()
		return err
	}
	w.opts.bump("bundle.write.commits", 1)
	w.opts.logger.Info("committed bundle",
		zap.String("bundle_id", m.BundleID),
		zap.Int("assets", m.Stats.TotalCount),
		zap.Int64("size", m.Stats.TotalSize))
	return nil
}

// Abort throws away everything written so far. It does nothing if the
// Writer is already closed, so it is safe to defer.
func (w *Writer) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.discard()
}

func (w *Writer) discard() error {
	err := w.sink.abort()
	w.opts.bump("bundle.write.aborts", 1)
	w.opts.logger.Warn("bundle discarded",
		zap.Int("assets", len(w.assets)),
		zap.Error(err))
	return err
}
