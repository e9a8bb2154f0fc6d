package bundle

import (
	"archive/zip"
	"encoding/hex"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/cchangelabs/openepd/util"
)

// manifestName is the zip entry holding the manifest. It is always the last
// entry written.
const manifestName = "manifest.json"

// blobWriter appends entries to a zip stream. Entries are stored
// uncompressed so a reader can get at any of them with a single seek.
type blobWriter struct {
	z     *zip.Writer
	names map[string]bool
}

func newBlobWriter(w io.Writer) *blobWriter {
	return &blobWriter{
		z:     zip.NewWriter(w),
		names: map[string]bool{manifestName: true},
	}
}

type blobInfo struct {
	size   int64
	md5    string
	sha256 string
}

// put copies r into a new entry named ref. A ref may only be used once.
func (bw *blobWriter) put(ref string, modified time.Time, r io.Reader) (blobInfo, error) {
	if bw.names[ref] {
		return blobInfo{}, errors.Wrapf(ErrDuplicateAsset, "entry %q", ref)
	}
	out, err := bw.create(ref, modified)
	if err != nil {
		return blobInfo{}, err
	}
	bw.names[ref] = true
	hw := util.NewHashWriter(out)
	_, err = io.Copy(hw, r)
	if err != nil {
		return blobInfo{}, err
	}
	md5, _ := hw.CheckMD5(nil)
	sha, _ := hw.CheckSHA256(nil)
	return blobInfo{
		size:   hw.Size(),
		md5:    hex.EncodeToString(md5),
		sha256: hex.EncodeToString(sha),
	}, nil
}

func (bw *blobWriter) create(name string, modified time.Time) (io.Writer, error) {
	header := zip.FileHeader{
		Name:   name,
		Method: zip.Store,
	}
	header.Modified = modified
	return bw.z.CreateHeader(&header)
}

// finish writes the manifest entry and the zip central directory. Nothing
// may be put afterwards.
func (bw *blobWriter) finish(modified time.Time, manifest func(io.Writer) error) error {
	out, err := bw.create(manifestName, modified)
	if err != nil {
		return err
	}
	if err := manifest(out); err != nil {
		return err
	}
	return bw.z.Close()
}

// blobReader resolves storage refs against the zip central directory.
type blobReader struct {
	files map[string]*zip.File
}

func newBlobReader(r io.ReaderAt, size int64) (*blobReader, error) {
	z, err := zip.NewReader(r, size)
	if err != nil {
		return nil, err
	}
	br := &blobReader{files: make(map[string]*zip.File, len(z.File))}
	for _, f := range z.File {
		br.files[f.Name] = f
	}
	return br, nil
}

// readManifest returns the raw bytes of the manifest entry.
func (br *blobReader) readManifest() ([]byte, error) {
	f, ok := br.files[manifestName]
	if !ok {
		return nil, errors.Wrap(ErrManifestCorrupt, "archive has no manifest")
	}
	rc, err := f.Open()
	if err != nil {
		return nil, errors.Wrapf(ErrManifestCorrupt, "opening manifest: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(ErrManifestCorrupt, "reading manifest: %v", err)
	}
	return data, nil
}

// open looks up ref and calls fn with its content. The entry is closed
// before open returns, whatever fn does. A negative size skips the declared
// size check.
func (br *blobReader) open(ref string, size int64, fn func(io.Reader) error) error {
	f, ok := br.files[ref]
	if !ok || ref == manifestName {
		return errors.Wrapf(ErrBlobNotFound, "entry %q", ref)
	}
	if size >= 0 && f.UncompressedSize64 < uint64(size) {
		return errors.Wrapf(ErrBlobTruncated, "entry %q holds %d bytes, expected %d",
			ref, f.UncompressedSize64, size)
	}
	rc, err := f.Open()
	if err != nil {
		return errors.Wrapf(ErrBlobNotFound, "entry %q: %v", ref, err)
	}
	defer rc.Close()
	tr := &truncReader{r: rc}
	err = fn(tr)
	if tr.short {
		return errors.Wrapf(ErrBlobTruncated, "entry %q ends early", ref)
	}
	return err
}

// truncReader notes when the underlying entry ends before its recorded
// length.
type truncReader struct {
	r     io.Reader
	short bool
}

func (t *truncReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err == io.ErrUnexpectedEOF {
		t.short = true
	}
	return n, err
}
