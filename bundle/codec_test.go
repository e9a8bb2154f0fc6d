package bundle

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleManifest() *Manifest {
	m := &Manifest{
		Created:   time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
		Generator: "test",
		Comment:   "sample",
		BundleID:  "1b4e28ba-2fa1-11d2-883f-0016d3cca427",
		Assets: []Asset{
			{ID: "pcr/000001", Type: AssetPcr, IsRoot: true, Kind: KindObject, MediaType: MediaJSON,
				DisplayName: "Concrete", Language: "en", Size: 10, MD5: "aa", SHA256: "bb", ref: "pcr/000001.json"},
			{ID: "blob/000001", Type: AssetBlob, Kind: KindBlob, MediaType: "application/pdf",
				CustomType: "scan", CustomData: "page=1", Comment: "original", Size: 20, ref: "blob/000001.pdf"},
		},
		Relations: []Relation{{From: "pcr/000001", To: "blob/000001", Type: RelPdf}},
	}
	m.computeStats()
	return m
}

func TestCodecRoundTrip(t *testing.T) {
	codecs := DefaultCodecs()
	m := sampleManifest()
	var buf bytes.Buffer
	require.NoError(t, codecs.Encode(&buf, m))
	assert.Equal(t, FormatName, m.Format)
	assert.Equal(t, Version{1, 0}, m.Version)

	got, err := codecs.Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestCodecWireFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, DefaultCodecs().Encode(&buf, sampleManifest()))

	v, err := jason.NewObjectFromBytes(buf.Bytes())
	require.NoError(t, err)
	s, _ := v.GetString("format")
	assert.Equal(t, "openEPD Bundle", s)
	s, _ = v.GetString("format_version")
	assert.Equal(t, "1.0", s)
	s, _ = v.GetString("created_date")
	assert.Equal(t, "2024-03-01T12:30:00Z", s)
	n, _ := v.GetInt64("stats", "total_size")
	assert.Equal(t, int64(30), n)
	n, _ = v.GetInt64("stats", "count_by_type", "blob")
	assert.Equal(t, int64(1), n)

	assets, err := v.GetObjectArray("assets")
	require.NoError(t, err)
	require.Len(t, assets, 2)
	s, _ = assets[1].GetString("storage_ref")
	assert.Equal(t, "blob/000001.pdf", s)
	s, _ = assets[1].GetString("content_kind")
	assert.Equal(t, "blob", s)
	b, _ := assets[0].GetBoolean("is_root")
	assert.True(t, b)
	_, err = assets[1].GetString("language")
	assert.Error(t, err, "empty optional fields are omitted")

	rels, err := v.GetObjectArray("relations")
	require.NoError(t, err)
	require.Len(t, rels, 1)
	s, _ = rels[0].GetString("rel_type")
	assert.Equal(t, "repr.pdf", s)
}

const minorVersionManifest = `{
  "format": "openEPD Bundle",
  "format_version": "1.7",
  "created_date": "2024-03-01T12:30:00Z",
  "shiny_new_field": {"a": 1},
  "assets": [
    {"id": "pcr/1", "type": "pcr", "is_root": true, "content_kind": "object",
     "size": 2, "storage_ref": "pcr/1.json", "colour": "blue"}
  ],
  "relations": []
}`

func TestCodecVersions(t *testing.T) {
	codecs := DefaultCodecs()

	t.Run("newer minor", func(t *testing.T) {
		m, err := codecs.Decode([]byte(minorVersionManifest))
		require.NoError(t, err)
		assert.Equal(t, Version{1, 7}, m.Version)
		require.Len(t, m.Assets, 1)
		assert.Equal(t, "pcr/1.json", m.Assets[0].ref)
		assert.Equal(t, 1, m.Stats.TotalCount)
	})

	var table = []struct {
		name string
		data string
	}{
		{"unknown major", `{"format_version": "2.0", "created_date": "2024-03-01T12:30:00Z", "assets": [], "relations": []}`},
		{"no version", `{"created_date": "2024-03-01T12:30:00Z", "assets": [], "relations": []}`},
		{"bad version", `{"format_version": "one", "created_date": "2024-03-01T12:30:00Z", "assets": [], "relations": []}`},
		{"not json", `manifest`},
		{"missing assets", `{"format_version": "1.0", "created_date": "2024-03-01T12:30:00Z", "relations": []}`},
		{"bad content kind", `{"format_version": "1.0", "created_date": "2024-03-01T12:30:00Z", "relations": [],
			"assets": [{"id": "a", "type": "pcr", "is_root": true, "content_kind": "folder", "storage_ref": "a"}]}`},
		{"bad date", `{"format_version": "1.0", "created_date": "yesterday", "assets": [], "relations": []}`},
	}
	for _, tab := range table {
		t.Run(tab.name, func(t *testing.T) {
			m, err := codecs.Decode([]byte(tab.data))
			assert.Nil(t, m)
			assert.ErrorIs(t, err, ErrManifestCorrupt)
		})
	}
}

func TestCodecReportsAllShapeErrors(t *testing.T) {
	_, err := DefaultCodecs().Decode([]byte(`{"format_version": "1.0", "assets": [{"id": ""}]}`))
	require.ErrorIs(t, err, ErrManifestCorrupt)
	for _, field := range []string{"created_date", "relations", "is_root", "storage_ref"} {
		assert.Contains(t, err.Error(), field)
	}
}

// fakeCodec stands in for a future major version.
type fakeCodec struct{ v Version }

func (f fakeCodec) Version() Version { return f.v }

func (f fakeCodec) Encode(w io.Writer, m *Manifest) error {
	_, err := io.WriteString(w, `{"format_version": "`+f.v.String()+`"}`)
	return err
}

func (f fakeCodec) Decode(data []byte) (*Manifest, error) {
	return &Manifest{Format: "fake"}, nil
}

func TestCodecRegistry(t *testing.T) {
	r := NewCodecRegistry(NewJSONCodecV1(), fakeCodec{Version{3, 1}})

	c, ok := r.Lookup(1)
	assert.True(t, ok)
	assert.Equal(t, Version{1, 0}, c.Version())
	_, ok = r.Lookup(2)
	assert.False(t, ok)

	var buf bytes.Buffer
	m := &Manifest{}
	require.NoError(t, r.Encode(&buf, m))
	assert.Equal(t, Version{3, 1}, m.Version)

	got, err := r.Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "fake", got.Format)
	assert.Equal(t, Version{3, 1}, got.Version)

	_, err = DefaultCodecs().Decode(buf.Bytes())
	assert.ErrorIs(t, err, ErrManifestCorrupt)
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("1.12")
	require.NoError(t, err)
	assert.Equal(t, Version{1, 12}, v)
	assert.Equal(t, "1.12", v.String())

	for _, s := range []string{"", "1", "1.", ".1", "a.b", "-1.0", "1.2.3"} {
		_, err := ParseVersion(s)
		assert.Error(t, err, s)
	}
}
