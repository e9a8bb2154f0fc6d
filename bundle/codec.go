package bundle

import (
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// ManifestCodec serializes one major version of the manifest format.
//
// Decode only checks the shape of the record. Relational consistency is
// checked by the Reader so problems can be reported per asset.
type ManifestCodec interface {
	Version() Version
	Encode(w io.Writer, m *Manifest) error
	Decode(data []byte) (*Manifest, error)
}

// CodecRegistry maps major format versions to codecs. Writers encode with
// the codec of the highest major version; readers pick the codec matching
// the version recorded in the manifest.
type CodecRegistry struct {
	codecs  map[int]ManifestCodec
	current int
}

// NewCodecRegistry returns a registry holding the given codecs. A later
// codec replaces an earlier one with the same major version.
func NewCodecRegistry(codecs ...ManifestCodec) *CodecRegistry {
	r := &CodecRegistry{codecs: make(map[int]ManifestCodec), current: -1}
	for _, c := range codecs {
		major := c.Version().Major
		r.codecs[major] = c
		if major > r.current {
			r.current = major
		}
	}
	return r
}

// DefaultCodecs returns a new registry with the version 1 JSON codec.
func DefaultCodecs() *CodecRegistry {
	return NewCodecRegistry(NewJSONCodecV1())
}

// Lookup returns the codec for a major version.
func (r *CodecRegistry) Lookup(major int) (ManifestCodec, bool) {
	c, ok := r.codecs[major]
	return c, ok
}

// Encode writes m using the current codec. m.Version and m.Format are set
// to match.
func (r *CodecRegistry) Encode(w io.Writer, m *Manifest) error {
	c, ok := r.codecs[r.current]
	if !ok {
		return errors.New("bundle: codec registry is empty")
	}
	m.Format = FormatName
	m.Version = c.Version()
	return c.Encode(w, m)
}

// Decode reads the format version of data and decodes it with the codec for
// that major version. Unknown major versions fail with ErrManifestCorrupt.
func (r *CodecRegistry) Decode(data []byte) (*Manifest, error) {
	var peek struct {
		FormatVersion *string `json:"format_version"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return nil, errors.Wrapf(ErrManifestCorrupt, "unreadable manifest: %v", err)
	}
	if peek.FormatVersion == nil {
		return nil, errors.Wrap(ErrManifestCorrupt, "manifest has no format_version")
	}
	v, err := ParseVersion(*peek.FormatVersion)
	if err != nil {
		return nil, errors.Wrap(ErrManifestCorrupt, err.Error())
	}
	c, ok := r.codecs[v.Major]
	if !ok {
		return nil, errors.Wrapf(ErrManifestCorrupt, "unsupported format version %s", v)
	}
	m, err := c.Decode(data)
	if err != nil {
		return nil, err
	}
	// keep the minor version the archive was written with
	m.Version = v
	return m, nil
}

// jsonCodecV1 is the 1.x manifest format: a JSON document validated against
// manifestSchemaV1. Unknown keys are ignored.
type jsonCodecV1 struct {
	schema *gojsonschema.Schema
}

// NewJSONCodecV1 returns the codec for format version 1.0.
func NewJSONCodecV1() ManifestCodec {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(manifestSchemaV1))
	if err != nil {
		panic("bundle: manifest schema does not compile: " + err.Error())
	}
	return &jsonCodecV1{schema: schema}
}

func (c *jsonCodecV1) Version() Version { return Version{Major: 1, Minor: 0} }

type manifestV1 struct {
	Format        string       `json:"format"`
	FormatVersion string       `json:"format_version"`
	Created       string       `json:"created_date"`
	Generator     string       `json:"generator,omitempty"`
	Comment       string       `json:"comment,omitempty"`
	BundleID      string       `json:"bundle_id,omitempty"`
	Stats         *statsV1     `json:"stats,omitempty"`
	Assets        []assetV1    `json:"assets"`
	Relations     []relationV1 `json:"relations"`
}

type statsV1 struct {
	TotalCount  int            `json:"total_count"`
	TotalSize   int64          `json:"total_size"`
	CountByType map[string]int `json:"count_by_type"`
}

type assetV1 struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	IsRoot      bool   `json:"is_root"`
	ContentKind string `json:"content_kind"`
	MediaType   string `json:"media_type,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Language    string `json:"language,omitempty"`
	Comment     string `json:"comment,omitempty"`
	CustomType  string `json:"custom_type,omitempty"`
	CustomData  string `json:"custom_data,omitempty"`
	Size        int64  `json:"size"`
	MD5         string `json:"md5,omitempty"`
	SHA256      string `json:"sha256,omitempty"`
	StorageRef  string `json:"storage_ref"`
}

type relationV1 struct {
	From    string `json:"from"`
	To      string `json:"to"`
	RelType string `json:"rel_type"`
}

func (c *jsonCodecV1) Encode(w io.Writer, m *Manifest) error {
	out := manifestV1{
		Format:        m.Format,
		FormatVersion: c.Version().String(),
		Created:       m.Created.UTC().Format(time.RFC3339Nano),
		Generator:     m.Generator,
		Comment:       m.Comment,
		BundleID:      m.BundleID,
		Stats: &statsV1{
			TotalCount:  m.Stats.TotalCount,
			TotalSize:   m.Stats.TotalSize,
			CountByType: make(map[string]int, len(m.Stats.CountByType)),
		},
		Assets:    make([]assetV1, 0, len(m.Assets)),
		Relations: make([]relationV1, 0, len(m.Relations)),
	}
	for k, v := range m.Stats.CountByType {
		out.Stats.CountByType[string(k)] = v
	}
	for _, a := range m.Assets {
		out.Assets = append(out.Assets, assetV1{
			ID:          string(a.ID),
			Type:        string(a.Type),
			IsRoot:      a.IsRoot,
			ContentKind: string(a.Kind),
			MediaType:   a.MediaType,
			DisplayName: a.DisplayName,
			Language:    a.Language,
			Comment:     a.Comment,
			CustomType:  a.CustomType,
			CustomData:  a.CustomData,
			Size:        a.Size,
			MD5:         a.MD5,
			SHA256:      a.SHA256,
			StorageRef:  a.ref,
		})
	}
	for _, r := range m.Relations {
		out.Relations = append(out.Relations, relationV1{
			From:    string(r.From),
			To:      string(r.To),
			RelType: string(r.Type),
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func (c *jsonCodecV1) Decode(data []byte) (*Manifest, error) {
	result, err := c.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, errors.Wrapf(ErrManifestCorrupt, "unreadable manifest: %v", err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return nil, errors.Wrapf(ErrManifestCorrupt, "manifest shape: %s", strings.Join(problems, "; "))
	}
	var in manifestV1
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, errors.Wrapf(ErrManifestCorrupt, "unreadable manifest: %v", err)
	}
	created, err := time.Parse(time.RFC3339Nano, in.Created)
	if err != nil {
		return nil, errors.Wrapf(ErrManifestCorrupt, "created_date: %v", err)
	}
	m := &Manifest{
		Format:    in.Format,
		Created:   created,
		Generator: in.Generator,
		Comment:   in.Comment,
		BundleID:  in.BundleID,
		Assets:    make([]Asset, 0, len(in.Assets)),
		Relations: make([]Relation, 0, len(in.Relations)),
	}
	for _, a := range in.Assets {
		m.Assets = append(m.Assets, Asset{
			ID:          AssetID(a.ID),
			Type:        AssetType(a.Type),
			IsRoot:      a.IsRoot,
			Kind:        ContentKind(a.ContentKind),
			MediaType:   a.MediaType,
			DisplayName: a.DisplayName,
			Language:    a.Language,
			Comment:     a.Comment,
			CustomType:  a.CustomType,
			CustomData:  a.CustomData,
			Size:        a.Size,
			MD5:         a.MD5,
			SHA256:      a.SHA256,
			ref:         a.StorageRef,
		})
	}
	for _, r := range in.Relations {
		m.Relations = append(m.Relations, Relation{
			From: AssetID(r.From),
			To:   AssetID(r.To),
			Type: RelType(r.RelType),
		})
	}
	// stats are derived data, so recompute them rather than trust the file
	m.computeStats()
	return m, nil
}
