package bundle

// AssetID identifies one asset within a bundle. IDs are assigned by the
// Writer and are never reused inside a bundle.
type AssetID string

// AssetType tags the kind of domain object an asset holds.
type AssetType string

// The asset types known to this package. Other values are allowed.
const (
	AssetEpd             AssetType = "epd"
	AssetPcr             AssetType = "pcr"
	AssetOrg             AssetType = "org"
	AssetDeclaration     AssetType = "declaration"
	AssetIndustryEpd     AssetType = "industry_epd"
	AssetGenericEstimate AssetType = "generic_estimate"
	AssetBlob            AssetType = "blob"
)

// ContentKind says whether an asset payload is a serialized object or an
// opaque byte stream.
type ContentKind string

const (
	KindObject ContentKind = "object"
	KindBlob   ContentKind = "blob"
)

// RelType tags a relation between two assets.
type RelType string

const (
	RelTranslation RelType = "translation"
	RelPdf         RelType = "repr.pdf"
	RelIlcd        RelType = "repr.ilcd"
	RelLogo        RelType = "logo"
	RelImage       RelType = "image"
)

// Asset describes one entry of a bundle.
//
// The zero value is not a valid asset. Assets are produced by a Writer or
// read from a bundle's manifest, and should be passed back unchanged.
type Asset struct {
	ID     AssetID
	Type   AssetType
	IsRoot bool
	Kind   ContentKind

	// descriptive metadata. It has no effect on lookups by relation.
	MediaType   string
	DisplayName string
	Language    string
	Comment     string
	CustomType  string
	CustomData  string

	// fixity of the stored payload
	Size   int64
	MD5    string // hex
	SHA256 string // hex

	// ref locates the payload inside the container. Only the blob store
	// and the manifest codec look at it.
	ref string
}

// IsBlob is true if the asset payload is an opaque byte stream.
func (a Asset) IsBlob() bool { return a.Kind == KindBlob }

// Relation is a typed edge from one asset to another.
type Relation struct {
	From AssetID
	To   AssetID
	Type RelType
}
