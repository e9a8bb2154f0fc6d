package bundle

import (
	"runtime"

	"github.com/facebookgo/clock"
	"github.com/facebookgo/stats"
	"go.uber.org/zap"
)

// An Option configures a Reader or a Writer.
type Option func(*options)

type options struct {
	logger    *zap.Logger
	codecs    *CodecRegistry
	stats     stats.Client
	clock     clock.Clock
	generator string
	comment   string
	objects   ObjectCodec
	policy    RootPolicy
	workers   int
}

func buildOptions(opts []Option) options {
	o := options{
		logger:    zap.NewNop(),
		clock:     clock.New(),
		generator: "openepd-go",
		objects:   JSONObjects,
		policy:    AnyRoot,
		workers:   runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.codecs == nil {
		o.codecs = DefaultCodecs()
	}
	return o
}

// bump adds to a counter if a stats client was given.
func (o *options) bump(key string, n float64) {
	if o.stats != nil {
		o.stats.BumpSum(key, n)
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCodecs sets the manifest codec registry. The default is the result of
// DefaultCodecs.
func WithCodecs(r *CodecRegistry) Option {
	return func(o *options) { o.codecs = r }
}

// WithStats reports counters for bytes and assets written and read.
func WithStats(c stats.Client) Option {
	return func(o *options) { o.stats = c }
}

// WithClock sets the time source for the manifest creation date and the
// entry timestamps.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithGenerator sets the generator recorded in the manifest.
func WithGenerator(s string) Option {
	return func(o *options) { o.generator = s }
}

// WithComment sets the bundle comment recorded in the manifest.
func WithComment(s string) Option {
	return func(o *options) { o.comment = s }
}

// WithObjectCodec selects how a Writer encodes object assets. Readers pick
// the codec from each asset's media type instead.
func WithObjectCodec(c ObjectCodec) Option {
	return func(o *options) {
		if c != nil {
			o.objects = c
		}
	}
}

// WithRootPolicy restricts which asset types may be roots.
func WithRootPolicy(p RootPolicy) Option {
	return func(o *options) {
		if p != nil {
			o.policy = p
		}
	}
}

// WithVerifyWorkers sets how many entries Reader.Verify hashes at once.
func WithVerifyWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// An AssetOption sets per asset metadata when writing.
type AssetOption func(*assetOptions)

type assetOptions struct {
	root        *bool
	id          AssetID
	fileName    string
	displayName string
	language    string
	comment     string
	customType  string
	customData  string
	related     []relatedTo
}

type relatedTo struct {
	from AssetID
	rel  RelType
}

// Root overrides whether the asset is a root asset. Objects are roots by
// default and blobs are not.
func Root(isRoot bool) AssetOption {
	return func(o *assetOptions) { o.root = &isRoot }
}

// WithID sets the asset id instead of letting the Writer assign one.
func WithID(id AssetID) AssetOption {
	return func(o *assetOptions) { o.id = id }
}

// FileName sets the name of the asset's entry in the container. It must be
// unique in the bundle.
func FileName(name string) AssetOption {
	return func(o *assetOptions) { o.fileName = name }
}

// DisplayName sets a human readable name for the asset.
func DisplayName(s string) AssetOption {
	return func(o *assetOptions) { o.displayName = s }
}

// Language sets the language of the asset content, e.g. "en".
func Language(s string) AssetOption {
	return func(o *assetOptions) { o.language = s }
}

// Comment attaches a free text note to the asset.
func Comment(s string) AssetOption {
	return func(o *assetOptions) { o.comment = s }
}

// Custom attaches opaque caller data to the asset.
func Custom(customType, customData string) AssetOption {
	return func(o *assetOptions) {
		o.customType = customType
		o.customData = customData
	}
}

// RelatedTo adds the relation from -rel-> (new asset) once the asset is
// written. It may be given more than once.
func RelatedTo(from Asset, rel RelType) AssetOption {
	return func(o *assetOptions) {
		o.related = append(o.related, relatedTo{from: from.ID, rel: rel})
	}
}
