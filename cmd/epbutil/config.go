package main

import (
	"github.com/BurntSushi/toml"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/getsentry/raven-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cchangelabs/openepd/bundle"
	"github.com/cchangelabs/openepd/store"
)

// Config is the contents of an epbutil configuration file.
//
//	[store]
//	kind = "file"      # "path" (default), "file", or "s3"
//	root = "/var/epd"  # for "file"
//	prefix = "exports-" # keys are prefixed with this
//
//	[log]
//	level = "debug"
type Config struct {
	Store     StoreConfig
	Log       LogConfig
	Generator string
	Comment   string
	// object payload encoding, "json" or "cbor"
	Encoding  string
	SentryDSN string `toml:"sentry_dsn"`
}

type StoreConfig struct {
	Kind     string
	Root     string
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
}

type LogConfig struct {
	Level       string
	Development bool
}

func defaultConfig() Config {
	return Config{
		Store:     StoreConfig{Kind: "path"},
		Log:       LogConfig{Level: "warn"},
		Generator: "epbutil",
		Encoding:  "json",
	}
}

// loadConfig reads the TOML file at path on top of the defaults. An empty
// path gives the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, errors.Wrapf(err, "reading config %s", path)
	}
	return cfg, cfg.check()
}

func (c Config) check() error {
	switch c.Store.Kind {
	case "path":
	case "file":
		if c.Store.Root == "" {
			return errors.New("config: file store needs a root")
		}
	case "s3":
		if c.Store.Bucket == "" {
			return errors.New("config: s3 store needs a bucket")
		}
	default:
		return errors.Errorf("config: unknown store kind %q", c.Store.Kind)
	}
	switch c.Encoding {
	case "json", "cbor":
	default:
		return errors.Errorf("config: unknown encoding %q", c.Encoding)
	}
	return nil
}

func (c Config) logger() (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return nil, errors.Wrap(err, "config: log level")
	}
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// store returns the configured store, or nil for plain paths.
func (c Config) store(logger *zap.Logger) (store.Store, error) {
	switch c.Store.Kind {
	case "file":
		var s store.Store = store.NewFileSystem(c.Store.Root, logger)
		if c.Store.Prefix != "" {
			s = store.NewWithPrefix(s, c.Store.Prefix)
		}
		return s, nil
	case "s3":
		cfg := aws.NewConfig()
		if c.Store.Region != "" {
			cfg = cfg.WithRegion(c.Store.Region)
		}
		if c.Store.Endpoint != "" {
			cfg = cfg.WithEndpoint(c.Store.Endpoint).WithS3ForcePathStyle(true)
		}
		sess, err := session.NewSession(cfg)
		if err != nil {
			return nil, err
		}
		return store.NewS3(c.Store.Bucket, c.Store.Prefix, sess, logger), nil
	}
	return nil, nil
}

func (c Config) sentry() error {
	if c.SentryDSN == "" {
		return nil
	}
	return raven.SetDSN(c.SentryDSN)
}

// bundleOptions turns the config into reader and writer options.
func (c Config) bundleOptions(logger *zap.Logger) []bundle.Option {
	opts := []bundle.Option{
		bundle.WithLogger(logger),
		bundle.WithGenerator(c.Generator),
		bundle.WithComment(c.Comment),
	}
	if c.Encoding == "cbor" {
		opts = append(opts, bundle.WithObjectCodec(bundle.CBORObjects))
	}
	return opts
}
