// epbutil inspects and builds openEPD bundles.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/getsentry/raven-go"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/cchangelabs/openepd/bundle"
	"github.com/cchangelabs/openepd/store"
)

const usage = `
epbutil [flags] <command> <command arguments>

Possible commands:
    list <bundle>

    show [--yaml] <bundle>

    extract <bundle> <asset id> [output file]

    verify <bundle>

    pack <bundle> <pcr.json> [attachments...]

A bundle is a key in the configured store, or a file path if no store
is configured.
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		raven.CaptureErrorAndWait(err, nil)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// env is what every command works with.
type env struct {
	cfg    Config
	log    *zap.Logger
	store  store.Store // nil means bundles are file paths
	out    io.Writer
	asYAML bool
}

func run(args []string, out io.Writer) error {
	flags := pflag.NewFlagSet("epbutil", pflag.ContinueOnError)
	configFile := flags.StringP("config", "c", "", "TOML configuration file")
	storeDir := flags.StringP("store", "s", "", "use the file store at this directory")
	verbose := flags.BoolP("verbose", "v", false, "log debug messages")
	asYAML := flags.Bool("yaml", false, "show the manifest as YAML")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage, "\nFlags:\n", flags.FlagUsages())
	}
	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return err
	}
	if *storeDir != "" {
		cfg.Store = StoreConfig{Kind: "file", Root: *storeDir}
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.sentry(); err != nil {
		return err
	}
	logger, err := cfg.logger()
	if err != nil {
		return err
	}
	defer logger.Sync()
	s, err := cfg.store(logger)
	if err != nil {
		return err
	}
	e := &env{cfg: cfg, log: logger, store: s, out: out, asYAML: *asYAML}

	cmd := flags.Args()
	if len(cmd) == 0 {
		flags.Usage()
		return nil
	}
	need := map[string]int{"list": 1, "show": 1, "extract": 2, "verify": 1, "pack": 2}
	n, ok := need[cmd[0]]
	if !ok {
		return errors.Errorf("unknown command %q", cmd[0])
	}
	if len(cmd)-1 < n {
		return errors.Errorf("%s needs at least %d argument(s)", cmd[0], n)
	}
	switch cmd[0] {
	case "list":
		return e.dolist(cmd[1])
	case "show":
		return e.doshow(cmd[1])
	case "extract":
		output := ""
		if len(cmd) > 3 {
			output = cmd[3]
		}
		return e.doextract(cmd[1], bundle.AssetID(cmd[2]), output)
	case "verify":
		return e.doverify(cmd[1])
	case "pack":
		return e.dopack(cmd[1], cmd[2], cmd[3:])
	}
	return nil
}

func (e *env) open(name string) (*bundle.Reader, error) {
	opts := e.cfg.bundleOptions(e.log)
	if e.store == nil {
		return bundle.OpenFile(name, opts...)
	}
	return bundle.OpenStore(e.store, name, opts...)
}

func (e *env) create(name string) (*bundle.Writer, error) {
	opts := e.cfg.bundleOptions(e.log)
	if e.store == nil {
		return bundle.Create(name, opts...)
	}
	return bundle.CreateInStore(e.store, name, opts...)
}
