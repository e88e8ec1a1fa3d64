// Package cli implements the medsafe admin commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Skufu/medsafe/internal/config"
	"github.com/Skufu/medsafe/internal/kb"
	"github.com/Skufu/medsafe/internal/logging"
	"github.com/Skufu/medsafe/internal/storage"
)

// Version is set at build time with -ldflags "-X".
var Version = "dev"

// env is the state shared by every subcommand of one root.
type env struct {
	v       *viper.Viper
	cfgFile string
	driver  string
	db      string
	format  string
	verbose bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	e := &env{v: viper.New()}

	root := &cobra.Command{
		Use:   "medsafe",
		Short: "Drug interaction knowledge base admin",
		Long: `medsafe manages the drug interaction knowledge base behind the medsafe
server and runs interaction checks against it offline.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (MEDSAFE_*, DATABASE_URL)
3. Config file (./medsafe.yaml or /etc/medsafe/medsafe.yaml)
4. Defaults`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&e.cfgFile, "config", "", "config file (default: ./medsafe.yaml)")
	pf.StringVar(&e.driver, "driver", "", "storage driver: memory, sqlite, postgres or yaml")
	pf.StringVar(&e.db, "db", "", "database path, or URL for postgres")
	pf.StringVarP(&e.format, "format", "f", "json", "output format: json, yaml or text")
	pf.BoolVarP(&e.verbose, "verbose", "v", false, "log knowledge base activity to stderr")

	root.AddCommand(
		newCheckCmd(e),
		newDrugCmd(e),
		newFactCmd(e),
		newImportCmd(e),
		newExportCmd(e),
		newConfigCmd(e),
		newVersionCmd(),
	)
	return root
}

// Execute runs the CLI with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig applies flags over the layered configuration.
func (e *env) loadConfig() (*config.Config, error) {
	if e.driver != "" {
		e.v.Set("storage.driver", e.driver)
	}
	cfg, err := config.Load(e.v, e.cfgFile)
	if err != nil {
		return nil, err
	}
	if e.db != "" {
		switch cfg.Storage.Driver {
		case config.DriverSQLite:
			cfg.Storage.SQLitePath = e.db
		case config.DriverYAML:
			cfg.Storage.YAMLPath = e.db
		case config.DriverPostgres:
			cfg.DatabaseURL = e.db
		}
	}
	return cfg, nil
}

func (e *env) logger() logging.Logger {
	if !e.verbose {
		return logging.NewNop()
	}
	l, err := logging.New(logging.Config{Level: "debug", Format: "console", OutputPaths: []string{"stderr"}})
	if err != nil {
		return logging.NewNop()
	}
	return l
}

// openStore loads config and opens the KB. The caller closes it.
func (e *env) openStore(ctx context.Context) (kb.Store, *config.Config, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.OpenStore(ctx, cfg, kb.WithLogger(e.logger()))
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

// withStore runs fn against an open store and closes it afterwards.
func (e *env) withStore(cmd *cobra.Command, fn func(kb.Store, *config.Config) error) error {
	store, cfg, err := e.openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store, cfg)
}

// print renders v in the selected format. The text format uses text when
// given and JSON otherwise.
func (e *env) print(w io.Writer, v any, text func(io.Writer) error) error {
	switch e.format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		if text != nil {
			return text(w)
		}
	case "json":
	default:
		return fmt.Errorf("unknown format %q (want json, yaml or text)", e.format)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "medsafe %s\n", Version)
		},
	}
}

// Main runs the CLI and exits non-zero on failure.
func Main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
