package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arthur-debert/nanomap/nanomap"
	"github.com/arthur-debert/nanomap/nanomap/config"
)

// CLI is the viper-backed nanomap command line
type CLI struct {
	rootCmd   *cobra.Command
	viperInst *viper.Viper

	configPath string
	logLevel   string
	verbose    bool
	format     string

	logger  *slog.Logger
	logFile io.Closer
}

// NewCLI creates the command tree
func NewCLI() *CLI {
	cli := &CLI{logger: slog.Default()}
	cli.createRootCommand()
	cli.rootCmd.AddCommand(
		cli.putCommand(),
		cli.getCommand(),
		cli.resolveCommand(),
		cli.tagsCommand(),
		cli.configCommand(),
	)
	return cli
}

func (cli *CLI) createRootCommand() {
	cli.rootCmd = &cobra.Command{
		Use:   "nanomap",
		Short: "nanomap - document mapping with typed references",
		Long: `nanomap stores documents in a JSON file store and resolves the
references between them.

Configuration sources (in order of precedence):
1. Command line flags
2. Environment variables (NANOMAP_*)
3. Configuration file (--config, NANOMAP_CONFIG, ./nanomap.yaml, ~/.nanomap/nanomap.yaml)
4. Built-in defaults

Examples:
  # Store a document
  nanomap --store app.json put --collection users '{"_id": "u1", "name": "ann"}'

  # Resolve the manager of u9 as declared in nanomap.yaml
  nanomap resolve --collection users --id u9 --property manager

  # Check a tag table
  nanomap tags check tags.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cli.viperInst = config.NewViper(cli.configPath)
			flags := cli.rootCmd.PersistentFlags()
			_ = cli.viperInst.BindPFlag("store_path", flags.Lookup("store"))
			_ = cli.viperInst.BindPFlag("default_database", flags.Lookup("db"))

			logger, closer, err := initLogging(cli.logLevel, cli.verbose, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cli.logger = logger
			cli.logFile = closer
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if cli.logFile != nil {
				return cli.logFile.Close()
			}
			return nil
		},
	}

	flags := cli.rootCmd.PersistentFlags()
	flags.StringVarP(&cli.configPath, "config", "c", "", "Config file (default: discovered nanomap.yaml)")
	flags.StringP("store", "s", "", "Store file path")
	flags.String("db", "", "Default database name")
	flags.StringVarP(&cli.format, "format", "f", "json", "Output format: json|yaml")
	flags.StringVar(&cli.logLevel, "log-level", "warn", "Log level: debug|info|warn|error")
	flags.BoolVarP(&cli.verbose, "verbose", "v", false, "Also log to stderr")
}

// Execute runs the CLI with os.Args
func (cli *CLI) Execute() error {
	return cli.rootCmd.Execute()
}

// loadConfig reads the effective configuration. A missing discovered file
// falls back to defaults; a missing explicit one is an error.
func (cli *CLI) loadConfig(operation string) (config.Config, error) {
	if err := cli.viperInst.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return config.Config{}, NewConfigError(operation, err)
		}
	}
	cfg, err := config.FromViper(cli.viperInst)
	if err != nil {
		return config.Config{}, NewConfigError(operation, err)
	}
	return cfg, nil
}

// openMapper builds a Mapper for the CLI. The CLI knows no Go types, so tag
// bindings and property targets are dropped and documents stay raw.
func (cli *CLI) openMapper(operation string) (*nanomap.Mapper, error) {
	cfg, err := cli.loadConfig(operation)
	if err != nil {
		return nil, err
	}
	if len(cfg.Tags) > 0 {
		cli.logger.Debug("ignoring tag bindings in the CLI", "tags", len(cfg.Tags))
		cfg.Tags = nil
	}
	for i := range cfg.Properties {
		cfg.Properties[i].Target = ""
	}

	m, err := nanomap.New(cfg, nanomap.WithLogger(cli.logger))
	if err != nil {
		return nil, WrapError(operation, err, CommonSuggestions.CheckStore)
	}
	return m, nil
}

func main() {
	if err := NewCLI().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
