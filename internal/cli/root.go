// Package cli implements the libdine command line.
package cli

import (
	"fmt"
	"os"

	"github.com/libdine/libdine/internal/app"
	"github.com/libdine/libdine/internal/config"
	"github.com/libdine/libdine/internal/menu"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// DefaultConfigPath is read when --config is not given. A missing file there
// means defaults.
const DefaultConfigPath = "configs/config.yaml"

type options struct {
	configPath string
	logLevel   string
	noColor    bool

	cfg *config.Config
}

// Run executes the root command and returns an exit code.
func Run() int {
	if err := NewRootCmd().Execute(); err != nil {
		return 1
	}
	return 0
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "libdine",
		Short:         "Find a library to study in and a restaurant nearby",
		Long:          "libdine lists the university libraries and the restaurants around them. Every request goes through a local cache file.",
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *app.App) error {
				return menu.New(cmd.InOrStdin(), cmd.OutOrStdout(), a.Libraries, a.Restaurants).
					WithCache(a.Cache).
					Run(cmd.Context())
			})
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", DefaultConfigPath, "path to the YAML configuration file")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error), overrides log.level")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable coloured output")

	rootCmd.AddCommand(
		newLibrariesCmd(opts),
		newLibraryCmd(opts),
		newRestaurantsCmd(opts),
		newCacheCmd(opts),
		newProxyCmd(opts),
	)
	return rootCmd
}

// setup loads the configuration and configures logging and colours
func (o *options) setup(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	if cmd.Flags().Changed("config") {
		cfg, err = config.Load(o.configPath)
	} else {
		cfg, err = config.LoadOrDefault(o.configPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logrus.SetLevel(level)
	logrus.SetOutput(cmd.ErrOrStderr())

	if o.noColor || !term.IsTerminal(int(os.Stdout.Fd())) {
		color.NoColor = true
	}

	o.cfg = cfg
	return nil
}

// withApp builds the application for one command and closes it afterwards
func (o *options) withApp(fn func(a *app.App) error) error {
	a, err := app.New(o.cfg, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logrus.Errorf("Failed to close cache: %v", err)
		}
	}()
	return fn(a)
}
