// Package cli implements the reticle command line.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ayusman/reticle/internal/config"
	"github.com/ayusman/reticle/internal/logging"
	"github.com/ayusman/reticle/internal/store"
)

// options are the flags shared by every subcommand.
type options struct {
	configPath string
	logLevel   string
	config     *config.Config
}

// NewRootCommand builds the reticle command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "reticle",
		Short: "Reticle",
		Long:  `Screen-capture aim assistance: detects targets on screen and steers or clicks the pointer.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.LogLevel = opts.logLevel
			}
			if err := logging.InitWriter(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogPretty); err != nil {
				return err
			}
			opts.config = cfg
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file (defaults are used when empty)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log_level from the config")

	rootCmd.AddCommand(
		newRunCommand(opts),
		newProfilesCommand(opts),
		newPluginsCommand(opts),
		newSessionsCommand(opts),
	)
	return rootCmd
}

// Execute runs the root command and exits non-zero on failure.
// This is called by main.main().
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// openStore opens the configured database for one-shot subcommands.
func (o *options) openStore() (*store.Store, error) {
	return store.New(o.config.DBPath)
}
