package cli

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ayusman/reticle/internal/app"
)

func newRunCommand(opts *options) *cobra.Command {
	var runOpts app.Options

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the capture and control loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			if runOpts.StaticDir == "" {
				runOpts.StaticDir = findWebDir()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a := app.New(opts.config, runOpts)
			defer func() {
				if err := a.Close(); err != nil {
					log.Warn().Err(err).Msg("shutdown")
				}
			}()

			if err := a.Open(); err != nil {
				return err
			}
			return a.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&runOpts.Profile, "profile", "p", "", "tuning profile to apply (default: the active profile)")
	cmd.Flags().StringVarP(&runOpts.Mode, "mode", "m", "", `override the mode: "track" or "trigger"`)
	cmd.Flags().BoolVar(&runOpts.NoTray, "no-tray", false, "do not show the system tray menu")
	cmd.Flags().BoolVar(&runOpts.NoServer, "no-server", false, "do not start the HTTP server")
	cmd.Flags().StringVar(&runOpts.StaticDir, "web", "", "directory of overlay web files to serve")
	return cmd
}

// findWebDir returns the first of ./web and ~/.reticle/web that exists.
func findWebDir() string {
	candidates := []string{"web"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".reticle", "web"))
	}

	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

