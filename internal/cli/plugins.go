package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/reticle/internal/plugin"
)

const pingTimeout = 5 * time.Second

func newPluginsCommand(opts *options) *cobra.Command {
	discover := func() (*plugin.Manager, error) {
		m := plugin.NewManager(opts.config.PluginDir)
		return m, m.Discover()
	}

	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Inspect actuator and listener plugins",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List discovered plugins",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := discover()
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tKIND\tVERSION\tACTIONS")
				for _, p := range m.List() {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Manifest.Name, p.Manifest.Kind, p.Manifest.Version, strings.Join(p.Manifest.Actions, ","))
				}
				return w.Flush()
			},
		},
		&cobra.Command{
			Use:   "ping NAME",
			Short: "Run a plugin once and check it answers ping",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := discover()
				if err != nil {
					return err
				}
				p, err := m.Get(args[0])
				if err != nil {
					return err
				}
				if err := plugin.NewExecutor(pingTimeout).Ping(cmd.Context(), p); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s ok\n", p.Manifest.Name)
				return nil
			},
		},
	)
	return cmd
}
