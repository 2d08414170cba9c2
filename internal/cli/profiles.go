package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ayusman/reticle/internal/server/api"
	"github.com/ayusman/reticle/internal/store"
)

func newProfilesCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage stored tuning profiles",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List profiles",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := opts.openStore()
				if err != nil {
					return err
				}
				defer st.Close()

				profiles, err := st.Profiles().List()
				if err != nil {
					return err
				}
				active, err := st.Settings().Get(store.SettingActiveProfile)
				if err != nil && !errors.Is(err, store.ErrNotFound) {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ACTIVE\tNAME\tSETTINGS")
				for _, p := range profiles {
					mark := ""
					if p.Name == active {
						mark = "*"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", mark, p.Name, p.Settings)
				}
				return w.Flush()
			},
		},
		newProfileSaveCommand(opts),
		&cobra.Command{
			Use:   "delete NAME",
			Short: "Delete a profile",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := opts.openStore()
				if err != nil {
					return err
				}
				defer st.Close()

				p, err := st.Profiles().GetByName(args[0])
				if err != nil {
					return fmt.Errorf("profile %q: %w", args[0], err)
				}
				if err := st.Profiles().Delete(p.ID); err != nil {
					return err
				}
				if active, err := st.Settings().Get(store.SettingActiveProfile); err == nil && active == p.Name {
					if err := st.Settings().Delete(store.SettingActiveProfile); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", p.Name)
				return nil
			},
		},
		&cobra.Command{
			Use:   "use NAME",
			Short: "Make a profile the default for run",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				st, err := opts.openStore()
				if err != nil {
					return err
				}
				defer st.Close()

				if _, err := st.Profiles().GetByName(args[0]); err != nil {
					return fmt.Errorf("profile %q: %w", args[0], err)
				}
				if err := st.Settings().Set(store.SettingActiveProfile, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "active profile is %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}

func newProfileSaveCommand(opts *options) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "save NAME [SETTINGS_JSON]",
		Short: "Create or replace a profile",
		Long: `Create or replace a profile. Settings are a JSON object of tuning keys,
for example {"kp":0.5,"max_speed":30}, given inline or with --file.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			var raw []byte
			switch {
			case file != "":
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				raw = data
			case len(args) == 2:
				raw = []byte(args[1])
			default:
				raw = []byte("{}")
			}

			settings := json.RawMessage(raw)
			if err := api.ValidateSettings(settings); err != nil {
				return err
			}

			st, err := opts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			existing, err := st.Profiles().GetByName(name)
			switch {
			case err == nil:
				existing.Settings = settings
				if err := st.Profiles().Update(existing); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", name)
			case errors.Is(err, store.ErrNotFound):
				p := &store.Profile{ID: uuid.New().String(), Name: name, Settings: settings}
				if err := st.Profiles().Create(p); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", name)
			default:
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read settings JSON from a file")
	return cmd
}
