package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/modcoretech/NG-Download-Manager/internal/config"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the popup and notification settings",
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every setting with its current value",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *config.Store) error {
			settings, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(config.GetSettingsMetadata()))
			for _, meta := range config.GetSettingsMetadata() {
				value, _ := settings.Get(meta.Key)
				rows = append(rows, []string{meta.Key, value, meta.Description})
			}
			fmt.Fprintln(cmd.OutOrStdout(), table.New().
				Border(lipgloss.NormalBorder()).
				Headers("KEY", "VALUE", "DESCRIPTION").
				Rows(rows...).
				String())
			return nil
		})
	},
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *config.Store) error {
			settings, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}
			value, err := settings.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		})
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *config.Store) error {
			settings, err := store.Update(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			value, _ := settings.Get(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], value)
			return nil
		})
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *config.Store) error {
			if err := store.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Settings restored to defaults.")
			return nil
		})
	},
}

func withStore(fn func(*config.Store) error) error {
	store, err := config.OpenStore(config.GetSettingsDBPath())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return fn(store)
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsResetCmd)
}
