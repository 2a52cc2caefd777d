package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modcoretech/NG-Download-Manager/internal/channel"
	"github.com/modcoretech/NG-Download-Manager/internal/config"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print the auth token used by the relay channel",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := channel.LoadOrCreateToken(config.GetTokenPath())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}
