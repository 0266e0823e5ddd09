package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or show the CLI configuration",
	}

	var site, webhookToken string
	create := &cobra.Command{
		Use:   "create",
		Short: "Write a configuration file",
		Long: `Write a configuration file pointing the CLI at a sync server.

Example:
  flowershow config create --server https://sync.flowershow.app`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := &Config{
				Version:      "1",
				Server:       MorphServer(serverURL),
				CurrentSite:  site,
				WebhookToken: webhookToken,
			}
			if err := c.ValidateConfig(); err != nil {
				return err
			}
			if err := c.WriteConfig(configFile); err != nil {
				return err
			}
			if jsonOutput {
				printJSON(cmd.OutOrStdout(), map[string]any{"created": true, "file": configFile})
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", configFile)
			return nil
		},
	}
	create.Flags().StringVar(&site, "site", "", "Site used when a command is given no site ID")
	create.Flags().StringVar(&webhookToken, "webhook-token", "", "Token sent with replayed webhook events")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := LoadConfig(configFile); err != nil {
				return err
			}
			c := GetConfig()
			if jsonOutput {
				printJSON(cmd.OutOrStdout(), map[string]any{
					"server":      c.Server,
					"currentSite": c.CurrentSite,
					"ownedSites":  len(c.OwnerTokens),
				})
				return nil
			}
			c.Print()
			return nil
		},
	}

	cmd.AddCommand(create, show)
	return cmd
}
