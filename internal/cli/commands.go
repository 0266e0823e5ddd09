package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/flowershow/contentsync/pkg/api"
)

// Version of the CLI. It is overridden at link time.
var Version = "v0.1.0"

var (
	// Global flags
	jsonOutput bool
	configFile string
	serverURL  string
)

// NewRootCmd builds the flowershow command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flowershow",
		Short: "Flowershow CLI publishes and syncs Flowershow sites",
		Long: `Flowershow CLI is a command line interface for the Flowershow content sync service.
It publishes local markdown folders, triggers syncs of GitHub backed sites
and reports their sync status.`,
		PersistentPreRunE: preRunHandlePersistents,
		SilenceErrors:     true,
		SilenceUsage:      true,
	}
	cmd.PersistentFlags().StringVarP(&configFile, "config", "", "", "Path to configuration file to override default")
	cmd.PersistentFlags().StringVarP(&serverURL, "server", "", "", "Sync server URL, overriding the configured one")
	cmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")

	cmd.AddCommand(
		newVersionCmd(),
		newConfigCmd(),
		newPublishCmd(),
		newSyncCmd(),
		newStatusCmd(),
		newRunsCmd(),
	)
	return cmd
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		if jsonOutput {
			printJSON(os.Stdout, map[string]string{"error": err.Error()})
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func preRunHandlePersistents(cmd *cobra.Command, args []string) error {
	if configFile == "" {
		var err error
		configFile, err = GetDefaultConfigPath()
		if err != nil {
			return err
		}
	}

	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "config" {
			return nil
		}
	}

	if err := LoadConfig(configFile); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if serverURL == "" {
				return errors.New("config file not found. Configure the CLI with \"flowershow config create\" first")
			}
			config = &Config{Version: "1"}
		} else {
			return fmt.Errorf("unable to load config file: %w", err)
		}
	}
	if serverURL != "" {
		config.Server = MorphServer(serverURL)
		if err := config.ValidateConfig(); err != nil {
			return err
		}
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI and server versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			var rsp api.GetVersionRsp
			if err := NewHTTPClient(GetConfig()).GetJSON("version", nil, &rsp); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				printJSON(out, map[string]string{
					"version":       Version,
					"serverVersion": rsp.ServerVersion,
					"apiVersion":    rsp.ApiVersion,
				})
				return nil
			}
			fmt.Fprintf(out, "flowershow %s\n", Version)
			fmt.Fprintf(out, "Server Version: %s\n", rsp.ServerVersion)
			fmt.Fprintf(out, "API Version: %s\n", rsp.ApiVersion)
			return nil
		},
	}
}

// printJSON prints data as indented JSON.
func printJSON(w io.Writer, data any) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(w, string(jsonData))
}
