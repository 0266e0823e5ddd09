package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowershow/contentsync/pkg/api"
	"github.com/flowershow/contentsync/pkg/types"
)

func newStatusCmd() *cobra.Command {
	var (
		wait     bool
		interval time.Duration
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "status [SITE_ID]",
		Short: "Show the sync status of a site",
		Long: `Show the sync status of a site and the files that failed to sync.

Examples:
  # Get the status of the current site
  flowershow status

  # Wait until the site is no longer processing
  flowershow status --wait -j`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := GetConfig()
			siteID, err := c.SiteID(firstArg(args))
			if err != nil {
				return err
			}
			client := NewHTTPClient(c)
			deadline := time.Now().Add(timeout)
			var rsp api.StatusResponse
			for {
				if err := client.GetJSON("sites/"+siteID+"/status", nil, &rsp); err != nil {
					return err
				}
				if !wait || (rsp.Status != types.SiteStatusProcessing && !rsp.Syncing) {
					break
				}
				if time.Now().After(deadline) {
					return fmt.Errorf("site %s still processing after %s", siteID, timeout)
				}
				time.Sleep(interval)
			}

			if jsonOutput {
				printJSON(cmd.OutOrStdout(), rsp)
				return nil
			}
			printStatusPretty(cmd.OutOrStdout(), rsp)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Poll until the site is no longer processing")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval with --wait")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Give up waiting after this long")
	return cmd
}

func printStatusPretty(w io.Writer, status api.StatusResponse) {
	fmt.Fprintf(w, "Site: %s\n", status.SiteID)
	fmt.Fprintf(w, "Status: %s\n", status.Status)
	if status.Syncing {
		fmt.Fprintln(w, "A sync is running")
	}
	fmt.Fprintf(w, "Files: %d total, %d pending, %d synced, %d failed\n",
		status.Files.Total, status.Files.Pending, status.Files.Success, status.Files.Failed)
	for _, b := range status.Blobs {
		if b.SyncStatus != types.SyncStatusError {
			continue
		}
		reason := "unknown error"
		if b.SyncError != nil {
			reason = *b.SyncError
		}
		fmt.Fprintf(w, "  %s: %s\n", b.Path, reason)
	}
}
