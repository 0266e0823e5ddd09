package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"

	"github.com/flowershow/contentsync/pkg/api"
)

func newSyncCmd() *cobra.Command {
	var force, wait bool
	cmd := &cobra.Command{
		Use:   "sync [SITE_ID]",
		Short: "Sync a site with its source",
		Long: `Sync a site with its source. A forced sync fails when another sync of the
site is running; otherwise the sync waits for it.

Examples:
  flowershow sync --wait
  flowershow sync 0190a4c8-5a0e-7d3a-9c1b-3f1e2d4c5b6a --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := GetConfig()
			siteID, err := c.SiteID(firstArg(args))
			if err != nil {
				return err
			}
			body, err := sjson.SetBytes([]byte(`{}`), "force", force)
			if err != nil {
				return err
			}
			query := map[string]string{}
			if wait {
				query["wait"] = "true"
			}
			var rsp api.SyncResponse
			if _, err := NewHTTPClient(c).PostJSON("sites/"+siteID+"/sync", query, body, &rsp); err != nil {
				return err
			}
			if jsonOutput {
				printJSON(cmd.OutOrStdout(), rsp)
				return nil
			}
			printSyncResult(cmd.OutOrStdout(), rsp)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Start the sync now or fail if one is running")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the sync to finish")
	return cmd
}

func printSyncResult(w io.Writer, rsp api.SyncResponse) {
	if rsp.Queued {
		fmt.Fprintf(w, "Sync of site %s started\n", rsp.SiteID)
		return
	}
	fmt.Fprintf(w, "Sync %s: %s\n", rsp.RunID, rsp.Outcome)
	if rsp.Counts != nil {
		fmt.Fprintf(w, "  created %d, updated %d, deleted %d, unchanged %d, failed %d\n",
			rsp.Counts.Created, rsp.Counts.Updated, rsp.Counts.Deleted, rsp.Counts.Unchanged, rsp.Counts.Failed)
	}
	for _, fe := range rsp.Errors {
		fmt.Fprintf(w, "  %s: %s\n", fe.Path, fe.Error)
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
