package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowershow/contentsync/pkg/api"
)

func newRunsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs [SITE_ID]",
		Short: "List recent syncs of a site, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := GetConfig()
			siteID, err := c.SiteID(firstArg(args))
			if err != nil {
				return err
			}
			var runs []api.RunResponse
			query := map[string]string{"limit": strconv.Itoa(limit)}
			if err := NewHTTPClient(c).GetJSON("sites/"+siteID+"/runs", query, &runs); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				printJSON(out, runs)
				return nil
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No syncs yet")
				return nil
			}
			for _, r := range runs {
				outcome := string(r.Outcome)
				if outcome == "" {
					outcome = string(r.State)
				}
				fmt.Fprintf(out, "%s  %-8s %-7s %-8s +%d ~%d -%d !%d\n",
					r.StartedAt.Local().Format(time.DateTime), r.Trigger, r.Mode, outcome,
					r.Counts.Created, r.Counts.Updated, r.Counts.Deleted, r.Counts.Failed)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of syncs to show")
	return cmd
}
