package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"fsm-intake/internal/client"
)

func init() {
	dashboardCmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show logged service queries and their counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd.Context(), newClient(), jsonFlag, os.Stdout)
		},
	}
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(ctx context.Context, api *client.Client, asJSON bool, w io.Writer) error {
	dash, err := api.Dashboard(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(w, dash)
	}

	fmt.Fprintf(w, "Total: %d  Urgent: %d  Maintenance: %d  Repair: %d\n\n",
		dash.Stats.Total, dash.Stats.Urgent, dash.Stats.Maintenance, dash.Stats.Repair)
	if len(dash.Queries) == 0 {
		fmt.Fprintln(w, "No logged queries.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "QUERY\tCUSTOMER\tSERVICE\tURGENCY\tADDRESS")
	for _, q := range dash.Queries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			q.QueryID, q.Fields.CustomerName, q.Fields.ServiceType, q.Fields.Urgency, q.Fields.Address)
	}
	return tw.Flush()
}
