package cli

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/medcheck/MedCheck-Engine/pkg/client"
)

// NewAlertsCmd creates the alerts command group.
func NewAlertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Browse the active alert corpus",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all active alerts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := getCLIContext(cmd)
			if err != nil {
				return err
			}
			alerts, err := cc.client.ListAlerts(cmd.Context())
			if err != nil {
				return err
			}
			if cc.opts.OutputFormat == "json" {
				return printJSON(cmd.OutOrStdout(), alerts)
			}
			printAlertTable(cmd, alerts)
			return nil
		},
	}

	getCmd := &cobra.Command{
		Use:   "get <alert-id>",
		Short: "Show one alert in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := getCLIContext(cmd)
			if err != nil {
				return err
			}
			a, err := cc.client.GetAlert(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if cc.opts.OutputFormat == "json" {
				return printJSON(cmd.OutOrStdout(), a)
			}
			printAlert(cmd, a)
			return nil
		},
	}

	cmd.AddCommand(listCmd, getCmd)
	return cmd
}

func printAlertTable(cmd *cobra.Command, alerts []client.Alert) {
	out := cmd.OutOrStdout()
	if len(alerts) == 0 {
		fmt.Fprintln(out, "No active alerts.")
		return
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"ID", "Title", "Severity", "Date", "Products"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for _, a := range alerts {
		title := a.Title
		if len(title) > 60 {
			title = title[:57] + "..."
		}
		table.Append([]string{
			a.ID,
			title,
			a.Severity,
			a.Date.Format("2006-01-02"),
			strings.Join(a.ProductNames, ", "),
		})
	}
	table.Render()
	fmt.Fprintf(out, "\n%d active alert(s)\n", len(alerts))
}

func printAlert(cmd *cobra.Command, a *client.Alert) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:           %s\n", a.ID)
	fmt.Fprintf(out, "Title:        %s\n", a.Title)
	fmt.Fprintf(out, "Severity:     %s\n", a.Severity)
	fmt.Fprintf(out, "Category:     %s\n", a.Category)
	fmt.Fprintf(out, "Date:         %s\n", a.Date.Format("2006-01-02"))
	if a.Manufacturer != "" {
		fmt.Fprintf(out, "Manufacturer: %s\n", a.Manufacturer)
	}
	if len(a.ProductNames) > 0 {
		fmt.Fprintf(out, "Products:     %s\n", strings.Join(a.ProductNames, ", "))
	}
	if len(a.BatchNumbers) > 0 {
		fmt.Fprintf(out, "Batches:      %s\n", strings.Join(a.BatchNumbers, ", "))
	}
	if a.URL != "" {
		fmt.Fprintf(out, "Source:       %s\n", a.URL)
	}
	if a.Excerpt != "" {
		fmt.Fprintf(out, "\n%s\n", a.Excerpt)
	}
}
