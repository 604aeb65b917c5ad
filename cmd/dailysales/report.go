package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dailysales/internal/core"
	"dailysales/internal/ledger"
)

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "report <daily_sales.csv>",
		Short:   "Summarise an exported sales CSV",
		Example: "  dailysales report ~/Downloads/daily_sales.csv",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open report: %w", err)
			}
			defer f.Close()

			records, err := ledger.ReadCSV(f)
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			return writeReport(cmd.OutOrStdout(), records)
		},
	}
}

// writeReport prints the rows, revenue per product and the day's total.
func writeReport(out io.Writer, records []core.SaleRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(out, "No sales records.")
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Product\tQuantity\tPrice\tRevenue\t")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t\n", r.Product, r.Quantity,
			core.FormatCurrency(r.Price), core.FormatCurrency(r.Revenue))
	}
	fmt.Fprintln(tw, "\t\t\t\t")
	fmt.Fprintln(tw, "Product\tRevenue\t")
	for _, g := range core.GroupByProduct(records) {
		fmt.Fprintf(tw, "%s\t%s\t\n", g.Product, core.FormatCurrency(g.Revenue))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(out, "\nTotal Revenue: %s\n", core.FormatCurrency(core.TotalRevenue(records)))
	return err
}
