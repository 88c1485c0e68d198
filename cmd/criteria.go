package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/pcbflow/drillsync/internal/criteria"
	"github.com/pcbflow/drillsync/internal/model"
)

var criteriaCmd = &cobra.Command{
	Use:   "criteria",
	Short: "Manage the product PPM criteria table",
}

var criteriaImportCmd = &cobra.Command{
	Use:   "import <workbook.xlsx>",
	Short: "Replace the criteria table from the risk-drawing workbook",
	Long: `Parses the quality team's risk-drawing workbook and replaces the
product criteria table with its rows. The whole import is atomic: a
malformed row aborts it and the existing table stays untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := storePool(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		sheet, _ := cmd.Flags().GetString("sheet")
		n, err := criteria.NewImporter(st, sheet).Import(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "criteria import")
		}

		fmt.Printf("Imported %d criteria rows\n", n)
		return nil
	},
}

var criteriaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the product criteria table",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := storePool(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		infos, err := st.ListCriteria(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "criteria list")
		}

		if len(infos) == 0 {
			fmt.Println("No criteria rows. Run 'criteria import' to load the limit table.")
			return nil
		}

		formatCriteria(os.Stdout, infos)
		return nil
	},
}

var criteriaBandsCmd = &cobra.Command{
	Use:   "bands <bands.yaml>",
	Short: "Replace the AR band table from a definition file",
	Long: `Replaces the AR-level band table used to derive criteria for newly
seen products. Bands are evaluated in file order; the first band whose
upper limit exceeds the product's annual-ring value wins.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := storePool(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := criteria.ImportBands(ctx, st, args[0])
		if err != nil {
			return eris.Wrap(err, "criteria bands")
		}

		fmt.Printf("Replaced AR band table with %d bands\n", n)
		return nil
	},
}

func init() {
	criteriaImportCmd.Flags().String("sheet", "", "workbook sheet name (default: standard risk-drawing sheet)")
	criteriaCmd.AddCommand(criteriaImportCmd)
	criteriaCmd.AddCommand(criteriaListCmd)
	criteriaCmd.AddCommand(criteriaBandsCmd)
	rootCmd.AddCommand(criteriaCmd)
}

// formatCriteria writes a tabular view of criteria rows to w.
func formatCriteria(out io.Writer, infos []model.CriteriaInfo) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PRODUCT\tAR\tLEVEL\tPPM LIMIT\tMODIFICATION\tUPDATED")
	_, _ = fmt.Fprintln(w, "-------\t--\t-----\t---------\t------------\t-------")

	for _, info := range infos {
		_, _ = fmt.Fprintf(w, "%s\t%.2f\t%s\t%d\t%t\t%s\n",
			info.ProductName,
			info.AR,
			info.ARLevel,
			info.PPMLimit,
			info.Modification,
			info.UpdateTime.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}
