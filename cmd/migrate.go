package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply destination schema migrations",
	Long:  "Creates or updates the drill_data.* tables in the destination database.",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := storePool(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		fmt.Println("Migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
