package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// queryArgs converts trailing CLI arguments into statement parameters.
func queryArgs(args []string) []interface{} {
	params := make([]interface{}, 0, len(args))
	for _, a := range args {
		params = append(params, a)
	}
	return params
}

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query <sql> [param...]",
	Short: "Run a query and print the rows as JSON",
	Long:  `Run a row-returning statement through the adapter layer. Placeholders are written as ? regardless of backend; trailing arguments bind to them in order.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mgr, err := openManager(ctx)
		if err != nil {
			return err
		}
		defer mgr.Close()

		rows, err := mgr.All(ctx, args[0], queryArgs(args[1:])...)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

// execCmd represents the exec command
var execCmd = &cobra.Command{
	Use:   "exec <sql> [param...]",
	Short: "Run a statement and print the change count",
	Long:  `Run a non-returning statement through the adapter layer. Placeholders are written as ? regardless of backend; trailing arguments bind to them in order.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mgr, err := openManager(ctx)
		if err != nil {
			return err
		}
		defer mgr.Close()

		result, err := mgr.Run(ctx, args[0], queryArgs(args[1:])...)
		if err != nil {
			return err
		}
		fmt.Printf("Changes:  %d\n", result.Changes)
		if result.InsertID != 0 {
			fmt.Printf("InsertID: %d\n", result.InsertID)
		}
		return nil
	},
}
