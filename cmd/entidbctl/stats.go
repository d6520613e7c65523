package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/entidb/entidb/query"
)

var statsCmd = &cobra.Command{
	Use:   "stats <collection>",
	Short: "Print the number of documents in a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		_, store, coll, err := openCollection(ctx, args[0])
		if err != nil {
			return err
		}
		defer store.Close(ctx)
		defer coll.Dispose(ctx)

		count, err := coll.CountWhere(ctx, query.All{})
		if err != nil {
			return err
		}
		fmt.Println(headerStyle.Render(args[0]) + hintStyle.Render(fmt.Sprintf(": %d document(s)", count)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
