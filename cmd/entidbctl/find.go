package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/entidb/entidb/query"
	"github.com/entidb/entidb/value"
)

var findCmd = &cobra.Command{
	Use:   "find <collection> <field> <value>",
	Short: "Find documents whose field equals value",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		_, store, coll, err := openCollection(ctx, args[0])
		if err != nil {
			return err
		}
		defer store.Close(ctx)
		defer coll.Dispose(ctx)

		q := query.Equals{FieldName: args[1], Value: value.String(args[2])}
		matches, err := coll.Find(ctx, q)
		if err != nil {
			return err
		}

		fmt.Println(headerStyle.Render(fmt.Sprintf("%d match(es)", len(matches))))
		for _, m := range matches {
			b, err := json.Marshal(m.toJSON())
			if err != nil {
				return err
			}
			fmt.Println(string(b))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(findCmd)
}
