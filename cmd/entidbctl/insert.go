package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var interactive bool

var insertCmd = &cobra.Command{
	Use:   "insert <collection> [json]",
	Short: "Insert a JSON document into a collection",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var raw map[string]interface{}
		switch {
		case interactive:
			prompted, err := promptFields()
			if err != nil {
				return err
			}
			raw = prompted
		case len(args) == 2:
			if err := json.Unmarshal([]byte(args[1]), &raw); err != nil {
				return fmt.Errorf("parsing document: %w", err)
			}
		default:
			return fmt.Errorf("insert requires a json document or --interactive")
		}

		ctx := context.Background()
		ectx, store, coll, err := openCollection(ctx, args[0])
		if err != nil {
			return err
		}
		defer store.Close(ctx)
		defer coll.Dispose(ctx)

		id, err := coll.Insert(ctx, docFromJSON(raw))
		if err != nil {
			return err
		}
		ectx.Logf("inserted %s/%s", args[0], id)
		fmt.Println(successStyle.Render("inserted ") + id)
		return nil
	},
}

func init() {
	insertCmd.Flags().BoolVar(&interactive, "interactive", false, "prompt for fields instead of passing json")
	rootCmd.AddCommand(insertCmd)
}

// promptFields runs a small huh form collecting a comma-separated
// field list as an alternative to typing raw JSON on the command
// line, the same raw-input-then-parse shape as the teacher's issue
// creation form.
func promptFields() (map[string]interface{}, error) {
	var fields string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("Fields").
				Description("Comma-separated key=value pairs").
				Placeholder("e.g., name=sprocket, count=3").
				Value(&fields),
		),
	).WithTheme(huh.ThemeDracula())

	if err := form.Run(); err != nil {
		if err == huh.ErrUserAborted {
			fmt.Fprintln(os.Stderr, "insert canceled.")
			os.Exit(0)
		}
		return nil, err
	}

	raw := make(map[string]interface{})
	for _, pair := range strings.Split(fields, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		raw[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return raw, nil
}
