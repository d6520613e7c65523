// Command entidbctl is a minimal demonstration CLI over EntiDB: open
// a database file, insert a JSON document, run a query, drive a
// migration, and print collection stats. It exists to exercise the
// core packages end to end, not as a production database client.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/entidb/entidb"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:   "entidbctl",
	Short: "Inspect and drive an EntiDB database file",
	Long: `entidbctl is a small command-line client over EntiDB, the embedded
document database this module implements. It opens a database file,
runs CRUD/query/migration operations against it, and prints the
result — a demonstration harness for the core packages, not a
general-purpose database shell.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "entidb.db", "path to the database file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}

func openContext() (*entidb.Context, error) {
	return entidb.Open()
}
