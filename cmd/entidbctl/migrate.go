package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/entidb/entidb/migration"
	"github.com/entidb/entidb/storage/sqlite"
)

var (
	strategiesPath string
	verboseStatus  bool
	skipConfirm    bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Inspect or run schema migrations",
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the database's current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		engine, store, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer store.Close(ctx)

		version, err := engine.CurrentVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Println(headerStyle.Render("schema version: ") + version)

		if verboseStatus {
			return renderStrategyDescriptions(engine.Strategies())
		}
		return nil
	},
}

// renderStrategyDescriptions prints each registered strategy's
// description as rendered markdown, for operators inspecting what a
// migrate run would actually change.
func renderStrategyDescriptions(strategies []migration.Strategy) error {
	if len(strategies) == 0 {
		fmt.Println(hintStyle.Render("no strategies registered"))
		return nil
	}

	var doc strings.Builder
	for _, s := range strategies {
		fmt.Fprintf(&doc, "## %s -> %s\n\n%s\n\n", s.FromVersion, s.ToVersion, s.Description)
	}

	rendered, err := glamour.Render(doc.String(), "dark")
	if err != nil {
		return err
	}
	fmt.Print(rendered)
	return nil
}

var migrateRunCmd = &cobra.Command{
	Use:   "run <target-version>",
	Short: "Migrate the database to the given schema version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !skipConfirm {
			ok, err := confirmMigration(args[0])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(os.Stderr, "migration canceled.")
				return nil
			}
		}

		ctx := context.Background()
		engine, store, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer store.Close(ctx)

		result, err := engine.Migrate(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(successStyle.Render(fmt.Sprintf(
			"migrated %s -> %s (%d step(s), %d entit(y/ies), %s)",
			result.FromVersion, result.ToVersion, result.StepsApplied, result.EntitiesAffected, result.Duration,
		)))
		return nil
	},
}

// confirmMigration prompts before a destructive schema migration,
// the same NewConfirm/Affirmative/Negative shape the teacher uses
// before creating an issue.
func confirmMigration(target string) (bool, error) {
	confirmed := false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Migrate database to %s?", target)).
				Affirmative("Migrate").
				Negative("Cancel").
				Value(&confirmed),
		),
	).WithTheme(huh.ThemeDracula())

	if err := form.Run(); err != nil {
		if err == huh.ErrUserAborted {
			return false, nil
		}
		return false, err
	}
	return confirmed, nil
}

func openEngine(ctx context.Context) (*migration.Engine, *sqlite.Store, error) {
	store := sqlite.New(dbPath)
	if err := store.Open(ctx); err != nil {
		return nil, nil, err
	}

	var strategies []migration.Strategy
	if strategiesPath != "" {
		loaded, err := migration.LoadTOMLStrategies(strategiesPath)
		if err != nil {
			store.Close(ctx)
			return nil, nil, err
		}
		strategies = loaded
	}

	engine := migration.NewEngine(store, strategies, migration.DefaultConfig(), nil)
	return engine, store, nil
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&strategiesPath, "strategies", "", "path to a migrations.toml strategy file")
	migrateStatusCmd.Flags().BoolVarP(&verboseStatus, "verbose", "v", false, "render every registered strategy's description as markdown")
	migrateRunCmd.Flags().BoolVarP(&skipConfirm, "yes", "y", false, "skip the confirmation prompt")
	migrateCmd.AddCommand(migrateStatusCmd, migrateRunCmd)
	rootCmd.AddCommand(migrateCmd)
}
