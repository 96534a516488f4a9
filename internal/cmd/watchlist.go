package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/marketlens/marketlens/internal/core"
)

var watchlistCmd = &cobra.Command{
	Use:   "watchlist",
	Short: "Manage symbol watchlists",
}

var watchlistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available watchlists",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup; errors logged internally

		watchlists, err := db.ListWatchlists(ctx)
		if err != nil {
			return err
		}

		if len(watchlists) == 0 {
			fmt.Println("No watchlists found.")
			return nil
		}

		fmt.Println("Watchlists:")
		for _, record := range watchlists {
			suffix := ""
			if record.IsBuiltin {
				suffix = " (builtin)"
			}
			fmt.Printf("- %s (%d symbols)%s\n", record.Watchlist.Name, len(record.Watchlist.Symbols), suffix)
		}
		return nil
	},
}

var watchlistShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show watchlist details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(args[0])
		if name == "" {
			return errors.New("watchlist name is required")
		}

		ctx := cmd.Context()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup; errors logged internally

		record, err := db.GetWatchlist(ctx, name)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("watchlist %q not found", name)
		}

		printWatchlist(record.Watchlist, record.IsBuiltin)
		return nil
	},
}

var watchlistSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Create or update a watchlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.ToLower(strings.TrimSpace(args[0]))
		if name == "" {
			return errors.New("watchlist name is required")
		}

		symbolsRaw, err := cmd.Flags().GetStringSlice("symbols")
		if err != nil {
			return err
		}
		description, err := cmd.Flags().GetString("description")
		if err != nil {
			return err
		}
		filePath, err := cmd.Flags().GetString("file")
		if err != nil {
			return err
		}

		if strings.TrimSpace(filePath) != "" {
			if len(symbolsRaw) > 0 || strings.TrimSpace(description) != "" {
				return errors.New("cannot combine --file with --symbols or --description")
			}
			spec, err := readWatchlistFile(filePath)
			if err != nil {
				return err
			}
			symbolsRaw = spec.Symbols
			description = spec.Description
		}

		symbols := core.NormalizeSymbols(symbolsRaw)
		if len(symbols) == 0 {
			return errors.New("at least one symbol is required")
		}
		for _, symbol := range symbols {
			if err := validateSymbol(symbol); err != nil {
				return err
			}
		}

		ctx := cmd.Context()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup; errors logged internally

		if existing, err := db.GetWatchlist(ctx, name); err != nil {
			return err
		} else if existing != nil && existing.IsBuiltin {
			return fmt.Errorf("watchlist %q is built-in and cannot be overwritten", name)
		}

		watchlist := core.Watchlist{
			Name:        name,
			Description: strings.TrimSpace(description),
			Symbols:     symbols,
		}
		if err := db.UpsertWatchlist(ctx, watchlist, false, time.Now().UTC()); err != nil {
			return err
		}

		fmt.Printf("Saved watchlist %q (%d symbols)\n", name, len(symbols))
		return nil
	},
}

var watchlistDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a user-defined watchlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(args[0])
		if name == "" {
			return errors.New("watchlist name is required")
		}

		ctx := cmd.Context()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup; errors logged internally

		if err := db.DeleteWatchlist(ctx, name); err != nil {
			return err
		}

		fmt.Printf("Deleted watchlist %q\n", name)
		return nil
	},
}

var watchlistExportCmd = &cobra.Command{
	Use:   "export <name>",
	Short: "Export a watchlist as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(args[0])
		if name == "" {
			return errors.New("watchlist name is required")
		}
		outPath, err := cmd.Flags().GetString("out")
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup; errors logged internally

		record, err := db.GetWatchlist(ctx, name)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("watchlist %q not found", name)
		}

		payload, err := yaml.Marshal(watchlistFile{
			Name:        record.Watchlist.Name,
			Description: record.Watchlist.Description,
			Symbols:     record.Watchlist.Symbols,
		})
		if err != nil {
			return err
		}

		sink, err := openSink(outPath)
		if err != nil {
			return err
		}
		if _, err := sink.writer.Write(payload); err != nil {
			return err
		}
		return sink.close()
	},
}

func init() {
	rootCmd.AddCommand(watchlistCmd)
	watchlistCmd.AddCommand(watchlistListCmd)
	watchlistCmd.AddCommand(watchlistShowCmd)
	watchlistCmd.AddCommand(watchlistSaveCmd)
	watchlistCmd.AddCommand(watchlistDeleteCmd)
	watchlistCmd.AddCommand(watchlistExportCmd)

	watchlistSaveCmd.Flags().StringSlice("symbols", nil, "Symbols in the watchlist")
	watchlistSaveCmd.Flags().String("description", "", "Watchlist description")
	watchlistSaveCmd.Flags().String("file", "", "Read the watchlist definition from a YAML file")
	watchlistExportCmd.Flags().String("out", "", "Write YAML to file (- for stdout)")
}

// watchlistFile is the YAML shape accepted by save --file and produced
// by export. The name field is informational on import; the positional
// argument names the target.
type watchlistFile struct {
	Name        string   `yaml:"name,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Symbols     []string `yaml:"symbols"`
}

func readWatchlistFile(path string) (*watchlistFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read watchlist file: %w", err)
	}
	var parsed watchlistFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse watchlist file: %w", err)
	}
	if len(parsed.Symbols) == 0 {
		return nil, fmt.Errorf("watchlist file %s has no symbols", path)
	}
	return &parsed, nil
}

func printWatchlist(watchlist core.Watchlist, builtin bool) {
	fmt.Printf("Watchlist: %s\n", watchlist.Name)
	if builtin {
		fmt.Println("Type: builtin")
	}
	if watchlist.Description != "" {
		fmt.Printf("Description: %s\n", watchlist.Description)
	}
	if len(watchlist.Symbols) > 0 {
		fmt.Printf("Symbols: %s\n", strings.Join(watchlist.Symbols, ", "))
	}
}
