// lineagectl builds, inspects, and loads lineage snapshots from the command
// line, without needing the API server running.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fabriclens/engine/internal/export"
	"github.com/fabriclens/engine/internal/lineage"
	"github.com/fabriclens/engine/internal/loader"
	"github.com/fabriclens/engine/internal/models"
	"github.com/fabriclens/engine/internal/render"
	"github.com/fabriclens/engine/internal/store"
	"github.com/fabriclens/engine/internal/traversal"
	"github.com/fabriclens/engine/pkg/database"
	"github.com/fabriclens/engine/pkg/logger"
)

var (
	exportURL string
	logLevel  string
)

func main() {
	root := &cobra.Command{
		Use:           "lineagectl",
		Short:         "Build and query data lineage graphs from platform exports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := logger.Init(logLevel, "console")
			return err
		},
	}
	root.PersistentFlags().StringVarP(&exportURL, "export", "e", "", "export document URL or path (required)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")
	_ = root.MarkPersistentFlagRequired("export")

	root.AddCommand(buildCmd(), renderCmd(), loadCmd(), impactCmd(), chainsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// buildSnapshot reads the export and constructs the graph.
func buildSnapshot(ctx context.Context) (*models.LineageGraph, *models.GraphStats, error) {
	records, err := export.NewReader().Read(ctx, exportURL)
	if err != nil {
		return nil, nil, err
	}
	g, stats := lineage.BuildGraph(records, exportURL)
	return g, stats, nil
}

func buildCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the graph and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, stats, err := buildSnapshot(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(stats)
			}
			fmt.Print(render.Markdown(g, stats))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print stats as JSON")
	return cmd
}

func renderCmd() *cobra.Command {
	var format, outPath string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the graph as mermaid or markdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, stats, err := buildSnapshot(cmd.Context())
			if err != nil {
				return err
			}
			var out string
			switch format {
			case "mermaid":
				out = render.Mermaid(g)
			case "markdown":
				out = render.Markdown(g, stats)
			default:
				return fmt.Errorf("unknown format %q (want mermaid or markdown)", format)
			}
			if outPath == "" {
				fmt.Print(out)
				return nil
			}
			return os.WriteFile(outPath, []byte(out), 0o644)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "mermaid", "output format (mermaid, markdown)")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func loadCmd() *cobra.Command {
	var databaseURL string
	var clear bool
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Build the graph and load it into the graph store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if databaseURL == "" {
				databaseURL = os.Getenv("DATABASE_URL")
			}
			if databaseURL == "" {
				return fmt.Errorf("database URL required (--database-url or DATABASE_URL)")
			}

			g, _, err := buildSnapshot(cmd.Context())
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			db, err := database.OpenPostgres(ctx, databaseURL)
			if err != nil {
				return err
			}
			if err := store.Migrate(db); err != nil {
				return err
			}

			res, err := loader.New(store.NewPostgresStore(db)).Load(ctx, g, clear)
			if err != nil {
				return err
			}
			fmt.Printf("loaded %d nodes, %d edges (cleared=%v)\n", res.NodesLoaded, res.EdgesLoaded, res.Cleared)
			return nil
		},
	}
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "postgres connection URL (defaults to DATABASE_URL)")
	cmd.Flags().BoolVar(&clear, "clear", false, "wipe the store before loading")
	return cmd
}

func impactCmd() *cobra.Command {
	var table string
	var depth int
	cmd := &cobra.Command{
		Use:   "impact",
		Short: "Show items impacted by a change to a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, _, err := buildSnapshot(cmd.Context())
			if err != nil {
				return err
			}
			res, err := traversal.NewEngine(g).TableImpact(table, depth)
			if err != nil {
				return err
			}
			if !res.Found {
				fmt.Printf("no table matching %q\n", table)
				return nil
			}
			fmt.Printf("table: %s (%s)\n", res.Table.Name, res.Table.ID)
			fmt.Println("direct consumers:")
			for _, c := range res.DirectConsumers {
				fmt.Printf("  %s (%s)\n", c.Name, c.Type)
			}
			if len(res.DownstreamItems) > 0 {
				fmt.Println("downstream:")
				for _, d := range res.DownstreamItems {
					fmt.Printf("  depth %d: %s\n", d.Depth, d.Name)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&table, "table", "t", "", "table id or name substring (required)")
	cmd.Flags().IntVarP(&depth, "depth", "d", 5, "downstream expansion depth")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}

func chainsCmd() *cobra.Command {
	var minDepth int
	cmd := &cobra.Command{
		Use:   "chains",
		Short: "List long dependency chains",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, _, err := buildSnapshot(cmd.Context())
			if err != nil {
				return err
			}
			chains, err := traversal.NewEngine(g).DeepChains(minDepth)
			if err != nil {
				return err
			}
			if len(chains) == 0 {
				fmt.Printf("no chains with %d+ hops\n", minDepth)
				return nil
			}
			for _, c := range chains {
				names := make([]string, 0, len(c.Nodes))
				for _, n := range c.Nodes {
					names = append(names, n.Name)
				}
				fmt.Printf("[%d hops] ", c.Depth)
				for i, name := range names {
					if i > 0 {
						fmt.Print(" -> ")
					}
					fmt.Print(name)
				}
				fmt.Println()
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&minDepth, "min-depth", "m", 3, "minimum chain length in hops")
	return cmd
}
