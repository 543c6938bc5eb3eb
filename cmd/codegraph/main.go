// Command codegraph indexes a repository into a SQLite code graph and
// reports on it.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/codegraphhq/codegraph/internal/config"
	"github.com/codegraphhq/codegraph/internal/pipeline"
	"github.com/codegraphhq/codegraph/internal/store"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "codegraph",
		Usage:   "Build a multi-language code graph from a repository",
		Version: version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "index",
				Usage:     "Index a repository into the graph database",
				ArgsUsage: "PATH",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "db",
						Usage: "Database path (overrides config and the default cache location)",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Worker count for the definition pass (0 = 80% of CPUs)",
					},
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Config file path (defaults to <repo>/" + config.ConfigFileName + ")",
					},
				},
				Action: runIndex,
			},
			{
				Name:      "cycles",
				Usage:     "Index a repository and print its circular module dependencies",
				ArgsUsage: "PATH",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "db", Usage: "Database path"},
				},
				Action: runCycles,
			},
			{
				Name:      "stats",
				Usage:     "Print node and edge counts for an indexed project",
				ArgsUsage: "PROJECT",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "db", Usage: "Database path"},
				},
				Action: runStats,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func setupLogger(c *cli.Context) *slog.Logger {
	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func repoArg(c *cli.Context) (string, error) {
	if c.NArg() < 1 {
		return "", fmt.Errorf("repository path required")
	}
	abs, err := filepath.Abs(c.Args().First())
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, nil
}

func loadConfig(c *cli.Context, repoPath string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromRepo(repoPath)
	}
	if err != nil {
		return nil, err
	}
	if db := c.String("db"); db != "" {
		cfg.DBPath = db
	}
	if workers := c.Int("workers"); workers > 0 {
		cfg.Workers = workers
	}
	return cfg, nil
}

func openStore(cfg *config.Config, projectName string) (*store.Store, error) {
	if cfg.DBPath != "" {
		return store.OpenPath(cfg.DBPath)
	}
	return store.Open(projectName)
}

func runRepo(c *cli.Context) (*pipeline.Result, error) {
	repoPath, err := repoArg(c)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(c, repoPath)
	if err != nil {
		return nil, err
	}

	s, err := openStore(cfg, pipeline.ProjectNameFromPath(repoPath))
	if err != nil {
		return nil, err
	}
	defer s.Close()

	p := pipeline.New(s, repoPath, cfg, setupLogger(c))
	return p.Run(c.Context)
}

func runIndex(c *cli.Context) error {
	result, err := runRepo(c)
	if err != nil {
		return err
	}

	if result.NoOp {
		fmt.Printf("%s: unchanged (%d files, %d nodes, %d edges)\n",
			result.Project, result.Files, result.Nodes, result.Edges)
		return nil
	}

	fmt.Printf("%s: %d files, %d nodes, %d edges", result.Project, result.Files, result.Nodes, result.Edges)
	if len(result.Cycles) > 0 {
		fmt.Printf(", %d cycles", len(result.Cycles))
	}
	fmt.Println()

	// Per-file failures are reported but never change the exit code.
	for _, f := range result.Failures {
		fmt.Fprintf(os.Stderr, "  skipped %s (%s): %v\n", f.RelPath, f.Stage, f.Err)
	}
	return nil
}

func runCycles(c *cli.Context) error {
	result, err := runRepo(c)
	if err != nil {
		return err
	}

	if len(result.Cycles) == 0 {
		fmt.Println("no circular dependencies")
		return nil
	}
	for i, cycle := range result.Cycles {
		fmt.Printf("cycle %d: %s\n", i+1, strings.Join(cycle, " -> "))
	}
	return nil
}

func runStats(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("project name required")
	}
	project := c.Args().First()

	var s *store.Store
	var err error
	if db := c.String("db"); db != "" {
		s, err = store.OpenPath(db)
	} else {
		s, err = store.Open(project)
	}
	if err != nil {
		return err
	}
	defer s.Close()

	proj, err := s.GetProject(project)
	if err != nil {
		return err
	}
	if proj == nil {
		return fmt.Errorf("project %q not indexed", project)
	}

	nodeCounts, err := s.CountNodesByLabel(project)
	if err != nil {
		return err
	}
	edgeCounts, err := s.CountEdgesByType(project)
	if err != nil {
		return err
	}

	fmt.Printf("%s (indexed %s)\n", project, proj.IndexedAt)
	fmt.Println("nodes:")
	printCounts(nodeCounts)
	fmt.Println("edges:")
	printCounts(edgeCounts)
	return nil
}

func printCounts(counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-22s %d\n", k, counts[k])
	}
}
