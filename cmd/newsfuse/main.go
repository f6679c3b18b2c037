package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/newsfuse/internal/browse"
	"github.com/TobiSchelling/newsfuse/internal/config"
	"github.com/TobiSchelling/newsfuse/internal/llm"
	"github.com/TobiSchelling/newsfuse/internal/pipeline"
	"github.com/TobiSchelling/newsfuse/internal/server"
	"github.com/TobiSchelling/newsfuse/internal/store"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "newsfuse",
	Short:   "Cross-source news fusion",
	Long:    "newsfuse scrapes two outlets' front pages, matches articles covering the same event, and fuses each pair into one neutral report.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// API keys and DSNs come from the environment; a local .env is
		// optional.
		_ = godotenv.Load()

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(recentCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("newsfuse", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/newsfuse/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure outlets, storage, and the generation provider.")
		return nil
	},
}

// --- run command ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: extract -> match -> fuse -> store",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Acquire all external handles up front; any failure here is
		// fatal and the run never starts.
		gen := cfg.Generation
		provider := llm.CreateProvider(gen.Provider, gen.Model, gen.OllamaURL, gen.OpenAIModel, gen.APIKeyEnv)
		if provider == nil {
			return fmt.Errorf("no generation provider available")
		}

		sink, err := openSink()
		if err != nil {
			return err
		}
		defer sink.Close()

		session := browse.NewHTTPSession(30 * time.Second)

		pipe := pipeline.New(cfg, session, provider, sink)
		result, err := pipe.Run(context.Background())

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/3: %s\n", i+1, step.Name)
			fmt.Printf("  %s\n", step.Summary)
		}
		if err != nil {
			return err
		}

		fmt.Printf("\nPipeline complete: %d reports stored, %d pairs failed.\n", result.Stored, result.PairFailures)
		return nil
	},
}

// --- recent command ---

var recentLimit int

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Print the latest stored fused reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		sink, err := openSink()
		if err != nil {
			return err
		}
		defer sink.Close()

		reports, err := sink.Recent(context.Background(), recentLimit)
		if err != nil {
			return fmt.Errorf("listing reports: %w", err)
		}

		if len(reports) == 0 {
			fmt.Println("No fused reports stored yet. Run 'newsfuse run' first.")
			return nil
		}

		for _, r := range reports {
			fmt.Printf("[%d] %s (%s)\n", r.ID, r.Title, r.CreatedAt)
			fmt.Printf("    %s\n", r.Summary)
			fmt.Printf("    %s | %s\n", r.URLCNN, r.URLRT)
		}
		return nil
	},
}

func init() {
	recentCmd.Flags().IntVarP(&recentLimit, "limit", "n", 10, "Number of reports to print")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server over stored reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		sink, err := openSink()
		if err != nil {
			return err
		}
		defer sink.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(sink, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (overrides config)")
}

func openSink() (store.Sink, error) {
	policy := store.Policy(cfg.Storage.Dedup)
	switch cfg.Storage.Driver {
	case "postgres":
		dsn := os.Getenv(cfg.Storage.DSNEnv)
		if dsn == "" {
			return nil, fmt.Errorf("postgres storage selected but %s is not set", cfg.Storage.DSNEnv)
		}
		return store.OpenPostgres(dsn, policy)
	case "", "sqlite":
		return store.OpenSQLite(cfg.SQLitePath(), policy)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
	}
}
