// kstock: Korean equity quotes, fundamentals and price history.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/seenimoa/kstock/api"
	"github.com/seenimoa/kstock/internal/config"
	"github.com/seenimoa/kstock/internal/datasource"
	"github.com/seenimoa/kstock/internal/infra"
	"github.com/seenimoa/kstock/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and component stack, set up before every command.
var (
	cfg   *config.Config
	stack *infra.Stack
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", datasource.Describe(err))
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "kstock",
	Short: "kstock — Korean equity quotes from public web pages",
	Long: `kstock resolves a KRX-listed company name to its code and reads the
current quote, key fundamentals and price history from public pages.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.Logging.Level = level
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if _, err := outputFormat(cmd); err != nil {
			return err
		}
		stack = infra.New(cfg, os.Stderr)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("output", "o", formatTable, "output format (table, json, yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(popularCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	PersistentPreRunE: func(*cobra.Command, []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("kstock %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Serve Command ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.API.Port = port
		}
		fmt.Printf("Starting kstock API server on %s\n", cfg.API.Addr())
		return api.NewServer(stack).ListenAndServe(cfg.API.Addr())
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (overrides api.port)")
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		now := utils.NowKST()
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  kstock — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Market Status: %s\n", utils.MarketStatus(now))
		fmt.Printf("  Time (KST):    %s\n", utils.FormatDateTimeKST(now))
		fmt.Printf("  API Server:    %s\n", cfg.API.Addr())
		fmt.Println()

		fmt.Println("  Settings:")
		for _, s := range config.Settings(cfg) {
			fmt.Printf("    %-22s %-40s (%s, %s)\n", s.Key, s.Value, s.Source, s.EnvVar)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
