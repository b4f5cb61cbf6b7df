// Package cli implements the prosepolisher CLI commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rcliao/prosepolisher/internal/config"
	"github.com/rcliao/prosepolisher/internal/logging"
	"github.com/rcliao/prosepolisher/internal/model"
	"github.com/rcliao/prosepolisher/internal/regexcache"
	"github.com/rcliao/prosepolisher/internal/rules"
	"github.com/rcliao/prosepolisher/internal/store"
)

var (
	dbPath     string
	configPath string
	formatFlag string
	verbose    bool
)

var (
	headColor  = color.New(color.FgCyan, color.Bold).SprintFunc()
	okColor    = color.New(color.FgGreen).SprintFunc()
	warnColor  = color.New(color.FgYellow).SprintFunc()
	mutedColor = color.New(color.FgHiBlack).SprintFunc()
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "prosepolisher",
	Short: "Find and rewrite repetitive AI prose",
	Long:  "Tracks repeated phrases across AI chat transcripts, ranks them on a leaderboard, and rewrites them with regex rules. SQLite-backed, single binary.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $PROSEPOLISHER_DB or ~/.prosepolisher/prosepolisher.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ~/.prosepolisher/config.toml)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}

func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() *config.Config {
	config.LoadDotEnv()
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		exitErr("load config", err)
	}
	if dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}
	return cfg
}

func newLogger(cfg *config.Config) *logging.Factory {
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	f := logging.NewFactory(logging.New(logging.Config{
		Level:  level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	}))
	for comp, lvl := range cfg.Logging.Components {
		if err := f.SetLevel(comp, lvl); err != nil {
			exitErr("logging."+comp, err)
		}
	}
	return f
}

func openStore(cfg *config.Config) (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(cfg.Storage.DBPath)
}

// openRules builds the rule store: built-in seed, then saved rules from the
// database. When the database holds no dynamic rules, those carried in the
// settings blob are adopted and saved. A non-nil cache is cleared on every
// rule change.
func openRules(ctx context.Context, cfg *config.Config, s *store.SQLiteStore, cache *regexcache.Cache, logger *log.Logger) *rules.Store {
	rs := rules.New(
		rules.WithLogger(logger),
		rules.WithPersist(func(all []model.Rule) error {
			return s.SaveRules(ctx, all)
		}),
	)
	if cache != nil {
		rs.OnChange(cache.Clear)
	}
	if err := rs.LoadDefaultStatic(); err != nil {
		exitErr("load static rules", err)
	}
	saved, err := s.LoadRules(ctx)
	if err != nil {
		exitErr("load rules", err)
	}
	rs.Restore(saved)
	if len(rs.Dynamic()) == 0 && len(cfg.Settings.DynamicRules) > 0 {
		if err := rs.ReplaceDynamic(cfg.Settings.DynamicRules); err != nil {
			exitErr("adopt settings rules", err)
		}
	}
	return rs
}

func textOutput() bool {
	return strings.EqualFold(formatFlag, "text")
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

// readInput returns the positional args joined, or stdin when piped.
func readInput(args []string) string {
	if len(args) > 0 {
		return strings.Join(args, " ")
	}
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			exitErr("read stdin", err)
		}
		return string(b)
	}
	return ""
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
