package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	stats, err := s.Stats(cmd.Context(), cfg.Storage.DBPath)
	if err != nil {
		exitErr("stats", err)
	}

	if !textOutput() {
		printJSON(stats)
		return
	}
	fmt.Printf("%s %s (%d bytes)\n", headColor("db"), stats.DBPath, stats.DBSizeBytes)
	fmt.Printf("snapshots: %d live / %d total\n", stats.ActiveSnapshots, stats.TotalSnapshots)
	fmt.Printf("rules: %d dynamic, %d static overrides, %d disabled\n",
		stats.DynamicRules, stats.StaticOverrides, stats.DisabledRules)
	for _, c := range stats.Chats {
		fmt.Printf("  %s  v%d  %s\n", c.ChatID, c.Versions, mutedColor(fmt.Sprintf("%d messages", c.Messages)))
	}
}
