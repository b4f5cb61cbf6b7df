package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the phrase leaderboard of a saved chat",
		Long:  "Print the leaderboard stored in a chat snapshot. Use --version to view an older one and --refresh to re-merge with the current settings.",
		Run:   runLeaderboard,
	}

	cmd.Flags().String("chat", "", "Chat id (required)")
	cmd.Flags().Int("version", 0, "Snapshot version (default: latest)")
	cmd.Flags().Int("top", 25, "Rows to print (0 = all)")
	cmd.Flags().Bool("refresh", false, "Recompute the merge with the current settings")
	cmd.MarkFlagRequired("chat")

	RootCmd.AddCommand(cmd)
}

func runLeaderboard(cmd *cobra.Command, args []string) {
	chatID, _ := cmd.Flags().GetString("chat")
	version, _ := cmd.Flags().GetInt("version")
	top, _ := cmd.Flags().GetInt("top")
	refresh, _ := cmd.Flags().GetBool("refresh")

	cfg := loadConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	an := newAnalyzer(cfg, newLogger(cfg))
	ok, err := loadSession(cmd.Context(), s, an, chatID, version)
	if err != nil {
		exitErr("load snapshot", err)
	}
	if !ok {
		exitErr("leaderboard", fmt.Errorf("no snapshot for chat %q", chatID))
	}

	lb := an.Leaderboard()
	if refresh {
		lb = an.RefreshLeaderboard()
	}

	if !textOutput() {
		printJSON(map[string]any{
			"chat_id":     chatID,
			"computed_at": lb.ComputedAt,
			"fallback":    lb.Fallback,
			"phrases":     topRows(lb, top),
		})
		return
	}
	printLeaderboard(lb, top)
}
