package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/prosepolisher/internal/model"
	"github.com/rcliao/prosepolisher/internal/store"
)

// snapshotSummary is a snapshot without its session blob.
type snapshotSummary struct {
	ID         string     `json:"id"`
	ChatID     string     `json:"chat_id"`
	Version    int        `json:"version"`
	Supersedes string     `json:"supersedes,omitempty"`
	Messages   int        `json:"messages"`
	Bytes      int        `json:"bytes"`
	CreatedAt  time.Time  `json:"created_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

func summarize(recs []model.SnapshotRecord) []snapshotSummary {
	out := make([]snapshotSummary, len(recs))
	for i, r := range recs {
		out[i] = snapshotSummary{
			ID:         r.ID,
			ChatID:     r.ChatID,
			Version:    r.Version,
			Supersedes: r.Supersedes,
			Messages:   r.Messages,
			Bytes:      len(r.Data),
			CreatedAt:  r.CreatedAt,
			DeletedAt:  r.DeletedAt,
		}
	}
	return out
}

func init() {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage saved chat sessions",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List chats with their latest snapshot",
		Run:   runSnapshotList,
	}
	list.Flags().Int("limit", 20, "Max chats")

	history := &cobra.Command{
		Use:   "history <chat>",
		Short: "Show every live version of a chat's snapshot",
		Args:  cobra.ExactArgs(1),
		Run:   runSnapshotHistory,
	}

	rm := &cobra.Command{
		Use:   "rm <chat>",
		Short: "Delete a chat's latest snapshot",
		Long:  "Soft-delete the latest snapshot of a chat. --all-versions removes every version; --hard removes rows permanently.",
		Args:  cobra.ExactArgs(1),
		Run:   runSnapshotRm,
	}
	rm.Flags().Bool("all-versions", false, "Delete every version")
	rm.Flags().Bool("hard", false, "Permanently delete instead of soft-delete")

	cmd.AddCommand(list, history, rm)
	RootCmd.AddCommand(cmd)
}

func runSnapshotList(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	cfg := loadConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	recs, err := s.ListChats(cmd.Context(), store.ListChatsParams{Limit: limit})
	if err != nil {
		exitErr("list", err)
	}
	printSnapshots(summarize(recs))
}

func runSnapshotHistory(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	recs, err := s.GetSnapshot(cmd.Context(), store.GetSnapshotParams{ChatID: args[0], History: true})
	if err != nil {
		exitErr("history", err)
	}
	printSnapshots(summarize(recs))
}

func runSnapshotRm(cmd *cobra.Command, args []string) {
	all, _ := cmd.Flags().GetBool("all-versions")
	hard, _ := cmd.Flags().GetBool("hard")

	cfg := loadConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	err = s.RmSnapshot(cmd.Context(), store.RmSnapshotParams{
		ChatID:      args[0],
		AllVersions: all,
		Hard:        hard,
	})
	if err != nil {
		exitErr("rm", err)
	}
	fmt.Println(`{"ok":true}`)
}

func printSnapshots(list []snapshotSummary) {
	if !textOutput() {
		printJSON(list)
		return
	}
	for _, r := range list {
		fmt.Printf("%s v%d  %d messages  %s\n",
			headColor(r.ChatID), r.Version, r.Messages,
			mutedColor(r.CreatedAt.Local().Format(time.DateTime)))
	}
}
