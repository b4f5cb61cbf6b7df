package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/prosepolisher/internal/generate"
	"github.com/rcliao/prosepolisher/internal/model"
	"github.com/rcliao/prosepolisher/internal/store"
	"github.com/rcliao/prosepolisher/internal/transcript"
)

type analyzeOutput struct {
	ChatID    string                 `json:"chat_id"`
	Messages  int                    `json:"messages"`
	Analyzed  int                    `json:"analyzed"`
	Skipped   int                    `json:"skipped"`
	Fallback  bool                   `json:"fallback,omitempty"`
	Phrases   []model.LeaderboardRow `json:"phrases"`
	Version   int                    `json:"snapshot_version,omitempty"`
	Generated []model.Rule           `json:"generated,omitempty"`
}

func init() {
	cmd := &cobra.Command{
		Use:   "analyze <chat.jsonl>",
		Short: "Analyze a chat transcript for repeated phrases",
		Long: `Feed every AI message of a chat transcript to the analyzer and print the
phrase leaderboard.

  prosepolisher analyze chats/Seraphina/2026-10-01.jsonl --top 20
  prosepolisher analyze chat.jsonl --resume --save --generate`,
		Args: cobra.ExactArgs(1),
		Run:  runAnalyze,
	}

	cmd.Flags().String("chat", "", "Chat id (default: transcript file name)")
	cmd.Flags().Int("top", 25, "Leaderboard rows to print (0 = all)")
	cmd.Flags().Bool("resume", false, "Continue from the chat's latest saved snapshot")
	cmd.Flags().Bool("save", false, "Save the session as a new snapshot version")
	cmd.Flags().Bool("generate", false, "Generate dynamic rules from the leaderboard")

	RootCmd.AddCommand(cmd)
}

func runAnalyze(cmd *cobra.Command, args []string) {
	path := args[0]
	chatID, _ := cmd.Flags().GetString("chat")
	top, _ := cmd.Flags().GetInt("top")
	resume, _ := cmd.Flags().GetBool("resume")
	save, _ := cmd.Flags().GetBool("save")
	gen, _ := cmd.Flags().GetBool("generate")
	if chatID == "" {
		chatID = transcript.ChatID(path)
	}
	ctx := cmd.Context()

	cfg := loadConfig()
	logs := newLogger(cfg)
	logger := logs.ForComponent("analyze")

	chat, err := transcript.ReadFile(path)
	if err != nil {
		exitErr("read transcript", err)
	}

	var s *store.SQLiteStore
	if resume || save || gen {
		s, err = openStore(cfg)
		if err != nil {
			exitErr("open store", err)
		}
		defer s.Close()
	}

	an := newAnalyzer(cfg, logs)
	if resume {
		ok, err := loadSession(ctx, s, an, chatID, 0)
		if err != nil {
			exitErr("load snapshot", err)
		}
		logger.Debug("resume", "chat", chatID, "found", ok, "messages", an.Messages())
	}

	out := analyzeOutput{ChatID: chatID, Messages: len(chat.Messages)}
	for _, m := range chat.Messages {
		if !m.Analyzable() {
			continue
		}
		res := an.RecordMessage(m.Text, m.Index)
		if res.Duplicate {
			out.Skipped++
			continue
		}
		out.Analyzed++
	}

	lb := finalLeaderboard(an)
	out.Phrases = topRows(lb, top)
	out.Fallback = lb.Fallback
	logger.Info("analyzed", "chat", chatID, "messages", out.Analyzed, "phrases", len(lb.Merged)+len(lb.Remaining))

	if save {
		rec, err := saveSession(ctx, s, an, chatID)
		if err != nil {
			exitErr("save snapshot", err)
		}
		out.Version = rec.Version
	}

	if gen {
		g := generate.NewFromConfig(cfg.Completions, logs.ForComponent("generate"))
		rs := openRules(ctx, cfg, s, nil, logs.ForComponent("rules"))
		out.Generated, err = an.GenerateRules(ctx, g, rs)
		if err != nil {
			exitErr("generate rules", err)
		}
	}

	if !textOutput() {
		printJSON(out)
		return
	}
	printLeaderboard(lb, top)
	if out.Version > 0 {
		fmt.Printf("%s %s v%d\n", okColor("saved"), chatID, out.Version)
	}
	if len(out.Generated) > 0 {
		fmt.Println(headColor("generated rules"))
		printRules(out.Generated)
	}
}

