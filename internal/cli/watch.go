package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/prosepolisher/internal/analyzer"
	"github.com/rcliao/prosepolisher/internal/config"
	"github.com/rcliao/prosepolisher/internal/generate"
	"github.com/rcliao/prosepolisher/internal/model"
	"github.com/rcliao/prosepolisher/internal/session"
	"github.com/rcliao/prosepolisher/internal/transcript"
)

func init() {
	cmd := &cobra.Command{
		Use:   "watch <chat.jsonl>",
		Short: "Follow a chat file and analyze new AI messages as they arrive",
		Long: `Follow a chat transcript. Each new AI message is recorded; every merge
cycle prints the leaderboard and saves a snapshot. The config file is
watched and settings changes apply without a restart. When dynamic rules
are enabled and a completions endpoint is configured, rules are generated
every dynamicTriggerCount messages.

Stops on Ctrl-C after saving a final snapshot.`,
		Args: cobra.ExactArgs(1),
		Run:  runWatch,
	}

	cmd.Flags().String("chat", "", "Chat id (default: transcript file name)")
	cmd.Flags().Bool("fresh", false, "Ignore the saved snapshot and start empty")
	cmd.Flags().Bool("from-start", false, "Analyze the messages already in the file first")
	cmd.Flags().Int("top", 10, "Leaderboard rows to print per cycle")
	cmd.Flags().Duration("debounce", 250*time.Millisecond, "Wait after a file change before reading it")

	RootCmd.AddCommand(cmd)
}

func runWatch(cmd *cobra.Command, args []string) {
	path := args[0]
	chatID, _ := cmd.Flags().GetString("chat")
	fresh, _ := cmd.Flags().GetBool("fresh")
	fromStart, _ := cmd.Flags().GetBool("from-start")
	top, _ := cmd.Flags().GetInt("top")
	debounce, _ := cmd.Flags().GetDuration("debounce")
	if chatID == "" {
		chatID = transcript.ChatID(path)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig()
	logs := newLogger(cfg)
	logger := logs.ForComponent("watch")

	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	rs := openRules(ctx, cfg, s, nil, logs.ForComponent("rules"))
	gen := generate.NewFromConfig(cfg.Completions, logs.ForComponent("generate"))

	// Following starts before the saved session is loaded; messages read in
	// the meantime queue on the gate and replay once it is ready.
	gate := session.NewGate()
	an := newAnalyzer(cfg, logs, analyzer.WithGate(gate))

	an.OnMerge(func(lb model.Leaderboard) {
		rec, err := saveSession(ctx, s, an, chatID)
		if err != nil {
			logger.Error("save snapshot", "chat", chatID, "err", err)
		} else {
			logger.Debug("snapshot saved", "chat", chatID, "version", rec.Version)
		}
		emitLeaderboard(lb, top)
	})

	loader := config.NewLoader(getConfigPath())
	if _, err := loader.Load(); err == nil {
		loader.OnChange(func(c *config.Config) {
			an.UpdateSettings(c.Settings)
			logger.Info("settings reloaded", "path", getConfigPath())
		})
		if err := loader.Watch(); err != nil {
			logger.Warn("config hot reload disabled", "err", err)
		}
		go func() {
			for err := range loader.Errors() {
				logger.Warn("config reload", "err", err)
			}
		}()
	}
	defer loader.Close()

	record := func(m model.Message) error {
		if !m.Analyzable() {
			return nil
		}
		res := an.RecordMessage(m.Text, m.Index)
		logger.Debug("message", "index", m.Index, "phrases", res.Phrases, "duplicate", res.Duplicate, "deferred", res.Deferred)
		if res.GenerationDue && gen != nil {
			added, err := an.GenerateRules(ctx, gen, rs)
			if err != nil {
				// Generation failures never stop tracking.
				logger.Warn("rule generation failed", "err", err)
				return nil
			}
			logger.Info("dynamic rules added", "count", len(added))
		}
		return nil
	}

	opts := []transcript.FollowOption{
		transcript.WithDebounce(debounce),
		transcript.WithLogger(logs.ForComponent("transcript")),
	}
	if fromStart {
		opts = append(opts, transcript.FromStart())
	}
	followErr := make(chan error, 1)
	go func() {
		followErr <- transcript.Follow(ctx, path, record, opts...)
	}()

	if !fresh {
		if _, err := loadSession(ctx, s, an, chatID, 0); err != nil {
			logger.Warn("saved session unusable, starting empty", "chat", chatID, "err", err)
		}
	}
	if n := gate.MarkReady(); n > 0 {
		logger.Debug("replayed queued messages", "count", n)
	}
	logger.Info("watching", "chat", chatID, "path", path, "messages", an.Messages())

	err = <-followErr
	if err != nil && !errors.Is(err, context.Canceled) {
		exitErr("watch", err)
	}

	// ctx is already cancelled here.
	if rec, err := saveSession(context.Background(), s, an, chatID); err != nil {
		exitErr("save snapshot", err)
	} else {
		logger.Info("stopped", "chat", chatID, "version", rec.Version, "messages", an.Messages())
	}
}

func emitLeaderboard(lb model.Leaderboard, top int) {
	if textOutput() {
		printLeaderboard(lb, top)
		fmt.Println()
		return
	}
	b, _ := json.Marshal(map[string]any{
		"computed_at": lb.ComputedAt,
		"phrases":     topRows(lb, top),
	})
	fmt.Println(string(b))
}
