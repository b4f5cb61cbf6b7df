package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/prosepolisher/internal/generate"
)

func init() {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate dynamic rules from a saved chat",
		Long: `Send the top leaderboard phrases of a saved chat to the configured
completions endpoint and add the returned rules. Either every returned rule
is added or none is.

Requires completions.api_key (or COMPLETIONS_API_KEY), or provider "ollama".`,
		Run: runGenerate,
	}

	cmd.Flags().String("chat", "", "Chat id (required)")
	cmd.Flags().Int("version", 0, "Snapshot version (default: latest)")
	cmd.Flags().Bool("dry-run", false, "Print the parsed rules without adding them")
	cmd.MarkFlagRequired("chat")

	RootCmd.AddCommand(cmd)
}

func runGenerate(cmd *cobra.Command, args []string) {
	chatID, _ := cmd.Flags().GetString("chat")
	version, _ := cmd.Flags().GetInt("version")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	ctx := cmd.Context()

	cfg := loadConfig()
	logs := newLogger(cfg)
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	an := newAnalyzer(cfg, logs)
	ok, err := loadSession(ctx, s, an, chatID, version)
	if err != nil {
		exitErr("load snapshot", err)
	}
	if !ok {
		exitErr("generate", fmt.Errorf("no snapshot for chat %q", chatID))
	}

	g := generate.NewFromConfig(cfg.Completions, logs.ForComponent("generate"))
	if g == nil {
		exitErr("generate", fmt.Errorf("no completions endpoint configured"))
	}

	rs := openRules(ctx, cfg, s, nil, logs.ForComponent("rules"))
	if dryRun {
		active := rs.Active(cfg.Settings)
		names := make([]string, len(active))
		for i, r := range active {
			names[i] = r.ScriptName
		}
		phrases := an.CandidatePhrases(cfg.Completions.MaxPhrases)
		raw, err := g.Generate(ctx, generate.Request{Phrases: phrases, ExistingRules: names, MaxRules: len(phrases)})
		if err != nil {
			exitErr("generate", err)
		}
		parsed, err := generate.ParseRules(raw)
		if err != nil {
			exitErr("parse rules", err)
		}
		printJSON(parsed)
		return
	}

	added, err := an.GenerateRules(ctx, g, rs)
	if err != nil {
		exitErr("generate", err)
	}
	if textOutput() {
		fmt.Printf("%s %d rules\n", okColor("added"), len(added))
		printRules(added)
		return
	}
	printJSON(added)
}
