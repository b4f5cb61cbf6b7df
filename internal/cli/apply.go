package cli

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/prosepolisher/internal/regexcache"
	"github.com/rcliao/prosepolisher/internal/replace"
)

func init() {
	cmd := &cobra.Command{
		Use:   "apply [text]",
		Short: "Rewrite text with the active rules",
		Long: `Apply every enabled static and dynamic rule to the given text (or stdin)
and print the result.

  echo "She began to smile." | prosepolisher apply
  prosepolisher apply --seed 7 "A shiver ran down her spine."`,
		Run: runApply,
	}

	cmd.Flags().Int64("seed", 0, "Seed for {{random:...}} choices (0 = time based)")
	cmd.Flags().Bool("static-only", false, "Apply only static rules")

	RootCmd.AddCommand(cmd)
}

func runApply(cmd *cobra.Command, args []string) {
	text := readInput(args)
	if strings.TrimSpace(text) == "" {
		exitErr("apply", fmt.Errorf("no text given"))
	}
	seed, _ := cmd.Flags().GetInt64("seed")
	staticOnly, _ := cmd.Flags().GetBool("static-only")

	cfg := loadConfig()
	logs := newLogger(cfg)
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	settings := cfg.Settings
	if staticOnly {
		settings.IsDynamicEnabled = false
	}
	cache := regexcache.New(regexcache.WithLogger(logs.ForComponent("regex")))
	rs := openRules(cmd.Context(), cfg, s, cache, logs.ForComponent("rules"))
	active := rs.Active(settings)

	opts := []replace.Option{replace.WithLogger(logs.ForComponent("replace"))}
	if seed != 0 {
		opts = append(opts, replace.WithRand(rand.New(rand.NewSource(seed))))
	}
	out := replace.New(cache, opts...).Apply(text, active)

	if !textOutput() {
		printJSON(map[string]any{
			"input":   text,
			"output":  out,
			"rules":   len(active),
			"changed": out != text,
		})
		return
	}
	fmt.Print(out)
	if !strings.HasSuffix(out, "\n") {
		fmt.Println()
	}
}
