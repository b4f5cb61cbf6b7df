package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/prosepolisher/internal/model"
	"github.com/rcliao/prosepolisher/internal/rules"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage static and dynamic rules",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List rules",
		Run:   runRulesList,
	}
	list.Flags().Bool("active", false, "Only rules applied under the current settings")
	list.Flags().String("kind", "", "Filter: static or dynamic")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one rule",
		Args:  cobra.ExactArgs(1),
		Run:   runRulesShow,
	}

	add := &cobra.Command{
		Use:   "add",
		Short: "Create a dynamic rule",
		Long: `Create a dynamic rule.

  prosepolisher rules add --name "Slop Fix - Gaze" --find '\bher gaze softened\b' \
      --replace '{{random:her eyes warmed,her look eased}}'`,
		Run: runRulesAdd,
	}
	addRuleFlags(add)

	edit := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a dynamic rule; unset flags keep their value",
		Args:  cobra.ExactArgs(1),
		Run:   runRulesEdit,
	}
	addRuleFlags(edit)

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a dynamic rule",
		Args:  cobra.ExactArgs(1),
		Run:   runRulesRm,
	}

	toggle := &cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip a rule's disabled flag",
		Args:  cobra.ExactArgs(1),
		Run:   runRulesToggle,
	}
	toggle.Flags().String("set", "", "Set explicitly: on or off")

	publish := &cobra.Command{
		Use:   "publish [host-scripts.json]",
		Short: "Merge active rules into a host regex script list",
		Long:  "Read the host's regex script array (file or stdin), replace previously published PP_ entries with the current active rules, and print the result.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runRulesPublish,
	}

	cmd.AddCommand(list, show, add, edit, rm, toggle, publish)
	RootCmd.AddCommand(cmd)
}

func addRuleFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "Script name")
	cmd.Flags().String("find", "", "Find regex (ECMAScript syntax, case-insensitive)")
	cmd.Flags().String("replace", "", "Replacement; $1 group refs and {{random:a,b}} allowed")
	cmd.Flags().StringSlice("trim", nil, "Strings trimmed from captured groups")
	cmd.Flags().IntSlice("placement", nil, "Host placement values (default 0,2,3,5,6)")
	cmd.Flags().Bool("disabled", false, "Create or leave the rule disabled")
}

// ruleFromFlags overlays the flags the user set onto base.
func ruleFromFlags(cmd *cobra.Command, base model.Rule) model.Rule {
	f := cmd.Flags()
	if f.Changed("name") {
		base.ScriptName, _ = f.GetString("name")
	}
	if f.Changed("find") {
		base.FindRegex, _ = f.GetString("find")
	}
	if f.Changed("replace") {
		base.ReplaceString, _ = f.GetString("replace")
	}
	if f.Changed("trim") {
		base.TrimStrings, _ = f.GetStringSlice("trim")
	}
	if f.Changed("placement") {
		base.Placement, _ = f.GetIntSlice("placement")
	}
	if f.Changed("disabled") {
		base.Disabled, _ = f.GetBool("disabled")
	}
	return base
}

func openRuleStore(cmd *cobra.Command) (*rules.Store, func()) {
	cfg := loadConfig()
	logs := newLogger(cfg)
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	return openRules(cmd.Context(), cfg, s, nil, logs.ForComponent("rules")), func() { s.Close() }
}

func runRulesList(cmd *cobra.Command, args []string) {
	active, _ := cmd.Flags().GetBool("active")
	kind, _ := cmd.Flags().GetString("kind")

	var list []model.Rule
	if active {
		cfg := loadConfig()
		s, err := openStore(cfg)
		if err != nil {
			exitErr("open store", err)
		}
		defer s.Close()
		list = openRules(cmd.Context(), cfg, s, nil, newLogger(cfg).ForComponent("rules")).Active(cfg.Settings)
	} else {
		rs, done := openRuleStore(cmd)
		defer done()
		switch kind {
		case "static":
			list = rs.Static()
		case "dynamic":
			list = rs.Dynamic()
		case "":
			list = rs.All()
		default:
			exitErr("list rules", fmt.Errorf("unknown kind %q", kind))
		}
	}

	if textOutput() {
		printRules(list)
		return
	}
	printJSON(list)
}

func runRulesShow(cmd *cobra.Command, args []string) {
	rs, done := openRuleStore(cmd)
	defer done()

	r, err := rs.Get(args[0])
	if err != nil {
		exitErr("show", err)
	}
	printJSON(r)
}

func runRulesAdd(cmd *cobra.Command, args []string) {
	rs, done := openRuleStore(cmd)
	defer done()

	r, err := rs.Create(ruleFromFlags(cmd, model.Rule{}))
	if err != nil {
		exitErr("add rule", err)
	}
	printJSON(r)
}

func runRulesEdit(cmd *cobra.Command, args []string) {
	rs, done := openRuleStore(cmd)
	defer done()

	cur, err := rs.Get(args[0])
	if err != nil {
		exitErr("edit", err)
	}
	r, err := rs.Update(cur.ID, ruleFromFlags(cmd, cur))
	if err != nil {
		exitErr("edit", err)
	}
	printJSON(r)
}

func runRulesRm(cmd *cobra.Command, args []string) {
	rs, done := openRuleStore(cmd)
	defer done()

	if err := rs.Delete(args[0]); err != nil {
		exitErr("rm", err)
	}
	fmt.Printf(`{"ok":true,"deleted":%q}`+"\n", args[0])
}

func runRulesToggle(cmd *cobra.Command, args []string) {
	set, _ := cmd.Flags().GetString("set")

	rs, done := openRuleStore(cmd)
	defer done()

	id := args[0]
	var disabled bool
	var err error
	switch set {
	case "":
		disabled, err = rs.Toggle(id)
	case "on", "off":
		disabled = set == "off"
		err = rs.SetDisabled(id, disabled)
	default:
		err = fmt.Errorf("--set must be on or off, got %q", set)
	}
	if err != nil {
		exitErr("toggle", err)
	}
	fmt.Printf(`{"ok":true,"id":%q,"disabled":%t}`+"\n", id, disabled)
}

func runRulesPublish(cmd *cobra.Command, args []string) {
	var host []rules.HostScript
	data, err := readHostScripts(args)
	if err != nil {
		exitErr("read host scripts", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &host); err != nil {
			exitErr("parse host scripts", err)
		}
	}

	cfg := loadConfig()
	if !cfg.Settings.IntegrateWithGlobalRegex {
		// Integration off: only strip what we published before.
		printJSON(rules.Publish(host, nil))
		return
	}
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()
	rs := openRules(cmd.Context(), cfg, s, nil, newLogger(cfg).ForComponent("rules"))

	printJSON(rules.Publish(host, rs.Active(cfg.Settings)))
}

func readHostScripts(args []string) ([]byte, error) {
	if len(args) == 1 {
		return os.ReadFile(args[0])
	}
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		return io.ReadAll(os.Stdin)
	}
	return nil, nil
}
