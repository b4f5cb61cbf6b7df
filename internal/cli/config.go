package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/prosepolisher/internal/config"
)

func init() {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (file, env and flags applied)",
		Run:   runConfigShow,
	}

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check the config file for out-of-range values",
		Run:   runConfigValidate,
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Run:   runConfigInit,
	}
	initCmd.Flags().Bool("force", false, "Overwrite an existing file")

	cmd.AddCommand(show, validate, initCmd)
	RootCmd.AddCommand(cmd)
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg := loadConfig().Clone()
	if cfg.Completions.APIKey != "" {
		cfg.Completions.APIKey = "***"
	}
	printJSON(cfg)
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	if err := config.Check(getConfigPath()); err != nil {
		exitErr("validate "+getConfigPath(), err)
	}
	fmt.Printf(`{"ok":true,"path":%q}`+"\n", getConfigPath())
}

func runConfigInit(cmd *cobra.Command, args []string) {
	force, _ := cmd.Flags().GetBool("force")
	path := getConfigPath()
	if _, err := os.Stat(path); err == nil && !force {
		exitErr("init", fmt.Errorf("%s exists (use --force)", path))
	}
	if err := config.Save(config.DefaultConfig(), path); err != nil {
		exitErr("init", err)
	}
	fmt.Printf(`{"ok":true,"path":%q}`+"\n", path)
}
