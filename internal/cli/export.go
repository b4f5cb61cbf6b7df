package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export dynamic rules as JSON",
		Long:  "Export dynamic rules as a JSON array in the host's regex script shape. Static rules ship with the binary and are not exported.",
		Run:   runExport,
	}

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	rules, err := s.ExportRules(cmd.Context())
	if err != nil {
		exitErr("export", err)
	}

	printJSON(rules)
}
