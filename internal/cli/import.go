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
		Use:   "import [file]",
		Short: "Import dynamic rules from JSON",
		Long:  "Import rules from JSON (file or stdin). Expects the format produced by export. Every rule is validated first; one bad rule rejects the whole file.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	var (
		data []byte
		err  error
	)
	if len(args) == 1 {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		exitErr("read input", err)
	}

	var imported []model.Rule
	if err := json.Unmarshal(data, &imported); err != nil {
		exitErr("parse json", err)
	}
	for i, r := range imported {
		if err := rules.Validate(r); err != nil {
			exitErr(fmt.Sprintf("rule %d (%s)", i, r.ScriptName), err)
		}
	}

	cfg := loadConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	n, err := s.ImportRules(cmd.Context(), imported)
	if err != nil {
		exitErr("import", err)
	}

	fmt.Printf(`{"ok":true,"imported":%d}`+"\n", n)
}
