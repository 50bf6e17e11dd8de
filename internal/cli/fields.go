package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/andywolf/odin/internal/config"
	"github.com/andywolf/odin/internal/provision"
	"github.com/spf13/cobra"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Ensure the roadmap fields exist on an existing board",
	Long: `Ensure Priority, Size, Start Date and Target Date exist on an existing
Projects board, creating only the missing ones. Existing fields are never
changed, so running this twice makes no changes the second time.

Example:
  odin fields --board PVT_kwDOABCD1234`,
	RunE: runFieldsCmd,
}

func init() {
	rootCmd.AddCommand(fieldsCmd)

	fieldsCmd.Flags().String("board", "", "board node ID (PVT_...)")
	fieldsCmd.Flags().Bool("json", false, "print the fields as JSON")
	_ = fieldsCmd.MarkFlagRequired("board")
}

func runFieldsCmd(cmd *cobra.Command, args []string) error {
	e := defaultEnv(cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx, cancel := signalContext(e.errOut)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	boardID, _ := cmd.Flags().GetString("board")
	jsonOut, _ := cmd.Flags().GetBool("json")
	return runFields(ctx, cfg, boardID, jsonOut, e)
}

func runFields(ctx context.Context, cfg *config.Config, boardID string, jsonOut bool, e env) error {
	boardID = strings.TrimSpace(boardID)
	if boardID == "" {
		return fmt.Errorf("--board is required")
	}

	logger := newRunLogger(cfg, e.errOut, e.runID())
	tokens, _, err := e.tokens(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to set up GitHub authentication: %w", err)
	}

	fields, report, err := provision.NewFieldProvisioner(e.newAPI(cfg, tokens), logger).EnsureFields(ctx, boardID, provision.RequiredFields())
	if err != nil {
		return fmt.Errorf("failed to ensure fields on board %s: %w", boardID, err)
	}

	if jsonOut {
		return writeJSON(e.out, map[string]interface{}{"fields": fields, "report": report})
	}
	renderFields(e.out, fields, report)
	return nil
}
