package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/andywolf/odin/internal/cli/wizard"
	"github.com/andywolf/odin/internal/config"
	"github.com/andywolf/odin/internal/plan"
	"github.com/andywolf/odin/internal/provision"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Provision a plan file on GitHub",
	Long: `Provision an execution plan on GitHub.

Creates or updates the plan's labels, creates one issue per plan issue, then
creates a new Projects board, adds Priority, Size, Start Date and Target Date
fields, and adds every created issue with its values from the roadmap.

Failures on individual labels, issues or board items are reported and
skipped. Failing to create the board stops the run.

Examples:
  odin plan --file plan.yaml --dry-run
  odin plan --file plan.json --repo octo/odin --name "Q3 Launch" --yes`,
	RunE: runPlanCmd,
}

// planOptions are the per-invocation flags of odin plan.
type planOptions struct {
	file    string
	dryRun  bool
	yes     bool
	jsonOut bool
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().StringP("file", "f", "", "plan file (JSON or YAML)")
	planCmd.Flags().String("repo", "", "target repository (owner/name); defaults to the current directory's repository")
	planCmd.Flags().String("name", "", "board name (defaults to the plan's project name)")
	planCmd.Flags().Bool("dry-run", false, "show what would be created without calling GitHub")
	planCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
	planCmd.Flags().Bool("json", false, "print the result as JSON")
	_ = planCmd.MarkFlagRequired("file")

	_ = viper.BindPFlag("repository", planCmd.Flags().Lookup("repo"))
	_ = viper.BindPFlag("board.name", planCmd.Flags().Lookup("name"))
}

func runPlanCmd(cmd *cobra.Command, args []string) error {
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

	opts := planOptions{}
	opts.file, _ = cmd.Flags().GetString("file")
	opts.dryRun, _ = cmd.Flags().GetBool("dry-run")
	opts.yes, _ = cmd.Flags().GetBool("yes")
	opts.jsonOut, _ = cmd.Flags().GetBool("json")

	return runPlan(ctx, cfg, opts, e)
}

func runPlan(ctx context.Context, cfg *config.Config, opts planOptions, e env) error {
	spec, err := plan.Load(opts.file)
	if err != nil {
		return err
	}
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("invalid plan %s: %w", opts.file, err)
	}

	logger := newRunLogger(cfg, e.errOut, e.runID())
	logger.Debugf("Loaded plan %s: %d issues, %d labels, %d phases", opts.file, len(spec.Issues), len(spec.Labels), len(spec.Roadmap))

	// Dry runs touch neither credentials nor gh.
	if opts.dryRun {
		p := provision.New(nil, logger)
		result, err := p.Provision(ctx, cfg.Repository, spec, provision.Options{DryRun: true, BoardName: cfg.Board.Name})
		if err != nil {
			return err
		}
		return writeResult(e, result, opts.jsonOut)
	}

	tokens, authDesc, err := e.tokens(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to set up GitHub authentication: %w", err)
	}
	api := e.newAPI(cfg, tokens)

	repo, err := resolveRepo(ctx, cfg.Repository, api)
	if err != nil {
		return err
	}

	if tokens != nil {
		if _, err := tokens.Token(); err != nil {
			return fmt.Errorf("failed to obtain GitHub token: %w", err)
		}
	}
	if !opts.yes {
		confirmed, err := confirmRun(e, wizard.Summary{
			Repo:      repo,
			BoardName: provision.ResolveBoardName(cfg.Board.Name, spec.ProjectName),
			Issues:    len(spec.Issues),
			Labels:    len(spec.Labels),
			Phases:    len(spec.Roadmap),
			Auth:      authDesc,
		})
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Fprintln(e.out, "Aborted; nothing was created.")
			return nil
		}
	}

	logger.Infof("Run %s: provisioning %s using %s", logger.RunID(), repo, authDesc)
	p := provision.New(api, logger, provision.WithRoadmapLayout(cfg.Board.RoadmapLayout))
	result, runErr := p.Provision(ctx, repo, spec, provision.Options{BoardName: cfg.Board.Name})

	if result != nil {
		if err := writeResult(e, result, opts.jsonOut); err != nil {
			return err
		}
	}

	if runErr != nil {
		logger.Errorf("Provisioning stopped: %v", runErr)
		return fmt.Errorf("provisioning failed: %w", runErr)
	}
	return nil
}

func writeResult(e env, result *provision.Result, jsonOut bool) error {
	if !jsonOut {
		renderResult(e.out, result)
		return nil
	}
	if err := writeJSON(e.out, result); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}

var errConfirmationRequired = errors.New("refusing to modify GitHub without confirmation; pass --yes when not running in a terminal")

func confirmRun(e env, summary wizard.Summary) (bool, error) {
	if !e.interactive() {
		return false, errConfirmationRequired
	}
	return e.confirm(summary)
}
