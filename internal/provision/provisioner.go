package provision

import (
	"context"
	"fmt"
	"strings"

	"github.com/andywolf/odin/internal/plan"
)

// DefaultBoardName is used when neither the caller nor the plan names the board.
const DefaultBoardName = "Execution Plan"

// DefaultRoadmapLayout is the layout query value of the roadmap URL.
const DefaultRoadmapLayout = "roadmap"

// Options controls one provisioning run.
type Options struct {
	// DryRun reports what would be created without calling the service.
	DryRun bool
	// BoardName overrides the plan's project name.
	BoardName string
}

// Result is the outcome of a run. Counts reflect what actually succeeded;
// Report lists every item, including skips.
type Result struct {
	DryRun        bool           `json:"dryRun"`
	Repo          string         `json:"repo"`
	BoardName     string         `json:"boardName"`
	PlannedIssues int            `json:"plannedIssues"`
	PlannedLabels int            `json:"plannedLabels"`
	Labels        []plan.Label   `json:"labels"`
	Issues        []CreatedIssue `json:"issues"`
	Board         *Board         `json:"board,omitempty"`
	FieldsEnsured int            `json:"fieldsEnsured"`
	Linked        int            `json:"linked"`
	BoardURL      string         `json:"boardUrl"`
	RoadmapURL    string         `json:"roadmapUrl"`
	Report        Report         `json:"report"`
}

// Provisioner runs the provisioning stages in order:
// labels, issues, roadmap metadata, then board linkage.
type Provisioner struct {
	api           API
	logger        Logger
	required      []FieldRequirement
	roadmapLayout string
}

// ProvisionerOption configures a Provisioner.
type ProvisionerOption func(*Provisioner)

// WithRequiredFields overrides the fields provisioned on the board.
func WithRequiredFields(fields []FieldRequirement) ProvisionerOption {
	return func(p *Provisioner) {
		p.required = fields
	}
}

// WithRoadmapLayout overrides the layout parameter of the roadmap URL.
func WithRoadmapLayout(layout string) ProvisionerOption {
	return func(p *Provisioner) {
		if layout != "" {
			p.roadmapLayout = layout
		}
	}
}

// New creates a Provisioner.
func New(api API, logger Logger, opts ...ProvisionerOption) *Provisioner {
	p := &Provisioner{
		api:           api,
		logger:        logger,
		required:      RequiredFields(),
		roadmapLayout: DefaultRoadmapLayout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Provision reconciles spec into repo. A dry run accepts an empty repo and
// makes no calls, so the API may be nil. Item-level failures are recorded in
// the report and the run continues; failing to create the board or read its
// fields aborts the run and returns the partial result with the error.
func (p *Provisioner) Provision(ctx context.Context, repo string, spec *plan.PlanSpec, opts Options) (*Result, error) {
	if spec == nil {
		return nil, fmt.Errorf("plan is nil")
	}
	// A dry run may not know its repository yet; it never calls the service.
	if !opts.DryRun || repo != "" {
		if _, _, err := splitRepo(repo); err != nil {
			return nil, err
		}
	}

	result := &Result{
		DryRun:        opts.DryRun,
		Repo:          repo,
		BoardName:     ResolveBoardName(opts.BoardName, spec.ProjectName),
		PlannedIssues: len(spec.Issues),
		PlannedLabels: len(spec.Labels),
	}

	if opts.DryRun {
		target := repo
		if target == "" {
			target = "the current repository"
		}
		p.logger.Infof("Dry run: would create %d labels and %d issues in %s", result.PlannedLabels, result.PlannedIssues, target)
		return result, nil
	}

	// Stage 1: labels
	p.logger.Infof("Creating labels in %s...", repo)
	labels, labelReport := NewLabelReconciler(p.api, p.logger).Reconcile(ctx, repo, spec.Labels)
	result.Labels = labels
	result.Report.merge(labelReport)
	p.logger.Infof("Created %d labels", len(labels))

	// Stage 2: issues
	p.logger.Infof("Creating %d issues...", len(spec.Issues))
	issues, issueReport := NewIssueCreator(p.api, p.logger).Create(ctx, repo, spec.Issues)
	result.Issues = issues
	result.Report.merge(issueReport)
	p.logger.Infof("Created %d issues", len(issues))

	if err := ctx.Err(); err != nil {
		return result, err
	}

	// Stage 3: roadmap metadata keyed by actual issue numbers
	metadata := BuildMetadata(spec, issues, p.logger)

	// Stage 4: board, fields and items
	p.logger.Infof("Creating GitHub Project with roadmap...")
	linker := NewBoardLinker(p.api, p.logger, NewFieldProvisioner(p.api, p.logger), p.required)
	link, err := linker.Link(ctx, repo, result.BoardName, issues, metadata)
	if link != nil {
		result.Report.merge(link.Report)
		result.Board = &link.Board
		result.BoardURL = link.Board.URL
		result.RoadmapURL = RoadmapURL(link.Board.URL, p.roadmapLayout)
		result.FieldsEnsured = countEnsured(link.Fields, p.required)
		result.Linked = link.Linked
	}
	if err != nil {
		return result, err
	}

	p.logger.Infof("Added %d of %d issues to project", result.Linked, len(issues))
	return result, nil
}

// RoadmapURL appends the layout parameter to a board URL.
func RoadmapURL(boardURL, layout string) string {
	if boardURL == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(boardURL, "?") {
		sep = "&"
	}
	return boardURL + sep + "layout=" + layout
}

// ResolveBoardName picks the board title: override, then the plan's project
// name, then DefaultBoardName.
func ResolveBoardName(override, projectName string) string {
	if name := strings.TrimSpace(override); name != "" {
		return name
	}
	if name := strings.TrimSpace(projectName); name != "" {
		return name
	}
	return DefaultBoardName
}

// countEnsured counts required fields present on the board.
func countEnsured(fields []BoardField, required []FieldRequirement) int {
	cache := &fieldCache{fields: fields}
	n := 0
	for _, req := range required {
		if _, ok := cache.byName(req.Name); ok {
			n++
		}
	}
	return n
}
