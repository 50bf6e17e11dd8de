package provision

import (
	"context"
	"fmt"
	"net/url"

	"github.com/andywolf/odin/internal/plan"
)

// LabelReconciler creates or updates repository labels.
type LabelReconciler struct {
	api    API
	logger Logger
}

// NewLabelReconciler creates a LabelReconciler.
func NewLabelReconciler(api API, logger Logger) *LabelReconciler {
	return &LabelReconciler{api: api, logger: logger}
}

// Reconcile ensures every label exists with the desired color and
// description. Each label is handled independently: create, and if that
// fails, update in place. Labels that can be neither created nor updated are
// skipped. The returned slice holds the labels that ended up applied.
func (r *LabelReconciler) Reconcile(ctx context.Context, repo string, labels []plan.Label) ([]plan.Label, *Report) {
	report := &Report{}
	applied := make([]plan.Label, 0, len(labels))

	for _, label := range labels {
		createErr := r.create(ctx, repo, label)
		if createErr == nil {
			applied = append(applied, label)
			report.add(StageLabels, label.Name, StatusCreated, "")
			continue
		}

		// Most create failures mean the label already exists
		r.logger.Debugf("label %s not created (%v), updating instead", label.Name, createErr)
		if err := r.update(ctx, repo, label); err != nil {
			r.logger.Warningf("label %s failed to create/update: %v", label.Name, err)
			report.add(StageLabels, label.Name, StatusSkipped, fmt.Sprintf("create: %v; update: %v", createErr, err))
			continue
		}
		applied = append(applied, label)
		report.add(StageLabels, label.Name, StatusUpdated, "")
	}

	return applied, report
}

func (r *LabelReconciler) create(ctx context.Context, repo string, label plan.Label) error {
	body := map[string]string{
		"name":        label.Name,
		"color":       label.NormalizedColor(),
		"description": label.Description,
	}
	return r.api.REST(ctx, "POST", fmt.Sprintf("repos/%s/labels", repo), body, nil)
}

func (r *LabelReconciler) update(ctx context.Context, repo string, label plan.Label) error {
	body := map[string]string{
		"color":       label.NormalizedColor(),
		"description": label.Description,
	}
	path := fmt.Sprintf("repos/%s/labels/%s", repo, url.PathEscape(label.Name))
	return r.api.REST(ctx, "PATCH", path, body, nil)
}
