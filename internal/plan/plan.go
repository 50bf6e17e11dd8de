// Package plan defines the execution plan consumed by the provisioning engine
// and loads it from JSON or YAML files.
package plan

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used by roadmap phases.
const DateLayout = "2006-01-02"

// Size is the t-shirt estimate of an issue.
type Size string

const (
	SizeS Size = "S"
	SizeM Size = "M"
	SizeL Size = "L"
)

// Priority is the relative priority of an issue.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// PlanSpec is a structured execution plan: issues, labels and a phased roadmap.
// Phases reference issues by their index in Issues.
type PlanSpec struct {
	ProjectName string  `json:"projectName" yaml:"projectName"`
	Issues      []Issue `json:"issues" yaml:"issues"`
	Labels      []Label `json:"labels" yaml:"labels"`
	Roadmap     []Phase `json:"roadmap" yaml:"roadmap"`
}

// Issue describes one issue to create.
type Issue struct {
	Title              string   `json:"title" yaml:"title"`
	Description        string   `json:"description" yaml:"description"`
	AcceptanceCriteria []string `json:"acceptanceCriteria" yaml:"acceptanceCriteria"`
	Labels             []string `json:"labels" yaml:"labels"`
	Size               Size     `json:"size" yaml:"size"`
	Priority           Priority `json:"priority" yaml:"priority"`
}

// Label describes a repository label. Name is the unique key.
type Label struct {
	Name        string `json:"name" yaml:"name"`
	Color       string `json:"color" yaml:"color"`
	Description string `json:"description" yaml:"description"`
}

// Phase is a time-boxed slice of the roadmap.
type Phase struct {
	Phase     string `json:"phase" yaml:"phase"`
	StartDate string `json:"startDate" yaml:"startDate"`
	EndDate   string `json:"endDate" yaml:"endDate"`
	Issues    []int  `json:"issues" yaml:"issues"`
}

// NormalizedColor returns the label color without a leading '#'.
func (l Label) NormalizedColor() string {
	return strings.TrimPrefix(strings.TrimSpace(l.Color), "#")
}

// Validate checks the structural invariants of the plan.
func (p *PlanSpec) Validate() error {
	if p == nil {
		return fmt.Errorf("plan is nil")
	}

	for i, issue := range p.Issues {
		if strings.TrimSpace(issue.Title) == "" {
			return fmt.Errorf("issue %d: title is required", i)
		}
		switch issue.Size {
		case SizeS, SizeM, SizeL, "":
		default:
			return fmt.Errorf("issue %d: invalid size %q (must be S, M or L)", i, issue.Size)
		}
		switch issue.Priority {
		case PriorityHigh, PriorityMedium, PriorityLow, "":
		default:
			return fmt.Errorf("issue %d: invalid priority %q (must be high, medium or low)", i, issue.Priority)
		}
	}

	seen := make(map[string]bool, len(p.Labels))
	for i, label := range p.Labels {
		if label.Name == "" {
			return fmt.Errorf("label %d: name is required", i)
		}
		if seen[label.Name] {
			return fmt.Errorf("label %q is declared more than once", label.Name)
		}
		seen[label.Name] = true
	}

	for _, phase := range p.Roadmap {
		start, err := time.Parse(DateLayout, phase.StartDate)
		if err != nil {
			return fmt.Errorf("phase %q: invalid start date %q", phase.Phase, phase.StartDate)
		}
		end, err := time.Parse(DateLayout, phase.EndDate)
		if err != nil {
			return fmt.Errorf("phase %q: invalid end date %q", phase.Phase, phase.EndDate)
		}
		if end.Before(start) {
			return fmt.Errorf("phase %q: end date %s is before start date %s", phase.Phase, phase.EndDate, phase.StartDate)
		}
		for _, idx := range phase.Issues {
			if idx < 0 || idx >= len(p.Issues) {
				return fmt.Errorf("phase %q: issue index %d out of range (plan has %d issues)", phase.Phase, idx, len(p.Issues))
			}
		}
	}

	return nil
}
