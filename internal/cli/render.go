package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/andywolf/odin/internal/provision"
	"github.com/jedib0t/go-pretty/v6/table"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderResult prints the outcome of a plan run.
func renderResult(w io.Writer, r *provision.Result) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)

	if r.DryRun {
		fmt.Fprintln(w, "Dry run: nothing was created.")
		tw.AppendHeader(table.Row{"Target", "Planned"})
		repo := r.Repo
		if repo == "" {
			repo = "(current repository)"
		}
		tw.AppendRow(table.Row{"Repository", repo})
		tw.AppendRow(table.Row{"Board", r.BoardName})
		tw.AppendRow(table.Row{"Labels", r.PlannedLabels})
		tw.AppendRow(table.Row{"Issues", r.PlannedIssues})
		tw.Render()
		return
	}

	tw.AppendHeader(table.Row{"Resource", "Done", "Planned"})
	tw.AppendRow(table.Row{"Labels", len(r.Labels), r.PlannedLabels})
	tw.AppendRow(table.Row{"Issues", len(r.Issues), r.PlannedIssues})
	tw.AppendRow(table.Row{"Board fields", r.FieldsEnsured, len(provision.RequiredFields())})
	tw.AppendRow(table.Row{"Board items", r.Linked, len(r.Issues)})
	tw.Render()

	if len(r.Issues) > 0 {
		it := table.NewWriter()
		it.SetOutputMirror(w)
		it.AppendHeader(table.Row{"Plan #", "Issue", "URL"})
		for _, issue := range r.Issues {
			it.AppendRow(table.Row{issue.Index, fmt.Sprintf("#%d", issue.Number), issue.URL})
		}
		it.Render()
	}

	if r.BoardURL != "" {
		fmt.Fprintf(w, "Board:   %s\n", r.BoardURL)
		fmt.Fprintf(w, "Roadmap: %s\n", r.RoadmapURL)
	}

	renderSkipped(w, r.Report.Skipped())
}

func renderSkipped(w io.Writer, skipped []provision.ItemResult) {
	if len(skipped) == 0 {
		return
	}
	fmt.Fprintf(w, "%d item(s) were skipped:\n", len(skipped))
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Stage", "Item", "Reason"})
	for _, item := range skipped {
		tw.AppendRow(table.Row{item.Stage, item.Key, item.Reason})
	}
	tw.Render()
}

// renderFields prints a board's fields with the status of each required one.
func renderFields(w io.Writer, fields []provision.BoardField, report *provision.Report) {
	status := make(map[string]provision.Status)
	for _, item := range report.Items {
		status[item.Key] = item.Status
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Field", "Type", "Options", "Status"})
	for _, f := range fields {
		names := make([]string, 0, len(f.Options))
		for _, opt := range f.Options {
			names = append(names, opt.Name)
		}
		st := "-"
		if s, ok := status[f.Name]; ok {
			st = string(s)
		}
		tw.AppendRow(table.Row{f.Name, f.DataType, strings.Join(names, ", "), st})
	}
	tw.Render()

	renderSkipped(w, report.Skipped())
}
