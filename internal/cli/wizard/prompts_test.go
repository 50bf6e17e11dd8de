package wizard

import (
	"strings"
	"testing"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name     string
		summary  Summary
		contains []string
		excludes []string
	}{
		{
			name:    "gh login",
			summary: Summary{Repo: "octo/odin", BoardName: "Launch", Issues: 2, Labels: 1, Phases: 1},
			contains: []string{
				"Repository: octo/odin",
				"Board: Launch (new)",
				"Issues: 2",
				"Labels: 1",
				"Roadmap phases: 1",
			},
			excludes: []string{"Authentication"},
		},
		{
			name:     "app auth",
			summary:  Summary{Repo: "octo/odin", BoardName: "Launch", Auth: "GitHub App 123"},
			contains: []string{"Authentication: GitHub App 123"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Describe(tt.summary)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("Describe() missing %q in:\n%s", want, got)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(got, unwanted) {
					t.Errorf("Describe() should not contain %q:\n%s", unwanted, got)
				}
			}
		})
	}
}
