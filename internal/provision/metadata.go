package provision

import (
	"github.com/andywolf/odin/internal/plan"
)

// BuildMetadata maps created issue numbers to their roadmap data. Phase
// indices are resolved through CreatedIssue.Index, so an issue that failed to
// create simply has no entry. Phases are applied in order and a later phase
// claiming the same index replaces the earlier one; each replacement is
// logged. Out-of-range indices are ignored.
func BuildMetadata(spec *plan.PlanSpec, created []CreatedIssue, logger Logger) map[int]IssueMetadata {
	numberByIndex := make(map[int]int, len(created))
	for _, ci := range created {
		numberByIndex[ci.Index] = ci.Number
	}

	metadata := make(map[int]IssueMetadata, len(created))
	for _, phase := range spec.Roadmap {
		for _, idx := range phase.Issues {
			if idx < 0 || idx >= len(spec.Issues) {
				logger.Warningf("phase %q references issue index %d, but the plan has %d issues", phase.Phase, idx, len(spec.Issues))
				continue
			}
			number, ok := numberByIndex[idx]
			if !ok {
				continue
			}

			if prev, exists := metadata[number]; exists {
				logger.Warningf("issue #%d is listed in phase %q (%s to %s) and again in %q (%s to %s); using the later one",
					number, prev.Phase, prev.StartDate, prev.EndDate, phase.Phase, phase.StartDate, phase.EndDate)
			}

			issue := spec.Issues[idx]
			metadata[number] = IssueMetadata{
				StartDate: phase.StartDate,
				EndDate:   phase.EndDate,
				Phase:     phase.Phase,
				Priority:  string(issue.Priority),
				Size:      string(issue.Size),
			}
		}
	}
	return metadata
}
