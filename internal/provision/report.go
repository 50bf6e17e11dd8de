package provision

// Stage identifies which part of a run produced an item result.
type Stage string

const (
	StageLabels Stage = "labels"
	StageIssues Stage = "issues"
	StageFields Stage = "fields"
	StageLink   Stage = "link"
)

// Status is the outcome for one item.
type Status string

const (
	StatusCreated Status = "created"
	StatusUpdated Status = "updated"
	StatusExists  Status = "exists"
	StatusLinked  Status = "linked"
	StatusSkipped Status = "skipped"
)

// ItemResult records what happened to one label, issue, field or board item.
// Key names the item well enough to retry it by hand.
type ItemResult struct {
	Stage  Stage  `json:"stage"`
	Key    string `json:"key"`
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Report collects item results across a run.
type Report struct {
	Items []ItemResult `json:"items"`
}

func (r *Report) add(stage Stage, key string, status Status, reason string) {
	r.Items = append(r.Items, ItemResult{Stage: stage, Key: key, Status: status, Reason: reason})
}

// Count returns how many items of a stage ended with status.
func (r *Report) Count(stage Stage, status Status) int {
	n := 0
	for _, item := range r.Items {
		if item.Stage == stage && item.Status == status {
			n++
		}
	}
	return n
}

// Skipped returns every skipped item in the order recorded.
func (r *Report) Skipped() []ItemResult {
	var out []ItemResult
	for _, item := range r.Items {
		if item.Status == StatusSkipped {
			out = append(out, item)
		}
	}
	return out
}

// merge appends another report's items.
func (r *Report) merge(other *Report) {
	if other == nil {
		return
	}
	r.Items = append(r.Items, other.Items...)
}
