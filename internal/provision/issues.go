package provision

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/andywolf/odin/internal/ghapi"
	"github.com/andywolf/odin/internal/plan"
)

// IssueCreator creates one GitHub issue per plan issue.
type IssueCreator struct {
	api    API
	logger Logger
}

// NewIssueCreator creates an IssueCreator.
func NewIssueCreator(api API, logger Logger) *IssueCreator {
	return &IssueCreator{api: api, logger: logger}
}

// issueResponse is the subset of the REST issue object we read.
type issueResponse struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
	NodeID  string `json:"node_id"`
}

var issueURLPattern = regexp.MustCompile(`/issues/(\d+)`)

// Create creates the issues in input order. A failed issue is skipped with
// no placeholder, so the result can be shorter than the input; each
// CreatedIssue keeps the index of the plan issue it came from.
func (c *IssueCreator) Create(ctx context.Context, repo string, issues []plan.Issue) ([]CreatedIssue, *Report) {
	report := &Report{}
	created := make([]CreatedIssue, 0, len(issues))

	for i, issue := range issues {
		ci, err := c.createOne(ctx, repo, issue)
		if err != nil {
			c.logger.Warningf("failed to create issue %q: %v", issue.Title, err)
			report.add(StageIssues, issue.Title, StatusSkipped, err.Error())
			continue
		}
		ci.Index = i
		created = append(created, ci)
		report.add(StageIssues, fmt.Sprintf("#%d %s", ci.Number, issue.Title), StatusCreated, "")
	}

	return created, report
}

func (c *IssueCreator) createOne(ctx context.Context, repo string, issue plan.Issue) (CreatedIssue, error) {
	body := map[string]interface{}{
		"title":  issue.Title,
		"body":   IssueBody(issue),
		"labels": nonNil(issue.Labels),
	}

	var resp issueResponse
	path := fmt.Sprintf("repos/%s/issues", repo)
	if err := c.api.REST(ctx, "POST", path, body, &resp); err != nil {
		return CreatedIssue{}, err
	}

	number := resp.Number
	if number == 0 {
		if m := issueURLPattern.FindStringSubmatch(resp.HTMLURL); m != nil {
			number, _ = strconv.Atoi(m[1])
		}
	}
	if number == 0 {
		return CreatedIssue{}, &ghapi.SchemaError{Op: "POST " + path, Detail: "response has no issue number"}
	}

	return CreatedIssue{Number: number, URL: resp.HTMLURL, NodeID: resp.NodeID}, nil
}

// IssueBody renders the issue body: description, an acceptance-criteria
// checklist and the size and priority annotations.
func IssueBody(issue plan.Issue) string {
	var sb strings.Builder
	sb.WriteString(issue.Description)
	sb.WriteString("\n\n## Acceptance Criteria\n")
	for _, criterion := range issue.AcceptanceCriteria {
		sb.WriteString("- [ ] ")
		sb.WriteString(criterion)
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("\n## Size: %s\n", issue.Size))
	sb.WriteString(fmt.Sprintf("## Priority: %s\n", issue.Priority))
	return sb.String()
}

// nonNil keeps "labels": [] instead of null in the request body.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
