package provision

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/andywolf/odin/internal/ghapi"
)

const repositoryOwnerQuery = `query RepositoryOwner($owner: String!) {
  repositoryOwner(login: $owner) {
    id
    __typename
  }
}`

const createBoardMutation = `mutation CreateBoard($ownerId: ID!, $title: String!) {
  createProjectV2(input: {ownerId: $ownerId, title: $title}) {
    projectV2 { id number url }
  }
}`

const issueNodeIDQuery = `query IssueNodeID($owner: String!, $name: String!, $number: Int!) {
  repository(owner: $owner, name: $name) {
    issue(number: $number) { id }
  }
}`

const addBoardItemMutation = `mutation AddBoardItem($projectId: ID!, $contentId: ID!) {
  addProjectV2ItemById(input: {projectId: $projectId, contentId: $contentId}) {
    item { id }
  }
}`

const setFieldValueMutation = `mutation SetFieldValue($projectId: ID!, $itemId: ID!, $fieldId: ID!, $value: ProjectV2FieldValue!) {
  updateProjectV2ItemFieldValue(input: {projectId: $projectId, itemId: $itemId, fieldId: $fieldId, value: $value}) {
    projectV2Item { id }
  }
}`

// BoardLinker creates a board and links created issues to it.
type BoardLinker struct {
	api      API
	logger   Logger
	fields   *FieldProvisioner
	required []FieldRequirement
}

// NewBoardLinker creates a BoardLinker that provisions the given fields on
// every board it creates.
func NewBoardLinker(api API, logger Logger, fields *FieldProvisioner, required []FieldRequirement) *BoardLinker {
	return &BoardLinker{api: api, logger: logger, fields: fields, required: required}
}

// LinkResult describes a linked board.
type LinkResult struct {
	Board  Board
	Fields []BoardField
	Linked int
	Report *Report
}

// Link creates a new board named boardName under the repository owner,
// ensures its fields, then adds each created issue as a board item and
// writes its field values from metadata. Failing to create the board or read
// its fields is fatal; every per-issue failure is recorded and skipped, so
// Linked may be less than len(issues).
func (l *BoardLinker) Link(ctx context.Context, repo, boardName string, issues []CreatedIssue, metadata map[int]IssueMetadata) (*LinkResult, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	// Step 1: Resolve owner and create the board
	ownerID, err := l.ownerID(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repository owner %s: %w", owner, err)
	}

	board, err := l.createBoard(ctx, ownerID, boardName)
	if err != nil {
		return nil, fmt.Errorf("failed to create board %q: %w", boardName, err)
	}
	l.logger.Infof("Board created: %s", board.URL)

	// Step 2: Ensure custom fields
	fields, fieldReport, err := l.fields.EnsureFields(ctx, board.ID, l.required)
	result := &LinkResult{Board: *board, Report: &Report{}}
	result.Report.merge(fieldReport)
	if err != nil {
		return result, fmt.Errorf("failed to set up board fields: %w", err)
	}
	result.Fields = fields
	cache := &fieldCache{fields: fields}

	// Step 3: Add issues and write their field values
	for _, issue := range issues {
		key := fmt.Sprintf("#%d", issue.Number)

		itemID, err := l.addIssue(ctx, board.ID, owner, name, issue)
		if err != nil {
			l.logger.Warningf("failed to add issue #%d to board: %v", issue.Number, err)
			result.Report.add(StageLink, key, StatusSkipped, err.Error())
			continue
		}

		reason := ""
		if meta, ok := metadata[issue.Number]; ok {
			if failed := l.writeFieldValues(ctx, board.ID, itemID, cache, meta); len(failed) > 0 {
				reason = "field values not set: " + strings.Join(failed, ", ")
			}
		}

		result.Linked++
		result.Report.add(StageLink, key, StatusLinked, reason)
		l.logger.Debugf("added issue #%d", issue.Number)
	}

	return result, nil
}

type repositoryOwnerResponse struct {
	RepositoryOwner *struct {
		ID       string `json:"id"`
		Typename string `json:"__typename"`
	} `json:"repositoryOwner"`
}

func (l *BoardLinker) ownerID(ctx context.Context, owner string) (string, error) {
	var resp repositoryOwnerResponse
	if err := l.api.GraphQL(ctx, repositoryOwnerQuery, map[string]interface{}{"owner": owner}, &resp); err != nil {
		return "", err
	}
	if resp.RepositoryOwner == nil {
		return "", &ghapi.NotFoundError{Op: "graphql RepositoryOwner", Message: owner}
	}
	if resp.RepositoryOwner.ID == "" {
		return "", &ghapi.SchemaError{Op: "graphql RepositoryOwner", Detail: "owner has no id"}
	}
	return resp.RepositoryOwner.ID, nil
}

type createBoardResponse struct {
	CreateProjectV2 struct {
		ProjectV2 Board `json:"projectV2"`
	} `json:"createProjectV2"`
}

func (l *BoardLinker) createBoard(ctx context.Context, ownerID, title string) (*Board, error) {
	var resp createBoardResponse
	vars := map[string]interface{}{"ownerId": ownerID, "title": title}
	if err := l.api.GraphQL(ctx, createBoardMutation, vars, &resp); err != nil {
		return nil, err
	}
	board := resp.CreateProjectV2.ProjectV2
	if board.ID == "" || board.URL == "" {
		return nil, &ghapi.SchemaError{Op: "graphql CreateBoard", Detail: "board has no id or url"}
	}
	return &board, nil
}

type issueNodeIDResponse struct {
	Repository *struct {
		Issue *struct {
			ID string `json:"id"`
		} `json:"issue"`
	} `json:"repository"`
}

// issueNodeID resolves the GraphQL node id of an issue from its number.
func (l *BoardLinker) issueNodeID(ctx context.Context, owner, name string, number int) (string, error) {
	var resp issueNodeIDResponse
	vars := map[string]interface{}{"owner": owner, "name": name, "number": number}
	if err := l.api.GraphQL(ctx, issueNodeIDQuery, vars, &resp); err != nil {
		return "", err
	}
	if resp.Repository == nil || resp.Repository.Issue == nil || resp.Repository.Issue.ID == "" {
		return "", &ghapi.NotFoundError{Op: "graphql IssueNodeID", Message: fmt.Sprintf("issue #%d", number)}
	}
	return resp.Repository.Issue.ID, nil
}

type addBoardItemResponse struct {
	AddProjectV2ItemByID struct {
		Item struct {
			ID string `json:"id"`
		} `json:"item"`
	} `json:"addProjectV2ItemById"`
}

func (l *BoardLinker) addIssue(ctx context.Context, boardID, owner, name string, issue CreatedIssue) (string, error) {
	contentID := issue.NodeID
	if contentID == "" {
		var err error
		if contentID, err = l.issueNodeID(ctx, owner, name, issue.Number); err != nil {
			return "", err
		}
	}

	var resp addBoardItemResponse
	vars := map[string]interface{}{"projectId": boardID, "contentId": contentID}
	if err := l.api.GraphQL(ctx, addBoardItemMutation, vars, &resp); err != nil {
		return "", err
	}
	if resp.AddProjectV2ItemByID.Item.ID == "" {
		return "", &ghapi.SchemaError{Op: "graphql AddBoardItem", Detail: "item has no id"}
	}
	return resp.AddProjectV2ItemByID.Item.ID, nil
}

// writeFieldValues sets Priority, Size, Start Date and Target Date on an
// item, each with its own call. Missing fields, empty metadata and option
// names with no match are skipped without error. It returns the names of the
// fields whose write failed.
func (l *BoardLinker) writeFieldValues(ctx context.Context, boardID, itemID string, cache *fieldCache, meta IssueMetadata) []string {
	type write struct {
		field string
		value FieldValue
	}
	var writes []write

	if f, ok := cache.byName(FieldPriority); ok && meta.Priority != "" {
		if opt, ok := f.Option(titleCase(meta.Priority)); ok {
			writes = append(writes, write{FieldPriority, OptionValue(opt.ID)})
		}
	}
	if f, ok := cache.byName(FieldSize); ok && meta.Size != "" {
		if opt, ok := f.Option(meta.Size); ok {
			writes = append(writes, write{FieldSize, OptionValue(opt.ID)})
		}
	}
	if _, ok := cache.byName(FieldStartDate); ok && meta.StartDate != "" {
		writes = append(writes, write{FieldStartDate, DateValue(meta.StartDate)})
	}
	if _, ok := cache.byName(FieldTargetDate); ok && meta.EndDate != "" {
		writes = append(writes, write{FieldTargetDate, DateValue(meta.EndDate)})
	}

	var failed []string
	for _, w := range writes {
		field, _ := cache.byName(w.field)
		if err := l.SetFieldValue(ctx, boardID, itemID, field.ID, w.value); err != nil {
			l.logger.Warningf("failed to set %s on item %s: %v", w.field, itemID, err)
			failed = append(failed, w.field)
		}
	}
	return failed
}

// SetFieldValue writes one field value on a board item.
func (l *BoardLinker) SetFieldValue(ctx context.Context, boardID, itemID, fieldID string, value FieldValue) error {
	input, err := value.input()
	if err != nil {
		return err
	}
	vars := map[string]interface{}{
		"projectId": boardID,
		"itemId":    itemID,
		"fieldId":   fieldID,
		"value":     input,
	}
	return l.api.GraphQL(ctx, setFieldValueMutation, vars, nil)
}

// titleCase upper-cases the first letter: "high" becomes "High".
func titleCase(s string) string {
	if s == "" {
		return s
	}
	first, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(first)) + strings.ToLower(s[size:])
}
