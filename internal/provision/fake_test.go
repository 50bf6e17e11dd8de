package provision

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/andywolf/odin/internal/ghapi"
	"github.com/andywolf/odin/internal/plan"
)

// apiCall records one call made through the API interface.
type apiCall struct {
	kind   string // "rest" or "graphql"
	method string
	path   string
	op     string
	body   interface{}
	vars   map[string]interface{}
}

type fakeItem struct {
	id        string
	contentID string
	values    map[string]map[string]interface{} // field id -> value input
}

type fakeBoard struct {
	Board
	title  string
	fields []BoardField
	items  []*fakeItem
}

// fakeGitHub is an in-memory stand-in for the REST and GraphQL surfaces the
// engine uses.
type fakeGitHub struct {
	t      *testing.T
	calls  []apiCall
	labels map[string]plan.Label

	nextIssue  int
	issueIDs   map[int]string
	omitNodeID bool

	boards     map[string]*fakeBoard
	lastBoard  *fakeBoard
	seedFields []BoardField
	nextID     int

	// failREST and failGraphQL inject errors before the fake handles a call.
	failREST    func(method, path string, body interface{}) error
	failGraphQL func(op string, vars map[string]interface{}) error
}

func newFakeGitHub(t *testing.T) *fakeGitHub {
	return &fakeGitHub{
		t:        t,
		labels:   make(map[string]plan.Label),
		issueIDs: make(map[int]string),
		boards:   make(map[string]*fakeBoard),
	}
}

func (f *fakeGitHub) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s_%d", prefix, f.nextID)
}

func (f *fakeGitHub) REST(ctx context.Context, method, path string, body, out interface{}) error {
	f.calls = append(f.calls, apiCall{kind: "rest", method: method, path: path, body: body})
	if f.failREST != nil {
		if err := f.failREST(method, path, body); err != nil {
			return err
		}
	}

	fields := toMap(f.t, body)
	switch {
	case method == "POST" && strings.HasSuffix(path, "/labels"):
		name := fields["name"].(string)
		if _, exists := f.labels[name]; exists {
			return &ghapi.ConflictError{Op: method + " " + path, Message: "Validation Failed"}
		}
		f.labels[name] = plan.Label{Name: name, Color: fields["color"].(string), Description: fields["description"].(string)}
		return respond(f.t, out, fields)

	case method == "PATCH" && strings.Contains(path, "/labels/"):
		name, err := url.PathUnescape(path[strings.LastIndex(path, "/")+1:])
		if err != nil {
			f.t.Fatalf("bad label path %s: %v", path, err)
		}
		label, exists := f.labels[name]
		if !exists {
			return &ghapi.NotFoundError{Op: method + " " + path, Message: "Not Found"}
		}
		label.Color = fields["color"].(string)
		label.Description = fields["description"].(string)
		f.labels[name] = label
		return respond(f.t, out, fields)

	case method == "POST" && strings.HasSuffix(path, "/issues"):
		f.nextIssue++
		number := f.nextIssue
		nodeID := fmt.Sprintf("I_%d", number)
		f.issueIDs[number] = nodeID
		repo := strings.TrimSuffix(strings.TrimPrefix(path, "repos/"), "/issues")
		resp := map[string]interface{}{
			"number":   number,
			"html_url": fmt.Sprintf("https://github.com/%s/issues/%d", repo, number),
		}
		if !f.omitNodeID {
			resp["node_id"] = nodeID
		}
		return respond(f.t, out, resp)
	}

	f.t.Fatalf("unexpected REST call %s %s", method, path)
	return nil
}

func (f *fakeGitHub) GraphQL(ctx context.Context, query string, vars map[string]interface{}, out interface{}) error {
	op := ghapi.OperationName(query)
	f.calls = append(f.calls, apiCall{kind: "graphql", op: op, vars: vars})
	if f.failGraphQL != nil {
		if err := f.failGraphQL(op, vars); err != nil {
			return err
		}
	}

	switch op {
	case "RepositoryOwner":
		return respond(f.t, out, map[string]interface{}{
			"repositoryOwner": map[string]interface{}{"id": "U_" + vars["owner"].(string), "__typename": "User"},
		})

	case "CreateBoard":
		number := len(f.boards) + 1
		board := &fakeBoard{
			Board: Board{
				ID:     f.id("PVT"),
				Number: number,
				URL:    fmt.Sprintf("https://github.com/users/octo/projects/%d", number),
			},
			title: vars["title"].(string),
			fields: append([]BoardField{
				{ID: f.id("PVTF"), Name: "Title", DataType: DataTypeText},
				{ID: f.id("PVTSSF"), Name: "Status", DataType: DataTypeSingleSelect, Options: []FieldOption{{ID: "todo", Name: "Todo"}}},
			}, f.seedFields...),
		}
		f.boards[board.ID] = board
		f.lastBoard = board
		return respond(f.t, out, map[string]interface{}{
			"createProjectV2": map[string]interface{}{"projectV2": board.Board},
		})

	case "BoardFields":
		board := f.board(vars["projectId"])
		if board == nil {
			return respond(f.t, out, map[string]interface{}{"node": nil})
		}
		return respond(f.t, out, map[string]interface{}{
			"node": map[string]interface{}{"fields": map[string]interface{}{"nodes": board.fields}},
		})

	case "CreateBoardField":
		board := f.board(vars["projectId"])
		if board == nil {
			return &ghapi.NotFoundError{Op: op, Message: "project"}
		}
		field := BoardField{ID: f.id("PVTF"), Name: vars["name"].(string), DataType: DataType(vars["dataType"].(string))}
		if opts, ok := vars["options"].([]map[string]string); ok {
			for _, o := range opts {
				field.Options = append(field.Options, FieldOption{ID: f.id("OPT"), Name: o["name"]})
			}
		}
		board.fields = append(board.fields, field)
		return respond(f.t, out, map[string]interface{}{
			"createProjectV2Field": map[string]interface{}{"projectV2Field": map[string]string{"id": field.ID}},
		})

	case "IssueNodeID":
		number := vars["number"].(int)
		nodeID, ok := f.issueIDs[number]
		if !ok {
			return &ghapi.NotFoundError{Op: op, Message: fmt.Sprintf("issue %d", number)}
		}
		return respond(f.t, out, map[string]interface{}{
			"repository": map[string]interface{}{"issue": map[string]string{"id": nodeID}},
		})

	case "AddBoardItem":
		board := f.board(vars["projectId"])
		if board == nil {
			return &ghapi.NotFoundError{Op: op, Message: "project"}
		}
		item := &fakeItem{id: f.id("PVTI"), contentID: vars["contentId"].(string), values: map[string]map[string]interface{}{}}
		board.items = append(board.items, item)
		return respond(f.t, out, map[string]interface{}{
			"addProjectV2ItemById": map[string]interface{}{"item": map[string]string{"id": item.id}},
		})

	case "SetFieldValue":
		board := f.board(vars["projectId"])
		if board == nil {
			return &ghapi.NotFoundError{Op: op, Message: "project"}
		}
		for _, item := range board.items {
			if item.id == vars["itemId"] {
				item.values[vars["fieldId"].(string)] = vars["value"].(map[string]interface{})
				return respond(f.t, out, map[string]interface{}{
					"updateProjectV2ItemFieldValue": map[string]interface{}{"projectV2Item": map[string]string{"id": item.id}},
				})
			}
		}
		return &ghapi.NotFoundError{Op: op, Message: "item"}
	}

	f.t.Fatalf("unexpected GraphQL operation %s", op)
	return nil
}

func (f *fakeGitHub) board(id interface{}) *fakeBoard {
	s, _ := id.(string)
	return f.boards[s]
}

// count returns how many calls matched kind and op (GraphQL) or method
// (REST).
func (f *fakeGitHub) count(kind, opOrMethod string) int {
	n := 0
	for _, c := range f.calls {
		if c.kind != kind {
			continue
		}
		if (kind == "graphql" && c.op == opOrMethod) || (kind == "rest" && c.method == opOrMethod) {
			n++
		}
	}
	return n
}

// fieldValue returns the value written for the named field on the item whose
// content is contentID.
func (f *fakeGitHub) fieldValue(board *fakeBoard, contentID, fieldName string) (map[string]interface{}, bool) {
	var fieldID string
	for _, field := range board.fields {
		if field.Name == fieldName {
			fieldID = field.ID
		}
	}
	for _, item := range board.items {
		if item.contentID == contentID {
			v, ok := item.values[fieldID]
			return v, ok
		}
	}
	return nil, false
}

func (f *fakeGitHub) optionName(board *fakeBoard, fieldName, optionID string) string {
	for _, field := range board.fields {
		if field.Name != fieldName {
			continue
		}
		for _, opt := range field.Options {
			if opt.ID == optionID {
				return opt.Name
			}
		}
	}
	return ""
}

func toMap(t *testing.T, body interface{}) map[string]interface{} {
	t.Helper()
	if body == nil {
		return nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to encode body: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	return m
}

// respond round-trips v through JSON into out, as the real client does.
func respond(t *testing.T, out, v interface{}) error {
	t.Helper()
	if out == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to encode response: %v", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("failed to decode response into %T: %v", out, err)
	}
	return nil
}

// testLogger records messages per level.
type testLogger struct {
	infos    []string
	warnings []string
	debugs   []string
}

func (l *testLogger) Infof(format string, args ...interface{}) {
	l.infos = append(l.infos, fmt.Sprintf(format, args...))
}

func (l *testLogger) Warningf(format string, args ...interface{}) {
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}

func (l *testLogger) Debugf(format string, args ...interface{}) {
	l.debugs = append(l.debugs, fmt.Sprintf(format, args...))
}

func (l *testLogger) hasWarning(substr string) bool {
	for _, w := range l.warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}
