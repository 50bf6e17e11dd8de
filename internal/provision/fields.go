package provision

import (
	"context"
	"fmt"

	"github.com/andywolf/odin/internal/ghapi"
)

// optionColors is the palette assigned to select options, cycled by index.
var optionColors = []string{"GRAY", "BLUE", "GREEN", "YELLOW", "ORANGE", "RED", "PINK", "PURPLE"}

const boardFieldsQuery = `query BoardFields($projectId: ID!) {
  node(id: $projectId) {
    ... on ProjectV2 {
      fields(first: 50) {
        nodes {
          ... on ProjectV2Field { id name dataType }
          ... on ProjectV2SingleSelectField { id name dataType options { id name } }
          ... on ProjectV2IterationField { id name dataType }
        }
      }
    }
  }
}`

const createBoardFieldMutation = `mutation CreateBoardField($projectId: ID!, $name: String!, $dataType: ProjectV2CustomFieldType!, $options: [ProjectV2SingleSelectFieldOptionInput!]) {
  createProjectV2Field(input: {projectId: $projectId, dataType: $dataType, name: $name, singleSelectOptions: $options}) {
    projectV2Field {
      ... on ProjectV2Field { id }
      ... on ProjectV2SingleSelectField { id }
    }
  }
}`

// fieldCache holds the fields of one board for the duration of one run.
type fieldCache struct {
	fields []BoardField
}

func (c *fieldCache) byName(name string) (BoardField, bool) {
	for _, f := range c.fields {
		if f.Name == name {
			return f, true
		}
	}
	return BoardField{}, false
}

// FieldProvisioner ensures custom fields exist on a board. It never edits or
// removes existing fields.
type FieldProvisioner struct {
	api    API
	logger Logger
}

// NewFieldProvisioner creates a FieldProvisioner.
func NewFieldProvisioner(api API, logger Logger) *FieldProvisioner {
	return &FieldProvisioner{api: api, logger: logger}
}

// EnsureFields creates every required field whose name is not already on the
// board, then re-reads the board once and returns its full field set. A field
// that exists under the same name is left untouched even if its type or
// options differ. Reading fields is fatal on failure; a failed creation is
// recorded as skipped.
func (p *FieldProvisioner) EnsureFields(ctx context.Context, boardID string, required []FieldRequirement) ([]BoardField, *Report, error) {
	report := &Report{}

	cache, err := p.load(ctx, boardID)
	if err != nil {
		return nil, report, err
	}

	createdAny := false
	for _, req := range required {
		if existing, ok := cache.byName(req.Name); ok {
			if existing.DataType != req.DataType {
				p.logger.Debugf("field %s exists as %s, wanted %s; leaving it unchanged", req.Name, existing.DataType, req.DataType)
			}
			report.add(StageFields, req.Name, StatusExists, "")
			continue
		}

		p.logger.Infof("Creating field: %s", req.Name)
		if err := p.create(ctx, boardID, req); err != nil {
			p.logger.Warningf("failed to create field %s: %v", req.Name, err)
			report.add(StageFields, req.Name, StatusSkipped, err.Error())
			continue
		}
		createdAny = true
		report.add(StageFields, req.Name, StatusCreated, "")
	}

	if createdAny {
		if cache, err = p.load(ctx, boardID); err != nil {
			return nil, report, fmt.Errorf("failed to refresh fields: %w", err)
		}
	}

	return cache.fields, report, nil
}

type boardFieldsResponse struct {
	Node *struct {
		Fields struct {
			Nodes []BoardField `json:"nodes"`
		} `json:"fields"`
	} `json:"node"`
}

func (p *FieldProvisioner) load(ctx context.Context, boardID string) (*fieldCache, error) {
	var resp boardFieldsResponse
	vars := map[string]interface{}{"projectId": boardID}
	if err := p.api.GraphQL(ctx, boardFieldsQuery, vars, &resp); err != nil {
		return nil, fmt.Errorf("failed to read board fields: %w", err)
	}
	if resp.Node == nil {
		return nil, &ghapi.NotFoundError{Op: "graphql BoardFields", Message: "board " + boardID}
	}

	cache := &fieldCache{}
	for _, f := range resp.Node.Fields.Nodes {
		// Field types outside the fragments above decode as empty objects
		if f.ID == "" {
			continue
		}
		cache.fields = append(cache.fields, f)
	}
	return cache, nil
}

type createFieldResponse struct {
	CreateProjectV2Field struct {
		ProjectV2Field struct {
			ID string `json:"id"`
		} `json:"projectV2Field"`
	} `json:"createProjectV2Field"`
}

func (p *FieldProvisioner) create(ctx context.Context, boardID string, req FieldRequirement) error {
	vars := map[string]interface{}{
		"projectId": boardID,
		"name":      req.Name,
		"dataType":  string(req.DataType),
		"options":   nil,
	}
	if req.DataType == DataTypeSingleSelect && len(req.Options) > 0 {
		options := make([]map[string]string, 0, len(req.Options))
		for i, name := range req.Options {
			options = append(options, map[string]string{
				"name":        name,
				"color":       optionColors[i%len(optionColors)],
				"description": name,
			})
		}
		vars["options"] = options
	}

	var resp createFieldResponse
	if err := p.api.GraphQL(ctx, createBoardFieldMutation, vars, &resp); err != nil {
		return err
	}
	if resp.CreateProjectV2Field.ProjectV2Field.ID == "" {
		return &ghapi.SchemaError{Op: "graphql CreateBoardField", Detail: "field " + req.Name + " has no id"}
	}
	return nil
}
