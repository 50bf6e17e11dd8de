// Package provision reconciles a plan against GitHub: it creates or updates
// labels, creates issues, creates a Projects board with the custom fields the
// roadmap needs, and links every created issue to the board with its
// priority, size and phase dates.
package provision

import (
	"context"
	"fmt"
	"strings"
)

// API is the transport contract the engine depends on. ghapi.Client
// implements it.
type API interface {
	REST(ctx context.Context, method, path string, body, out interface{}) error
	GraphQL(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error
}

// Logger receives progress and per-item diagnostics.
type Logger interface {
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// CreatedIssue is an issue the service accepted. Index is its position in
// PlanSpec.Issues, so roadmap phases resolve to the right issue even when
// earlier creations failed.
type CreatedIssue struct {
	Index  int    `json:"index"`
	Number int    `json:"number"`
	URL    string `json:"url"`
	NodeID string `json:"-"`
}

// Board is a Projects (v2) board created for one run.
type Board struct {
	ID     string `json:"id"`
	Number int    `json:"number"`
	URL    string `json:"url"`
}

// DataType is the type of a board field.
type DataType string

const (
	DataTypeText         DataType = "TEXT"
	DataTypeSingleSelect DataType = "SINGLE_SELECT"
	DataTypeDate         DataType = "DATE"
	DataTypeNumber       DataType = "NUMBER"
	DataTypeIteration    DataType = "ITERATION"
)

// FieldOption is one option of a single-select field.
type FieldOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BoardField is a field definition on a board.
type BoardField struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	DataType DataType      `json:"dataType"`
	Options  []FieldOption `json:"options,omitempty"`
}

// Option finds a select option by name, ignoring case.
func (f BoardField) Option(name string) (FieldOption, bool) {
	for _, opt := range f.Options {
		if strings.EqualFold(opt.Name, name) {
			return opt, true
		}
	}
	return FieldOption{}, false
}

// FieldRequirement is a field the board must carry.
type FieldRequirement struct {
	Name     string
	DataType DataType
	Options  []string
}

// Field names written by the board linker.
const (
	FieldPriority   = "Priority"
	FieldSize       = "Size"
	FieldStartDate  = "Start Date"
	FieldTargetDate = "Target Date"
)

// RequiredFields returns the fields every provisioned board needs.
func RequiredFields() []FieldRequirement {
	return []FieldRequirement{
		{Name: FieldPriority, DataType: DataTypeSingleSelect, Options: []string{"High", "Medium", "Low"}},
		{Name: FieldSize, DataType: DataTypeSingleSelect, Options: []string{"S", "M", "L", "XL"}},
		{Name: FieldStartDate, DataType: DataTypeDate},
		{Name: FieldTargetDate, DataType: DataTypeDate},
	}
}

// FieldValue is the value written to one field of one board item.
type FieldValue struct {
	text     *string
	date     string
	optionID string
	number   *float64
}

// TextValue is a value for a TEXT field.
func TextValue(s string) FieldValue { return FieldValue{text: &s} }

// DateValue is a value for a DATE field (YYYY-MM-DD).
func DateValue(date string) FieldValue { return FieldValue{date: date} }

// OptionValue selects a single-select option by id.
func OptionValue(optionID string) FieldValue { return FieldValue{optionID: optionID} }

// NumberValue is a value for a NUMBER field.
func NumberValue(n float64) FieldValue { return FieldValue{number: &n} }

// input renders the ProjectV2FieldValue input object.
func (v FieldValue) input() (map[string]interface{}, error) {
	switch {
	case v.text != nil:
		return map[string]interface{}{"text": *v.text}, nil
	case v.date != "":
		return map[string]interface{}{"date": v.date}, nil
	case v.optionID != "":
		return map[string]interface{}{"singleSelectOptionId": v.optionID}, nil
	case v.number != nil:
		return map[string]interface{}{"number": *v.number}, nil
	default:
		return nil, fmt.Errorf("empty field value")
	}
}

// IssueMetadata is the roadmap data for one created issue.
type IssueMetadata struct {
	StartDate string
	EndDate   string
	Phase     string
	Priority  string
	Size      string
}

// splitRepo splits "owner/name".
func splitRepo(repo string) (owner, name string, err error) {
	parts := strings.Split(repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository %q: expected owner/name", repo)
	}
	return parts[0], parts[1], nil
}
