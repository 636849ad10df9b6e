package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/TFMV/deltaflow/pkg/core"
	"github.com/TFMV/deltaflow/pkg/wizard"
)

const (
	intentLoadRule                 = "load_rule"
	intentGenerateFromRequirements = "generate_from_requirements"
)

// intentRequest is the JSON envelope of a dispatched intent. Only the
// fields relevant to Type are read.
type intentRequest struct {
	Type   string            `json:"type"`
	Method wizard.Method     `json:"method"`
	Kind   wizard.RuleKind   `json:"kind"`
	Index  int               `json:"index"`
	Field  wizard.RuleField  `json:"field"`
	Value  string            `json:"value"`
	File   core.FileKey      `json:"file"`
	Column string            `json:"column"`
	Values []string          `json:"values"`
	Text   string            `json:"text"`
	Config *core.DeltaConfig `json:"config"`
	RuleID string            `json:"rule_id"`

	intent wizard.Intent
}

var errUnknownIntent = errors.New("unknown intent")

func decodeIntent(body []byte) (*intentRequest, error) {
	var req intentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("invalid intent: %w", err)
	}

	switch req.Type {
	case "select_method":
		req.intent = wizard.SelectMethod{Method: req.Method}
	case "close_rule_picker":
		req.intent = wizard.CloseRulePicker{}
	case "next":
		req.intent = wizard.Next{}
	case "prev":
		req.intent = wizard.Prev{}
	case "resubmit":
		req.intent = wizard.Resubmit{}
	case "add_rule":
		req.intent = wizard.AddRule{Kind: req.Kind}
	case "update_rule":
		req.intent = wizard.UpdateRule{Kind: req.Kind, Index: req.Index, Field: req.Field, Value: req.Value}
	case "remove_rule":
		req.intent = wizard.RemoveRule{Kind: req.Kind, Index: req.Index}
	case "add_filter":
		req.intent = wizard.AddFilter{File: req.File}
	case "update_filter_column":
		req.intent = wizard.UpdateFilterColumn{File: req.File, Index: req.Index, Column: req.Column}
	case "update_filter_values":
		req.intent = wizard.UpdateFilterValues{File: req.File, Index: req.Index, Values: req.Values}
	case "remove_filter":
		req.intent = wizard.RemoveFilter{File: req.File, Index: req.Index}
	case "toggle_column":
		req.intent = wizard.ToggleColumn{File: req.File, Column: req.Column}
	case "select_all_columns":
		req.intent = wizard.SelectAllColumns{File: req.File}
	case "deselect_all_columns":
		req.intent = wizard.DeselectAllColumns{File: req.File}
	case "set_requirements":
		req.intent = wizard.SetRequirements{Text: req.Text}
	case "load_config":
		if req.Config == nil {
			return nil, errors.New("load_config requires a config")
		}
		req.intent = wizard.LoadConfig{Config: *req.Config}
	case intentLoadRule:
		if req.RuleID == "" {
			return nil, errors.New("load_rule requires a rule_id")
		}
	case intentGenerateFromRequirements:
	case "":
		return nil, errors.New("intent type is required")
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownIntent, req.Type)
	}
	return &req, nil
}
