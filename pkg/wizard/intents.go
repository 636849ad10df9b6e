package wizard

import (
	"errors"
	"fmt"
	"slices"

	"github.com/TFMV/deltaflow/pkg/core"
)

// ErrWrongStep is returned when an intent is not allowed at the current step.
var ErrWrongStep = errors.New("intent not allowed at current step")

// Intent is a state change dispatched to a Controller.
type Intent interface {
	// apply mutates the controller state under its lock. A true result
	// requests a new submission.
	apply(c *Controller) (bool, error)
}

// SelectMethod chooses how the configuration is built. Manual and AI move
// forward immediately; load opens the external rule picker instead.
type SelectMethod struct {
	Method Method
}

func (in SelectMethod) apply(c *Controller) (bool, error) {
	s := &c.state
	if !in.Method.Valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidMethod, in.Method)
	}
	if s.Step != StepRuleManagement {
		return false, fmt.Errorf("%w: method is chosen at %s, not %s", ErrWrongStep, StepRuleManagement, s.Step)
	}
	s.Method = in.Method
	if in.Method == MethodLoad {
		s.RulePickerOpen = true
		return false, nil
	}
	return Next{}.apply(c)
}

// CloseRulePicker dismisses the rule picker without loading anything.
type CloseRulePicker struct{}

func (CloseRulePicker) apply(c *Controller) (bool, error) {
	c.state.RulePickerOpen = false
	return false, nil
}

// Next advances one step. Review only advances when a key rule exists.
type Next struct{}

func (Next) apply(c *Controller) (bool, error) {
	s := &c.state
	if s.Step == StepReview && !s.CanGenerate() {
		return false, ErrNoKeyRules
	}
	step, err := nextStep(s.Step, s.Method)
	if err != nil {
		return false, err
	}
	s.Step = step
	return false, nil
}

// Prev moves back one step.
type Prev struct{}

func (Prev) apply(c *Controller) (bool, error) {
	s := &c.state
	step, err := prevStep(s.Step, s.Method)
	if err != nil {
		return false, err
	}
	s.Step = step
	return false, nil
}

// Resubmit sends the current configuration again from the generate view.
type Resubmit struct{}

func (Resubmit) apply(c *Controller) (bool, error) {
	if c.state.Step != StepGenerateView {
		return false, ErrNotAtGenerateView
	}
	return true, nil
}

// AddRule appends a default rule of Kind.
type AddRule struct {
	Kind RuleKind
}

func (in AddRule) apply(c *Controller) (bool, error) {
	rules, err := c.state.rules(in.Kind)
	if err != nil {
		return false, err
	}
	*rules = AppendRule(*rules, in.Kind)
	c.state.reconcile()
	return false, nil
}

// UpdateRule sets one field of a rule.
type UpdateRule struct {
	Kind  RuleKind
	Index int
	Field RuleField
	Value string
}

func (in UpdateRule) apply(c *Controller) (bool, error) {
	rules, err := c.state.rules(in.Kind)
	if err != nil {
		return false, err
	}
	updated, err := SetRuleField(*rules, in.Index, in.Field, in.Value)
	if err != nil {
		return false, err
	}
	*rules = updated
	c.state.reconcile()
	return false, nil
}

// RemoveRule deletes a rule.
type RemoveRule struct {
	Kind  RuleKind
	Index int
}

func (in RemoveRule) apply(c *Controller) (bool, error) {
	rules, err := c.state.rules(in.Kind)
	if err != nil {
		return false, err
	}
	updated, err := DeleteRule(*rules, in.Index)
	if err != nil {
		return false, err
	}
	*rules = updated
	c.state.reconcile()
	return false, nil
}

// AddFilter appends an empty filter for File.
type AddFilter struct {
	File core.FileKey
}

func (in AddFilter) apply(c *Controller) (bool, error) {
	if in.File.Index() < 0 {
		return false, fmt.Errorf("%w: %q", ErrUnknownFile, in.File)
	}
	c.state.Filters[in.File] = AppendFilter(c.state.Filters[in.File])
	return false, nil
}

// UpdateFilterColumn changes the column of a filter, clearing its values
// and the cached values of the previous column.
type UpdateFilterColumn struct {
	File   core.FileKey
	Index  int
	Column string
}

func (in UpdateFilterColumn) apply(c *Controller) (bool, error) {
	i := in.File.Index()
	if i < 0 {
		return false, fmt.Errorf("%w: %q", ErrUnknownFile, in.File)
	}
	updated, previous, err := SetFilterColumn(c.state.Filters[in.File], in.Index, in.Column)
	if err != nil {
		return false, err
	}
	c.state.Filters[in.File] = updated
	if c.values != nil && previous != "" && previous != in.Column {
		c.values.Invalidate(c.state.Files[i].ID, previous)
	}
	return false, nil
}

// UpdateFilterValues replaces the values of a filter.
type UpdateFilterValues struct {
	File   core.FileKey
	Index  int
	Values []string
}

func (in UpdateFilterValues) apply(c *Controller) (bool, error) {
	if in.File.Index() < 0 {
		return false, fmt.Errorf("%w: %q", ErrUnknownFile, in.File)
	}
	updated, err := SetFilterValues(c.state.Filters[in.File], in.Index, in.Values)
	if err != nil {
		return false, err
	}
	c.state.Filters[in.File] = updated
	return false, nil
}

// RemoveFilter deletes a filter.
type RemoveFilter struct {
	File  core.FileKey
	Index int
}

func (in RemoveFilter) apply(c *Controller) (bool, error) {
	if in.File.Index() < 0 {
		return false, fmt.Errorf("%w: %q", ErrUnknownFile, in.File)
	}
	updated, err := DeleteFilter(c.state.Filters[in.File], in.Index)
	if err != nil {
		return false, err
	}
	c.state.Filters[in.File] = updated
	return false, nil
}

// ToggleColumn flips an optional output column. Columns the file does not
// have can be deselected but not selected.
type ToggleColumn struct {
	File   core.FileKey
	Column string
}

func (in ToggleColumn) apply(c *Controller) (bool, error) {
	i := in.File.Index()
	if i < 0 {
		return false, fmt.Errorf("%w: %q", ErrUnknownFile, in.File)
	}
	s := &c.state
	if !slices.Contains(s.available(i), in.Column) && !slices.Contains(s.SelectedColumns[i], in.Column) {
		return false, fmt.Errorf("%w: %q in %s", ErrUnknownColumn, in.Column, in.File)
	}
	s.SelectedColumns[i] = ToggleSelection(s.SelectedColumns[i], s.MandatoryColumns(i), in.Column)
	return false, nil
}

// SelectAllColumns selects every available column of File.
type SelectAllColumns struct {
	File core.FileKey
}

func (in SelectAllColumns) apply(c *Controller) (bool, error) {
	i := in.File.Index()
	if i < 0 {
		return false, fmt.Errorf("%w: %q", ErrUnknownFile, in.File)
	}
	c.state.SelectedColumns[i] = AllColumns(c.state.available(i))
	return false, nil
}

// DeselectAllColumns keeps only the mandatory columns of File.
type DeselectAllColumns struct {
	File core.FileKey
}

func (in DeselectAllColumns) apply(c *Controller) (bool, error) {
	i := in.File.Index()
	if i < 0 {
		return false, fmt.Errorf("%w: %q", ErrUnknownFile, in.File)
	}
	c.state.SelectedColumns[i] = MandatoryOnly(c.state.MandatoryColumns(i))
	return false, nil
}

// SetRequirements replaces the free-text user requirements.
type SetRequirements struct {
	Text string
}

func (in SetRequirements) apply(c *Controller) (bool, error) {
	c.state.UserRequirements = in.Text
	return false, nil
}

// LoadConfig replaces rules, selections, filters and requirements with a
// saved configuration. Loading from the rule management step continues to
// filter data.
type LoadConfig struct {
	Config core.DeltaConfig
}

func (in LoadConfig) apply(c *Controller) (bool, error) {
	cfg := in.Config.Clone()
	if cfg.Version != "" && cfg.Version != core.SchemaVersion {
		return false, fmt.Errorf("%w: %q", core.ErrUnsupportedVersion, cfg.Version)
	}
	s := &c.state

	s.KeyRules = nonNilRules(cfg.KeyRules)
	for i := range s.KeyRules {
		s.KeyRules[i].IsKey = true
	}
	s.ComparisonRules = nonNilRules(cfg.ComparisonRules)
	for i := range s.ComparisonRules {
		s.ComparisonRules[i].IsKey = false
	}

	s.SelectedColumns = [2][]string{
		nonNilStrings(cfg.SelectedColumnsFileA),
		nonNilStrings(cfg.SelectedColumnsFileB),
	}
	for file := range 2 {
		for _, col := range s.MandatoryColumns(file) {
			if !slices.Contains(s.SelectedColumns[file], col) {
				s.SelectedColumns[file] = append(s.SelectedColumns[file], col)
			}
		}
	}

	s.Filters = map[core.FileKey][]core.FileFilter{}
	for i, key := range []core.FileKey{core.File0, core.File1} {
		filters, ok := cfg.FileFilters[key]
		if !ok && i < len(cfg.Files) {
			filters = cfg.Files[i].Filter
		}
		s.Filters[key] = nonNilFilters(filters)
	}

	s.UserRequirements = cfg.UserRequirements
	s.RulePickerOpen = false
	if s.Step == StepRuleManagement {
		if s.Method == MethodNone {
			s.Method = MethodLoad
		}
		s.Step = StepFilterData
	}
	return false, nil
}
