package core

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrNoKeyRules is returned when a configuration has no key rule.
	ErrNoKeyRules = errors.New("at least one key rule is required")

	// ErrUnsupportedVersion is returned for configurations of an unknown schema version.
	ErrUnsupportedVersion = errors.New("unsupported delta config version")

	// ErrInvalidRule is returned for malformed key or comparison rules.
	ErrInvalidRule = errors.New("invalid rule")

	// ErrMissingSelectedColumn is returned when a rule column is not selected for output.
	ErrMissingSelectedColumn = errors.New("rule column not selected")

	// ErrInvalidFilter is returned for filters without a column.
	ErrInvalidFilter = errors.New("invalid filter")
)

// Validate checks the configuration at the wizard to backend boundary.
func (c *DeltaConfig) Validate() error {
	if c.Version != "" && c.Version != SchemaVersion {
		return fmt.Errorf("%w: %q", ErrUnsupportedVersion, c.Version)
	}
	if len(c.KeyRules) == 0 {
		return ErrNoKeyRules
	}

	for i, rule := range c.KeyRules {
		if err := rule.validate(true); err != nil {
			return fmt.Errorf("key rule %d: %w", i, err)
		}
		if err := c.checkSelected(rule); err != nil {
			return fmt.Errorf("key rule %d: %w", i, err)
		}
	}
	for i, rule := range c.ComparisonRules {
		if err := rule.validate(false); err != nil {
			return fmt.Errorf("comparison rule %d: %w", i, err)
		}
		if err := c.checkSelected(rule); err != nil {
			return fmt.Errorf("comparison rule %d: %w", i, err)
		}
	}

	for key, filters := range c.FileFilters {
		if key.Index() < 0 {
			return fmt.Errorf("%w: unknown file key %q", ErrInvalidFilter, key)
		}
		for i, f := range filters {
			if f.Column == "" {
				return fmt.Errorf("%w: %s filter %d has no column", ErrInvalidFilter, key, i)
			}
		}
	}
	return nil
}

func (r DeltaRule) validate(key bool) error {
	if r.IsKey != key {
		return fmt.Errorf("%w: IsKey must be %t", ErrInvalidRule, key)
	}
	if r.LeftFileColumn == "" || r.RightFileColumn == "" {
		return fmt.Errorf("%w: both columns are required", ErrInvalidRule)
	}
	if !r.MatchType.Valid() {
		return fmt.Errorf("%w: unknown match type %q", ErrInvalidRule, r.MatchType)
	}
	if r.MatchType == MatchNumericTolerance && r.ToleranceValue != nil && *r.ToleranceValue < 0 {
		return fmt.Errorf("%w: tolerance must not be negative", ErrInvalidRule)
	}
	return nil
}

func (c *DeltaConfig) checkSelected(r DeltaRule) error {
	if !slices.Contains(c.SelectedColumnsFileA, r.LeftFileColumn) {
		return fmt.Errorf("%w: %q in selected_columns_file_a", ErrMissingSelectedColumn, r.LeftFileColumn)
	}
	if !slices.Contains(c.SelectedColumnsFileB, r.RightFileColumn) {
		return fmt.Errorf("%w: %q in selected_columns_file_b", ErrMissingSelectedColumn, r.RightFileColumn)
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c DeltaConfig) Clone() DeltaConfig {
	out := c
	out.Files = make([]FileSpec, len(c.Files))
	for i, f := range c.Files {
		out.Files[i] = FileSpec{
			Name:    f.Name,
			Extract: slices.Clone(f.Extract),
			Filter:  CloneFilters(f.Filter),
		}
	}
	out.KeyRules = CloneRules(c.KeyRules)
	out.ComparisonRules = CloneRules(c.ComparisonRules)
	out.SelectedColumnsFileA = slices.Clone(c.SelectedColumnsFileA)
	out.SelectedColumnsFileB = slices.Clone(c.SelectedColumnsFileB)
	if c.FileFilters != nil {
		out.FileFilters = make(map[FileKey][]FileFilter, len(c.FileFilters))
		for k, v := range c.FileFilters {
			out.FileFilters[k] = CloneFilters(v)
		}
	}
	return out
}

// CloneRules deep-copies a rule list, including tolerance pointers.
func CloneRules(rules []DeltaRule) []DeltaRule {
	if rules == nil {
		return nil
	}
	out := make([]DeltaRule, len(rules))
	for i, r := range rules {
		out[i] = r
		if r.ToleranceValue != nil {
			v := *r.ToleranceValue
			out[i].ToleranceValue = &v
		}
	}
	return out
}

// CloneFilters deep-copies a filter list.
func CloneFilters(filters []FileFilter) []FileFilter {
	if filters == nil {
		return nil
	}
	out := make([]FileFilter, len(filters))
	for i, f := range filters {
		out[i] = FileFilter{Column: f.Column, Values: slices.Clone(f.Values)}
	}
	return out
}
