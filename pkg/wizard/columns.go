package wizard

import (
	"slices"

	"github.com/TFMV/deltaflow/pkg/core"
)

// minPartialColumnLen filters out partially typed column names that do not
// match an available column.
const minPartialColumnLen = 3

// MandatoryColumns returns the columns of file (0 or 1) referenced by any
// key or comparison rule, in first-appearance order, key rules first.
func MandatoryColumns(keyRules, comparisonRules []core.DeltaRule, file int, available []string) []string {
	var out []string
	add := func(rules []core.DeltaRule) {
		for _, r := range rules {
			col := r.LeftFileColumn
			if file == 1 {
				col = r.RightFileColumn
			}
			if col == "" || slices.Contains(out, col) {
				continue
			}
			if len(col) < minPartialColumnLen && !slices.Contains(available, col) {
				continue
			}
			out = append(out, col)
		}
	}
	add(keyRules)
	add(comparisonRules)
	return out
}

// OptionalColumns returns the available columns that are not mandatory.
func OptionalColumns(available, mandatory []string) []string {
	out := make([]string, 0, len(available))
	for _, col := range available {
		if !slices.Contains(mandatory, col) {
			out = append(out, col)
		}
	}
	return out
}

// ReconcileColumns recomputes the selection of file after a rule change.
// Prior selections that are neither available nor mandatory are stale
// partial entries and are dropped; the mandatory set is then added.
func ReconcileColumns(keyRules, comparisonRules []core.DeltaRule, prior, available []string, file int) []string {
	mandatory := MandatoryColumns(keyRules, comparisonRules, file, available)

	out := make([]string, 0, len(prior)+len(mandatory))
	for _, col := range prior {
		if slices.Contains(out, col) {
			continue
		}
		if slices.Contains(available, col) || slices.Contains(mandatory, col) {
			out = append(out, col)
		}
	}
	for _, col := range mandatory {
		if !slices.Contains(out, col) {
			out = append(out, col)
		}
	}
	return out
}

// ToggleSelection adds or removes col from selected. Mandatory columns are
// never removed or re-added.
func ToggleSelection(selected, mandatory []string, col string) []string {
	if slices.Contains(mandatory, col) {
		return slices.Clone(selected)
	}
	if i := slices.Index(selected, col); i >= 0 {
		return slices.Delete(slices.Clone(selected), i, i+1)
	}
	return append(slices.Clone(selected), col)
}

// AllColumns returns every available column.
func AllColumns(available []string) []string {
	return slices.Clone(available)
}

// MandatoryOnly returns exactly the mandatory columns.
func MandatoryOnly(mandatory []string) []string {
	if mandatory == nil {
		return []string{}
	}
	return slices.Clone(mandatory)
}
