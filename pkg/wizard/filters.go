package wizard

import (
	"fmt"
	"slices"

	"github.com/TFMV/deltaflow/pkg/core"
)

// AppendFilter appends an empty filter.
func AppendFilter(filters []core.FileFilter) []core.FileFilter {
	return append(core.CloneFilters(filters), core.FileFilter{Column: "", Values: []string{}})
}

// SetFilterColumn sets the column of the filter at index. Values are
// cleared when the column changes. The previous column is returned so the
// caller can invalidate cached values.
func SetFilterColumn(filters []core.FileFilter, index int, column string) ([]core.FileFilter, string, error) {
	if index < 0 || index >= len(filters) {
		return filters, "", fmt.Errorf("%w: filter %d of %d", ErrIndexOutOfRange, index, len(filters))
	}
	out := core.CloneFilters(filters)
	previous := out[index].Column
	if previous != column {
		out[index].Values = []string{}
	}
	out[index].Column = column
	return out, previous, nil
}

// SetFilterValues replaces the values of the filter at index.
func SetFilterValues(filters []core.FileFilter, index int, values []string) ([]core.FileFilter, error) {
	if index < 0 || index >= len(filters) {
		return filters, fmt.Errorf("%w: filter %d of %d", ErrIndexOutOfRange, index, len(filters))
	}
	out := core.CloneFilters(filters)
	if values == nil {
		values = []string{}
	}
	out[index].Values = slices.Clone(values)
	return out, nil
}

// DeleteFilter deletes the filter at index.
func DeleteFilter(filters []core.FileFilter, index int) ([]core.FileFilter, error) {
	if index < 0 || index >= len(filters) {
		return filters, fmt.Errorf("%w: filter %d of %d", ErrIndexOutOfRange, index, len(filters))
	}
	out := make([]core.FileFilter, 0, len(filters)-1)
	out = append(out, core.CloneFilters(filters[:index])...)
	return append(out, core.CloneFilters(filters[index+1:])...), nil
}
