package writers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// RecordFromRows builds one record from decoded JSON rows. Columns are
// the union of row keys in sorted order, all nullable. A column is int64
// when every value is an integral number, float64 when every value is a
// number, boolean when every value is a bool and string otherwise.
func RecordFromRows(mem memory.Allocator, rows []map[string]any) arrow.Record {
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	seen := map[string]bool{}
	var names []string
	for _, row := range rows {
		for name := range row {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)

	fields := make([]arrow.Field, len(names))
	for i, name := range names {
		fields[i] = arrow.Field{Name: name, Type: inferType(rows, name), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	for i, name := range names {
		appendColumn(b.Field(i), rows, name)
	}
	return b.NewRecord()
}

func inferType(rows []map[string]any, name string) arrow.DataType {
	integral, numeric, boolean, present := true, true, true, false
	for _, row := range rows {
		v, ok := row[name]
		if !ok || v == nil {
			continue
		}
		present = true
		switch v := v.(type) {
		case float64:
			boolean = false
			if v != math.Trunc(v) || math.Abs(v) > 1<<53 {
				integral = false
			}
		case bool:
			integral, numeric = false, false
		default:
			integral, numeric, boolean = false, false, false
		}
	}
	switch {
	case !present:
		return arrow.BinaryTypes.String
	case numeric && integral:
		return arrow.PrimitiveTypes.Int64
	case numeric:
		return arrow.PrimitiveTypes.Float64
	case boolean:
		return arrow.FixedWidthTypes.Boolean
	}
	return arrow.BinaryTypes.String
}

func appendColumn(b array.Builder, rows []map[string]any, name string) {
	for _, row := range rows {
		v, ok := row[name]
		if !ok || v == nil {
			b.AppendNull()
			continue
		}
		switch b := b.(type) {
		case *array.Int64Builder:
			b.Append(int64(v.(float64)))
		case *array.Float64Builder:
			b.Append(v.(float64))
		case *array.BooleanBuilder:
			b.Append(v.(bool))
		case *array.StringBuilder:
			b.Append(stringify(v))
		}
	}
}

func stringify(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case map[string]any, []any:
		data, err := json.Marshal(v)
		if err == nil {
			return string(data)
		}
	}
	return fmt.Sprint(v)
}

// ErrNoRows is returned when there is nothing to export.
var ErrNoRows = errors.New("no rows to write")

// WriteRows writes rows to path in the format of its extension and
// returns the number of rows written.
func WriteRows(ctx context.Context, path string, rows []map[string]any) (int64, error) {
	if len(rows) == 0 {
		return 0, ErrNoRows
	}
	w, err := DefaultFactory.ForPath(path)
	if err != nil {
		return 0, err
	}
	rec := RecordFromRows(nil, rows)
	defer rec.Release()

	if err := w.Write(ctx, rec); err != nil {
		w.Close()
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("closing %s: %w", path, err)
	}
	return rec.NumRows(), nil
}
