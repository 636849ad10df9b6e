package writers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// JSONWriter writes records as a JSON array of row objects.
type JSONWriter struct {
	file     *os.File
	firstRow bool
}

// NewJSONWriter creates a new JSON writer.
func NewJSONWriter(opts Options) (RecordWriter, error) {
	if opts.Path == "" {
		return nil, errors.New("path is required for JSON writer")
	}
	file, err := os.Create(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create JSON file: %w", err)
	}
	if _, err := file.WriteString("["); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write opening bracket: %w", err)
	}
	return &JSONWriter{file: file, firstRow: true}, nil
}

// Write writes every row of record.
func (w *JSONWriter) Write(ctx context.Context, record arrow.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	schema := record.Schema()
	for i := 0; i < int(record.NumRows()); i++ {
		row := make(map[string]any, record.NumCols())
		for j, col := range record.Columns() {
			row[schema.Field(j).Name] = value(col, i)
		}

		sep := ",\n  "
		if w.firstRow {
			sep = "\n  "
			w.firstRow = false
		}
		data, err := json.MarshalIndent(row, "  ", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode row: %w", err)
		}
		if _, err := w.file.WriteString(sep + string(data)); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}

// value returns the JSON value of row i. Types without a native JSON
// rendering use their string form.
func value(col arrow.Array, i int) any {
	if col.IsNull(i) {
		return nil
	}
	switch col := col.(type) {
	case *array.Int64:
		return col.Value(i)
	case *array.Int32:
		return col.Value(i)
	case *array.Float64:
		return col.Value(i)
	case *array.Float32:
		return col.Value(i)
	case *array.Boolean:
		return col.Value(i)
	case *array.String:
		return col.Value(i)
	}
	return col.ValueStr(i)
}

// Close closes the array and the file.
func (w *JSONWriter) Close() error {
	closing := "]\n"
	if !w.firstRow {
		closing = "\n]\n"
	}
	_, err := w.file.WriteString(closing)
	if closeErr := w.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
