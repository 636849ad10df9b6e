package readers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/TFMV/deltaflow/pkg/core"
)

// Inspect reads the schema of a local file and describes it as a FileRef
// whose ID is the path.
func Inspect(path string) (core.FileRef, error) {
	return DefaultFactory.Inspect(path)
}

// Inspect reads the schema of a local file with the factory's readers.
func (f *Factory) Inspect(path string) (core.FileRef, error) {
	r, err := f.Open(path)
	if err != nil {
		return core.FileRef{}, err
	}
	defer r.Close()

	schema := r.Schema()
	ref := core.FileRef{ID: path, Name: filepath.Base(path), Columns: make([]string, 0, schema.NumFields())}
	for _, field := range schema.Fields() {
		ref.Columns = append(ref.Columns, field.Name)
	}
	return ref, nil
}

// LocalValues implements core.ValueFetcher over local files. File IDs are
// paths.
type LocalValues struct {
	factory *Factory
}

var _ core.ValueFetcher = (*LocalValues)(nil)

// NewLocalValues creates a value source reading through factory, or
// DefaultFactory when nil.
func NewLocalValues(factory *Factory) *LocalValues {
	if factory == nil {
		factory = DefaultFactory
	}
	return &LocalValues{factory: factory}
}

// ColumnUniqueValues scans column and returns its distinct non-null values
// in first-seen order, stopping after limit values when limit is positive.
func (l *LocalValues) ColumnUniqueValues(ctx context.Context, fileID, column string, limit int) (*core.UniqueValues, error) {
	r, err := l.factory.Open(fileID)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	indices := r.Schema().FieldIndices(column)
	if len(indices) == 0 {
		return nil, fmt.Errorf("column %q not found in %s", column, fileID)
	}
	idx := indices[0]

	out := &core.UniqueValues{FileID: fileID, ColumnName: column, Values: []string{}}
	seen := make(map[string]struct{})
	for {
		rec, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		col := rec.Column(idx)
		for i := 0; i < col.Len(); i++ {
			if col.IsNull(i) {
				continue
			}
			v := col.ValueStr(i)
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			if limit > 0 && len(out.Values) >= limit {
				out.IsTruncated = true
				continue
			}
			out.Values = append(out.Values, v)
		}
	}
	out.TotalUnique = len(seen)
	return out, nil
}
