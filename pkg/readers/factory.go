// Package readers discovers the columns and distinct values of local
// CSV, Parquet and Arrow IPC files.
package readers

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// Options configures a reader.
type Options struct {
	// Path is the local file to read.
	Path string

	// BatchSize is the number of rows per record. Defaults to 10000.
	BatchSize int64
}

func (o Options) batchSize() int64 {
	if o.BatchSize <= 0 {
		return 10000
	}
	return o.BatchSize
}

// ColumnReader streams a file as Arrow records.
type ColumnReader interface {
	// Schema returns the Arrow schema of the file.
	Schema() *arrow.Schema

	// Next returns the next record, or io.EOF. The record is only valid
	// until the following call.
	Next(ctx context.Context) (arrow.Record, error)

	// Close releases the file and any buffered records.
	Close() error
}

// Factory creates a reader based on the file type.
type Factory struct {
	// registered readers by type
	readers map[string]Creator
}

// Creator is a function that creates a reader from options.
type Creator func(opts Options) (ColumnReader, error)

// NewFactory creates a new reader factory.
func NewFactory() *Factory {
	return &Factory{
		readers: make(map[string]Creator),
	}
}

// Register registers a creator for a reader type.
func (f *Factory) Register(typ string, creator Creator) {
	f.readers[typ] = creator
}

// Types lists the registered reader types.
func (f *Factory) Types() []string {
	types := make([]string, 0, len(f.readers))
	for typ := range f.readers {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// Create creates a reader of the given type.
func (f *Factory) Create(typ string, opts Options) (ColumnReader, error) {
	creator, ok := f.readers[typ]
	if !ok {
		return nil, fmt.Errorf("unsupported reader type: %s", typ)
	}
	return creator(opts)
}

// Open creates a reader for path, detecting the type from its extension.
func (f *Factory) Open(path string) (ColumnReader, error) {
	typ, err := DetectType(path)
	if err != nil {
		return nil, err
	}
	return f.Create(typ, Options{Path: path})
}

// DetectType maps a file extension to a reader type.
func DetectType(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "csv", nil
	case ".parquet", ".pq":
		return "parquet", nil
	case ".arrow", ".feather", ".ipc":
		return "arrow", nil
	}
	return "", fmt.Errorf("cannot detect file type of %s", path)
}

// DefaultFactory is the default reader factory with built-in reader types.
var DefaultFactory = NewFactory()

// init registers built-in reader types.
func init() {
	DefaultFactory.Register("csv", NewCSVReader)
	DefaultFactory.Register("parquet", NewParquetReader)
	DefaultFactory.Register("arrow", NewArrowReader)
}
