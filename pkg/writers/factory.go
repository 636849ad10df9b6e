// Package writers exports delta result rows to local files in Arrow-backed formats.
package writers

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// Options configures a writer.
type Options struct {
	// Path is the file to create. Existing files are truncated.
	Path string
}

// RecordWriter writes Arrow records to a file.
type RecordWriter interface {
	Write(ctx context.Context, record arrow.Record) error
	Close() error
}

// Factory creates a writer based on the given type.
type Factory struct {
	// registered writers by type
	writers map[string]Creator
}

// Creator is a function that creates a writer from options.
type Creator func(opts Options) (RecordWriter, error)

// NewFactory creates a new writer factory.
func NewFactory() *Factory {
	return &Factory{
		writers: make(map[string]Creator),
	}
}

// Register registers a creator for a writer type.
func (f *Factory) Register(typ string, creator Creator) {
	f.writers[typ] = creator
}

// Types returns the registered writer types in order.
func (f *Factory) Types() []string {
	types := make([]string, 0, len(f.writers))
	for typ := range f.writers {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// Create creates a writer of type typ.
func (f *Factory) Create(typ string, opts Options) (RecordWriter, error) {
	creator, ok := f.writers[typ]
	if !ok {
		return nil, fmt.Errorf("unsupported writer type: %s", typ)
	}
	return creator(opts)
}

// ForPath creates a writer for path, choosing the type from its extension.
func (f *Factory) ForPath(path string) (RecordWriter, error) {
	typ, err := DetectType(path)
	if err != nil {
		return nil, err
	}
	return f.Create(typ, Options{Path: path})
}

// DetectType maps a file extension to a writer type.
func DetectType(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "csv", nil
	case ".parquet", ".pq":
		return "parquet", nil
	case ".arrow", ".feather", ".ipc":
		return "arrow", nil
	case ".json":
		return "json", nil
	}
	return "", fmt.Errorf("cannot detect output type of %s: use .csv, .parquet, .arrow or .json", path)
}

// DefaultFactory is the default writer factory with built-in writer types.
var DefaultFactory = NewFactory()

// init registers built-in writer types.
func init() {
	DefaultFactory.Register("csv", NewCSVWriter)
	DefaultFactory.Register("parquet", NewParquetWriter)
	DefaultFactory.Register("arrow", NewArrowWriter)
	DefaultFactory.Register("json", NewJSONWriter)
}
