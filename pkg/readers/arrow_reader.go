package readers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ArrowReader reads an Arrow IPC file one record batch at a time.
type ArrowReader struct {
	reader *ipc.FileReader
	file   *os.File
	next   int
}

// NewArrowReader opens an Arrow IPC (Feather v2) file.
func NewArrowReader(opts Options) (ColumnReader, error) {
	if opts.Path == "" {
		return nil, errors.New("path is required for Arrow reader")
	}

	f, err := os.Open(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Arrow file: %w", err)
	}
	reader, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create Arrow IPC reader: %w", err)
	}
	return &ArrowReader{reader: reader, file: f}, nil
}

// Schema returns the schema of the file.
func (r *ArrowReader) Schema() *arrow.Schema {
	return r.reader.Schema()
}

// Next returns the next record batch. Batch sizes are those of the file.
func (r *ArrowReader) Next(ctx context.Context) (arrow.Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if r.reader == nil || r.next >= r.reader.NumRecords() {
		return nil, io.EOF
	}
	rec, err := r.reader.Record(r.next)
	if err != nil {
		return nil, fmt.Errorf("failed to read record %d: %w", r.next, err)
	}
	r.next++
	return rec, nil
}

// Close closes the reader and releases resources.
func (r *ArrowReader) Close() error {
	var err error
	if r.reader != nil {
		err = r.reader.Close()
		r.reader = nil
	}
	if r.file != nil {
		if err2 := r.file.Close(); err2 != nil && err == nil {
			err = err2
		}
		r.file = nil
	}
	return err
}
