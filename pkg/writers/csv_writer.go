package writers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/csv"
)

// CSVWriter writes records to a CSV file with a header row. Nulls are
// written as empty fields.
type CSVWriter struct {
	writer *csv.Writer
	file   *os.File
}

// NewCSVWriter creates a new CSV writer.
func NewCSVWriter(opts Options) (RecordWriter, error) {
	if opts.Path == "" {
		return nil, errors.New("path is required for CSV writer")
	}
	file, err := os.Create(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV file: %w", err)
	}
	return &CSVWriter{file: file}, nil
}

// Write writes a record to the file.
func (w *CSVWriter) Write(ctx context.Context, record arrow.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.writer == nil {
		w.writer = csv.NewWriter(w.file, record.Schema(), csv.WithHeader(true), csv.WithNullWriter(""))
	}
	if err := w.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Close flushes buffered rows and closes the file.
func (w *CSVWriter) Close() error {
	var err error
	if w.writer != nil {
		err = w.writer.Flush()
	}
	if closeErr := w.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
