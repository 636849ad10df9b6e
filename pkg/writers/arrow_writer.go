package writers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
)

// ArrowWriter writes records to an Arrow IPC file.
type ArrowWriter struct {
	writer *ipc.FileWriter
	file   *os.File
}

// NewArrowWriter creates a new Arrow IPC writer.
func NewArrowWriter(opts Options) (RecordWriter, error) {
	if opts.Path == "" {
		return nil, errors.New("path is required for Arrow writer")
	}
	file, err := os.Create(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create Arrow file: %w", err)
	}
	return &ArrowWriter{file: file}, nil
}

// Write writes a record to the file.
func (w *ArrowWriter) Write(ctx context.Context, record arrow.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// If this is the first record, initialize the writer
	if w.writer == nil {
		writer, err := ipc.NewFileWriter(w.file, ipc.WithSchema(record.Schema()))
		if err != nil {
			return fmt.Errorf("failed to create Arrow writer: %w", err)
		}
		w.writer = writer
	}

	if err := w.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Close writes the footer and closes the file.
func (w *ArrowWriter) Close() error {
	var err error
	if w.writer != nil {
		err = w.writer.Close()
	}
	if closeErr := w.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
