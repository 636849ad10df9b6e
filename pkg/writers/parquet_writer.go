package writers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// ParquetWriter writes records to a Snappy-compressed Parquet file.
type ParquetWriter struct {
	writer *pqarrow.FileWriter
	file   *os.File
}

// NewParquetWriter creates a new Parquet writer.
func NewParquetWriter(opts Options) (RecordWriter, error) {
	if opts.Path == "" {
		return nil, errors.New("path is required for Parquet writer")
	}
	file, err := os.Create(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create Parquet file: %w", err)
	}
	// The file writer needs a schema, so it is created with the first record.
	return &ParquetWriter{file: file}, nil
}

// Write writes a record to the file.
func (w *ParquetWriter) Write(ctx context.Context, record arrow.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if w.writer == nil {
		props := parquet.NewWriterProperties(
			parquet.WithCompression(compress.Codecs.Snappy),
			parquet.WithDictionaryDefault(false),
		)
		writer, err := pqarrow.NewFileWriter(record.Schema(), w.file, props, pqarrow.NewArrowWriterProperties())
		if err != nil {
			return fmt.Errorf("failed to create Parquet writer: %w", err)
		}
		w.writer = writer
	}

	if err := w.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Close flushes the footer and closes the file. The Parquet writer closes
// the file itself once it exists.
func (w *ParquetWriter) Close() error {
	if w.writer != nil {
		return w.writer.Close()
	}
	return w.file.Close()
}
