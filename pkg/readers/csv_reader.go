package readers

import (
	"context"
	stdcsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// CSVReader reads a CSV file with a header row, inferring column types.
type CSVReader struct {
	schema  *arrow.Schema
	file    *os.File
	reader  *csv.Reader
	pending arrow.Record
	last    arrow.Record
}

// NewCSVReader opens a CSV file. The first chunk is read eagerly so the
// schema is known before Next is called. A file with a header and no data
// rows gets an all-string schema and yields no records.
func NewCSVReader(opts Options) (ColumnReader, error) {
	if opts.Path == "" {
		return nil, errors.New("path is required for CSV reader")
	}

	header, hasRows, err := peekCSV(opts.Path)
	if err != nil {
		return nil, err
	}
	if !hasRows {
		return &CSVReader{schema: headerSchema(header)}, nil
	}

	file, err := os.Open(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}

	reader := csv.NewInferringReader(
		file,
		csv.WithChunk(int(opts.batchSize())),
		csv.WithHeader(true),
		csv.WithNullReader(true, ""), // Empty string is treated as null
		csv.WithAllocator(memory.NewGoAllocator()),
	)

	r := &CSVReader{file: file, reader: reader}
	if !reader.Next() {
		err := reader.Err()
		_ = r.Close()
		if err == nil || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("CSV file %s has no readable rows", opts.Path)
		}
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	r.schema = reader.Schema()
	r.pending = reader.Record()
	r.pending.Retain()
	return r, nil
}

// peekCSV reads the header and reports whether at least one data row
// follows it. The inferring reader cannot build a schema without one.
func peekCSV(path string) ([]string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	cr := stdcsv.NewReader(f)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, false, fmt.Errorf("CSV file %s is empty", path)
		}
		return nil, false, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return header, false, nil
		}
		return nil, false, fmt.Errorf("failed to read CSV: %w", err)
	}
	return header, true, nil
}

func headerSchema(header []string) *arrow.Schema {
	fields := make([]arrow.Field, len(header))
	for i, name := range header {
		fields[i] = arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// Schema returns the inferred schema.
func (r *CSVReader) Schema() *arrow.Schema {
	return r.schema
}

// Next returns the next record.
func (r *CSVReader) Next(ctx context.Context) (arrow.Record, error) {
	// Check if context is canceled
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if r.last != nil {
		r.last.Release()
		r.last = nil
	}
	if r.pending != nil {
		r.last, r.pending = r.pending, nil
		return r.last, nil
	}
	if r.reader == nil || !r.reader.Next() {
		if r.reader != nil {
			if err := r.reader.Err(); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("failed to read CSV: %w", err)
			}
		}
		return nil, io.EOF
	}
	return r.reader.Record(), nil
}

// Close closes the reader and releases resources.
func (r *CSVReader) Close() error {
	if r.last != nil {
		r.last.Release()
		r.last = nil
	}
	if r.pending != nil {
		r.pending.Release()
		r.pending = nil
	}
	if r.reader != nil {
		r.reader.Release()
		r.reader = nil
	}
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}
