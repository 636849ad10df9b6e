package readers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// ParquetReader reads a Parquet file in batches.
type ParquetReader struct {
	schema      *arrow.Schema
	fileReader  *file.Reader
	arrowReader *pqarrow.FileReader
	records     pqarrow.RecordReader
	file        *os.File
	totalRows   int64
}

// NewParquetReader opens a Parquet file and reads its Arrow schema.
func NewParquetReader(opts Options) (ColumnReader, error) {
	if opts.Path == "" {
		return nil, errors.New("path is required for Parquet reader")
	}

	f, err := os.Open(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Parquet file: %w", err)
	}

	// Create parquet file reader - file is a ReaderAtSeeker
	parquetReader, err := file.NewParquetReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create Parquet file reader: %w", err)
	}

	arrowProps := pqarrow.ArrowReadProperties{
		Parallel:  true,
		BatchSize: opts.batchSize(),
	}
	arrowReader, err := pqarrow.NewFileReader(parquetReader, arrowProps, memory.NewGoAllocator())
	if err != nil {
		parquetReader.Close()
		f.Close()
		return nil, fmt.Errorf("failed to create Arrow reader: %w", err)
	}

	schema, err := arrowReader.Schema()
	if err != nil {
		parquetReader.Close()
		f.Close()
		return nil, fmt.Errorf("failed to get schema: %w", err)
	}

	return &ParquetReader{
		schema:      schema,
		fileReader:  parquetReader,
		arrowReader: arrowReader,
		file:        f,
		totalRows:   parquetReader.NumRows(),
	}, nil
}

// Schema returns the schema of the file.
func (r *ParquetReader) Schema() *arrow.Schema {
	return r.schema
}

// NumRows returns the row count from the file metadata.
func (r *ParquetReader) NumRows() int64 {
	return r.totalRows
}

// Next returns the next record batch.
func (r *ParquetReader) Next(ctx context.Context) (arrow.Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if r.records == nil {
		if r.arrowReader == nil {
			return nil, io.EOF
		}
		// nil indices read every column of every row group
		rr, err := r.arrowReader.GetRecordReader(ctx, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read Parquet file: %w", err)
		}
		r.records = rr
	}
	if !r.records.Next() {
		if err := r.records.Err(); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to read Parquet batch: %w", err)
		}
		return nil, io.EOF
	}
	return r.records.Record(), nil
}

// Close closes the reader and releases resources.
func (r *ParquetReader) Close() error {
	if r.records != nil {
		r.records.Release()
		r.records = nil
	}
	r.arrowReader = nil

	var err error
	if r.fileReader != nil {
		if err2 := r.fileReader.Close(); err2 != nil && err == nil {
			err = err2
		}
		r.fileReader = nil
	}
	if r.file != nil {
		if err2 := r.file.Close(); err2 != nil && err == nil {
			err = err2
		}
		r.file = nil
	}
	return err
}
