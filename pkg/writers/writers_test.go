package writers

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/TFMV/deltaflow/pkg/readers"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rows decodes the way result pages arrive from the backend.
func rows(t *testing.T) []map[string]any {
	t.Helper()
	var out []map[string]any
	require.NoError(t, json.Unmarshal([]byte(`[
		{"id": 1, "amount": 10.5, "region": "EU", "active": true},
		{"id": 2, "amount": 11, "region": null, "active": false, "tags": ["late"]},
		{"id": 3, "amount": 9.25, "region": "US"}
	]`), &out))
	return out
}

func TestRecordFromRowsInfersTypes(t *testing.T) {
	rec := RecordFromRows(nil, rows(t))
	defer rec.Release()

	schema := rec.Schema()
	names := make([]string, schema.NumFields())
	for i, f := range schema.Fields() {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"active", "amount", "id", "region", "tags"}, names)
	assert.Equal(t, int64(3), rec.NumRows())

	types := map[string]arrow.DataType{}
	for _, f := range schema.Fields() {
		types[f.Name] = f.Type
	}
	assert.Equal(t, arrow.FixedWidthTypes.Boolean, types["active"])
	assert.Equal(t, arrow.PrimitiveTypes.Float64, types["amount"])
	assert.Equal(t, arrow.PrimitiveTypes.Int64, types["id"])
	assert.Equal(t, arrow.BinaryTypes.String, types["region"])
	assert.Equal(t, arrow.BinaryTypes.String, types["tags"])

	region := rec.Column(3)
	assert.True(t, region.IsNull(1))
	assert.Equal(t, `["late"]`, rec.Column(4).ValueStr(1))
	assert.True(t, rec.Column(0).IsNull(2))
}

func TestDetectType(t *testing.T) {
	for path, want := range map[string]string{
		"out.csv":     "csv",
		"out.PARQUET": "parquet",
		"out.arrow":   "arrow",
		"out.json":    "json",
	} {
		got, err := DetectType(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}
	_, err := DetectType("out.xlsx")
	assert.Error(t, err)
	assert.Equal(t, []string{"arrow", "csv", "json", "parquet"}, DefaultFactory.Types())
}

func TestWriteRowsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"amended.csv", "amended.parquet", "amended.arrow"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			n, err := WriteRows(context.Background(), path, rows(t))
			require.NoError(t, err)
			assert.Equal(t, int64(3), n)

			ref, err := readers.Inspect(path)
			require.NoError(t, err)
			assert.Equal(t, []string{"active", "amount", "id", "region", "tags"}, ref.Columns)

			got, err := readers.NewLocalValues(nil).ColumnUniqueValues(context.Background(), path, "region", 0)
			require.NoError(t, err)
			assert.Equal(t, []string{"EU", "US"}, got.Values)
		})
	}
}

func TestWriteRowsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deleted.json")
	_, err := WriteRows(context.Background(), path, rows(t))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var back []map[string]any
	require.NoError(t, json.Unmarshal(data, &back))
	require.Len(t, back, 3)
	assert.Equal(t, float64(2), back[1]["id"])
	assert.Nil(t, back[1]["region"])
	assert.Equal(t, "US", back[2]["region"])
}

func TestWriteRowsRejectsEmptyAndUnknown(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteRows(context.Background(), filepath.Join(dir, "empty.csv"), nil)
	assert.ErrorIs(t, err, ErrNoRows)
	assert.NoFileExists(t, filepath.Join(dir, "empty.csv"))

	_, err = WriteRows(context.Background(), filepath.Join(dir, "out.txt"), rows(t))
	assert.ErrorContains(t, err, "cannot detect output type")
}

func TestWriteRowsHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := WriteRows(ctx, filepath.Join(t.TempDir(), "out.csv"), rows(t))
	assert.ErrorIs(t, err, context.Canceled)
}
