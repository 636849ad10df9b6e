package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() DeltaConfig {
	tol := 0.01
	return DeltaConfig{
		Version: SchemaVersion,
		Files:   []FileSpec{{Name: "old.csv", Extract: []string{}}, {Name: "new.csv", Extract: []string{}}},
		KeyRules: []DeltaRule{
			{LeftFileColumn: "id", RightFileColumn: "id", MatchType: MatchEquals, IsKey: true},
		},
		ComparisonRules: []DeltaRule{
			{LeftFileColumn: "amount", RightFileColumn: "amt", MatchType: MatchNumericTolerance, ToleranceValue: &tol},
		},
		SelectedColumnsFileA: []string{"id", "amount"},
		SelectedColumnsFileB: []string{"id", "amt", "date"},
		FileFilters: map[FileKey][]FileFilter{
			File0: {{Column: "region", Values: []string{"EU"}}},
			File1: {},
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*DeltaConfig)
		wantErr error
	}{
		{name: "valid", mutate: func(*DeltaConfig) {}},
		{name: "empty version is v1", mutate: func(c *DeltaConfig) { c.Version = "" }},
		{name: "unknown version", mutate: func(c *DeltaConfig) { c.Version = "v2" }, wantErr: ErrUnsupportedVersion},
		{name: "no key rules", mutate: func(c *DeltaConfig) { c.KeyRules = nil }, wantErr: ErrNoKeyRules},
		{name: "key rule not flagged", mutate: func(c *DeltaConfig) { c.KeyRules[0].IsKey = false }, wantErr: ErrInvalidRule},
		{name: "comparison rule flagged", mutate: func(c *DeltaConfig) { c.ComparisonRules[0].IsKey = true }, wantErr: ErrInvalidRule},
		{name: "missing column", mutate: func(c *DeltaConfig) { c.KeyRules[0].RightFileColumn = "" }, wantErr: ErrInvalidRule},
		{name: "bad match type", mutate: func(c *DeltaConfig) { c.KeyRules[0].MatchType = "fuzzy" }, wantErr: ErrInvalidRule},
		{name: "negative tolerance", mutate: func(c *DeltaConfig) {
			v := -1.0
			c.ComparisonRules[0].ToleranceValue = &v
		}, wantErr: ErrInvalidRule},
		{name: "rule column not selected", mutate: func(c *DeltaConfig) {
			c.SelectedColumnsFileB = []string{"id"}
		}, wantErr: ErrMissingSelectedColumn},
		{name: "filter without column", mutate: func(c *DeltaConfig) {
			c.FileFilters[File1] = []FileFilter{{Values: []string{"x"}}}
		}, wantErr: ErrInvalidFilter},
		{name: "unknown filter key", mutate: func(c *DeltaConfig) {
			c.FileFilters["file_2"] = nil
		}, wantErr: ErrInvalidFilter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := validConfig()
	clone := orig.Clone()
	require.Equal(t, orig, clone)

	*clone.ComparisonRules[0].ToleranceValue = 5
	clone.KeyRules[0].LeftFileColumn = "other"
	clone.SelectedColumnsFileA[0] = "other"
	clone.FileFilters[File0][0].Values[0] = "US"
	clone.Files[0].Name = "other.csv"

	assert.InDelta(t, 0.01, *orig.ComparisonRules[0].ToleranceValue, 1e-12)
	assert.Equal(t, "id", orig.KeyRules[0].LeftFileColumn)
	assert.Equal(t, "id", orig.SelectedColumnsFileA[0])
	assert.Equal(t, "EU", orig.FileFilters[File0][0].Values[0])
	assert.Equal(t, "old.csv", orig.Files[0].Name)
}

func TestCloneHelpersPreserveNil(t *testing.T) {
	assert.Nil(t, CloneRules(nil))
	assert.Nil(t, CloneFilters(nil))
	assert.NotNil(t, CloneRules([]DeltaRule{}))
	assert.NotNil(t, CloneFilters([]FileFilter{}))
}

func TestDeltaConfigWireFormat(t *testing.T) {
	cfg := validConfig()
	cfg.ComparisonRules[0].ToleranceValue = nil
	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"Files", "KeyRules", "ComparisonRules", "selected_columns_file_a", "selected_columns_file_b", "file_filters", "user_requirements"} {
		assert.Contains(t, raw, key)
	}
	assert.JSONEq(t, `{"LeftFileColumn":"amount","RightFileColumn":"amt","MatchType":"numeric_tolerance","ToleranceValue":null,"IsKey":false}`,
		string(mustMarshal(t, cfg.ComparisonRules[0])))
	assert.JSONEq(t, `{"file_0":[{"column":"region","values":["EU"]}],"file_1":[]}`, string(raw["file_filters"]))
}

func TestEnumHelpers(t *testing.T) {
	assert.True(t, MatchDateEquals.Valid())
	assert.False(t, MatchType("").Valid())
	assert.Equal(t, 1, File1.Index())
	assert.Equal(t, -1, FileKey("file_2").Index())
	assert.Equal(t, File1, FileKeyFor(1))
	assert.Equal(t, "xlsx", FormatExcel.Extension())
	assert.Equal(t, "csv", FormatCSV.Extension())
	assert.True(t, ResultNewlyAdded.Valid())
	assert.False(t, ResultType("partial").Valid())
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
