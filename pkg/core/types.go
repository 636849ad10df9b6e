// Package core provides the core types and interfaces for the deltaflow delta configuration client.
package core

import (
	"context"
	"encoding/json"
	"time"
)

// SchemaVersion tags the DeltaConfig layout produced by this package.
const SchemaVersion = "v1"

// MatchType selects the comparison semantics of a rule.
type MatchType string

const (
	MatchEquals           MatchType = "equals"
	MatchCaseInsensitive  MatchType = "case_insensitive"
	MatchNumericTolerance MatchType = "numeric_tolerance"
	MatchDateEquals       MatchType = "date_equals"
)

// Valid reports whether m is one of the known match types.
func (m MatchType) Valid() bool {
	switch m {
	case MatchEquals, MatchCaseInsensitive, MatchNumericTolerance, MatchDateEquals:
		return true
	}
	return false
}

// FileKey identifies one of the two compared files in filter maps.
type FileKey string

const (
	// File0 is the older/first file.
	File0 FileKey = "file_0"
	// File1 is the newer/second file.
	File1 FileKey = "file_1"
)

// Index returns 0 for File0, 1 for File1 and -1 otherwise.
func (k FileKey) Index() int {
	switch k {
	case File0:
		return 0
	case File1:
		return 1
	}
	return -1
}

// FileKeyFor returns the filter key for a file index.
func FileKeyFor(index int) FileKey {
	if index == 1 {
		return File1
	}
	return File0
}

// DeltaRule is a matching rule, used for both key and comparison rule lists.
type DeltaRule struct {
	// LeftFileColumn is the column name in the older/first file.
	LeftFileColumn string `json:"LeftFileColumn"`

	// RightFileColumn is the column name in the newer/second file.
	RightFileColumn string `json:"RightFileColumn"`

	// MatchType is the comparison semantics.
	MatchType MatchType `json:"MatchType"`

	// ToleranceValue is only meaningful when MatchType is numeric_tolerance.
	ToleranceValue *float64 `json:"ToleranceValue"`

	// IsKey is true for key rules and false for comparison rules.
	IsKey bool `json:"IsKey"`
}

// FileFilter is an OR-set of exact-match values on one column.
// Multiple filters on the same file combine with AND semantics.
type FileFilter struct {
	Column string   `json:"column"`
	Values []string `json:"values"`
}

// FileSpec describes one input file of a delta configuration.
type FileSpec struct {
	Name    string       `json:"Name"`
	Extract []string     `json:"Extract"`
	Filter  []FileFilter `json:"Filter"`
}

// DeltaConfig is the configuration assembled by the wizard and sent to the backend.
type DeltaConfig struct {
	// Version tags the schema layout. Empty is read as v1.
	Version string `json:"version,omitempty"`

	// Files holds one entry per input file.
	Files []FileSpec `json:"Files"`

	// KeyRules are the composite join-key rules. At least one is required.
	KeyRules []DeltaRule `json:"KeyRules"`

	// ComparisonRules decide whether matched records are amended.
	// An empty list means matched records are unchanged.
	ComparisonRules []DeltaRule `json:"ComparisonRules"`

	// SelectedColumnsFileA are the output columns of the first file.
	SelectedColumnsFileA []string `json:"selected_columns_file_a"`

	// SelectedColumnsFileB are the output columns of the second file.
	SelectedColumnsFileB []string `json:"selected_columns_file_b"`

	// FileFilters are applied at processing time only.
	FileFilters map[FileKey][]FileFilter `json:"file_filters"`

	// UserRequirements is the free-text description of the delta.
	UserRequirements string `json:"user_requirements"`
}

// SelectedColumns returns the selection for a file index.
func (c *DeltaConfig) SelectedColumns(file int) []string {
	if file == 1 {
		return c.SelectedColumnsFileB
	}
	return c.SelectedColumnsFileA
}

// FileRef is a file chosen for comparison.
type FileRef struct {
	// ID is the backend identifier of the uploaded file, or a local path.
	ID string `json:"id"`

	// Name is the display file name.
	Name string `json:"name"`

	// Columns are the available columns of the file.
	Columns []string `json:"columns"`
}

// ResultType selects a partition of a delta result.
type ResultType string

const (
	ResultAll        ResultType = "all"
	ResultUnchanged  ResultType = "unchanged"
	ResultAmended    ResultType = "amended"
	ResultDeleted    ResultType = "deleted"
	ResultNewlyAdded ResultType = "newly_added"
)

// Valid reports whether r is a known partition.
func (r ResultType) Valid() bool {
	switch r {
	case ResultAll, ResultUnchanged, ResultAmended, ResultDeleted, ResultNewlyAdded:
		return true
	}
	return false
}

// ResultTypes lists every partition in display order.
var ResultTypes = []ResultType{ResultAll, ResultUnchanged, ResultAmended, ResultDeleted, ResultNewlyAdded}

// DeltaSummary counts records per partition.
type DeltaSummary struct {
	TotalRecordsFileA     int64   `json:"total_records_file_a"`
	TotalRecordsFileB     int64   `json:"total_records_file_b"`
	UnchangedRecords      int64   `json:"unchanged_records"`
	AmendedRecords        int64   `json:"amended_records"`
	DeletedRecords        int64   `json:"deleted_records"`
	NewlyAddedRecords     int64   `json:"newly_added_records"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds,omitempty"`
}

// DeltaResult is the backend response to a delta submission.
type DeltaResult struct {
	Success  bool         `json:"success"`
	DeltaID  string       `json:"delta_id"`
	Summary  DeltaSummary `json:"summary"`
	Warnings []string     `json:"warnings,omitempty"`
}

// ProcessFile references an uploaded file in a process request.
type ProcessFile struct {
	FileID string  `json:"file_id"`
	Role   FileKey `json:"role"`
}

// ProcessRequest is the body of a delta submission.
type ProcessRequest struct {
	ProcessType      string        `json:"process_type"`
	ProcessName      string        `json:"process_name"`
	UserRequirements string        `json:"user_requirements"`
	Files            []ProcessFile `json:"files"`
	DeltaConfig      DeltaConfig   `json:"delta_config"`
}

// ProcessTypeDelta is the process_type of delta submissions.
const ProcessTypeDelta = "delta-generation"

// Pagination describes a page of partition results.
type Pagination struct {
	Page        int   `json:"page"`
	PageSize    int   `json:"page_size"`
	TotalCount  int64 `json:"total_count"`
	TotalPages  int   `json:"total_pages"`
	HasNext     bool  `json:"has_next"`
	HasPrevious bool  `json:"has_previous"`
}

// ResultPage is one page of a result partition.
type ResultPage struct {
	DeltaID    string           `json:"delta_id"`
	ResultType ResultType       `json:"result_type"`
	Data       []map[string]any `json:"data"`
	Pagination Pagination       `json:"pagination"`
}

// ResultsQuery selects a page of a partition.
type ResultsQuery struct {
	ResultType ResultType
	Page       int
	PageSize   int
}

// DownloadFormat is the file format of a result download.
type DownloadFormat string

const (
	FormatCSV   DownloadFormat = "csv"
	FormatExcel DownloadFormat = "excel"
)

// Extension returns the file extension used for the format.
func (f DownloadFormat) Extension() string {
	if f == FormatExcel {
		return "xlsx"
	}
	return string(f)
}

// SaveResultsRequest persists a result partition to server-side storage.
type SaveResultsRequest struct {
	ResultID       string         `json:"result_id"`
	ResultType     ResultType     `json:"result_type"`
	ProcessType    string         `json:"process_type"`
	FileFormat     DownloadFormat `json:"file_format"`
	CustomFilename string         `json:"custom_filename,omitempty"`
	Description    string         `json:"description,omitempty"`
}

// SaveResultsResponse is returned by the save-results endpoint.
type SaveResultsResponse struct {
	Success  bool   `json:"success"`
	SavedID  string `json:"saved_id,omitempty"`
	Filename string `json:"filename,omitempty"`
	Message  string `json:"message,omitempty"`
}

// SavedRule is a reusable delta configuration stored by the backend.
type SavedRule struct {
	ID          string      `json:"id,omitempty"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	RuleConfig  DeltaConfig `json:"rule_config"`
	Tags        []string    `json:"tags,omitempty"`
	UsageCount  int         `json:"usage_count,omitempty"`
	CreatedAt   *time.Time  `json:"created_at,omitempty"`
	UpdatedAt   *time.Time  `json:"updated_at,omitempty"`
}

// UseCase is a saved natural-language data-processing template owned by the backend.
type UseCase struct {
	ID              string          `json:"id,omitempty"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	UseCaseType     string          `json:"use_case_type,omitempty"`
	Category        string          `json:"category,omitempty"`
	Tags            []string        `json:"tags,omitempty"`
	UseCaseContent  string          `json:"use_case_content,omitempty"`
	UseCaseConfig   json.RawMessage `json:"use_case_config,omitempty"`
	UseCaseMetadata json.RawMessage `json:"use_case_metadata,omitempty"`
	UsageCount      int             `json:"usage_count,omitempty"`
	Rating          float64         `json:"rating,omitempty"`
	CreatedAt       *time.Time      `json:"created_at,omitempty"`
	UpdatedAt       *time.Time      `json:"updated_at,omitempty"`
}

// UseCaseFilter narrows a use-case listing.
type UseCaseFilter struct {
	Category    string
	UseCaseType string
	Limit       int
}

// UseCaseSuggestion is a ranked match for a free-text query.
type UseCaseSuggestion struct {
	UseCase UseCase `json:"use_case"`
	Score   float64 `json:"score"`
	Reason  string  `json:"reason,omitempty"`
}

// SuggestRequest asks the backend for use cases matching a query.
type SuggestRequest struct {
	UserQuery string   `json:"user_query"`
	FileIDs   []string `json:"file_ids,omitempty"`
	Limit     int      `json:"limit,omitempty"`
}

// ExecuteRequest runs a saved use case against files.
type ExecuteRequest struct {
	UseCaseID      string            `json:"use_case_id"`
	FileIDs        []string          `json:"file_ids"`
	Parameters     map[string]any    `json:"parameters,omitempty"`
	ColumnMapping  map[string]string `json:"column_mapping,omitempty"`
	UserQuery      string            `json:"user_query,omitempty"`
	ProcessingMode string            `json:"processing_mode,omitempty"`
}

// CreateFromQueryRequest saves a use case from a query that was just run.
type CreateFromQueryRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	UseCaseType string   `json:"use_case_type,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	UserQuery   string   `json:"user_query"`
	ResultID    string   `json:"result_id,omitempty"`
}

// ProcessResponse is the generic backend response of execution endpoints.
type ProcessResponse struct {
	Success  bool            `json:"success"`
	ResultID string          `json:"result_id,omitempty"`
	Message  string          `json:"message,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
}

// UniqueValues are the distinct values of one column.
type UniqueValues struct {
	FileID      string   `json:"file_id"`
	ColumnName  string   `json:"column_name"`
	Values      []string `json:"unique_values"`
	TotalUnique int      `json:"total_unique"`
	IsTruncated bool     `json:"is_truncated"`
}

// GenerateConfigRequest asks the backend to draft a delta configuration.
type GenerateConfigRequest struct {
	Requirements string    `json:"requirements"`
	Files        []FileRef `json:"files"`
}

// IdealPromptRequest asks the backend to rewrite a prompt.
type IdealPromptRequest struct {
	CurrentPrompt string    `json:"current_prompt"`
	ProcessType   string    `json:"process_type,omitempty"`
	Files         []FileRef `json:"files,omitempty"`
}

// IdealPromptResponse carries the rewritten prompt.
type IdealPromptResponse struct {
	Success     bool   `json:"success"`
	IdealPrompt string `json:"ideal_prompt"`
}

// HealthStatus is returned by the delta health endpoint.
type HealthStatus struct {
	Status  string `json:"status"`
	Service string `json:"service,omitempty"`
}

// DeltaBackend submits configurations and drafts them from requirements.
type DeltaBackend interface {
	// ProcessDelta submits a delta job.
	ProcessDelta(ctx context.Context, req ProcessRequest) (*DeltaResult, error)

	// GenerateDeltaConfig drafts a configuration from free text.
	GenerateDeltaConfig(ctx context.Context, req GenerateConfigRequest) (*DeltaConfig, error)
}

// ValueFetcher looks up the distinct values of a file column.
type ValueFetcher interface {
	ColumnUniqueValues(ctx context.Context, fileID, column string, limit int) (*UniqueValues, error)
}
