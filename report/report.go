package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"strings"
	"time"

	"github.com/TFMV/deltaflow/pkg/core"
	"github.com/TFMV/deltaflow/pkg/wizard"
	"github.com/fatih/color"
)

// -----------------------------
// Review Model
// -----------------------------

// ColumnSet describes the output columns of one file.
type ColumnSet struct {
	File      core.FileKey `json:"file"`
	Name      string       `json:"name"`
	Mandatory []string     `json:"mandatory"`
	Optional  []string     `json:"optional"`
	Selected  []string     `json:"selected"`
}

// Review is what the review step shows before submission.
type Review struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Config      core.DeltaConfig `json:"config"`
	Columns     []ColumnSet      `json:"columns"`
	Valid       bool             `json:"valid"`
	Problems    []string         `json:"problems"`
	Notes       []string         `json:"notes"`
}

// NewReview builds a review of cfg against the columns of the two files.
func NewReview(cfg core.DeltaConfig, files []core.FileRef) Review {
	r := Review{
		GeneratedAt: time.Now().UTC(),
		Config:      cfg,
		Problems:    []string{},
		Notes:       []string{},
	}
	for i, f := range files {
		mandatory := wizard.MandatoryColumns(cfg.KeyRules, cfg.ComparisonRules, i, f.Columns)
		r.Columns = append(r.Columns, ColumnSet{
			File:      core.FileKeyFor(i),
			Name:      f.Name,
			Mandatory: nonNil(mandatory),
			Optional:  wizard.OptionalColumns(f.Columns, mandatory),
			Selected:  nonNil(cfg.SelectedColumns(i)),
		})
	}
	if err := cfg.Validate(); err != nil {
		r.Problems = append(r.Problems, err.Error())
	}
	r.Valid = len(r.Problems) == 0
	if len(cfg.ComparisonRules) == 0 {
		r.Notes = append(r.Notes, "No comparison rules: every matched record is reported as unchanged.")
	}
	for _, key := range []core.FileKey{core.File0, core.File1} {
		if filters := cfg.FileFilters[key]; len(filters) > 0 {
			r.Notes = append(r.Notes, fmt.Sprintf("%d filter(s) on %s are applied at processing time.", len(filters), key))
		}
	}
	return r
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// -----------------------------
// Report Generator Interfaces
// -----------------------------

// ReportGenerator defines the methods for generating reports.
type ReportGenerator interface {
	GenerateReview(review Review) ([]byte, error)
	GenerateResultSummary(result core.DeltaResult) ([]byte, error)
	SaveReportToFile(review Review, filePath string) error
}

// -----------------------------
// JSON Report Generator
// -----------------------------

// JSONReportGenerator generates JSON reports.
type JSONReportGenerator struct{}

// GenerateReview serializes the review to JSON.
func (j *JSONReportGenerator) GenerateReview(review Review) ([]byte, error) {
	return json.MarshalIndent(review, "", "  ")
}

// GenerateResultSummary serializes a delta result to JSON.
func (j *JSONReportGenerator) GenerateResultSummary(result core.DeltaResult) ([]byte, error) {
	return json.MarshalIndent(result, "", "  ")
}

// SaveReportToFile saves the JSON report to a file.
func (j *JSONReportGenerator) SaveReportToFile(review Review, filePath string) error {
	data, err := j.GenerateReview(review)
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}

// -----------------------------
// HTML Report Generator
// -----------------------------

// HTMLReportGenerator generates HTML reports.
type HTMLReportGenerator struct{}

// HTML template for the review.
const htmlTemplate = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Delta Configuration Review</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        table { width: 100%; border-collapse: collapse; margin-top: 20px; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
        th { background-color: #f4f4f4; }
        .status-pass { color: green; }
        .status-fail { color: red; }
        .mandatory { font-weight: bold; }
    </style>
</head>
<body>
    <h1>Delta Configuration Review</h1>
    <p><strong>Status:</strong> {{if .Valid}}<span class="status-pass">READY</span>{{else}}<span class="status-fail">INCOMPLETE</span>{{end}}</p>
    {{with .Config.UserRequirements}}<p><strong>Requirements:</strong> {{.}}</p>{{end}}
    {{if .Problems}}<ul>{{range .Problems}}<li class="status-fail">{{.}}</li>{{end}}</ul>{{end}}

    <h2>Key Rules</h2>
    <table>
        <tr><th>Left Column</th><th>Right Column</th><th>Match Type</th></tr>
        {{range .Config.KeyRules}}
        <tr><td>{{.LeftFileColumn}}</td><td>{{.RightFileColumn}}</td><td>{{.MatchType}}</td></tr>
        {{else}}
        <tr><td colspan="3">None</td></tr>
        {{end}}
    </table>

    <h2>Comparison Rules</h2>
    <table>
        <tr><th>Left Column</th><th>Right Column</th><th>Match Type</th><th>Tolerance</th></tr>
        {{range .Config.ComparisonRules}}
        <tr><td>{{.LeftFileColumn}}</td><td>{{.RightFileColumn}}</td><td>{{.MatchType}}</td><td>{{with .ToleranceValue}}{{.}}{{else}}-{{end}}</td></tr>
        {{else}}
        <tr><td colspan="4">None</td></tr>
        {{end}}
    </table>

    <h2>Output Columns</h2>
    {{range .Columns}}
    <h3>{{.Name}} ({{.File}})</h3>
    <ul>
        {{range .Selected}}<li>{{.}}</li>{{else}}<li>None</li>{{end}}
    </ul>
    <p><strong>Required by rules:</strong> {{range $i, $c := .Mandatory}}{{if $i}}, {{end}}<span class="mandatory">{{$c}}</span>{{else}}none{{end}}</p>
    {{end}}

    {{if .Notes}}<h2>Notes</h2><ul>{{range .Notes}}<li>{{.}}</li>{{end}}</ul>{{end}}

    <footer>
        <p>Generated on {{.GeneratedAt.Format "2006-01-02 15:04:05 MST"}}</p>
    </footer>
</body>
</html>
`

var reviewTemplate = template.Must(template.New("review").Parse(htmlTemplate))

// GenerateReview renders the review as HTML.
func (h *HTMLReportGenerator) GenerateReview(review Review) ([]byte, error) {
	var buf bytes.Buffer
	if err := reviewTemplate.Execute(&buf, review); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GenerateResultSummary renders a short HTML notice for a delta result.
func (h *HTMLReportGenerator) GenerateResultSummary(result core.DeltaResult) ([]byte, error) {
	if !result.Success {
		return []byte(`<html><body><h3>Delta Generation Failed</h3></body></html>`), nil
	}
	s := result.Summary
	return []byte(fmt.Sprintf(
		`<html><body><h3>Delta %s</h3><p>Unchanged: %d, Amended: %d, Deleted: %d, Newly added: %d</p></body></html>`,
		template.HTMLEscapeString(result.DeltaID), s.UnchangedRecords, s.AmendedRecords, s.DeletedRecords, s.NewlyAddedRecords,
	)), nil
}

// SaveReportToFile saves the HTML report to a file.
func (h *HTMLReportGenerator) SaveReportToFile(review Review, filePath string) error {
	data, err := h.GenerateReview(review)
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}

// -----------------------------
// Text Report Generator
// -----------------------------

// TextReportGenerator renders reviews for terminals.
type TextReportGenerator struct {
	// NoColor disables ANSI colors.
	NoColor bool
}

func (t *TextReportGenerator) palette() (title, ok, bad, dim *color.Color) {
	title = color.New(color.Bold, color.FgCyan)
	ok = color.New(color.FgGreen)
	bad = color.New(color.FgRed, color.Bold)
	dim = color.New(color.Faint)
	if t.NoColor {
		for _, c := range []*color.Color{title, ok, bad, dim} {
			c.DisableColor()
		}
	}
	return title, ok, bad, dim
}

// GenerateReview renders the review as plain text.
func (t *TextReportGenerator) GenerateReview(review Review) ([]byte, error) {
	title, ok, bad, dim := t.palette()
	var b strings.Builder

	title.Fprintln(&b, "Delta Configuration Review")
	if review.Valid {
		ok.Fprintln(&b, "Status: READY")
	} else {
		bad.Fprintln(&b, "Status: INCOMPLETE")
		for _, p := range review.Problems {
			bad.Fprintf(&b, "  ! %s\n", p)
		}
	}
	if req := review.Config.UserRequirements; req != "" {
		fmt.Fprintf(&b, "Requirements: %s\n", req)
	}

	title.Fprintln(&b, "\nKey rules")
	writeRules(&b, dim, review.Config.KeyRules)
	title.Fprintln(&b, "\nComparison rules")
	writeRules(&b, dim, review.Config.ComparisonRules)

	for _, cs := range review.Columns {
		title.Fprintf(&b, "\nOutput columns of %s (%s)\n", cs.Name, cs.File)
		fmt.Fprintf(&b, "  selected: %s\n", joinOrNone(cs.Selected))
		dim.Fprintf(&b, "  required: %s\n", joinOrNone(cs.Mandatory))
	}
	for _, n := range review.Notes {
		dim.Fprintf(&b, "\n%s", n)
	}
	if len(review.Notes) > 0 {
		b.WriteString("\n")
	}
	return []byte(b.String()), nil
}

func writeRules(b *strings.Builder, dim *color.Color, rules []core.DeltaRule) {
	if len(rules) == 0 {
		dim.Fprintln(b, "  none")
		return
	}
	for _, r := range rules {
		fmt.Fprintf(b, "  %s <-> %s  [%s", r.LeftFileColumn, r.RightFileColumn, r.MatchType)
		if r.ToleranceValue != nil {
			fmt.Fprintf(b, " ±%g", *r.ToleranceValue)
		}
		b.WriteString("]\n")
	}
}

func joinOrNone(cols []string) string {
	if len(cols) == 0 {
		return "none"
	}
	return strings.Join(cols, ", ")
}

// GenerateResultSummary renders partition counts of a delta result.
func (t *TextReportGenerator) GenerateResultSummary(result core.DeltaResult) ([]byte, error) {
	title, ok, bad, dim := t.palette()
	var b strings.Builder
	if !result.Success {
		bad.Fprintln(&b, "Delta generation failed")
		for _, w := range result.Warnings {
			dim.Fprintf(&b, "  %s\n", w)
		}
		return []byte(b.String()), nil
	}
	s := result.Summary
	title.Fprintf(&b, "Delta %s\n", result.DeltaID)
	fmt.Fprintf(&b, "  records: %d -> %d\n", s.TotalRecordsFileA, s.TotalRecordsFileB)
	ok.Fprintf(&b, "  unchanged:   %d\n", s.UnchangedRecords)
	bad.Fprintf(&b, "  amended:     %d\n", s.AmendedRecords)
	bad.Fprintf(&b, "  deleted:     %d\n", s.DeletedRecords)
	ok.Fprintf(&b, "  newly added: %d\n", s.NewlyAddedRecords)
	if s.ProcessingTimeSeconds > 0 {
		dim.Fprintf(&b, "  took %.2fs\n", s.ProcessingTimeSeconds)
	}
	for _, w := range result.Warnings {
		dim.Fprintf(&b, "  warning: %s\n", w)
	}
	return []byte(b.String()), nil
}

// SaveReportToFile saves the text report to a file without colors.
func (t *TextReportGenerator) SaveReportToFile(review Review, filePath string) error {
	plain := TextReportGenerator{NoColor: true}
	data, err := plain.GenerateReview(review)
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}

// SaveReports saves both JSON and HTML reports.
func SaveReports(review Review, jsonPath, htmlPath string) error {
	jsonGen := JSONReportGenerator{}
	htmlGen := HTMLReportGenerator{}

	if err := jsonGen.SaveReportToFile(review, jsonPath); err != nil {
		return err
	}
	if err := htmlGen.SaveReportToFile(review, htmlPath); err != nil {
		return err
	}
	return nil
}

// ForFormat returns the generator for "json", "html" or "text".
func ForFormat(format string) (ReportGenerator, error) {
	switch format {
	case "json", "":
		return &JSONReportGenerator{}, nil
	case "html":
		return &HTMLReportGenerator{}, nil
	case "text":
		return &TextReportGenerator{}, nil
	}
	return nil, fmt.Errorf("unknown report format %q", format)
}

// ConfigFromFilePath loads a saved delta configuration.
func ConfigFromFilePath(filePath string) (core.DeltaConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return core.DeltaConfig{}, err
	}
	var cfg core.DeltaConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return core.DeltaConfig{}, fmt.Errorf("decoding %s: %w", filePath, err)
	}
	return cfg, nil
}
