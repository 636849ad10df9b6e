package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"

	"github.com/TFMV/deltaflow/pkg/core"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

var (
	_ core.DeltaBackend = (*Client)(nil)
	_ core.ValueFetcher = (*Client)(nil)
)

// ProcessDelta submits a delta generation job.
func (c *Client) ProcessDelta(ctx context.Context, req core.ProcessRequest) (*core.DeltaResult, error) {
	if req.ProcessType == "" {
		req.ProcessType = core.ProcessTypeDelta
	}
	var res core.DeltaResult
	if err := c.post(ctx, "/delta/process/", req, &res, false); err != nil {
		return nil, err
	}
	c.logger.Info("Delta job processed", zap.String("delta_id", res.DeltaID), zap.Bool("success", res.Success))
	return &res, nil
}

// GenerateDeltaConfig asks the backend to draft a configuration from
// free-text requirements. The configuration may be returned bare, under
// data, or under config.
func (c *Client) GenerateDeltaConfig(ctx context.Context, req core.GenerateConfigRequest) (*core.DeltaConfig, error) {
	var raw json.RawMessage
	if err := c.post(ctx, "/delta/generate-config", req, &raw, true); err != nil {
		return nil, err
	}
	if cfg := gjson.GetBytes(raw, "config"); cfg.IsObject() {
		raw = json.RawMessage(cfg.Raw)
	}
	var out core.DeltaConfig
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: generated config: %v", ErrMalformedResponse, err)
	}
	return &out, nil
}

// DeltaResults fetches one page of a result partition.
func (c *Client) DeltaResults(ctx context.Context, deltaID string, q core.ResultsQuery) (*core.ResultPage, error) {
	query := url.Values{}
	if q.ResultType != "" {
		query.Set("result_type", string(q.ResultType))
	}
	if q.Page > 0 {
		query.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		query.Set("page_size", strconv.Itoa(q.PageSize))
	}
	var page core.ResultPage
	if err := c.get(ctx, "/delta/results/"+url.PathEscape(deltaID), query, &page, false); err != nil {
		return nil, err
	}
	return &page, nil
}

// DeltaSummary fetches the partition counts of a result.
func (c *Client) DeltaSummary(ctx context.Context, deltaID string) (*core.DeltaSummary, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/delta/results/"+url.PathEscape(deltaID)+"/summary", nil, &raw, true); err != nil {
		return nil, err
	}
	if s := gjson.GetBytes(raw, "summary"); s.IsObject() {
		raw = json.RawMessage(s.Raw)
	}
	var summary core.DeltaSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, fmt.Errorf("%w: summary: %v", ErrMalformedResponse, err)
	}
	return &summary, nil
}

// Download describes a downloaded result file.
type Download struct {
	Filename    string
	ContentType string
	Size        int64
}

// DownloadResults streams a result partition into w. The filename comes
// from Content-Disposition, falling back to delta_<id>_<type>.<ext>.
func (c *Client) DownloadResults(ctx context.Context, deltaID string, format core.DownloadFormat, resultType core.ResultType, w io.Writer) (*Download, error) {
	if format == "" {
		format = core.FormatCSV
	}
	if resultType == "" {
		resultType = core.ResultAll
	}
	query := url.Values{}
	query.Set("format", string(format))
	query.Set("result_type", string(resultType))

	resp, err := c.send(ctx, http.MethodGet, "/delta/download/"+url.PathEscape(deltaID), query, nil)
	if err != nil {
		return nil, err
	}
	defer c.closeBody(resp)

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", deltaID, err)
	}
	d := &Download{
		Filename:    attachmentName(resp.Header.Get("Content-Disposition")),
		ContentType: resp.Header.Get("Content-Type"),
		Size:        n,
	}
	if d.Filename == "" {
		d.Filename = fmt.Sprintf("delta_%s_%s.%s", deltaID, resultType, format.Extension())
	}
	c.logger.Info("Delta results downloaded", zap.String("file", d.Filename), zap.Int64("bytes", n))
	return d, nil
}

func attachmentName(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	name := path.Base(params["filename"])
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// Health reports the status of the delta service.
func (c *Client) Health(ctx context.Context) (*core.HealthStatus, error) {
	var status core.HealthStatus
	if err := c.get(ctx, "/delta/health", nil, &status, false); err != nil {
		return nil, err
	}
	return &status, nil
}

// ColumnUniqueValues lists the distinct values of a column of an uploaded
// file. A non-positive limit leaves the backend default.
func (c *Client) ColumnUniqueValues(ctx context.Context, fileID, column string, limit int) (*core.UniqueValues, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	p := "/file-processing/column-unique-values/" + url.PathEscape(fileID) + "/" + url.PathEscape(column)
	var raw json.RawMessage
	if err := c.get(ctx, p, query, &raw, true); err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(raw) || !gjson.GetBytes(raw, "unique_values").IsArray() {
		return nil, fmt.Errorf("%w: unique values of %s/%s", ErrMalformedResponse, fileID, column)
	}

	// Values are rendered as strings whatever their JSON type.
	res := gjson.ParseBytes(raw)
	values := &core.UniqueValues{
		FileID:      res.Get("file_id").String(),
		ColumnName:  res.Get("column_name").String(),
		Values:      []string{},
		TotalUnique: int(res.Get("total_unique").Int()),
		IsTruncated: res.Get("is_truncated").Bool(),
	}
	for _, v := range res.Get("unique_values").Array() {
		if v.Type == gjson.Null {
			continue
		}
		values.Values = append(values.Values, v.String())
	}
	if values.FileID == "" {
		values.FileID = fileID
	}
	if values.ColumnName == "" {
		values.ColumnName = column
	}
	if values.TotalUnique == 0 {
		values.TotalUnique = len(values.Values)
	}
	return values, nil
}

// SaveResults persists a result partition to server-side storage.
func (c *Client) SaveResults(ctx context.Context, req core.SaveResultsRequest) (*core.SaveResultsResponse, error) {
	if req.ProcessType == "" {
		req.ProcessType = core.ProcessTypeDelta
	}
	var res core.SaveResultsResponse
	if err := c.post(ctx, "/save-results/save", req, &res, false); err != nil {
		return nil, err
	}
	return &res, nil
}
