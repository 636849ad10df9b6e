package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/TFMV/deltaflow/pkg/core"
	"github.com/tidwall/gjson"
)

const useCasesPath = "/saved-use-cases"

// ListUseCases returns saved use cases matching filter.
func (c *Client) ListUseCases(ctx context.Context, filter core.UseCaseFilter) ([]core.UseCase, error) {
	query := url.Values{}
	if filter.Category != "" {
		query.Set("category", filter.Category)
	}
	if filter.UseCaseType != "" {
		query.Set("use_case_type", filter.UseCaseType)
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}
	return c.useCaseList(ctx, useCasesPath, query)
}

// GetUseCase returns one saved use case.
func (c *Client) GetUseCase(ctx context.Context, id string) (*core.UseCase, error) {
	var uc core.UseCase
	if err := c.get(ctx, useCasesPath+"/"+url.PathEscape(id), nil, &uc, true); err != nil {
		return nil, err
	}
	return &uc, nil
}

// CreateUseCase saves a new use case.
func (c *Client) CreateUseCase(ctx context.Context, uc core.UseCase) (*core.UseCase, error) {
	var out core.UseCase
	if err := c.post(ctx, useCasesPath, uc, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateUseCase replaces a saved use case.
func (c *Client) UpdateUseCase(ctx context.Context, id string, uc core.UseCase) (*core.UseCase, error) {
	var out core.UseCase
	if err := c.call(ctx, http.MethodPut, useCasesPath+"/"+url.PathEscape(id), nil, uc, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteUseCase removes a saved use case.
func (c *Client) DeleteUseCase(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, useCasesPath+"/"+url.PathEscape(id), nil, nil, nil, false)
}

// SearchUseCases runs a free-text search over saved use cases.
func (c *Client) SearchUseCases(ctx context.Context, text string, limit int) ([]core.UseCase, error) {
	query := url.Values{}
	query.Set("query", text)
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	return c.useCaseList(ctx, useCasesPath+"/search/query", query)
}

// PopularUseCases returns the most used use cases.
func (c *Client) PopularUseCases(ctx context.Context, limit int) ([]core.UseCase, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	return c.useCaseList(ctx, useCasesPath+"/popular/list", query)
}

// UseCaseCategories lists the known categories.
func (c *Client) UseCaseCategories(ctx context.Context) ([]string, error) {
	return c.stringList(ctx, useCasesPath+"/categories/list", "categories")
}

// UseCaseTypes lists the known use case types.
func (c *Client) UseCaseTypes(ctx context.Context) ([]string, error) {
	return c.stringList(ctx, useCasesPath+"/types/list", "types")
}

// SuggestUseCases ranks saved use cases against a query.
func (c *Client) SuggestUseCases(ctx context.Context, req core.SuggestRequest) ([]core.UseCaseSuggestion, error) {
	var raw json.RawMessage
	if err := c.post(ctx, useCasesPath+"/suggest", req, &raw, true); err != nil {
		return nil, err
	}
	raw = listField(raw, "suggestions")
	var out []core.UseCaseSuggestion
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: suggestions: %v", ErrMalformedResponse, err)
	}
	return out, nil
}

// ExecuteUseCase runs a saved use case against files.
func (c *Client) ExecuteUseCase(ctx context.Context, req core.ExecuteRequest) (*core.ProcessResponse, error) {
	return c.process(ctx, useCasesPath+"/execute", req)
}

// ExecuteUseCaseAIAssisted runs a saved use case adapted to the files by the backend.
func (c *Client) ExecuteUseCaseAIAssisted(ctx context.Context, req core.ExecuteRequest) (*core.ProcessResponse, error) {
	return c.process(ctx, useCasesPath+"/execute/ai-assisted", req)
}

// ExecuteUseCaseWithMapping runs a saved use case with an explicit column mapping.
func (c *Client) ExecuteUseCaseWithMapping(ctx context.Context, req core.ExecuteRequest) (*core.ProcessResponse, error) {
	return c.process(ctx, useCasesPath+"/execute/with-mapping", req)
}

// ApplyUseCase applies a saved use case to the current query.
func (c *Client) ApplyUseCase(ctx context.Context, req core.ExecuteRequest) (*core.ProcessResponse, error) {
	return c.process(ctx, useCasesPath+"/apply", req)
}

// CreateUseCaseFromQuery saves a use case from a query that was just run.
func (c *Client) CreateUseCaseFromQuery(ctx context.Context, req core.CreateFromQueryRequest) (*core.UseCase, error) {
	var out core.UseCase
	if err := c.post(ctx, useCasesPath+"/create-from-query", req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecordUseCaseUsage increments the usage counter of a use case.
func (c *Client) RecordUseCaseUsage(ctx context.Context, id string) error {
	return c.post(ctx, useCasesPath+"/"+url.PathEscape(id)+"/usage", struct{}{}, nil, false)
}

// RateUseCase records a user rating for a use case.
func (c *Client) RateUseCase(ctx context.Context, id string, rating float64) error {
	body := map[string]float64{"rating": rating}
	return c.post(ctx, useCasesPath+"/"+url.PathEscape(id)+"/rating", body, nil, false)
}

func (c *Client) useCaseList(ctx context.Context, path string, query url.Values) ([]core.UseCase, error) {
	var raw json.RawMessage
	if err := c.get(ctx, path, query, &raw, true); err != nil {
		return nil, err
	}
	raw = listField(raw, "use_cases")
	var out []core.UseCase
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, path, err)
	}
	return out, nil
}

func (c *Client) stringList(ctx context.Context, path, field string) ([]string, error) {
	var raw json.RawMessage
	if err := c.get(ctx, path, nil, &raw, true); err != nil {
		return nil, err
	}
	list := gjson.ParseBytes(listField(raw, field))
	if !list.IsArray() {
		return nil, fmt.Errorf("%w: %s is not a list", ErrMalformedResponse, path)
	}
	out := make([]string, 0, len(list.Array()))
	for _, v := range list.Array() {
		out = append(out, v.String())
	}
	return out, nil
}

func (c *Client) process(ctx context.Context, path string, req any) (*core.ProcessResponse, error) {
	var out core.ProcessResponse
	if err := c.post(ctx, path, req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// listField returns raw[field] when raw is an object holding that list.
func listField(raw []byte, field string) []byte {
	if !gjson.ValidBytes(raw) {
		return raw
	}
	if r := gjson.GetBytes(raw, field); r.IsArray() {
		return []byte(r.Raw)
	}
	return raw
}
