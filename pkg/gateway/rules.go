package gateway

import (
	"context"
	"net/http"
	"net/url"

	"github.com/TFMV/deltaflow/pkg/core"
)

// ListRules returns the saved delta configurations.
func (c *Client) ListRules(ctx context.Context) ([]core.SavedRule, error) {
	var rules []core.SavedRule
	if err := c.get(ctx, "/delta/rules", nil, &rules, true); err != nil {
		return nil, err
	}
	return rules, nil
}

// GetRule returns one saved delta configuration.
func (c *Client) GetRule(ctx context.Context, id string) (*core.SavedRule, error) {
	var rule core.SavedRule
	if err := c.get(ctx, "/delta/rules/"+url.PathEscape(id), nil, &rule, true); err != nil {
		return nil, err
	}
	return &rule, nil
}

// CreateRule saves a delta configuration.
func (c *Client) CreateRule(ctx context.Context, rule core.SavedRule) (*core.SavedRule, error) {
	var out core.SavedRule
	if err := c.post(ctx, "/delta/rules", rule, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateRule replaces a saved delta configuration.
func (c *Client) UpdateRule(ctx context.Context, id string, rule core.SavedRule) (*core.SavedRule, error) {
	var out core.SavedRule
	if err := c.call(ctx, http.MethodPut, "/delta/rules/"+url.PathEscape(id), nil, rule, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteRule removes a saved delta configuration.
func (c *Client) DeleteRule(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/delta/rules/"+url.PathEscape(id), nil, nil, nil, false)
}
