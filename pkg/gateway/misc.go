package gateway

import (
	"context"

	"github.com/TFMV/deltaflow/pkg/core"
)

// GenerateIdealPrompt asks the backend to rewrite a processing prompt.
func (c *Client) GenerateIdealPrompt(ctx context.Context, req core.IdealPromptRequest) (*core.IdealPromptResponse, error) {
	var out core.IdealPromptResponse
	if err := c.post(ctx, "/miscellaneous/generate-ideal-prompt", req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateFile runs the file generator. The request is passed through.
func (c *Client) GenerateFile(ctx context.Context, req map[string]any) (*core.ProcessResponse, error) {
	return c.process(ctx, "/file-generator/generate", req)
}

// ProcessTransformation runs a transformation job. The request is passed through.
func (c *Client) ProcessTransformation(ctx context.Context, req map[string]any) (*core.ProcessResponse, error) {
	return c.process(ctx, "/transformation/process", req)
}
