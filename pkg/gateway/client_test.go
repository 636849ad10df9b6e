package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/TFMV/deltaflow/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestClient starts a server running handler and returns a client for it.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api/", zap.NewNop(), srv.Client())
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := io.WriteString(w, body)
	require.NoError(t, err)
}

func TestProcessDelta(t *testing.T) {
	var got core.ProcessRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/delta/process/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(t, w, http.StatusOK, `{"success":true,"delta_id":"d-1","summary":{"total_records_file_a":10,"amended_records":2}}`)
	})

	req := core.ProcessRequest{
		ProcessName: "Delta Generation",
		Files:       []core.ProcessFile{{FileID: "a", Role: core.File0}, {FileID: "b", Role: core.File1}},
		DeltaConfig: core.DeltaConfig{KeyRules: []core.DeltaRule{{LeftFileColumn: "id", RightFileColumn: "id", MatchType: core.MatchEquals, IsKey: true}}},
	}
	res, err := client.ProcessDelta(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "d-1", res.DeltaID)
	assert.Equal(t, int64(2), res.Summary.AmendedRecords)

	assert.Equal(t, core.ProcessTypeDelta, got.ProcessType)
	assert.Equal(t, req.Files, got.Files)
	assert.Equal(t, "id", got.DeltaConfig.KeyRules[0].LeftFileColumn)
}

func TestAPIErrorMessage(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "detail", status: http.StatusUnprocessableEntity, body: `{"detail":"KeyRules is required"}`, want: "KeyRules is required"},
		{name: "structured detail", status: http.StatusUnprocessableEntity, body: `{"detail":[{"loc":["body"]}]}`, want: `[{"loc":["body"]}]`},
		{name: "message", status: http.StatusNotFound, body: `{"message":"delta not found"}`, want: "delta not found"},
		{name: "error", status: http.StatusBadRequest, body: `{"error":"bad page"}`, want: "bad page"},
		{name: "plain text", status: http.StatusBadGateway, body: "upstream down\n", want: "upstream down"},
		{name: "empty", status: http.StatusServiceUnavailable, body: "", want: "Service Unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := client.Health(context.Background())
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.want, apiErr.Message)
			assert.Equal(t, tt.status, StatusCode(err))
		})
	}
}

func TestMalformedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, `{"success": tru`)
	})
	_, err := client.ProcessDelta(context.Background(), core.ProcessRequest{})
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Equal(t, 0, StatusCode(err))
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := New(srv.URL, nil, nil)

	_, err := client.Health(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, StatusCode(err))
	assert.Contains(t, err.Error(), "/delta/health")
}

func TestWithTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	client := New(srv.URL, nil, nil, WithTimeout(50*time.Millisecond))
	_, err := client.Health(context.Background())
	assert.Error(t, err)

	assert.Equal(t, http.DefaultClient, New(srv.URL, nil, nil, WithTimeout(0)).client)
}

func TestBaseURLTrimsSlash(t *testing.T) {
	assert.Equal(t, "http://localhost:8000/api", New("http://localhost:8000/api/", nil, nil).BaseURL())
}

func TestUnwrapData(t *testing.T) {
	assert.JSONEq(t, `{"a":1}`, string(unwrapData([]byte(`{"success":true,"data":{"a":1}}`))))
	assert.JSONEq(t, `[1,2]`, string(unwrapData([]byte(`{"data":[1,2]}`))))
	assert.JSONEq(t, `{"data":"text"}`, string(unwrapData([]byte(`{"data":"text"}`))))
	assert.Equal(t, "not json", string(unwrapData([]byte("not json"))))
}

func TestCallSendsNoBodyForGet(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Empty(t, body)
		assert.Empty(t, r.Header.Get("Content-Type"))
		writeJSON(t, w, http.StatusOK, `{"status":"healthy","service":"delta"}`)
	})
	status, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "delta", status.Service)
}

func TestPostEncodesBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		_, err := body.ReadFrom(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"current_prompt":"find changes","process_type":"delta"}`, body.String())
		writeJSON(t, w, http.StatusOK, `{"success":true,"data":{"success":true,"ideal_prompt":"Compare by id"}}`)
	})
	res, err := client.GenerateIdealPrompt(context.Background(), core.IdealPromptRequest{CurrentPrompt: "find changes", ProcessType: "delta"})
	require.NoError(t, err)
	assert.Equal(t, "Compare by id", res.IdealPrompt)
}
