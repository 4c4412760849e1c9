package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sandia-project/sandia-go/internal/analysis"
	"github.com/sandia-project/sandia-go/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/analyze", r.URL.Path)

		var req AnalyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "abc123", req.ArtifactID)
		assert.Equal(t, []string{"rule-based"}, req.Engines)

		json.NewEncoder(w).Encode(AnalyzeResponse{
			ArtifactID: req.ArtifactID,
			JobStates: map[engine.Kind]analysis.JobState{
				engine.KindRuleBased: analysis.StateCompleted,
			},
		})
	}))
	defer ts.Close()

	c := New(ts.URL)
	resp, err := c.Analyze(context.Background(), AnalyzeRequest{
		ArtifactID: "abc123",
		Engines:    []string{"rule-based"},
	})
	require.NoError(t, err)
	assert.Equal(t, "abc123", resp.ArtifactID)
	assert.Equal(t, analysis.StateCompleted, resp.JobStates[engine.KindRuleBased])
}

func TestStatus_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "no jobs for artifact nobody"})
	}))
	defer ts.Close()

	c := New(ts.URL)
	_, err := c.Status(context.Background(), "nobody")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no jobs for artifact nobody")
}

func TestStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/status/abc123", r.URL.Path)
		json.NewEncoder(w).Encode(StatusResponse{
			ArtifactID: "abc123",
			JobStates: map[engine.Kind]analysis.JobState{
				engine.KindStructural: analysis.StatePolling,
			},
		})
	}))
	defer ts.Close()

	c := New(ts.URL)
	status, err := c.Status(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, analysis.StatePolling, status.JobStates[engine.KindStructural])
}

func TestNew_Defaults(t *testing.T) {
	c := New("")
	assert.Equal(t, "http://localhost:8181", c.baseURL)

	c = New("http://example.com/")
	assert.Equal(t, "http://example.com", c.baseURL, "trailing slash trimmed")
}

func TestDo_UnstructuredError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway exploded", http.StatusBadGateway)
	}))
	defer ts.Close()

	c := New(ts.URL)
	_, err := c.Stats(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway exploded")
}
