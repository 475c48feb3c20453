// Package integration exercises the full service over HTTP: gateway
// initialization, cache behavior across requests, and statistics.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/hayasui/kioku/internal/cache"
	"github.com/hayasui/kioku/internal/config"
	"github.com/hayasui/kioku/internal/embedding"
	"github.com/hayasui/kioku/internal/orchestrator"
	"github.com/hayasui/kioku/internal/server"
)

func startService(t *testing.T, capacity int) *httptest.Server {
	t.Helper()
	gw := embedding.NewGateway(func() (embedding.Embedder, error) {
		return embedding.NewMockEmbedder(16), nil
	}, zap.NewNop())
	if err := gw.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	orch := orchestrator.New(gw, cache.New(capacity), zap.NewNop())
	srv := server.NewServer(orch, &config.ServerConfig{Host: "localhost", Port: 0}, zap.NewNop())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	return resp, buf.Bytes()
}

func getJSON(t *testing.T, url string, out interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatal(err)
	}
}

func TestIntegration_EmbedAndCache(t *testing.T) {
	ts := startService(t, 100)

	var first struct {
		Embedding  []float32 `json:"embedding"`
		Dimensions int       `json:"dimensions"`
	}
	resp, body := postJSON(t, ts.URL+"/api/v1/embed", `{"text":"an integration text"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, &first); err != nil {
		t.Fatal(err)
	}
	if first.Dimensions != 16 {
		t.Fatalf("dimensions = %d, want 16", first.Dimensions)
	}

	// Same text again: bit-identical vector from the cache.
	var second struct {
		Embedding []float32 `json:"embedding"`
	}
	_, body = postJSON(t, ts.URL+"/api/v1/embed", `{"text":"an integration text"}`)
	if err := json.Unmarshal(body, &second); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first.Embedding, second.Embedding) {
		t.Error("repeated request must return an identical vector")
	}

	var health struct {
		Stats struct {
			Requests  uint64 `json:"requests"`
			CacheHits uint64 `json:"cacheHits"`
			CacheSize int    `json:"cacheSize"`
		} `json:"stats"`
	}
	getJSON(t, ts.URL+"/health", &health)
	if health.Stats.Requests != 2 || health.Stats.CacheHits != 1 || health.Stats.CacheSize != 1 {
		t.Errorf("stats = %+v", health.Stats)
	}
}

func TestIntegration_BatchAndEviction(t *testing.T) {
	ts := startService(t, 2)

	resp, body := postJSON(t, ts.URL+"/api/v1/embed/batch", `{"texts":["k1","k2"]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}

	// Inserting a third distinct text evicts the oldest (k1).
	postJSON(t, ts.URL+"/api/v1/embed", `{"text":"k3"}`)

	var health struct {
		Stats struct {
			CacheSize int `json:"cacheSize"`
		} `json:"stats"`
	}
	getJSON(t, ts.URL+"/health", &health)
	if health.Stats.CacheSize != 2 {
		t.Errorf("cacheSize = %d, want 2", health.Stats.CacheSize)
	}

	// k2 and k3 are hits; k1 was evicted and is a miss (generated again).
	var before, after struct {
		Stats struct {
			CacheHits uint64 `json:"cacheHits"`
		} `json:"stats"`
	}
	getJSON(t, ts.URL+"/health", &before)
	postJSON(t, ts.URL+"/api/v1/embed", `{"text":"k2"}`)
	postJSON(t, ts.URL+"/api/v1/embed", `{"text":"k3"}`)
	postJSON(t, ts.URL+"/api/v1/embed", `{"text":"k1"}`)
	getJSON(t, ts.URL+"/health", &after)
	if after.Stats.CacheHits-before.Stats.CacheHits != 2 {
		t.Errorf("hit delta = %d, want 2", after.Stats.CacheHits-before.Stats.CacheHits)
	}
}

func TestIntegration_BatchOrderMatchesSingles(t *testing.T) {
	ts := startService(t, 100)

	texts := []string{"alpha", "beta", "gamma"}
	singles := make([][]float32, len(texts))
	for i, text := range texts {
		var out struct {
			Embedding []float32 `json:"embedding"`
		}
		_, body := postJSON(t, ts.URL+"/api/v1/embed", fmt.Sprintf(`{"text":%q}`, text))
		if err := json.Unmarshal(body, &out); err != nil {
			t.Fatal(err)
		}
		singles[i] = out.Embedding
	}

	var batch struct {
		Embeddings [][]float32 `json:"embeddings"`
		Count      int         `json:"count"`
	}
	_, body := postJSON(t, ts.URL+"/api/v1/embed/batch", `{"texts":["alpha","beta","gamma"]}`)
	if err := json.Unmarshal(body, &batch); err != nil {
		t.Fatal(err)
	}
	if batch.Count != 3 {
		t.Fatalf("count = %d", batch.Count)
	}
	for i := range texts {
		if !reflect.DeepEqual(batch.Embeddings[i], singles[i]) {
			t.Errorf("batch element %d does not match the single-request vector for %q", i, texts[i])
		}
	}
}

func TestIntegration_ClearResetsService(t *testing.T) {
	ts := startService(t, 100)

	postJSON(t, ts.URL+"/api/v1/embed", `{"text":"to be cleared"}`)

	var cleared map[string]int
	_, body := postJSON(t, ts.URL+"/api/v1/cache/clear", "")
	if err := json.Unmarshal(body, &cleared); err != nil {
		t.Fatal(err)
	}
	if cleared["cleared"] != 1 {
		t.Errorf("cleared = %d, want 1", cleared["cleared"])
	}

	var health struct {
		Stats struct {
			Requests  uint64 `json:"requests"`
			CacheHits uint64 `json:"cacheHits"`
			CacheSize int    `json:"cacheSize"`
		} `json:"stats"`
	}
	getJSON(t, ts.URL+"/health", &health)
	if health.Stats.Requests != 0 || health.Stats.CacheHits != 0 || health.Stats.CacheSize != 0 {
		t.Errorf("stats after clear = %+v", health.Stats)
	}
}
