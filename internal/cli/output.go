// Package cli provides output formatting for the Kioku command-line client.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hayasui/kioku/pkg/utils"
)

// OutputFormat is the format for CLI output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// EmbedResult pairs an input text with its resolved embedding.
type EmbedResult struct {
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding"`
	Dimensions int       `json:"dimensions"`
}

// StatsResult mirrors the health endpoint payload for CLI display.
type StatsResult struct {
	Status     string `json:"status"`
	ModelReady bool   `json:"modelReady"`
	Dimensions int    `json:"dimensions"`
	Requests   uint64 `json:"requests"`
	CacheHits  uint64 `json:"cacheHits"`
	CacheSize  int    `json:"cacheSize"`
	HitRate    string `json:"hitRate"`
}

// WriteEmbedResults writes results to w in the given format.
func WriteEmbedResults(w io.Writer, results []EmbedResult, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	for _, r := range results {
		fmt.Fprintf(w, "%s\n  dimensions: %d\n  vector: %s\n",
			utils.Truncate(r.Text, 80), r.Dimensions, FormatVector(r.Embedding, 8))
	}
	return nil
}

// WriteStats writes service statistics to w in the given format.
func WriteStats(w io.Writer, stats StatsResult, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	fmt.Fprintf(w, "status:     %s\n", stats.Status)
	fmt.Fprintf(w, "dimensions: %d\n", stats.Dimensions)
	fmt.Fprintf(w, "requests:   %d\n", stats.Requests)
	fmt.Fprintf(w, "cache hits: %d (%s)\n", stats.CacheHits, stats.HitRate)
	fmt.Fprintf(w, "cache size: %d\n", stats.CacheSize)
	return nil
}

// FormatVector renders the first maxDims components of vec, eliding the rest.
func FormatVector(vec []float32, maxDims int) string {
	var b strings.Builder
	b.WriteString("[")
	for i, v := range vec {
		if i == maxDims {
			fmt.Fprintf(&b, " ... +%d more", len(vec)-maxDims)
			break
		}
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%.4f", v)
	}
	b.WriteString("]")
	return b.String()
}
