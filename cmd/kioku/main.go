// Package main is the Kioku CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hayasui/kioku/internal/cache"
	"github.com/hayasui/kioku/internal/cli"
	"github.com/hayasui/kioku/internal/config"
	"github.com/hayasui/kioku/internal/embedding"
	"github.com/hayasui/kioku/internal/orchestrator"
	"github.com/hayasui/kioku/internal/server"
	"github.com/hayasui/kioku/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kioku/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. When neither exists, built-in defaults apply. Returns the config
// and the path that was actually loaded ("" when defaults were used).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "embed":
		runEmbed()
	case "stats":
		runStats()
	case "clear":
		runClear()
	case "version", "--version", "-v":
		fmt.Printf("kioku version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`kioku - shared embedding cache and request orchestrator

Usage: kioku <command> [flags]

Commands:
  server   Run the embedding service
  embed    Embed one text (or a batch with -batch) via a running server
  stats    Show service readiness and cache statistics
  clear    Clear the embedding cache and reset statistics
  version  Print version
  help     Show this help
`)
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	port := fs.Int("port", 0, "listening port (overrides config)")
	capacity := fs.Int("capacity", 0, "embedding cache capacity (overrides config)")
	mock := fs.Bool("mock", false, "use the deterministic mock embedder instead of the ONNX model")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *capacity != 0 {
		cfg.Cache.Capacity = *capacity
	}
	if *mock {
		cfg.Embedding.Mock = true
	}

	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.Int("cache_capacity", cfg.Cache.Capacity),
	)

	gateway := embedding.NewGateway(func() (embedding.Embedder, error) {
		return embedding.NewEmbedder(&cfg.Embedding)
	}, logger)
	defer gateway.Close()

	orch := orchestrator.New(gateway, cache.New(cfg.Cache.Capacity), logger)
	srv := server.NewServer(orch, &cfg.Server, logger)

	// The model load can take a while; serve requests immediately and answer
	// 503 until the gateway reports ready. A failed load is fatal: the
	// process must not keep running while pretending it will become ready.
	go func() {
		if err := gateway.Initialize(context.Background()); err != nil {
			logger.Fatal("Failed to initialize embedding model", zap.Error(err))
		}
	}()

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runEmbed() {
	fs := flag.NewFlagSet("embed", flag.ExitOnError)
	serverURL := fs.String("server", "", "server URL (default derived from config)")
	configPath := fs.String("config", defaultConfigPath, "config file path")
	batch := fs.Bool("batch", false, "treat each argument as a separate text and embed them as one batch")
	jsonOut := fs.Bool("json", false, "output JSON instead of text")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: kioku embed [flags] <text>...\n\n")
		fmt.Fprintf(fs.Output(), "Without -batch, all arguments are joined into one text.\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}
	base := resolveServerURL(*serverURL, *configPath)
	format := cli.OutputText
	if *jsonOut {
		format = cli.OutputJSON
	}

	var results []cli.EmbedResult
	var err error
	if *batch {
		results, err = embedBatchViaHTTP(base, fs.Args())
	} else {
		text := buildEmbedText(fs.Args())
		results, err = embedOneViaHTTP(base, text)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embed failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteEmbedResults(os.Stdout, results, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	serverURL := fs.String("server", "", "server URL (default derived from config)")
	configPath := fs.String("config", defaultConfigPath, "config file path")
	jsonOut := fs.Bool("json", false, "output JSON instead of text")
	_ = fs.Parse(os.Args[2:])

	base := resolveServerURL(*serverURL, *configPath)
	stats, err := statsViaHTTP(base)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
		os.Exit(1)
	}
	format := cli.OutputText
	if *jsonOut {
		format = cli.OutputJSON
	}
	if err := cli.WriteStats(os.Stdout, *stats, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runClear() {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	serverURL := fs.String("server", "", "server URL (default derived from config)")
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	base := resolveServerURL(*serverURL, *configPath)
	resp, err := http.Post(base+"/api/v1/cache/clear", "application/json", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Clear failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	var body struct {
		Cleared int `json:"cleared"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		fmt.Fprintf(os.Stderr, "Clear failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Removed %d cached embeddings\n", body.Cleared)
}

// buildEmbedText joins all positional args with spaces so multi-word texts
// work the same with or without shell quoting.
func buildEmbedText(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// resolveServerURL returns explicit when set, otherwise a URL built from the
// config's server host and port.
func resolveServerURL(explicit, configPath string) string {
	if explicit != "" {
		return strings.TrimSuffix(explicit, "/")
	}
	cfg, _, err := loadConfig(configPath)
	if err != nil || cfg == nil {
		return "http://localhost:3000"
	}
	return fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
}

func embedOneViaHTTP(base, text string) ([]cli.EmbedResult, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(base+"/api/v1/embed", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkAPIError(resp); err != nil {
		return nil, err
	}
	var out struct {
		Embedding  []float32 `json:"embedding"`
		Dimensions int       `json:"dimensions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return []cli.EmbedResult{{Text: text, Embedding: out.Embedding, Dimensions: out.Dimensions}}, nil
}

func embedBatchViaHTTP(base string, texts []string) ([]cli.EmbedResult, error) {
	body, err := json.Marshal(map[string][]string{"texts": texts})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(base+"/api/v1/embed/batch", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkAPIError(resp); err != nil {
		return nil, err
	}
	var out struct {
		Embeddings [][]float32 `json:"embeddings"`
		Count      int         `json:"count"`
		Dimensions int         `json:"dimensions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	results := make([]cli.EmbedResult, len(out.Embeddings))
	for i, emb := range out.Embeddings {
		results[i] = cli.EmbedResult{Text: texts[i], Embedding: emb, Dimensions: out.Dimensions}
	}
	return results, nil
}

func statsViaHTTP(base string) (*cli.StatsResult, error) {
	resp, err := http.Get(base + "/health")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkAPIError(resp); err != nil {
		return nil, err
	}
	var out struct {
		Status     string `json:"status"`
		ModelReady bool   `json:"modelReady"`
		Dimensions int    `json:"dimensions"`
		Stats      struct {
			Requests  uint64 `json:"requests"`
			CacheHits uint64 `json:"cacheHits"`
			CacheSize int    `json:"cacheSize"`
			HitRate   string `json:"hitRate"`
		} `json:"stats"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &cli.StatsResult{
		Status:     out.Status,
		ModelReady: out.ModelReady,
		Dimensions: out.Dimensions,
		Requests:   out.Stats.Requests,
		CacheHits:  out.Stats.CacheHits,
		CacheSize:  out.Stats.CacheSize,
		HitRate:    out.Stats.HitRate,
	}, nil
}

// checkAPIError turns a non-2xx response into an error carrying the server's
// error message.
func checkAPIError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	data, _ := io.ReadAll(resp.Body)
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}
