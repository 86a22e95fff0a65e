// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command gateway wires the Response Orchestration Engine (C1) and the
// Agentic Search Engine (C2) into a single process: load configuration,
// construct the backend chat client, vector store registry, tool
// registry, and observability sink, and assemble an
// *gateway.Orchestrator ready for an embedding caller to drive.
//
// This binary intentionally does not start an HTTP server: the
// gateway core's contract is a Go API (gateway.Orchestrator.Create /
// .CreateStream), and REST transport, auth, and request routing are
// external collaborators left to the embedding application.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/kadirpekel/agentgate/pkg/backend"
	"github.com/kadirpekel/agentgate/pkg/config"
	"github.com/kadirpekel/agentgate/pkg/gateway"
	"github.com/kadirpekel/agentgate/pkg/logger"
	"github.com/kadirpekel/agentgate/pkg/observability"
	"github.com/kadirpekel/agentgate/pkg/search"
	"github.com/kadirpekel/agentgate/pkg/tool"
	"github.com/kadirpekel/agentgate/pkg/tool/agentictool"
	"github.com/kadirpekel/agentgate/pkg/tool/searchtool"
	"github.com/kadirpekel/agentgate/pkg/tool/thinktool"
	"github.com/kadirpekel/agentgate/pkg/vector"
)

func main() {
	configPath := flag.String("config", "gateway.yaml", "path to the gateway YAML config file")
	watch := flag.Bool("watch-config", false, "reload configuration on file change")
	flag.Parse()

	if err := config.LoadEnvFiles(); err != nil {
		slog.Warn("failed to load .env files", "error", err)
	}

	cfg, err := loadConfig(*configPath, *watch)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}

	level, err := logger.ParseLevel(cfg.Logger.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
	logOutput := os.Stderr
	if cfg.Logger.File != "" {
		f, closeFn, err := logger.OpenLogFile(cfg.Logger.File)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gateway: failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer closeFn()
		logOutput = f
	}
	logger.Init(level, logOutput, cfg.Logger.Format)

	ctx := context.Background()

	obsManager, err := observability.NewManager(ctx, &cfg.Observability)
	if err != nil {
		slog.Error("failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := obsManager.Shutdown(ctx); err != nil {
			slog.Warn("observability shutdown error", "error", err)
		}
	}()

	var metrics observability.Recorder = observability.NoopMetrics{}
	if obsManager.MetricsEnabled() {
		metrics = obsManager.Metrics()
	}

	var tracer observability.SpanTracer = observability.NoopTracer{}
	if obsManager.TracingEnabled() {
		tracer = obsManager.Tracer()
	}

	orchestrator, err := buildOrchestrator(cfg, metrics, tracer)
	if err != nil {
		slog.Error("failed to build orchestrator", "error", err)
		os.Exit(1)
	}

	slog.Info("gateway core assembled",
		"backend_model", cfg.Backend.Model,
		"search_model", cfg.SearchLLM.Model,
		"max_tool_calls", cfg.Orchestrator.MaxToolCalls,
		"max_duration", cfg.Orchestrator.MaxDuration,
		"vector_stores", len(cfg.VectorStores),
	)

	// The embedding application drives orchestrator.Create /
	// .CreateStream from here; this binary's job ends at assembly.
	_ = orchestrator
}

// vectorRegistryAdapter bridges pkg/vector.Registry's Go-native
// Provider/Result types to the narrower search.Provider/ProviderResult
// shapes the Agentic Search Engine depends on, keeping pkg/search free
// of any pkg/vector import.
type vectorRegistryAdapter struct {
	registry *vector.Registry
}

func (a vectorRegistryAdapter) Get(name string) (search.Provider, bool) {
	p, ok := a.registry.Get(name)
	if !ok {
		return nil, false
	}
	return vectorProviderAdapter{p}, true
}

type vectorProviderAdapter struct {
	provider vector.Provider
}

func (a vectorProviderAdapter) Search(ctx context.Context, collection string, vec []float32, topK int) ([]search.ProviderResult, error) {
	results, err := a.provider.Search(ctx, collection, vec, topK)
	if err != nil {
		return nil, err
	}
	return toProviderResults(results), nil
}

func (a vectorProviderAdapter) SearchWithFilter(ctx context.Context, collection string, vec []float32, topK int, filter map[string]any) ([]search.ProviderResult, error) {
	results, err := a.provider.SearchWithFilter(ctx, collection, vec, topK, filter)
	if err != nil {
		return nil, err
	}
	return toProviderResults(results), nil
}

func toProviderResults(results []vector.Result) []search.ProviderResult {
	out := make([]search.ProviderResult, 0, len(results))
	for _, r := range results {
		out = append(out, search.ProviderResult{
			ID:       r.ID,
			Score:    r.Score,
			Content:  r.Content,
			Metadata: r.Metadata,
		})
	}
	return out
}

func loadConfig(path string, watch bool) (*config.Config, error) {
	loader, err := config.NewLoader(config.LoaderOptions{Path: path, Watch: watch})
	if err != nil {
		return nil, fmt.Errorf("constructing config loader: %w", err)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// buildOrchestrator wires the Backend Chat Client, Vector Store
// Registry, and built-in tool set (think/file_search/agentic_search)
// into an Orchestrator per §4 and §6.
func buildOrchestrator(cfg *config.Config, metrics observability.Recorder, tracer observability.SpanTracer) (*gateway.Orchestrator, error) {
	chatClient, err := backend.NewOpenAIClient(backend.OpenAIConfig{
		APIKey:  cfg.Backend.APIKey,
		BaseURL: cfg.Backend.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("constructing backend chat client: %w", err)
	}

	searchChatClient, err := backend.NewOpenAIClient(backend.OpenAIConfig{
		APIKey:  cfg.SearchLLM.APIKey,
		BaseURL: cfg.SearchLLM.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("constructing search LLM client: %w", err)
	}

	embedder, err := vector.NewOpenAIEmbedder(vector.OpenAIEmbedderConfig{
		APIKey:  cfg.Backend.APIKey,
		BaseURL: cfg.Backend.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("constructing embedder: %w", err)
	}

	vectorRegistry := vector.NewRegistry()
	storeNames := make([]string, 0, len(cfg.VectorStores))
	for name, providerCfg := range cfg.VectorStores {
		providerCfg := providerCfg
		provider, err := vector.NewProvider(&providerCfg)
		if err != nil {
			return nil, fmt.Errorf("constructing vector store %q: %w", name, err)
		}
		if err := vectorRegistry.Register(name, provider); err != nil {
			return nil, fmt.Errorf("registering vector store %q: %w", name, err)
		}
		storeNames = append(storeNames, name)
	}

	searchClient := search.NewVectorRegistryClient(vectorRegistryAdapter{vectorRegistry}, embedder)

	tools := tool.NewRegistry()
	tools.Register(thinktool.New())
	tools.Register(searchtool.New(searchtool.Config{
		Registry:        vectorRegistry,
		Embedder:        embedder,
		AvailableStores: storeNames,
	}))
	tools.Register(agentictool.New(agentictool.Config{
		Client:          searchClient,
		Chat:            searchChatClient,
		Model:           cfg.SearchLLM.Model,
		AvailableStores: storeNames,
	}))

	return gateway.NewOrchestrator(chatClient, tools,
		gateway.WithMaxToolCalls(cfg.Orchestrator.MaxToolCalls),
		gateway.WithMaxDuration(cfg.Orchestrator.MaxDuration),
		gateway.WithResponseStore(gateway.NewMemoryStore()),
		gateway.WithMetrics(metrics),
		gateway.WithTracer(tracer),
	), nil
}
