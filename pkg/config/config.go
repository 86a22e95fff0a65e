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

// Package config holds the process-wide, read-only-after-init configuration
// for the gateway core: backend credentials, orchestrator budgets, and
// agentic-search tuning flags.
package config

import (
	"fmt"
	"time"

	"github.com/kadirpekel/agentgate/pkg/observability"
	"github.com/kadirpekel/agentgate/pkg/vector"
)

// OrchestratorConfig bounds the Response Orchestrator's iteration loop.
type OrchestratorConfig struct {
	// MaxToolCalls caps the total number of tool executions across all
	// iterations of a single response. Default 10, range 1..100.
	MaxToolCalls int `yaml:"max_tool_calls,omitempty"`

	// MaxDuration bounds wall-clock time from the `created` event to a
	// terminal event. Default 60s, range 1s..10m.
	MaxDuration time.Duration `yaml:"max_duration,omitempty"`
}

// SetDefaults applies default values.
func (c *OrchestratorConfig) SetDefaults() {
	if c.MaxToolCalls == 0 {
		c.MaxToolCalls = 10
	}
	if c.MaxDuration == 0 {
		c.MaxDuration = 60 * time.Second
	}
}

// Validate checks the orchestrator configuration.
func (c *OrchestratorConfig) Validate() error {
	if c.MaxToolCalls < 1 || c.MaxToolCalls > 100 {
		return fmt.Errorf("max_tool_calls must be between 1 and 100, got %d", c.MaxToolCalls)
	}
	if c.MaxDuration < time.Second || c.MaxDuration > 10*time.Minute {
		return fmt.Errorf("max_duration must be between 1s and 10m, got %s", c.MaxDuration)
	}
	return nil
}

// SearchTuningConfig enables or disables per-parameter hyperparameter
// tuning in the Agentic Search Engine; a disabled parameter is held at
// its base value instead of being adjusted per round.
type SearchTuningConfig struct {
	EnableTemperatureTuning     bool `yaml:"enable_temperature_tuning,omitempty"`
	EnableTopPTuning            bool `yaml:"enable_top_p_tuning,omitempty"`
	EnablePresencePenaltyTuning bool `yaml:"enable_presence_penalty_tuning,omitempty"`
	EnableFrequencyPenaltyTuning bool `yaml:"enable_frequency_penalty_tuning,omitempty"`
}

// SetDefaults enables all tuning dimensions by default.
func (c *SearchTuningConfig) SetDefaults() {
	c.EnableTemperatureTuning = true
	c.EnableTopPTuning = true
	c.EnablePresencePenaltyTuning = true
	c.EnableFrequencyPenaltyTuning = true
}

// AgenticSearchConfig holds C2's bounds and seed strategy as loaded and
// validated from the config file. cmd/gateway does not pass it on: the
// agentic_search tool uses its own per-call defaults (max_results 10,
// max_iterations 5, the "default" seed strategy, every tuning dimension
// enabled), the engine's seed multiplier is a fixed 3, and the hybrid
// seed strategy's alpha is a fixed 0.5.
type AgenticSearchConfig struct {
	// MaxIterations bounds the main refinement loop (not counting the
	// initial decision). Default 5, range 1..20.
	MaxIterations int `yaml:"max_iterations,omitempty"`

	// MaxResults caps the running result buffer. Default 20.
	MaxResults int `yaml:"max_results,omitempty"`

	// InitialSeedMultiplier scales the pre-seed fetch size relative to
	// MaxResults, capped at 100. Default 3, range 1..10.
	InitialSeedMultiplier int `yaml:"initial_seed_multiplier,omitempty"`

	// AlphaDefault is the dense/lexical mixing weight for the hybrid
	// seed strategy (1.0 = dense only). Default 0.5.
	AlphaDefault float64 `yaml:"alpha_default,omitempty"`

	// SeedStrategy names the strategy used for the initial fetch:
	// "default" (dense) or "hybrid". Unknown names fall back to "default".
	SeedStrategy string `yaml:"seed_strategy,omitempty"`

	Tuning SearchTuningConfig `yaml:"tuning,omitempty"`
}

// SetDefaults applies default values.
func (c *AgenticSearchConfig) SetDefaults() {
	if c.MaxIterations == 0 {
		c.MaxIterations = 5
	}
	if c.MaxResults == 0 {
		c.MaxResults = 20
	}
	if c.InitialSeedMultiplier == 0 {
		c.InitialSeedMultiplier = 3
	}
	if c.AlphaDefault == 0 {
		c.AlphaDefault = 0.5
	}
	if c.SeedStrategy == "" {
		c.SeedStrategy = "default"
	}
	c.Tuning.SetDefaults()
}

// Validate checks the agentic search configuration.
func (c *AgenticSearchConfig) Validate() error {
	if c.MaxIterations < 1 || c.MaxIterations > 20 {
		return fmt.Errorf("max_iterations must be between 1 and 20, got %d", c.MaxIterations)
	}
	if c.MaxResults < 1 {
		return fmt.Errorf("max_results must be positive, got %d", c.MaxResults)
	}
	if c.InitialSeedMultiplier < 1 || c.InitialSeedMultiplier > 10 {
		return fmt.Errorf("initial_seed_multiplier must be between 1 and 10, got %d", c.InitialSeedMultiplier)
	}
	if c.AlphaDefault < 0 || c.AlphaDefault > 1 {
		return fmt.Errorf("alpha_default must be between 0 and 1, got %f", c.AlphaDefault)
	}
	return nil
}

// Config is the top-level, process-wide configuration for the gateway.
// It is loaded once at startup and treated as read-only thereafter.
type Config struct {
	Backend       LLMConfig              `yaml:"backend,omitempty"`
	SearchLLM     LLMConfig              `yaml:"search_llm,omitempty"`
	Orchestrator  OrchestratorConfig     `yaml:"orchestrator,omitempty"`
	AgenticSearch AgenticSearchConfig    `yaml:"agentic_search,omitempty"`
	Logger        LoggerConfig           `yaml:"logger,omitempty"`

	// VectorStores names every Vector Store Client the gateway can
	// dispatch to; keys are the store IDs the file_search/agentic_search
	// tools and StoreIDs filters reference.
	VectorStores map[string]vector.ProviderConfig `yaml:"vector_stores,omitempty"`

	// Observability configures the tracing/metrics sink passed into
	// the Response Orchestrator and Agentic Search Engine.
	Observability observability.Config `yaml:"observability,omitempty"`
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.Backend.SetDefaults()
	c.SearchLLM.SetDefaults()
	c.Orchestrator.SetDefaults()
	c.AgenticSearch.SetDefaults()
	c.Logger.SetDefaults()
	c.Observability.SetDefaults()
	for name, vs := range c.VectorStores {
		vs.SetDefaults()
		c.VectorStores[name] = vs
	}
}

// Validate validates every section.
func (c *Config) Validate() error {
	if err := c.Backend.Validate(); err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	if err := c.Orchestrator.Validate(); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	if err := c.AgenticSearch.Validate(); err != nil {
		return fmt.Errorf("agentic_search: %w", err)
	}
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	for name, vs := range c.VectorStores {
		if err := vs.Validate(); err != nil {
			return fmt.Errorf("vector_stores[%s]: %w", name, err)
		}
	}
	return nil
}
