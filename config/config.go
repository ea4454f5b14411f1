// Package config loads and validates the kernel's YAML configuration: the
// declarative shape of workers, memory adapters, approvals, MCP transports,
// local tools, and bridge options. Handler and adapter implementations are
// Go code, not YAML — config only carries the binding keys a composition
// root resolves against a caller-supplied registry of implementations.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"goa.design/agentkernel/kernelerrors"
)

type (
	// Config is the recognised top-level configuration shape.
	Config struct {
		Workers   []WorkerConfig  `yaml:"workers"`
		Memory    MemoryConfig    `yaml:"memory"`
		Approvals *ApprovalsConfig `yaml:"approvals,omitempty"`
		MCP       MCPConfig       `yaml:"mcp,omitempty"`
		Tools     []string        `yaml:"tools,omitempty"`
		Bridge    BridgeConfig    `yaml:"bridge,omitempty"`
		// MaxToolTokens caps the Tool Router's per-invocation token budget.
		// Zero disables enforcement.
		MaxToolTokens int `yaml:"maxToolTokens,omitempty"`
	}

	// WorkerConfig declares one worker binding: Handler names the
	// implementation a caller registers at composition time.
	WorkerConfig struct {
		Name         string   `yaml:"name"`
		Description  string   `yaml:"description,omitempty"`
		Capabilities []string `yaml:"capabilities"`
		Handler      string   `yaml:"handler"`
	}

	// MemoryConfig names the session store and optional RAG adapter
	// bindings.
	MemoryConfig struct {
		Session string `yaml:"session"`
		RAG     string `yaml:"rag,omitempty"`
	}

	// ApprovalsConfig enables the Approval Gate and names its decider
	// binding.
	ApprovalsConfig struct {
		Require bool   `yaml:"require"`
		Gate    string `yaml:"gate,omitempty"`
	}

	// MCPConfig lists stdio and streamable-HTTP MCP client configurations.
	MCPConfig struct {
		Stdio          []StdioMCPConfig `yaml:"stdio,omitempty"`
		StreamableHTTP []HTTPMCPConfig  `yaml:"streamableHttp,omitempty"`
	}

	// StdioMCPConfig configures one child-process MCP client.
	StdioMCPConfig struct {
		Name    string   `yaml:"name"`
		Command string   `yaml:"command"`
		Args    []string `yaml:"args,omitempty"`
		Dir     string   `yaml:"cwd,omitempty"`
	}

	// HTTPMCPConfig configures one streaming-HTTP MCP client. URL must use
	// the https scheme.
	HTTPMCPConfig struct {
		Name    string            `yaml:"name"`
		URL     string            `yaml:"url"`
		Headers map[string]string `yaml:"headers,omitempty"`
	}

	// BridgeConfig carries the Transport Bridge's retry/logging options.
	// TimeoutMS defaults to 30000 and Retries to 3 when unset.
	BridgeConfig struct {
		TimeoutMS int  `yaml:"timeoutMs,omitempty"`
		Retries   *int `yaml:"retries,omitempty"`
		Logging   bool `yaml:"logging,omitempty"`
	}
)

const (
	defaultBridgeTimeoutMS = 30000
	defaultBridgeRetries   = 3
	minBridgeTimeoutMS     = 1000
)

// Load reads and parses a YAML configuration file, applying defaults and
// validating it before returning.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, kernelerrors.ConfigInvalid(fmt.Sprintf("reading config file %q", path), err)
	}
	return Parse(data)
}

// Parse parses YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, kernelerrors.ConfigInvalid("parsing yaml configuration", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Bridge.TimeoutMS == 0 {
		c.Bridge.TimeoutMS = defaultBridgeTimeoutMS
	}
	if c.Bridge.Retries == nil {
		retries := defaultBridgeRetries
		c.Bridge.Retries = &retries
	}
}

func (c *Config) validate() error {
	if len(c.Workers) == 0 {
		return kernelerrors.ConfigInvalid("configuration requires at least one worker", nil)
	}
	seenNames := make(map[string]bool, len(c.Workers))
	for _, w := range c.Workers {
		if w.Name == "" {
			return kernelerrors.ConfigInvalid("worker entry missing name", nil)
		}
		if seenNames[w.Name] {
			return kernelerrors.ConfigInvalid(fmt.Sprintf("duplicate worker name %q in configuration", w.Name), nil)
		}
		seenNames[w.Name] = true
		if len(w.Capabilities) == 0 {
			return kernelerrors.ConfigInvalid(fmt.Sprintf("worker %q declares no capabilities", w.Name), nil)
		}
		if w.Handler == "" {
			return kernelerrors.ConfigInvalid(fmt.Sprintf("worker %q missing handler binding", w.Name), nil)
		}
	}

	if c.Memory.Session == "" {
		return kernelerrors.ConfigInvalid("memory.session binding is required", nil)
	}

	if c.Approvals != nil && c.Approvals.Require && c.Approvals.Gate == "" {
		return kernelerrors.ConfigInvalid("approvals.require is true but approvals.gate binding is missing", nil)
	}

	for _, s := range c.MCP.Stdio {
		if s.Name == "" || s.Command == "" {
			return kernelerrors.ConfigInvalid("mcp.stdio entries require name and command", nil)
		}
	}
	for _, h := range c.MCP.StreamableHTTP {
		if h.Name == "" {
			return kernelerrors.ConfigInvalid("mcp.streamableHttp entry missing name", nil)
		}
		if !strings.HasPrefix(h.URL, "https://") {
			return kernelerrors.ConfigInvalid(fmt.Sprintf("mcp.streamableHttp %q url must use https", h.Name), nil)
		}
	}

	if c.Bridge.TimeoutMS < minBridgeTimeoutMS {
		return kernelerrors.ConfigInvalid(fmt.Sprintf("bridge.timeoutMs must be >= %d", minBridgeTimeoutMS), nil)
	}
	if c.Bridge.Retries != nil && *c.Bridge.Retries < 0 {
		return kernelerrors.ConfigInvalid("bridge.retries must be >= 0", nil)
	}

	if c.MaxToolTokens < 0 {
		return kernelerrors.ConfigInvalid("maxToolTokens must be >= 0", nil)
	}

	return nil
}

// BridgeTimeout returns Bridge.TimeoutMS as a time.Duration.
func (c *Config) BridgeTimeout() time.Duration {
	return time.Duration(c.Bridge.TimeoutMS) * time.Millisecond
}

// BridgeRetries returns Bridge.Retries as a uint64, defaulting to 0 if
// unset (Load/Parse always set it, so this only matters for a Config built
// by hand).
func (c *Config) BridgeRetries() uint64 {
	if c.Bridge.Retries == nil {
		return 0
	}
	return uint64(*c.Bridge.Retries)
}
