// Package config loads runtime settings from the environment, with optional
// .env file support for local development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds process-level settings. Agent behavior lives in agent
// definitions; this covers only the hosting environment.
type Config struct {
	// FileRoot is the sandbox directory for file tools.
	FileRoot string
	// HTTPAllowlist restricts hostnames the http tool may reach. Empty allows
	// all hosts.
	HTTPAllowlist []string
	// ToolTimeout bounds each tool invocation.
	ToolTimeout time.Duration
	// AWSRegion selects the Bedrock region.
	AWSRegion string
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// LogFormat is "json" or "text".
	LogFormat string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		FileRoot:    ".",
		ToolTimeout: 30 * time.Second,
		AWSRegion:   "us-east-1",
		LogLevel:    "info",
		LogFormat:   "json",
	}
}

// FromEnv loads configuration from AGENTFORGE_* environment variables on top
// of the defaults. A .env file in the working directory is loaded first when
// present; a missing file is not an error.
func FromEnv() Config {
	_ = godotenv.Load()

	cfg := Default()

	if v := os.Getenv("AGENTFORGE_FILE_ROOT"); v != "" {
		cfg.FileRoot = v
	}
	if v := os.Getenv("AGENTFORGE_HTTP_ALLOWLIST"); v != "" {
		for _, host := range strings.Split(v, ",") {
			if host = strings.TrimSpace(host); host != "" {
				cfg.HTTPAllowlist = append(cfg.HTTPAllowlist, host)
			}
		}
	}
	if v := os.Getenv("AGENTFORGE_TOOL_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.ToolTimeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.AWSRegion = v
	}
	if v := os.Getenv("AGENTFORGE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("AGENTFORGE_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}
