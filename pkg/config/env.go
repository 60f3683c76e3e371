package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SKADI_"

// envVar binds one environment variable to a setting.
type envVar struct {
	name  string
	apply func(s *Settings, value string) error
}

func stringVar(name string, field func(*Settings) *string) envVar {
	return envVar{name: name, apply: func(s *Settings, v string) error {
		*field(s) = v
		return nil
	}}
}

func intVar(name string, field func(*Settings) *int) envVar {
	return envVar{name: name, apply: func(s *Settings, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(s) = n
		return nil
	}}
}

func boolVar(name string, field func(*Settings) *bool) envVar {
	return envVar{name: name, apply: func(s *Settings, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(s) = b
		return nil
	}}
}

func durationVar(name string, field func(*Settings) *time.Duration) envVar {
	return envVar{name: name, apply: func(s *Settings, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(s) = d
		return nil
	}}
}

// envVars lists the supported overrides in application order.
var envVars = []envVar{
	stringVar("SKADI_API_KEY", func(s *Settings) *string { return &s.Synthesis.APIKey }),
	stringVar("SKADI_MODEL", func(s *Settings) *string { return &s.Synthesis.Model }),
	stringVar("SKADI_BASE_URL", func(s *Settings) *string { return &s.Synthesis.BaseURL }),
	durationVar("SKADI_TIMEOUT", func(s *Settings) *time.Duration { return &s.Synthesis.Timeout }),
	intVar("SKADI_REQUESTS_PER_MINUTE", func(s *Settings) *int { return &s.Synthesis.RequestsPerMinute }),
	intVar("SKADI_MAX_RETRIES", func(s *Settings) *int { return &s.Generation.MaxRetries }),
	boolVar("SKADI_USE_KNOWLEDGE", func(s *Settings) *bool { return &s.Knowledge.Enabled }),
	intVar("SKADI_MAX_KNOWLEDGE_TOKENS", func(s *Settings) *int { return &s.Knowledge.MaxTokens }),
	stringVar("SKADI_DOCS_DB", func(s *Settings) *string { return &s.Docs.DBPath }),
	boolVar("SKADI_CONTEXT7_ENABLED", func(s *Settings) *bool { return &s.Docs.Context7.Enabled }),
	stringVar("SKADI_CONTEXT7_URL", func(s *Settings) *string { return &s.Docs.Context7.BaseURL }),
	stringVar("SKADI_CONTEXT7_API_KEY", func(s *Settings) *string { return &s.Docs.Context7.APIKey }),
	stringVar("SKADI_LOG_LEVEL", func(s *Settings) *string { return &s.Telemetry.Logging.Level }),
	stringVar("SKADI_LOG_FORMAT", func(s *Settings) *string { return &s.Telemetry.Logging.Format }),
	stringVar("SKADI_METRICS_ADDR", func(s *Settings) *string { return &s.Telemetry.Metrics.ListenAddress }),
	stringVar("SKADI_CIRCUIT_FILE", func(s *Settings) *string { return &s.CircuitFile }),
}

// EnvVars returns the names of the supported environment overrides.
func EnvVars() []string {
	names := make([]string, len(envVars))
	for i, v := range envVars {
		names[i] = v.name
	}
	return names
}

// applyEnv overlays environment overrides on s. Empty values are ignored.
// OPENROUTER_API_KEY is accepted when SKADI_API_KEY is unset.
func applyEnv(s *Settings, lookup func(string) (string, bool)) error {
	if lookup == nil {
		return nil
	}
	var errs Errors
	for _, v := range envVars {
		value, ok := lookup(v.name)
		value = strings.TrimSpace(value)
		if !ok || value == "" {
			continue
		}
		if err := v.apply(s, value); err != nil {
			errs = append(errs, ValidationError{
				Path:    v.name,
				Message: fmt.Sprintf("invalid value %q: %v", value, err),
			})
		}
	}
	if s.Synthesis.APIKey == "" {
		if key, ok := lookup("OPENROUTER_API_KEY"); ok {
			s.Synthesis.APIKey = strings.TrimSpace(key)
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
