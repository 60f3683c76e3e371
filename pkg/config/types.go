package config

import (
	"time"

	"github.com/skadi/skadi/pkg/generator"
	"github.com/skadi/skadi/pkg/knowledge"
	"github.com/skadi/skadi/pkg/policy"
	"github.com/skadi/skadi/pkg/stores"
	"github.com/skadi/skadi/pkg/synthesis"
	"github.com/skadi/skadi/pkg/telemetry"
)

// Settings is the complete process configuration. It is built once at the
// process boundary and handed to constructors.
type Settings struct {
	// Synthesis configures the program synthesis client.
	Synthesis SynthesisSettings `yaml:"synthesis" json:"synthesis"`

	// Generation configures the generation loop.
	Generation GenerationSettings `yaml:"generation" json:"generation"`

	// Knowledge selects the knowledge providers.
	Knowledge KnowledgeSettings `yaml:"knowledge" json:"knowledge"`

	// Docs configures the API documentation cache and its upstream.
	Docs DocsSettings `yaml:"docs" json:"docs"`

	// Optimization adds custom optimization levels.
	Optimization OptimizationSettings `yaml:"optimization" json:"optimization"`

	// Policy configures circuit policy evaluation.
	Policy PolicySettings `yaml:"policy" json:"policy"`

	// Telemetry configures logging, tracing, metrics and events.
	Telemetry telemetry.Config `yaml:"telemetry" json:"telemetry"`

	// CircuitFile is the circuit file the CLI operates on.
	CircuitFile string `yaml:"circuit_file" json:"circuit_file" validate:"required"`

	// SourceFile is the settings file that was loaded, if any.
	SourceFile string `yaml:"-" json:"-"`
}

// SynthesisSettings configures the program synthesis client.
type SynthesisSettings struct {
	// APIKey authenticates against the completion endpoint.
	APIKey string `yaml:"api_key" json:"api_key"`

	// Model is the model id, e.g. "anthropic/claude-haiku-4.5".
	Model string `yaml:"model" json:"model" validate:"required"`

	// BaseURL is an OpenAI-compatible endpoint. Empty selects OpenRouter.
	BaseURL string `yaml:"base_url" json:"base_url" validate:"omitempty,url"`

	// Timeout bounds each completion request.
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gte=0"`

	// RequestsPerMinute limits the call rate. Zero disables limiting.
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute" validate:"gte=0"`

	Temperature float32 `yaml:"temperature" json:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens" validate:"gte=0"`
}

// GenerationSettings configures the generation loop.
type GenerationSettings struct {
	// MaxRetries is the number of synthesis attempts per request.
	MaxRetries int `yaml:"max_retries" json:"max_retries" validate:"gte=1,lte=20"`

	// StepBudget bounds the interpreter steps of loading and each trace.
	// Zero selects the interpreter default.
	StepBudget uint64 `yaml:"step_budget" json:"step_budget"`

	// TraceTimeout bounds loading and each trace. Zero selects the
	// interpreter default.
	TraceTimeout time.Duration `yaml:"trace_timeout" json:"trace_timeout" validate:"gte=0"`
}

// KnowledgeSettings selects the knowledge providers.
type KnowledgeSettings struct {
	// Enabled turns knowledge augmentation on or off as a whole.
	Enabled bool `yaml:"use_knowledge" json:"use_knowledge"`

	knowledge.Config `yaml:",inline"`
}

// DocsSettings configures the API documentation cache.
type DocsSettings struct {
	// DBPath is the sqlite database holding cached docs and ingested chunks.
	DBPath string `yaml:"db_path" json:"db_path" validate:"required"`

	// MaxDocs bounds the number of cached docs.
	MaxDocs int `yaml:"max_docs" json:"max_docs" validate:"gte=0"`

	// Context7 configures the upstream documentation service.
	Context7 Context7Settings `yaml:"context7" json:"context7"`
}

// Context7Settings configures the Context7 fetcher.
type Context7Settings struct {
	Enabled           bool          `yaml:"enabled" json:"enabled"`
	BaseURL           string        `yaml:"base_url" json:"base_url" validate:"omitempty,url"`
	APIKey            string        `yaml:"api_key" json:"api_key"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout" validate:"gte=0"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute" validate:"gte=0"`
}

// OptimizationSettings adds custom optimization levels, each an ordered
// list of transform names.
type OptimizationSettings struct {
	Levels map[string][]string `yaml:"levels" json:"levels" validate:"dive,keys,required,endkeys,min=1,dive,required"`
}

// PolicySettings configures circuit policy evaluation.
type PolicySettings struct {
	// Enabled evaluates policies during analysis.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Paths lists extra Rego policy files or directories.
	Paths []string `yaml:"paths" json:"paths" validate:"dive,required"`

	// Limits are the thresholds the built-in policies enforce.
	Limits policy.Limits `yaml:"limits" json:"limits"`
}

// Defaults returns the settings used when nothing is configured.
func Defaults() *Settings {
	return &Settings{
		Synthesis: SynthesisSettings{
			Model:       synthesis.DefaultModel,
			Timeout:     60 * time.Second,
			Temperature: 0.2,
		},
		Generation: GenerationSettings{
			MaxRetries: generator.DefaultMaxRetries,
		},
		Knowledge: KnowledgeSettings{
			Enabled: true,
			Config:  knowledge.DefaultConfig(),
		},
		Docs: DocsSettings{
			DBPath:  ".skadi/docs.db",
			MaxDocs: stores.DefaultMaxDocs,
			Context7: Context7Settings{
				Enabled:           true,
				BaseURL:           knowledge.DefaultContext7URL,
				Timeout:           30 * time.Second,
				RequestsPerMinute: 30,
			},
		},
		Optimization: OptimizationSettings{
			Levels: map[string][]string{},
		},
		Policy: PolicySettings{
			Enabled: true,
			Limits:  policy.DefaultLimits(),
		},
		Telemetry:   *telemetry.DefaultConfig(),
		CircuitFile: "circuit.py",
	}
}

// SynthesisConfig returns the synthesis client configuration.
func (s *Settings) SynthesisConfig() synthesis.Config {
	return synthesis.Config{
		APIKey:            s.Synthesis.APIKey,
		Model:             s.Synthesis.Model,
		BaseURL:           s.Synthesis.BaseURL,
		Timeout:           s.Synthesis.Timeout,
		RequestsPerMinute: s.Synthesis.RequestsPerMinute,
		Temperature:       s.Synthesis.Temperature,
		MaxTokens:         s.Synthesis.MaxTokens,
	}
}

// KnowledgeConfig returns the provider selection. Both providers are off
// when knowledge is disabled as a whole.
func (s *Settings) KnowledgeConfig() knowledge.Config {
	cfg := s.Knowledge.Config
	if !s.Knowledge.Enabled {
		cfg.UseConcepts = false
		cfg.UseDocs = false
	}
	return cfg
}

// StoreConfig returns the doc cache configuration.
func (s *Settings) StoreConfig() stores.Config {
	return stores.Config{Path: s.Docs.DBPath, MaxDocs: s.Docs.MaxDocs}
}

// Context7Config returns the fetcher configuration.
func (s *Settings) Context7Config() knowledge.Context7Config {
	return knowledge.Context7Config{
		BaseURL:           s.Docs.Context7.BaseURL,
		APIKey:            s.Docs.Context7.APIKey,
		Timeout:           s.Docs.Context7.Timeout,
		RequestsPerMinute: s.Docs.Context7.RequestsPerMinute,
	}
}

// ValidationError is a configuration problem with its location.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the settings path of the offending value, e.g. "synthesis.model".
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`
}

// String formats the error with its location.
func (e ValidationError) String() string {
	loc := e.File
	if e.Line > 0 {
		loc = formatPosition(e.File, e.Line, e.Column)
	}
	switch {
	case loc != "" && e.Path != "":
		return loc + ": " + e.Path + ": " + e.Message
	case loc != "":
		return loc + ": " + e.Message
	case e.Path != "":
		return e.Path + ": " + e.Message
	default:
		return e.Message
	}
}

// Errors is the list of problems found while loading settings.
type Errors []ValidationError

// Error joins the problems, one per line.
func (es Errors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.String()
	}
	return "invalid settings:\n  " + joinLines(msgs)
}
