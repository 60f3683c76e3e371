package config

import (
	"fmt"

	"cuelang.org/go/cue"
)

// settingsSchema constrains CUE settings files. The definition is closed,
// so misspelled keys are reported instead of ignored. Durations are Go
// duration strings such as "30s" or "1m30s".
const settingsSchema = `
#Duration: string & =~"^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"

#Synthesis: {
	api_key?:             string
	model?:               string & !=""
	base_url?:            string & =~"^https?://"
	timeout?:             #Duration
	requests_per_minute?: int & >=0
	temperature?:         number & >=0 & <=2
	max_tokens?:          int & >=0
}

#Generation: {
	max_retries?:   int & >=1 & <=20
	step_budget?:   int & >=0
	trace_timeout?: #Duration
}

#Knowledge: {
	use_knowledge?:        bool
	use_pennylane_kb?:     bool
	pennylane_kb_top_k?:   int & >=0
	use_context7?:         bool
	context7_top_k?:       int & >=0
	max_knowledge_tokens?: int & >=0
	context7_library_id?:  string & =~"^/"
}

#Context7: {
	enabled?:             bool
	base_url?:            string & =~"^https?://"
	api_key?:             string
	timeout?:             #Duration
	requests_per_minute?: int & >=0
}

#Docs: {
	db_path?:  string & !=""
	max_docs?: int & >=0
	context7?: #Context7
}

#Optimization: {
	levels?: [string]: [string, ...string]
}

#Policy: {
	enabled?: bool
	paths?: [...string]
	limits?: {
		max_depth?:            int & >=0
		max_wires?:            int & >=0
		max_entangling_gates?: int & >=0
	}
}

#Telemetry: {
	service_name?:    string
	service_version?: string
	environment?:     string
	logging?: {
		level?:         "trace" | "debug" | "info" | "warn" | "error" | "fatal" | "disabled"
		format?:        "console" | "json"
		output?:        string
		enable_caller?: bool
		time_format?:   "unix" | "unixms" | "rfc3339"
	}
	tracing?: {
		enabled?:        bool
		exporter?:       "otlp" | "stdout" | "none"
		endpoint?:       string
		sampling_rate?:  number & >=0 & <=1
		export_timeout?: #Duration
		headers?: [string]: string
		insecure?: bool
	}
	metrics?: {
		enabled?:        bool
		listen_address?: string
		path?:           string
		namespace?:      string
		duration_buckets?: [...number]
	}
	events?: {
		enabled?: bool
		history?: int & >=0
	}
}

#Settings: {
	synthesis?:    #Synthesis
	generation?:   #Generation
	knowledge?:    #Knowledge
	docs?:         #Docs
	optimization?: #Optimization
	policy?:       #Policy
	telemetry?:    #Telemetry
	circuit_file?: string & !=""
}
`

// compileSchema returns the #Settings definition.
func compileSchema(ctx *cue.Context) (cue.Value, error) {
	val := ctx.CompileString(settingsSchema, cue.Filename("settings_schema.cue"))
	if err := val.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("failed to compile settings schema: %w", err)
	}
	def := val.LookupPath(cue.ParsePath("#Settings"))
	if err := def.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("settings schema has no #Settings definition: %w", err)
	}
	return def, nil
}
