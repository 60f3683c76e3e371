// Package config loads process settings for the circuit pipeline.
//
// Settings start from Defaults, are overlaid with a YAML, JSON or CUE file
// and then with SKADI_* environment variables, and are finally validated.
//
// # Files
//
// CUE files are unified with a closed #Settings schema before decoding, so
// unknown keys and out-of-range values are reported with file positions:
//
//	synthesis: {
//		model:   "anthropic/claude-haiku-4.5"
//		timeout: "45s"
//	}
//	optimization: levels: {
//		bell: ["cancel_inverses", "merge_rotations"]
//	}
//
// YAML and JSON files use the same keys and are decoded strictly.
//
// # Environment
//
// The overrides are listed by EnvVars. SKADI_API_KEY falls back to
// OPENROUTER_API_KEY when unset.
//
// # Usage
//
//	settings, err := config.Load("skadi.yaml")
//	if err != nil {
//	    return err
//	}
//	client, err := synthesis.NewClient(settings.SynthesisConfig(), tel)
package config
