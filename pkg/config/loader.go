package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"unicode"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Loader reads settings files and validates the result.
type Loader struct {
	ctx       *cue.Context
	schema    cue.Value
	validator *validator.Validate
	lookupEnv func(string) (string, bool)
}

// NewLoader creates a loader that reads environment overrides from the
// process environment.
func NewLoader() (*Loader, error) {
	ctx := cuecontext.New()
	schema, err := compileSchema(ctx)
	if err != nil {
		return nil, err
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Loader{
		ctx:       ctx,
		schema:    schema,
		validator: v,
		lookupEnv: os.LookupEnv,
	}, nil
}

// WithEnv replaces the environment lookup, mainly for tests.
func (l *Loader) WithEnv(lookup func(string) (string, bool)) *Loader {
	l.lookupEnv = lookup
	return l
}

// Load returns the defaults overlaid with the file at path, if any, and
// then with SKADI_* environment variables. path may be empty. Files ending
// in .cue are checked against the settings schema; .yaml, .yml and .json
// files are decoded directly.
func (l *Loader) Load(path string) (*Settings, error) {
	s := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read settings file: %w", err)
		}
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".cue":
			if err := l.decodeCUE(data, path, s); err != nil {
				return nil, err
			}
		case ".yaml", ".yml", ".json":
			if err := decodeYAML(data, path, s); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unsupported settings file type %q", ext)
		}
		s.SourceFile = path
	}

	if err := applyEnv(s, l.lookupEnv); err != nil {
		return nil, err
	}
	if err := l.Validate(s); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadInline parses CUE settings from content, without a file.
func (l *Loader) LoadInline(content string) (*Settings, error) {
	s := Defaults()
	if err := l.decodeCUE([]byte(content), "inline", s); err != nil {
		return nil, err
	}
	if err := l.Validate(s); err != nil {
		return nil, err
	}
	return s, nil
}

// decodeCUE unifies the file with the schema and decodes the concrete
// result into s. JSON is a subset of YAML, so the exported value goes
// through the same decoder as YAML files and durations are parsed once.
func (l *Loader) decodeCUE(data []byte, filename string, s *Settings) error {
	val := l.ctx.CompileBytes(data, cue.Filename(filename))
	if err := val.Err(); err != nil {
		return convertCUEErrors(err)
	}

	unified := l.schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return convertCUEErrors(err)
	}

	exported, err := unified.MarshalJSON()
	if err != nil {
		return convertCUEErrors(err)
	}
	return decodeYAML(exported, filename, s)
}

func decodeYAML(data []byte, filename string, s *Settings) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return Errors{{File: filename, Message: err.Error()}}
	}
	return nil
}

// Validate checks struct constraints and the rules that span fields.
func (l *Loader) Validate(s *Settings) error {
	var errs Errors
	if err := l.validator.Struct(s); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs = append(errs, ValidationError{
					File:    s.SourceFile,
					Path:    fieldPath(fe.Namespace()),
					Message: fmt.Sprintf("failed %q constraint", tagWithParam(fe)),
				})
			}
		} else {
			errs = append(errs, ValidationError{File: s.SourceFile, Message: err.Error()})
		}
	}

	if s.Knowledge.Enabled && !s.Knowledge.UseConcepts && !s.Knowledge.UseDocs {
		errs = append(errs, ValidationError{
			File:    s.SourceFile,
			Path:    "knowledge",
			Message: "at least one knowledge source must be enabled when use_knowledge is true",
		})
	}
	if err := s.Telemetry.Validate(); err != nil {
		errs = append(errs, ValidationError{File: s.SourceFile, Path: "telemetry", Message: err.Error()})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Load reads settings with a fresh loader and the process environment.
func Load(path string) (*Settings, error) {
	l, err := NewLoader()
	if err != nil {
		return nil, err
	}
	return l.Load(path)
}

// convertCUEErrors converts CUE errors to settings errors with positions.
func convertCUEErrors(err error) Errors {
	var out Errors
	for _, e := range cueerrors.Errors(err) {
		ve := ValidationError{
			Path:    strings.Join(e.Path(), "."),
			Message: strings.TrimSpace(cueerrors.Details(e, nil)),
		}
		if pos := cueerrors.Positions(e); len(pos) > 0 {
			ve.File = pos[0].Filename()
			ve.Line = pos[0].Line()
			ve.Column = pos[0].Column()
		}
		out = append(out, ve)
	}
	if len(out) == 0 {
		out = Errors{{Message: err.Error()}}
	}
	return out
}

// fieldPath turns a validator namespace into a settings path. Go type and
// embedded field names are dropped; settings keys are lower case.
func fieldPath(namespace string) string {
	var keep []string
	for _, part := range strings.Split(namespace, ".") {
		if part == "" || unicode.IsUpper([]rune(part)[0]) {
			continue
		}
		keep = append(keep, part)
	}
	return strings.Join(keep, ".")
}

func tagWithParam(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

func formatPosition(file string, line, column int) string {
	if column > 0 {
		return fmt.Sprintf("%s:%d:%d", file, line, column)
	}
	return fmt.Sprintf("%s:%d", file, line)
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n  ")
}
