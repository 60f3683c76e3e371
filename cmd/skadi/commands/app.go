package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/skadi/skadi/pkg/analysis"
	"github.com/skadi/skadi/pkg/circuit"
	"github.com/skadi/skadi/pkg/circuitfile"
	"github.com/skadi/skadi/pkg/config"
	"github.com/skadi/skadi/pkg/engine"
	"github.com/skadi/skadi/pkg/generator"
	"github.com/skadi/skadi/pkg/interpreter"
	"github.com/skadi/skadi/pkg/knowledge"
	"github.com/skadi/skadi/pkg/optimize"
	"github.com/skadi/skadi/pkg/policy"
	"github.com/skadi/skadi/pkg/stores"
	"github.com/skadi/skadi/pkg/synthesis"
	"github.com/skadi/skadi/pkg/telemetry"
	"github.com/skadi/skadi/pkg/transform"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
)

// app holds the components of one command invocation. Components are
// created on first use so commands that never call the synthesizer work
// without an API key.
type app struct {
	settings *config.Settings
	tel      *telemetry.Telemetry
	metrics  *http.Server

	store   *stores.SQLiteStore
	builder *knowledge.Builder
	synth   synthesis.Synthesizer
	online  *generator.Orchestrator
	offline *generator.Orchestrator
	engine  *transform.Engine
}

// newApp loads settings and telemetry for cmd.
func newApp(cmd *cobra.Command) (*app, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		settings.Telemetry.Logging.Level = logLevel
	}
	if circuitPath != "" {
		settings.CircuitFile = circuitPath
	}
	if eventsLevel != "" {
		switch eventsLevel {
		case telemetry.EventLevelInfo, telemetry.EventLevelWarning, telemetry.EventLevelError:
		default:
			return nil, fmt.Errorf("invalid --events level %q (valid: %s, %s, %s)", eventsLevel,
				telemetry.EventLevelInfo, telemetry.EventLevelWarning, telemetry.EventLevelError)
		}
		settings.Telemetry.Events.Enabled = true
	}

	tel, err := telemetry.NewTelemetry(&settings.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a := &app{settings: settings, tel: tel}
	a.metrics = tel.StartMetricsServer()

	tel.Logger.WithFields(map[string]interface{}{
		"command":  cmd.Name(),
		"settings": settings.SourceFile,
		"circuit":  settings.CircuitFile,
	}).Debug("Settings loaded")
	return a, nil
}

// close releases the store and flushes telemetry.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.metrics != nil {
		errs = append(errs, a.metrics.Shutdown(ctx))
	}
	errs = append(errs, a.tel.Shutdown(ctx))
	return errors.Join(errs...)
}

// run builds an app, calls fn inside a traced command operation and
// closes the app.
func run(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) (err error) {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.close(context.WithoutCancel(cmd.Context())); err == nil {
			err = cerr
		}
	}()
	a.streamEvents(cmd.ErrOrStderr())

	ctx := a.tel.WithContext(cmd.Context())
	op := telemetry.StartOperation(ctx, "skadi."+cmd.Name(), attribute.String("skadi.command", cmd.CommandPath()))
	defer func() { op.End(err) }()
	return fn(op.Ctx, a)
}

// streamEvents prints pipeline events at or above the --events level,
// optionally restricted to --event-types, to w.
func (a *app) streamEvents(w io.Writer) {
	if eventsLevel == "" {
		return
	}
	if len(eventTypes) > 0 {
		a.tel.Events.AddFilter(telemetry.FilterByType(eventTypes...))
	}
	a.tel.Events.Subscribe(func(e telemetry.Event) {
		fmt.Fprintf(w, "[%s] %-7s %s", e.Timestamp.Format(time.TimeOnly), e.Level, e.Type)
		if e.CircuitID != "" {
			fmt.Fprintf(w, " circuit=%s", e.CircuitID)
		}
		if e.Message != "" {
			fmt.Fprintf(w, ": %s", e.Message)
		}
		fmt.Fprintln(w)
	}, telemetry.FilterByLevel(eventsLevel))
}

func (a *app) circuitFile() string {
	return a.settings.CircuitFile
}

func (a *app) interpreter() *interpreter.Interpreter {
	return interpreter.New(interpreter.Options{
		Timeout:  a.settings.Generation.TraceTimeout,
		MaxSteps: a.settings.Generation.StepBudget,
	})
}

// synthesizer returns the completion client. It fails without an API key.
func (a *app) synthesizer() (synthesis.Synthesizer, error) {
	if a.synth != nil {
		return a.synth, nil
	}
	client, err := synthesis.NewClient(a.settings.SynthesisConfig(), a.tel)
	if err != nil {
		return nil, err
	}
	a.synth = client
	return client, nil
}

// docStore opens the doc cache, creating its directory.
func (a *app) docStore(ctx context.Context) (*stores.SQLiteStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	cfg := a.settings.StoreConfig()
	if cfg.Path != stores.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create docs directory: %w", err)
		}
	}
	store, err := stores.Open(ctx, cfg, a.tel)
	if err != nil {
		return nil, err
	}
	a.store = store
	return store, nil
}

// knowledgeBuilder returns the knowledge builder, or nil when knowledge is
// disabled.
func (a *app) knowledgeBuilder(ctx context.Context) (*knowledge.Builder, error) {
	if a.builder != nil || !a.settings.Knowledge.Enabled {
		return a.builder, nil
	}
	cfg := a.settings.KnowledgeConfig()

	var store stores.DocStore
	var fetcher knowledge.Fetcher
	if cfg.UseDocs {
		s, err := a.docStore(ctx)
		if err != nil {
			return nil, err
		}
		store = s
		if a.settings.Docs.Context7.Enabled {
			fetcher = knowledge.NewContext7Fetcher(a.settings.Context7Config())
		}
	}

	b, err := knowledge.NewDefaultBuilder(cfg, store, fetcher, a.tel)
	if err != nil {
		return nil, err
	}
	a.builder = b
	return b, nil
}

// orchestrator returns a generation orchestrator backed by the completion
// client and the knowledge builder.
func (a *app) orchestrator(ctx context.Context) (*generator.Orchestrator, error) {
	if a.online != nil {
		return a.online, nil
	}
	synth, err := a.synthesizer()
	if err != nil {
		return nil, err
	}
	kb, err := a.knowledgeBuilder(ctx)
	if err != nil {
		return nil, err
	}
	o, err := generator.NewOrchestrator(synth, generator.Options{
		MaxRetries:  a.settings.Generation.MaxRetries,
		Knowledge:   kb,
		Interpreter: a.interpreter(),
	}, a.tel)
	if err != nil {
		return nil, err
	}
	a.online = o
	return o, nil
}

// verifier returns an orchestrator that only verifies source. Its
// synthesizer refuses every request.
func (a *app) verifier() (*generator.Orchestrator, error) {
	if a.offline != nil {
		return a.offline, nil
	}
	refuse := synthesis.SynthesizerFunc(func(context.Context, string, string) (string, error) {
		return "", engine.NewInvalidInputError("synthesis is not available for this command")
	})
	o, err := generator.NewOrchestrator(refuse, generator.Options{
		MaxRetries:  1,
		Interpreter: a.interpreter(),
	}, a.tel)
	if err != nil {
		return nil, err
	}
	a.offline = o
	return o, nil
}

// loadCircuit loads and verifies the circuit file.
func (a *app) loadCircuit(ctx context.Context) (*circuit.Representation, error) {
	v, err := a.verifier()
	if err != nil {
		return nil, err
	}
	rep, err := circuitfile.Load(ctx, a.circuitFile(), v)
	if circuitfile.IsNotExist(err) {
		return nil, fmt.Errorf("no circuit file at %s: run 'skadi generate' first", a.circuitFile())
	}
	return rep, err
}

// saveCircuit writes rep to the circuit file and returns the absolute path.
func (a *app) saveCircuit(rep *circuit.Representation) (string, error) {
	path, err := circuitfile.Save(rep, a.circuitFile())
	if err != nil {
		return "", err
	}
	a.tel.Logger.WithCircuitID(rep.ID()).WithField("path", path).Info("Circuit saved")
	return path, nil
}

func (a *app) transforms() *transform.Engine {
	if a.engine == nil {
		a.engine = transform.NewEngine(a.tel)
	}
	return a.engine
}

func (a *app) optimizer() (*optimize.Optimizer, error) {
	return optimize.NewOptimizer(a.transforms(), a.tel, a.settings.Optimization.Levels)
}

// analyzer returns an analyzer with policies when enabled and, if explain
// is set, the completion client for explanations.
func (a *app) analyzer(ctx context.Context, explain bool) (*analysis.Analyzer, error) {
	var opts []analysis.Option
	if explain {
		synth, err := a.synthesizer()
		if err != nil {
			return nil, err
		}
		opts = append(opts, analysis.WithSynthesizer(synth))
	}
	if a.settings.Policy.Enabled {
		eng, err := policy.NewEngine(ctx, a.tel)
		if err != nil {
			return nil, err
		}
		if len(a.settings.Policy.Paths) > 0 {
			if err := eng.LoadPolicies(ctx, a.settings.Policy.Paths); err != nil {
				return nil, err
			}
		}
		opts = append(opts, analysis.WithPolicies(eng, a.settings.Policy.Limits))
	}
	return analysis.NewAnalyzer(a.tel, opts...), nil
}
