package telemetry_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/skadi/skadi/pkg/telemetry"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	cfg := telemetry.DefaultConfig()
	cfg.Logging.Level = "disabled"

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())
	telemetry.FromContext(ctx).Info("pipeline started")

	fmt.Println(tel.Config.ServiceName)
	// Output: skadi
}

// Example_events demonstrates subscribing to warning events.
func Example_events() {
	events := telemetry.NewEventPublisher(telemetry.EventsConfig{Enabled: true, History: 10})
	events.Subscribe(func(e telemetry.Event) {
		fmt.Println(e.Type, e.Data["stage"])
	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))

	events.PublishGenerationStarted("Bell state", 3)
	events.PublishAttemptFailed(1, "validating", errors.New("Generated code is empty"))

	fmt.Println(len(events.History()))
	// Output:
	// generation.attempt_failed validating
	// 2
}

// Example_operation demonstrates an instrumented operation.
func Example_operation() {
	ctx := telemetry.Nop().WithContext(context.Background())

	op := telemetry.StartOperation(ctx, "circuit.optimize")
	op.Logger.Info("optimizing")
	op.End(nil)

	fmt.Println(op.Timer.Duration() >= 0)
	// Output: true
}
