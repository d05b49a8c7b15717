package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/burrowkit/burrow"
	"github.com/burrowkit/burrow/adapters"
	"github.com/burrowkit/burrow/adapters/memory"
	"github.com/burrowkit/burrow/cli/styles"
	"github.com/burrowkit/burrow/cli/ui"
	"github.com/burrowkit/burrow/issue"
	"github.com/burrowkit/burrow/logging/zaplog"
	"github.com/burrowkit/burrow/middleware/metrics"
	"github.com/burrowkit/burrow/middleware/tracing"
	"github.com/burrowkit/burrow/serializer/msgpack"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// demoOptions holds the demo command's flag values.
type demoOptions struct {
	withTrace   bool
	withMetrics bool
	useMsgpack  bool
	verbose     bool
}

// NewDemoCommand creates the demo command
func NewDemoCommand() *cobra.Command {
	var opts demoOptions

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the issue-tracker demo against an in-memory store",
		Long: `Run a short issue-tracker scenario against an in-memory event store:
create an issue, assign it, move it through the workflow, and show the
resulting event stream.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.withTrace, "trace", false, "Export spans to stdout")
	cmd.Flags().BoolVar(&opts.withMetrics, "metrics", false, "Collect Prometheus metrics and print a summary")
	cmd.Flags().BoolVar(&opts.useMsgpack, "msgpack", false, "Serialize events with MessagePack instead of JSON")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "Enable debug logging")

	return cmd
}

func runDemo(ctx context.Context, opts demoOptions) error {
	fmt.Println()
	fmt.Println(ui.Banner())
	fmt.Println()

	var adapter adapters.EventStoreAdapter = memory.NewAdapter()

	if opts.withTrace {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()

		tracer := tracing.NewTracer(
			tracing.WithTracerProvider(tp),
			tracing.WithServiceName("burrow-demo"),
		)
		adapter = tracing.NewEventStoreMiddleware(adapter, tracer)
	}

	var (
		m        *metrics.Metrics
		registry *prometheus.Registry
	)
	if opts.withMetrics {
		m = metrics.New(metrics.WithMetricsServiceName("burrow-demo"))
		registry = prometheus.NewRegistry()
		if err := m.Register(registry); err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		adapter = m.WrapEventStore(adapter)
	}

	storeOpts := []burrow.Option{}
	if opts.useMsgpack {
		storeOpts = append(storeOpts, burrow.WithSerializer(msgpack.NewSerializer()))
	}
	if opts.verbose {
		logger, err := zaplog.NewDevelopment()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		storeOpts = append(storeOpts, burrow.WithLogger(logger.Named("store")))
	}

	store := burrow.New(adapter, storeOpts...)
	store.RegisterEvents(issue.Events()...)

	svc := issue.NewService(store, issue.WithLocker(burrow.NewStreamLocker()))
	reader := issue.NewStateReader(store)

	bus := burrow.NewCommandBus()
	if m != nil {
		bus.Use(m.CommandMiddleware())
	}
	svc.Register(bus)

	issueID := uuid.NewString()
	assignee := "dev-" + uuid.NewString()[:8]

	steps := []struct {
		name string
		cmd  burrow.Command
	}{
		{"create issue", issue.CreateIssue{IssueID: issueID, Title: "Fix login timeout"}},
		{"assign issue", issue.AssignIssue{IssueID: issueID, AssigneeID: assignee}},
		{"start progress", issue.ChangeStatus{IssueID: issueID, Status: issue.StatusInProgress}},
		{"finish review", issue.ChangeStatus{IssueID: issueID, Status: issue.StatusReview}},
		{"unassign", issue.UnassignIssue{IssueID: issueID}},
	}

	for _, step := range steps {
		fmt.Printf("  %s %s... ", styles.IconPending, step.name)
		if _, err := bus.Dispatch(ctx, step.cmd); err != nil {
			fmt.Println(styles.ErrorStyle.Render("FAILED"))
			return err
		}
		fmt.Println(styles.SuccessStyle.Render("OK"))
	}

	fmt.Println()

	state, err := reader.Get(ctx, issueID)
	if err != nil {
		return err
	}

	fmt.Println(styles.Subtitle.Render("Final state"))
	fmt.Println(styles.FormatKeyValue("Issue", issueID))
	fmt.Println(styles.FormatKeyValue("Title", state.Title))
	fmt.Println(styles.FormatKeyValue("Status", state.Status.String()))
	if state.AssigneeID == "" {
		fmt.Println(styles.FormatKeyValue("Assignee", "(none)"))
	} else {
		fmt.Println(styles.FormatKeyValue("Assignee", state.AssigneeID))
	}
	fmt.Println()

	history, err := reader.History(ctx, issueID)
	if err != nil {
		return err
	}

	table := ui.NewTable("#", "Event", "Position")
	for _, ev := range history {
		table.AddRow(
			fmt.Sprintf("%d", ev.Version),
			ev.Type,
			fmt.Sprintf("%d", ev.GlobalPosition),
		)
	}

	fmt.Println(styles.Subtitle.Render("Event stream"))
	fmt.Println(table.Render())
	fmt.Println(styles.FormatSuccess(fmt.Sprintf("Replayed %d events deterministically.", len(history))))

	if registry != nil {
		if err := printMetricsSummary(registry); err != nil {
			return err
		}
	}

	return nil
}

// printMetricsSummary gathers the registry and prints the counters that
// saw any traffic during the run.
func printMetricsSummary(registry *prometheus.Registry) error {
	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	table := ui.NewTable("Metric", "Total")
	for _, family := range families {
		if family.GetType() != dto.MetricType_COUNTER {
			continue
		}
		var total float64
		for _, metric := range family.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
		if total > 0 {
			table.AddRow(family.GetName(), fmt.Sprintf("%.0f", total))
		}
	}

	fmt.Println()
	fmt.Println(styles.Subtitle.Render("Metrics"))
	fmt.Println(table.Render())
	return nil
}
