// Package tracing adds OpenTelemetry spans around burrow operations:
// command dispatches on the bus and adapter calls on the event store.
//
//	tracer := tracing.NewTracer(tracing.WithServiceName("issues"))
//	bus.Use(tracing.CommandMiddleware(tracer))
//	store := burrow.New(tracing.NewEventStoreMiddleware(adapter, tracer))
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/burrowkit/burrow"
	"github.com/burrowkit/burrow/adapters"
)

const (
	// TracerName is the instrumentation scope name.
	TracerName = "github.com/burrowkit/burrow"

	// DefaultServiceName is the default service name on spans.
	DefaultServiceName = "burrow"
)

// Span attribute keys all live under the "burrow." namespace.
func str(key, value string) attribute.KeyValue {
	return attribute.String("burrow."+key, value)
}

func i64(key string, value int64) attribute.KeyValue {
	return attribute.Int64("burrow."+key, value)
}

func count(key string, value int) attribute.KeyValue {
	return attribute.Int("burrow."+key, value)
}

// Tracer wraps an OpenTelemetry tracer for burrow operations.
type Tracer struct {
	tracer      trace.Tracer
	serviceName string
}

// TracerOption customizes a Tracer.
type TracerOption func(*Tracer)

// WithTracerProvider uses tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) TracerOption {
	return func(t *Tracer) { t.tracer = tp.Tracer(TracerName) }
}

// WithServiceName overrides the service name attribute.
func WithServiceName(name string) TracerOption {
	return func(t *Tracer) { t.serviceName = name }
}

// NewTracer creates a Tracer. Without options it uses the global
// TracerProvider and the default service name.
func NewTracer(opts ...TracerOption) *Tracer {
	t := &Tracer{tracer: otel.Tracer(TracerName), serviceName: DefaultServiceName}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// StartSpan starts a span with the given name.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// Tracer exposes the wrapped OpenTelemetry tracer.
func (t *Tracer) Tracer() trace.Tracer { return t.tracer }

// ServiceName reports the configured service name.
func (t *Tracer) ServiceName() string { return t.serviceName }

// finish records err on the span, or marks it Ok.
func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// CommandMiddleware traces each dispatch as an internal span named
// "command.<Type>", recording the aggregate ID, correlation ID, and
// the resulting stream version.
func CommandMiddleware(tracer *Tracer) burrow.Middleware {
	return func(next burrow.MiddlewareFunc) burrow.MiddlewareFunc {
		return func(ctx context.Context, cmd burrow.Command) (burrow.CommandResult, error) {
			ctx, span := tracer.StartSpan(ctx, "command."+cmd.CommandType(),
				trace.WithSpanKind(trace.SpanKindInternal),
			)
			defer span.End()

			span.SetAttributes(
				str("service", tracer.serviceName),
				str("command.type", cmd.CommandType()),
			)
			if aggCmd, ok := cmd.(burrow.AggregateCommand); ok {
				span.SetAttributes(str("command.aggregate_id", aggCmd.AggregateID()))
			}
			if correlationID := burrow.CorrelationIDFromContext(ctx); correlationID != "" {
				span.SetAttributes(str("correlation_id", correlationID))
			}

			result, err := next(ctx, cmd)

			switch {
			case err != nil:
				finish(span, err)
			case result.IsError():
				finish(span, result.Error)
			default:
				finish(span, nil)
				span.SetAttributes(
					str("result.aggregate_id", result.AggregateID),
					i64("result.version", result.Version),
				)
			}

			return result, err
		}
	}
}

// EventStoreMiddleware decorates an EventStoreAdapter so every call
// shows up as a client span.
type EventStoreMiddleware struct {
	inner  adapters.EventStoreAdapter
	tracer *Tracer
}

// NewEventStoreMiddleware wraps adapter with tracing.
func NewEventStoreMiddleware(adapter adapters.EventStoreAdapter, tracer *Tracer) *EventStoreMiddleware {
	return &EventStoreMiddleware{inner: adapter, tracer: tracer}
}

// start opens a client span carrying the service name.
func (m *EventStoreMiddleware) start(ctx context.Context, name string) (context.Context, trace.Span) {
	ctx, span := m.tracer.StartSpan(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(str("service", m.tracer.serviceName))
	return ctx, span
}

// Append traces the append, tagging the batch size and event types.
func (m *EventStoreMiddleware) Append(ctx context.Context, streamID string, events []adapters.EventRecord, expectedVersion int64) ([]adapters.StoredEvent, error) {
	ctx, span := m.start(ctx, "eventstore.append")
	defer span.End()

	span.SetAttributes(
		str("stream_id", streamID),
		i64("expected_version", expectedVersion),
		count("events.count", len(events)),
	)
	if len(events) > 0 {
		eventTypes := make([]string, len(events))
		for i, e := range events {
			eventTypes[i] = e.Type
		}
		span.SetAttributes(attribute.StringSlice("burrow.events.types", eventTypes))
	}

	stored, err := m.inner.Append(ctx, streamID, events, expectedVersion)
	finish(span, err)
	if err == nil && len(stored) > 0 {
		last := stored[len(stored)-1]
		span.SetAttributes(
			i64("stored.version", last.Version),
			i64("stored.global_position", int64(last.GlobalPosition)),
		)
	}

	return stored, err
}

// Load traces the read and tags how many events came back.
func (m *EventStoreMiddleware) Load(ctx context.Context, streamID string, fromVersion int64) ([]adapters.StoredEvent, error) {
	ctx, span := m.start(ctx, "eventstore.load")
	defer span.End()

	span.SetAttributes(str("stream_id", streamID), i64("from_version", fromVersion))

	events, err := m.inner.Load(ctx, streamID, fromVersion)
	finish(span, err)
	if err == nil {
		span.SetAttributes(count("events.loaded", len(events)))
	}

	return events, err
}

// GetStreamInfo traces the metadata lookup.
func (m *EventStoreMiddleware) GetStreamInfo(ctx context.Context, streamID string) (*adapters.StreamInfo, error) {
	ctx, span := m.start(ctx, "eventstore.get_stream_info")
	defer span.End()

	span.SetAttributes(str("stream_id", streamID))

	info, err := m.inner.GetStreamInfo(ctx, streamID)
	finish(span, err)
	if err == nil {
		span.SetAttributes(i64("stream.version", info.Version))
	}

	return info, err
}

// GetLastPosition traces the position lookup.
func (m *EventStoreMiddleware) GetLastPosition(ctx context.Context) (uint64, error) {
	ctx, span := m.start(ctx, "eventstore.get_last_position")
	defer span.End()

	pos, err := m.inner.GetLastPosition(ctx)
	finish(span, err)
	if err == nil {
		span.SetAttributes(i64("last_position", int64(pos)))
	}

	return pos, err
}

// Initialize traces adapter setup.
func (m *EventStoreMiddleware) Initialize(ctx context.Context) error {
	ctx, span := m.start(ctx, "eventstore.initialize")
	defer span.End()

	err := m.inner.Initialize(ctx)
	finish(span, err)
	return err
}

// Close closes the wrapped adapter.
func (m *EventStoreMiddleware) Close() error { return m.inner.Close() }
