// Package metrics instruments command dispatch and event log access
// with Prometheus collectors.
//
//	m := metrics.New(metrics.WithMetricsServiceName("issues"))
//	m.MustRegister()
//
//	bus := burrow.NewCommandBus()
//	bus.Use(m.CommandMiddleware())
//
//	adapter := m.WrapEventStore(memory.NewAdapter())
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/burrowkit/burrow"
	"github.com/burrowkit/burrow/adapters"
)

// Metric label names.
const (
	LabelCommandType = "command_type"
	LabelEventType   = "event_type"
	LabelOperation   = "operation"
	LabelStatus      = "status"
	LabelErrorType   = "error_type"
	LabelService     = "service"
)

// Label values for status and operation.
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	OperationAppend = "append"
	OperationLoad   = "load"
)

// Metrics bundles the collectors for one service.
type Metrics struct {
	namespace   string
	subsystem   string
	serviceName string

	commandsTotal               *prometheus.CounterVec
	commandDuration             *prometheus.HistogramVec
	commandsInFlight            *prometheus.GaugeVec
	eventStoreOperationsTotal   *prometheus.CounterVec
	eventStoreOperationDuration *prometheus.HistogramVec
	eventsAppendedTotal         *prometheus.CounterVec
	eventsLoadedTotal           *prometheus.CounterVec
	appendBatchSize             *prometheus.HistogramVec
	errorsTotal                 *prometheus.CounterVec
}

// MetricsOption configures Metrics.
type MetricsOption func(*Metrics)

// WithNamespace sets the Prometheus namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(m *Metrics) { m.namespace = namespace }
}

// WithSubsystem sets the Prometheus subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(m *Metrics) { m.subsystem = subsystem }
}

// WithMetricsServiceName sets the service label applied to every metric.
func WithMetricsServiceName(name string) MetricsOption {
	return func(m *Metrics) { m.serviceName = name }
}

// New creates the collectors. They are not registered anywhere until
// Register or MustRegister is called.
func New(opts ...MetricsOption) *Metrics {
	m := &Metrics{namespace: "burrow", serviceName: "unknown"}
	for _, opt := range opts {
		opt(m)
	}

	m.commandsTotal = m.counter("commands_total",
		"Total number of commands processed.",
		LabelService, LabelCommandType, LabelStatus)
	m.commandDuration = m.histogram("command_duration_seconds",
		"Duration of command processing in seconds.",
		prometheus.DefBuckets, LabelService, LabelCommandType)
	m.commandsInFlight = m.gauge("commands_in_flight",
		"Number of commands currently being processed.",
		LabelService, LabelCommandType)
	m.eventStoreOperationsTotal = m.counter("eventstore_operations_total",
		"Total number of event store operations.",
		LabelService, LabelOperation, LabelStatus)
	m.eventStoreOperationDuration = m.histogram("eventstore_operation_duration_seconds",
		"Duration of event store operations in seconds.",
		prometheus.DefBuckets, LabelService, LabelOperation)
	m.eventsAppendedTotal = m.counter("events_appended_total",
		"Total number of events appended to streams.",
		LabelService, LabelEventType)
	m.eventsLoadedTotal = m.counter("events_loaded_total",
		"Total number of events loaded from streams.", LabelService)
	m.appendBatchSize = m.histogram("append_batch_size",
		"Number of events per append batch.",
		[]float64{1, 2, 3, 5, 8, 13, 21}, LabelService)
	m.errorsTotal = m.counter("errors_total",
		"Total number of errors by type.",
		LabelService, LabelErrorType)
	return m
}

func (m *Metrics) opts(name, help string) prometheus.Opts {
	return prometheus.Opts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help}
}

func (m *Metrics) counter(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts(m.opts(name, help)), labels)
}

func (m *Metrics) gauge(name, help string, labels ...string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts(m.opts(name, help)), labels)
}

func (m *Metrics) histogram(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	o := m.opts(name, help)
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: o.Namespace, Subsystem: o.Subsystem, Name: o.Name, Help: o.Help,
		Buckets: buckets,
	}, labels)
}

// Collectors returns every collector, for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.commandsTotal, m.commandDuration, m.commandsInFlight,
		m.eventStoreOperationsTotal, m.eventStoreOperationDuration,
		m.eventsAppendedTotal, m.eventsLoadedTotal, m.appendBatchSize,
		m.errorsTotal,
	}
}

// MustRegister registers every collector with the default registry,
// panicking on collision.
func (m *Metrics) MustRegister() { prometheus.MustRegister(m.Collectors()...) }

// Register registers every collector with the given registry.
func (m *Metrics) Register(registry prometheus.Registerer) error {
	for _, collector := range m.Collectors() {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

// CommandMiddleware returns bus middleware recording per-command-type
// counts, durations, and in-flight gauges.
func (m *Metrics) CommandMiddleware() burrow.Middleware {
	return func(next burrow.MiddlewareFunc) burrow.MiddlewareFunc {
		return func(ctx context.Context, cmd burrow.Command) (burrow.CommandResult, error) {
			cmdType := cmd.CommandType()
			inFlight := m.commandsInFlight.WithLabelValues(m.serviceName, cmdType)
			inFlight.Inc()
			defer inFlight.Dec()

			start := time.Now()
			result, err := next(ctx, cmd)
			m.finishCommand(cmdType, start, result, err)
			return result, err
		}
	}
}

// finishCommand records duration, outcome, and any error class for one
// dispatched command.
func (m *Metrics) finishCommand(cmdType string, start time.Time, result burrow.CommandResult, err error) {
	m.commandDuration.WithLabelValues(m.serviceName, cmdType).Observe(time.Since(start).Seconds())

	status := StatusSuccess
	if err != nil || result.IsError() {
		status = StatusError
		cause := err
		if cause == nil {
			cause = result.Error
		}
		m.errorsTotal.WithLabelValues(m.serviceName, errorTypeName(cause)).Inc()
	}
	m.commandsTotal.WithLabelValues(m.serviceName, cmdType, status).Inc()
}

// errorTypeName maps an error to a low-cardinality label value via the
// sentinel errors.
func errorTypeName(err error) string {
	if err == nil {
		return "none"
	}

	for _, entry := range []struct {
		sentinel error
		label    string
	}{
		{burrow.ErrConflict, "conflict"},
		{burrow.ErrNotFound, "not_found"},
		{burrow.ErrAlreadyExists, "already_exists"},
		{burrow.ErrInvalidState, "invalid_state"},
		{burrow.ErrValidationFailed, "validation_failed"},
		{burrow.ErrInvalidArgument, "invalid_argument"},
		{burrow.ErrHandlerNotFound, "handler_not_found"},
		{burrow.ErrCommandAlreadyProcessed, "command_already_processed"},
		{burrow.ErrHandlerPanicked, "handler_panicked"},
		{burrow.ErrSerializationFailed, "serialization_failed"},
		{burrow.ErrEventTypeNotRegistered, "event_type_not_registered"},
		{burrow.ErrSessionClosed, "session_closed"},
		{burrow.ErrNilCommand, "nil_command"},
		{burrow.ErrFatal, "fatal"},
		{adapters.ErrEmptyStreamID, "empty_stream_id"},
		{adapters.ErrNoEvents, "no_events"},
		{adapters.ErrInvalidVersion, "invalid_version"},
		{adapters.ErrAdapterClosed, "adapter_closed"},
	} {
		if errors.Is(err, entry.sentinel) {
			return entry.label
		}
	}
	return "unknown"
}

// EventStoreMiddleware wraps an adapter, recording an operation metric
// around every call.
type EventStoreMiddleware struct {
	inner adapters.EventStoreAdapter
	m     *Metrics
}

// WrapEventStore wraps an adapter with metrics collection.
func (m *Metrics) WrapEventStore(adapter adapters.EventStoreAdapter) *EventStoreMiddleware {
	return &EventStoreMiddleware{inner: adapter, m: m}
}

// timed starts a duration measurement for one operation. The returned
// func records the duration and outcome when called with the result.
func (em *EventStoreMiddleware) timed(operation string) func(error) {
	start := time.Now()
	return func(err error) {
		m := em.m
		m.eventStoreOperationDuration.WithLabelValues(m.serviceName, operation).Observe(time.Since(start).Seconds())
		status := StatusSuccess
		if err != nil {
			status = StatusError
		}
		m.eventStoreOperationsTotal.WithLabelValues(m.serviceName, operation, status).Inc()
	}
}

// Append stores events and records batch size plus per-type counts.
func (em *EventStoreMiddleware) Append(ctx context.Context, streamID string, events []adapters.EventRecord, expectedVersion int64) ([]adapters.StoredEvent, error) {
	done := em.timed(OperationAppend)
	stored, err := em.inner.Append(ctx, streamID, events, expectedVersion)
	done(err)

	switch m := em.m; {
	case err != nil:
		m.errorsTotal.WithLabelValues(m.serviceName, errorTypeName(err)).Inc()
	default:
		m.appendBatchSize.WithLabelValues(m.serviceName).Observe(float64(len(events)))
		for _, e := range events {
			m.eventsAppendedTotal.WithLabelValues(m.serviceName, e.Type).Inc()
		}
	}
	return stored, err
}

// Load retrieves events and counts how many came back.
func (em *EventStoreMiddleware) Load(ctx context.Context, streamID string, fromVersion int64) ([]adapters.StoredEvent, error) {
	done := em.timed(OperationLoad)
	events, err := em.inner.Load(ctx, streamID, fromVersion)
	done(err)

	if m := em.m; err != nil {
		m.errorsTotal.WithLabelValues(m.serviceName, errorTypeName(err)).Inc()
	} else {
		m.eventsLoadedTotal.WithLabelValues(m.serviceName).Add(float64(len(events)))
	}
	return events, err
}

// GetStreamInfo returns stream metadata.
func (em *EventStoreMiddleware) GetStreamInfo(ctx context.Context, streamID string) (*adapters.StreamInfo, error) {
	done := em.timed("get_stream_info")
	info, err := em.inner.GetStreamInfo(ctx, streamID)
	done(err)
	return info, err
}

// GetLastPosition returns the last global position.
func (em *EventStoreMiddleware) GetLastPosition(ctx context.Context) (uint64, error) {
	done := em.timed("get_last_position")
	pos, err := em.inner.GetLastPosition(ctx)
	done(err)
	return pos, err
}

// Initialize initializes the underlying adapter.
func (em *EventStoreMiddleware) Initialize(ctx context.Context) error {
	return em.inner.Initialize(ctx)
}

// Close closes the underlying adapter.
func (em *EventStoreMiddleware) Close() error { return em.inner.Close() }
