package otel

import "go.opentelemetry.io/otel/metric"

// Metrics holds all runtime metrics instruments.
type Metrics struct {
	TaskDuration       metric.Float64Histogram
	TasksActive        metric.Int64UpDownCounter
	TasksCompletedTotal metric.Int64Counter
	TasksFailedTotal   metric.Int64Counter
	RegistrationAttemptsTotal metric.Int64Counter
	ReconnectAttemptsTotal    metric.Int64Counter
	OutboxDepth        metric.Int64UpDownCounter
	OutboxDroppedTotal metric.Int64Counter
	FramesSentTotal    metric.Int64Counter
	FramesReceivedTotal metric.Int64Counter
}

// NewMetrics creates all metric instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.TaskDuration, err = meter.Float64Histogram("a2a.task.duration",
		metric.WithDescription("Skill task execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.TasksActive, err = meter.Int64UpDownCounter("a2a.task.active",
		metric.WithDescription("Number of tasks currently running"),
	)
	if err != nil {
		return nil, err
	}

	m.TasksCompletedTotal, err = meter.Int64Counter("a2a.task.completed",
		metric.WithDescription("Total tasks that completed successfully"),
	)
	if err != nil {
		return nil, err
	}

	m.TasksFailedTotal, err = meter.Int64Counter("a2a.task.failed",
		metric.WithDescription("Total tasks that failed"),
	)
	if err != nil {
		return nil, err
	}

	m.RegistrationAttemptsTotal, err = meter.Int64Counter("a2a.registration.attempts",
		metric.WithDescription("Total registration attempts against the directory"),
	)
	if err != nil {
		return nil, err
	}

	m.ReconnectAttemptsTotal, err = meter.Int64Counter("a2a.reconnect.attempts",
		metric.WithDescription("Total WebSocket reconnect attempts"),
	)
	if err != nil {
		return nil, err
	}

	m.OutboxDepth, err = meter.Int64UpDownCounter("a2a.outbox.depth",
		metric.WithDescription("Current number of frames queued in the outbound queue"),
	)
	if err != nil {
		return nil, err
	}

	m.OutboxDroppedTotal, err = meter.Int64Counter("a2a.outbox.dropped",
		metric.WithDescription("Total frames dropped from the outbound queue under capacity pressure"),
	)
	if err != nil {
		return nil, err
	}

	m.FramesSentTotal, err = meter.Int64Counter("a2a.frames.sent",
		metric.WithDescription("Total frames written to the connection"),
	)
	if err != nil {
		return nil, err
	}

	m.FramesReceivedTotal, err = meter.Int64Counter("a2a.frames.received",
		metric.WithDescription("Total frames read from the connection"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}
