package a2a

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/basket/a2a-agent/internal/bus"
	a2aotel "github.com/basket/a2a-agent/internal/otel"
)

// Outbox is the bounded FIFO of frames waiting to be written to the
// wire. Under capacity pressure it drops the oldest queued "message"
// frame first; control frames (ping/pong/task_update) are sacrificed
// only when the queue holds nothing else, since dropping them silently
// breaks the task lifecycle or the heartbeat.
type Outbox struct {
	mu      sync.Mutex
	cap     int
	frames  []queuedFrame
	dropped int
	logger  *slog.Logger
	bus     publisher
	metrics *a2aotel.Metrics
}

type queuedFrame struct {
	frameType string
	payload   []byte
}

// NewOutbox builds an Outbox bounded at capacity frames.
func NewOutbox(capacity int, logger *slog.Logger) *Outbox {
	if capacity <= 0 {
		capacity = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Outbox{cap: capacity, logger: logger}
}

// WithTelemetry attaches a bus publisher and metrics instruments for
// outbox depth and drop events. Either may be nil.
func (o *Outbox) WithTelemetry(b publisher, metrics *a2aotel.Metrics) *Outbox {
	o.bus = b
	o.metrics = metrics
	return o
}

// Push enqueues a frame of the given type. If the queue is full, the
// oldest "message" frame is dropped to make room; if none is queued,
// an incoming message frame is dropped instead, and an incoming
// control frame evicts the oldest frame of any type.
func (o *Outbox) Push(frameType string, payload []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.frames) >= o.cap {
		if idx := o.oldestMessageIndexLocked(); idx >= 0 {
			o.frames = append(o.frames[:idx], o.frames[idx+1:]...)
			o.dropped++
			o.logger.Warn("outbox full, dropped oldest queued message frame", "capacity", o.cap)
			o.reportDrop(FrameTypeMessage, "capacity")
			o.reportDepthDelta(-1) // the evicted frame's slot, freed before the append below
		} else if frameType == FrameTypeMessage {
			o.dropped++
			o.logger.Warn("outbox full and holds no message frames, dropping incoming message frame", "capacity", o.cap)
			o.reportDrop(frameType, "capacity")
			return
		} else {
			// Queue is all control frames and so is the newcomer: evict
			// the oldest of any type so the bound holds.
			evicted := o.frames[0]
			o.frames = o.frames[1:]
			o.dropped++
			o.logger.Warn("outbox full of control frames, dropped oldest", "dropped_type", evicted.frameType, "capacity", o.cap)
			o.reportDrop(evicted.frameType, "capacity")
			o.reportDepthDelta(-1)
		}
	}
	o.frames = append(o.frames, queuedFrame{frameType: frameType, payload: payload})
	o.reportDepthDelta(1)
}

// reportDrop publishes a drop event and increments the dropped-frame
// counter. It does not itself touch the depth gauge - callers adjust
// depth based on whether a slot was actually freed.
func (o *Outbox) reportDrop(frameType, reason string) {
	if o.bus != nil {
		o.bus.Publish(bus.TopicOutboxFrameDropped, bus.OutboxFrameDroppedEvent{FrameType: frameType, Reason: reason})
	}
	if o.metrics != nil {
		o.metrics.OutboxDroppedTotal.Add(context.Background(), 1)
	}
}

// reportDepthDelta adjusts the outbox-depth gauge by delta.
func (o *Outbox) reportDepthDelta(delta int64) {
	if o.metrics != nil {
		o.metrics.OutboxDepth.Add(context.Background(), delta)
	}
}

func (o *Outbox) oldestMessageIndexLocked() int {
	for i, f := range o.frames {
		if f.frameType == FrameTypeMessage {
			return i
		}
	}
	return -1
}

// Pop removes and returns the oldest queued frame, or false if empty.
func (o *Outbox) Pop() (frameType string, payload []byte, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.frames) == 0 {
		return "", nil, false
	}
	f := o.frames[0]
	o.frames = o.frames[1:]
	o.reportDepthDelta(-1)
	return f.frameType, f.payload, true
}

// Len reports the number of frames currently queued.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.frames)
}

// Dropped reports the cumulative number of frames dropped for capacity.
func (o *Outbox) Dropped() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped
}

// PushJSON marshals v and enqueues it as frameType, swallowing marshal
// errors into a log line - a frame that cannot be serialized was never
// going anywhere anyway.
func (o *Outbox) PushJSON(frameType string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		o.logger.Error("failed to marshal outbound frame", "type", frameType, "error", err)
		return
	}
	o.Push(frameType, payload)
}
