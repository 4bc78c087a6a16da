package transport

import (
	"encoding/json"
	"time"

	"github.com/eddielth/sensor-gateway/logger"
	"github.com/eddielth/sensor-gateway/metrics"
	"github.com/eddielth/sensor-gateway/validator"
)

// LoraReceiver receives frames from the long-range radio. The radio daemon
// delivers one frame per arm cycle, so the receiver must re-arm reception
// immediately after each drained frame, including frames it had to drop.
// Nodes with nonstandard payloads can be supported through a decode script.
type LoraReceiver struct {
	pending pendingCell
	handler ReadingHandler
	rules   []validator.Validator
	decoder *ScriptDecoder
	rearm   func() error

	lastNodeID    string
	lastRSSI      int
	lastReceiveAt time.Time
	dropped       uint64

	now func() time.Time
}

// NewLoraReceiver subscribes to the long-range frame topic. rearmTopic is
// where the radio daemon listens for resume-receive requests; decoder may be
// nil when all nodes speak the standard frame shape.
func NewLoraReceiver(bridge *Bridge, topic, rearmTopic string, decoder *ScriptDecoder, handler ReadingHandler) (*LoraReceiver, error) {
	r := newLoraReceiver(handler, decoder, func() error {
		return bridge.Publish(rearmTopic, []byte("1"))
	})
	if err := bridge.Subscribe(topic, func(_ string, payload []byte) {
		r.Offer(payload)
	}); err != nil {
		return nil, err
	}
	return r, nil
}

func newLoraReceiver(handler ReadingHandler, decoder *ScriptDecoder, rearm func() error) *LoraReceiver {
	return &LoraReceiver{
		handler: handler,
		rules:   validator.DefaultRules(),
		decoder: decoder,
		rearm:   rearm,
		now:     time.Now,
	}
}

// Offer stores a raw frame for the next Poll. Called from the broker's
// delivery goroutine; it must do nothing but fill the pending cell.
func (r *LoraReceiver) Offer(payload []byte) {
	r.pending.put(&rawFrame{payload: payload, receivedAt: r.now()})
}

// Poll drains and decodes at most one pending frame, then re-arms the radio
func (r *LoraReceiver) Poll() {
	frame := r.pending.take()
	if frame == nil {
		return
	}
	// The daemon stays quiet until re-armed, whatever the frame's fate
	defer r.rearmReceive()

	fields, err := r.decode(frame.payload)
	if err != nil {
		r.drop("failed to decode frame: %v", err)
		return
	}

	reading, err := fields.toReading(frame.receivedAt, r.rules)
	if err != nil {
		r.drop("frame rejected: %v", err)
		return
	}

	r.lastNodeID = reading.NodeID
	if reading.RSSI != nil {
		r.lastRSSI = *reading.RSSI
	}
	r.lastReceiveAt = frame.receivedAt

	metrics.FramesReceived.WithLabelValues(r.Name()).Inc()
	logger.Debug("[lora] frame from %s: %.1fC %.1f%% soil %.1f%% rssi %d",
		reading.NodeID, reading.Temperature, reading.Humidity, reading.SoilMoisture, r.lastRSSI)

	if r.handler != nil {
		r.handler(reading)
	}
}

func (r *LoraReceiver) decode(payload []byte) (*framePayload, error) {
	if r.decoder != nil {
		return r.decoder.Decode(payload)
	}
	var fields framePayload
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	return &fields, nil
}

func (r *LoraReceiver) rearmReceive() {
	if r.rearm == nil {
		return
	}
	if err := r.rearm(); err != nil {
		logger.Warn("[lora] failed to re-arm receiver: %v", err)
	}
}

// SenderActive reports whether the most recent sender was heard within the timeout
func (r *LoraReceiver) SenderActive(timeout time.Duration) bool {
	if r.lastReceiveAt.IsZero() {
		return false
	}
	return r.now().Sub(r.lastReceiveAt) <= timeout
}

// LastSignalStrength returns the RSSI of the last frame
func (r *LoraReceiver) LastSignalStrength() int {
	return r.lastRSSI
}

// LastNodeID returns the identifier of the most recently seen sender
func (r *LoraReceiver) LastNodeID() string {
	return r.lastNodeID
}

// Name identifies this transport
func (r *LoraReceiver) Name() string {
	return "lora"
}

// DroppedCount returns the number of discarded frames
func (r *LoraReceiver) DroppedCount() uint64 {
	return r.dropped
}

func (r *LoraReceiver) drop(format string, args ...interface{}) {
	r.dropped++
	metrics.FramesDropped.WithLabelValues(r.Name()).Inc()
	logger.Warn("[lora] "+format, args...)
}

var _ Receiver = (*LoraReceiver)(nil)
