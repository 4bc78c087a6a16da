package transport

import (
	"encoding/json"
	"time"

	"github.com/eddielth/sensor-gateway/logger"
	"github.com/eddielth/sensor-gateway/metrics"
	"github.com/eddielth/sensor-gateway/validator"
)

// MeshReceiver receives frames from the short-range, always-on mesh radio.
// Mesh nodes publish the standard JSON frame shape and need no re-arming.
type MeshReceiver struct {
	pending pendingCell
	handler ReadingHandler
	rules   []validator.Validator

	lastNodeID    string
	lastRSSI      int
	lastReceiveAt time.Time
	dropped       uint64

	now func() time.Time
}

// NewMeshReceiver subscribes to the mesh frame topic and hands parsed
// readings to handler from Poll.
func NewMeshReceiver(bridge *Bridge, topic string, handler ReadingHandler) (*MeshReceiver, error) {
	r := newMeshReceiver(handler)
	if err := bridge.Subscribe(topic, func(_ string, payload []byte) {
		r.Offer(payload)
	}); err != nil {
		return nil, err
	}
	return r, nil
}

func newMeshReceiver(handler ReadingHandler) *MeshReceiver {
	return &MeshReceiver{
		handler: handler,
		rules:   validator.DefaultRules(),
		now:     time.Now,
	}
}

// Offer stores a raw frame for the next Poll. Called from the broker's
// delivery goroutine; it must do nothing but fill the pending cell.
func (r *MeshReceiver) Offer(payload []byte) {
	r.pending.put(&rawFrame{payload: payload, receivedAt: r.now()})
}

// Poll drains and decodes at most one pending frame
func (r *MeshReceiver) Poll() {
	frame := r.pending.take()
	if frame == nil {
		return
	}

	var fields framePayload
	if err := json.Unmarshal(frame.payload, &fields); err != nil {
		r.drop("invalid frame JSON: %v", err)
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
	logger.Debug("[mesh] frame from %s: %.1fC %.1f%% soil %.1f%%",
		reading.NodeID, reading.Temperature, reading.Humidity, reading.SoilMoisture)

	if r.handler != nil {
		r.handler(reading)
	}
}

// SenderActive reports whether the most recent sender was heard within the timeout
func (r *MeshReceiver) SenderActive(timeout time.Duration) bool {
	if r.lastReceiveAt.IsZero() {
		return false
	}
	return r.now().Sub(r.lastReceiveAt) <= timeout
}

// LastSignalStrength returns the RSSI of the last frame
func (r *MeshReceiver) LastSignalStrength() int {
	return r.lastRSSI
}

// LastNodeID returns the identifier of the most recently seen sender
func (r *MeshReceiver) LastNodeID() string {
	return r.lastNodeID
}

// Name identifies this transport
func (r *MeshReceiver) Name() string {
	return "mesh"
}

// DroppedCount returns the number of discarded frames
func (r *MeshReceiver) DroppedCount() uint64 {
	return r.dropped
}

func (r *MeshReceiver) drop(format string, args ...interface{}) {
	r.dropped++
	metrics.FramesDropped.WithLabelValues(r.Name()).Inc()
	logger.Warn("[mesh] "+format, args...)
}

var _ Receiver = (*MeshReceiver)(nil)
