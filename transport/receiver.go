// Package transport converts raw radio frames into canonical sensor
// readings. The broker delivers frames on its own goroutine; the callback
// only stores the frame into a single-slot pending cell, and all decoding
// happens inside Poll on the tick loop. The cell is the only state shared
// between the two contexts.
package transport

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/eddielth/sensor-gateway/gateway"
	"github.com/eddielth/sensor-gateway/validator"
)

// Receiver is the per-radio reception contract
type Receiver interface {
	// Poll drains at most one pending frame, parses it, and hands the
	// reading to the registered handler. Non-blocking; malformed frames
	// are dropped and counted.
	Poll()
	// SenderActive reports whether the most recently seen sender was heard
	// within the timeout
	SenderActive(timeout time.Duration) bool
	// LastSignalStrength returns the RSSI of the last frame, in dBm
	LastSignalStrength() int
	// Name identifies the transport in logs and metrics
	Name() string
}

// ReadingHandler consumes a successfully parsed reading
type ReadingHandler func(gateway.Reading)

// rawFrame is one undecoded bridge message
type rawFrame struct {
	payload    []byte
	receivedAt time.Time
}

// pendingCell is the single-producer/single-consumer handoff between the
// broker callback and Poll. A new frame overwrites an unread one, exactly
// like the hardware ready-flag it models: latest frame wins.
type pendingCell struct {
	frame atomic.Pointer[rawFrame]
}

func (c *pendingCell) put(f *rawFrame) {
	c.frame.Store(f)
}

// take reads and clears the cell
func (c *pendingCell) take() *rawFrame {
	return c.frame.Swap(nil)
}

// framePayload is the decoded field set common to both radio frame formats
type framePayload struct {
	NodeID       string   `json:"nodeId"`
	Temperature  *float64 `json:"temperature"`
	Humidity     *float64 `json:"humidity"`
	SoilMoisture *float64 `json:"soilMoisture"`
	BatteryLevel *int     `json:"batteryLevel"`
	RSSI         *int     `json:"rssi"`
}

// toReading checks required fields, applies the range rules, and produces
// the immutable canonical reading stamped with the arrival time.
func (f *framePayload) toReading(receivedAt time.Time, rules []validator.Validator) (gateway.Reading, error) {
	if f.NodeID == "" {
		return gateway.Reading{}, fmt.Errorf("missing field: nodeId")
	}
	if f.Temperature == nil {
		return gateway.Reading{}, fmt.Errorf("missing field: temperature")
	}
	if f.Humidity == nil {
		return gateway.Reading{}, fmt.Errorf("missing field: humidity")
	}
	if f.SoilMoisture == nil {
		return gateway.Reading{}, fmt.Errorf("missing field: soilMoisture")
	}

	r := gateway.Reading{
		NodeID:       gateway.TruncateNodeID(f.NodeID),
		Temperature:  *f.Temperature,
		Humidity:     *f.Humidity,
		SoilMoisture: *f.SoilMoisture,
		BatteryLevel: f.BatteryLevel,
		RSSI:         f.RSSI,
		CapturedAt:   receivedAt,
	}

	if err := validator.ValidateAll(rules, r); err != nil {
		return gateway.Reading{}, err
	}
	return r, nil
}
