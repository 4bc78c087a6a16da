package gateway

import "time"

// MaxNodeIDLen is the longest node identifier carried by a radio frame.
// Longer identifiers are truncated at parse time to match the frame layout
// used by the node firmware.
const MaxNodeIDLen = 16

// Reading is the canonical, transport-agnostic sensor message produced by
// any receiver. It is immutable once created.
type Reading struct {
	NodeID       string
	Temperature  float64 // Celsius
	Humidity     float64 // Percentage (0-100)
	SoilMoisture float64 // Percentage (0-100)
	BatteryLevel *int    // Percentage (0-100), nil when the node did not report it
	RSSI         *int    // dBm, nil when the transport did not measure it
	CapturedAt   time.Time
}

// TruncateNodeID clamps a node identifier to the frame limit
func TruncateNodeID(id string) string {
	if len(id) > MaxNodeIDLen {
		return id[:MaxNodeIDLen]
	}
	return id
}
