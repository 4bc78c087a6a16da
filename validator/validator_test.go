package validator

import (
	"testing"
	"time"

	"github.com/eddielth/sensor-gateway/gateway"
)

func validReading() gateway.Reading {
	battery := 87
	rssi := -62
	return gateway.Reading{
		NodeID:       "field-node-01",
		Temperature:  22.5,
		Humidity:     61.0,
		SoilMoisture: 44.0,
		BatteryLevel: &battery,
		RSSI:         &rssi,
		CapturedAt:   time.Now(),
	}
}

func TestDefaultRulesAcceptPlausibleReading(t *testing.T) {
	if err := ValidateAll(DefaultRules(), validReading()); err != nil {
		t.Fatalf("plausible reading rejected: %v", err)
	}
}

func TestDefaultRulesRejectOutOfRange(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*gateway.Reading)
	}{
		{"temperature too low", func(r *gateway.Reading) { r.Temperature = -55 }},
		{"temperature too high", func(r *gateway.Reading) { r.Temperature = 120 }},
		{"humidity negative", func(r *gateway.Reading) { r.Humidity = -1 }},
		{"soil moisture over 100", func(r *gateway.Reading) { r.SoilMoisture = 101 }},
		{"battery over 100", func(r *gateway.Reading) { *r.BatteryLevel = 150 }},
		{"positive rssi", func(r *gateway.Reading) { *r.RSSI = 10 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := validReading()
			tc.mutate(&r)
			if err := ValidateAll(DefaultRules(), r); err == nil {
				t.Fatal("out-of-range reading passed validation")
			}
		})
	}
}

func TestOptionalFieldsAbsentPass(t *testing.T) {
	r := validReading()
	r.BatteryLevel = nil
	r.RSSI = nil
	if err := ValidateAll(DefaultRules(), r); err != nil {
		t.Fatalf("reading without optional fields rejected: %v", err)
	}
}

func TestUnknownFieldIsAnError(t *testing.T) {
	rule := &RangeValidator{Field: "windSpeed", Min: 0, Max: 50}
	if err := rule.Validate(validReading()); err == nil {
		t.Fatal("unknown field did not produce an error")
	}
}
