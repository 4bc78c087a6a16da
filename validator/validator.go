// Package validator provides sanity checks for decoded sensor readings.
// A reading that fails validation is treated like a malformed frame:
// dropped and counted, never propagated.
package validator

import (
	"fmt"

	"github.com/eddielth/sensor-gateway/gateway"
)

// Validator checks a decoded reading before it enters the buffer
type Validator interface {
	// Validate returns an error when the reading is out of bounds
	Validate(r gateway.Reading) error
}

// RangeValidator checks that a named reading field falls inside [Min, Max]
type RangeValidator struct {
	Field string
	Min   float64
	Max   float64
}

// Validate checks the named field. Optional fields that the node did not
// report pass by definition.
func (rv *RangeValidator) Validate(r gateway.Reading) error {
	value, present, err := fieldValue(r, rv.Field)
	if err != nil {
		return err
	}
	if !present {
		return nil
	}
	if value < rv.Min || value > rv.Max {
		return fmt.Errorf("field %s value %.2f outside range [%.2f, %.2f]", rv.Field, value, rv.Min, rv.Max)
	}
	return nil
}

func fieldValue(r gateway.Reading, field string) (float64, bool, error) {
	switch field {
	case "temperature":
		return r.Temperature, true, nil
	case "humidity":
		return r.Humidity, true, nil
	case "soilMoisture":
		return r.SoilMoisture, true, nil
	case "batteryLevel":
		if r.BatteryLevel == nil {
			return 0, false, nil
		}
		return float64(*r.BatteryLevel), true, nil
	case "rssi":
		if r.RSSI == nil {
			return 0, false, nil
		}
		return float64(*r.RSSI), true, nil
	default:
		return 0, false, fmt.Errorf("unknown reading field: %s", field)
	}
}

// DefaultRules returns the plausibility ranges for field node hardware
func DefaultRules() []Validator {
	return []Validator{
		&RangeValidator{Field: "temperature", Min: -40, Max: 85},
		&RangeValidator{Field: "humidity", Min: 0, Max: 100},
		&RangeValidator{Field: "soilMoisture", Min: 0, Max: 100},
		&RangeValidator{Field: "batteryLevel", Min: 0, Max: 100},
		&RangeValidator{Field: "rssi", Min: -150, Max: 0},
	}
}

// ValidateAll runs every rule and returns the first violation
func ValidateAll(rules []Validator, r gateway.Reading) error {
	for _, rule := range rules {
		if err := rule.Validate(r); err != nil {
			return err
		}
	}
	return nil
}
