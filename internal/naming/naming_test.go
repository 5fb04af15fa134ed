package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeDeviceName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"OKTE Calculator 2", "okte_calculator_2"},
		{"  Boiler / Garage!! ", "boiler_garage"},
		{"___", "device"},
		{"", "device"},
		{"Heat pump in the basement", "heat_pump_in_the_bas"},
		{"Ohrievač vody", "ohrieva_vody"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeDeviceName(tt.in))
		})
	}
}

func TestCalculatorNumber(t *testing.T) {
	assert.Equal(t, 3, CalculatorNumber("OKTE Calculator 3"))
	assert.Equal(t, 1, CalculatorNumber("Boiler"))
	assert.Equal(t, 1, CalculatorNumber("OKTE Calculator x"))
	assert.Equal(t, "OKTE Calculator 4", CalculatorName(4))
}

func TestNextCalculatorNumber(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		want  int
	}{
		{"none", nil, 1},
		{"sequential", []string{"OKTE Calculator 1", "OKTE Calculator 2"}, 3},
		{"gap", []string{"OKTE Calculator 1", "OKTE Calculator 3"}, 2},
		{"gap at start", []string{"OKTE Calculator 2"}, 1},
		{"custom names ignored", []string{"Boiler", "OKTE Calculator 1", "OKTE Calculator abc"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextCalculatorNumber(tt.names))
		})
	}
}

func TestEntityID(t *testing.T) {
	assert.Equal(t, "sensor.okte_2_lowest_price_window", EntityID("sensor", 2, "lowest_price_window"))
	assert.Equal(t, "sensor.okte_current_price", EntityID("sensor", 0, "current_price"))
	assert.Equal(t, "binary_sensor.okte_1_detector_lowest_price_today", EntityID("binary_sensor", 1, KeyDetectorLowestToday))
}

func TestEntityName(t *testing.T) {
	assert.Equal(t, "Current Price", EntityName("", "Current Price", false))
	assert.Equal(t, "OKTE - Current Price", EntityName("", "Current Price", true))
	assert.Equal(t, "OKTE - Boiler - Lowest Window", EntityName("Boiler", "Lowest Window", true))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Min Price Today", Label("min_price_today"))
	assert.Equal(t, "Detector Lowest Price", Label(KeyDetectorLowest))
}
