package telemetry

import (
	"encoding/json"
	"math"
)

// FaultMarker replaces a reading the sensor failed to produce.
const FaultMarker = "Erro na leitura"

// Reading is either a measured value or the fault marker.
type Reading struct {
	value float64
	valid bool
}

// NewReading wraps v. NaN and infinities are faults.
func NewReading(v float64) Reading {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return FaultReading()
	}
	return Reading{value: v, valid: true}
}

func FaultReading() Reading {
	return Reading{}
}

func (r Reading) Valid() bool {
	return r.valid
}

func (r Reading) Value() float64 {
	return r.value
}

func (r Reading) MarshalJSON() ([]byte, error) {
	if !r.valid {
		return json.Marshal(FaultMarker)
	}
	return json.Marshal(r.value)
}

// Sample is the latest snapshot taken by SampleEnvironment.
type Sample struct {
	Temperature   Reading
	Humidity      Reading
	Potentiometer int
}

// Message is the telemetry payload. Field order is the wire order.
type Message struct {
	GroupID       string  `json:"ID"`
	ModuleID      string  `json:"Sensor"`
	IP            string  `json:"IP"`
	MAC           string  `json:"MAC"`
	Temperature   Reading `json:"Temperatura"`
	Humidity      Reading `json:"Umidade"`
	Potentiometer int     `json:"Potenciometro"`
}
