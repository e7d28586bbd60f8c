package sensor

import (
	"math/rand"
)

const adcMax = 4095

// Simulator produces a bounded random walk of plausible readings.
type Simulator struct {
	rnd           *rand.Rand
	temperature   float64
	humidity      float64
	potentiometer int
}

func NewSimulator(seed int64) *Simulator {
	return &Simulator{
		rnd:           rand.New(rand.NewSource(seed)),
		temperature:   24.5,
		humidity:      60,
		potentiometer: adcMax / 2,
	}
}

func (s *Simulator) ReadTemperature() (float64, error) {
	s.temperature = clampFloat(s.temperature+s.step(0.5), -10, 50)
	return s.temperature, nil
}

func (s *Simulator) ReadHumidity() (float64, error) {
	s.humidity = clampFloat(s.humidity+s.step(1), 0, 100)
	return s.humidity, nil
}

func (s *Simulator) ReadRaw() (int, error) {
	s.potentiometer += s.rnd.Intn(129) - 64
	if s.potentiometer < 0 {
		s.potentiometer = 0
	}
	if s.potentiometer > adcMax {
		s.potentiometer = adcMax
	}
	return s.potentiometer, nil
}

func (s *Simulator) step(max float64) float64 {
	return (s.rnd.Float64()*2 - 1) * max
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
