// Package sensor holds the temperature, humidity and potentiometer drivers.
package sensor

import (
	"fmt"
	"io"
	"time"

	"github.com/supby/sensor2mqtt/internal/configuration"
	"github.com/supby/sensor2mqtt/internal/logger"
)

type Drivers struct {
	Hygrometer Hygrometer
	Analog     AnalogInput
	closer     io.Closer
}

// New opens the drivers selected by the sensor configuration.
func New(config *configuration.Configuration, l logger.Logger) (*Drivers, error) {
	sensorConfig := config.Sensor

	switch sensorConfig.Driver {
	case configuration.SensorDriverIIO:
		return &Drivers{
			Hygrometer: NewIIOHygrometer(sensorConfig.IIO.HygrometerDir),
			Analog:     NewIIOADC(sensorConfig.IIO.ADCDir, sensorConfig.IIO.ADCChannel),
		}, nil
	case configuration.SensorDriverSerial:
		d, err := OpenSerial(sensorConfig.Serial, l)
		if err != nil {
			return nil, err
		}
		return &Drivers{Hygrometer: d, Analog: d, closer: d}, nil
	case configuration.SensorDriverSim:
		s := NewSimulator(time.Now().UnixNano())
		return &Drivers{Hygrometer: s, Analog: s}, nil
	}

	return nil, fmt.Errorf("unknown sensor driver %q", sensorConfig.Driver)
}

func (d *Drivers) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}
