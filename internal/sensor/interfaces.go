package sensor

// Hygrometer reads a combined temperature and relative humidity sensor.
// Temperatures are in degrees Celsius, humidity in percent.
type Hygrometer interface {
	ReadTemperature() (float64, error)
	ReadHumidity() (float64, error)
}

// AnalogInput reads the raw conversion result of an ADC channel.
type AnalogInput interface {
	ReadRaw() (int, error)
}
