package sensor

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Attribute names exposed by the dht11 IIO driver, in milli-units.
const (
	iioTemperatureFile = "in_temp_input"
	iioHumidityFile    = "in_humidityrelative_input"
)

type iioHygrometer struct {
	dir string
}

// NewIIOHygrometer reads a hygrometer bound to the IIO device directory dir,
// for example /sys/bus/iio/devices/iio:device0.
func NewIIOHygrometer(dir string) Hygrometer {
	return &iioHygrometer{dir: dir}
}

func (h *iioHygrometer) ReadTemperature() (float64, error) {
	return readMilli(filepath.Join(h.dir, iioTemperatureFile))
}

func (h *iioHygrometer) ReadHumidity() (float64, error) {
	return readMilli(filepath.Join(h.dir, iioHumidityFile))
}

type iioADC struct {
	path string
}

func NewIIOADC(dir string, channel int) AnalogInput {
	return &iioADC{path: filepath.Join(dir, fmt.Sprintf("in_voltage%d_raw", channel))}
}

func (a *iioADC) ReadRaw() (int, error) {
	value, err := readAttribute(a.path)
	if err != nil {
		return 0, err
	}

	raw, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", a.path, err)
	}

	return raw, nil
}

func readMilli(path string) (float64, error) {
	value, err := readAttribute(path)
	if err != nil {
		return 0, err
	}

	milli, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}

	return milli / 1000, nil
}

// readAttribute returns the trimmed content of a sysfs attribute. The dht11
// driver answers EIO when a conversion fails, which surfaces here.
func readAttribute(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
