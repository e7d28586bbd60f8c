// Package gpio drives the indicator output through the Linux sysfs
// interfaces for GPIO lines and LEDs.
package gpio

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/supby/sensor2mqtt/internal/configuration"
	"github.com/supby/sensor2mqtt/internal/logger"
)

type Output interface {
	// Set drives the output high (on) or low (off).
	Set(high bool) error
}

type sysfsOutput struct {
	path      string
	activeLow bool
	on        string
	off       string
}

func (o *sysfsOutput) Set(high bool) error {
	value := o.off
	if high != o.activeLow {
		value = o.on
	}

	return writeAttribute(o.path, value)
}

// OpenGPIO exports line under root (normally /sys/class) if needed and
// configures it as an output.
func OpenGPIO(root string, line int, activeLow bool) (Output, error) {
	lineDir := filepath.Join(root, "gpio", fmt.Sprintf("gpio%d", line))

	if _, err := os.Stat(lineDir); os.IsNotExist(err) {
		if err := writeAttribute(filepath.Join(root, "gpio", "export"), strconv.Itoa(line)); err != nil {
			return nil, err
		}
	}

	if err := writeAttribute(filepath.Join(lineDir, "direction"), "out"); err != nil {
		return nil, err
	}

	return &sysfsOutput{
		path:      filepath.Join(lineDir, "value"),
		activeLow: activeLow,
		on:        "1",
		off:       "0",
	}, nil
}

// OpenLED drives the LED class device name under root. On writes
// max_brightness when the device reports it.
func OpenLED(root, name string, activeLow bool) (Output, error) {
	ledDir := filepath.Join(root, "leds", name)
	if _, err := os.Stat(ledDir); err != nil {
		return nil, fmt.Errorf("led %s: %w", name, err)
	}

	on := "1"
	if data, err := os.ReadFile(filepath.Join(ledDir, "max_brightness")); err == nil {
		if v := strings.TrimSpace(string(data)); v != "" && v != "0" {
			on = v
		}
	}

	return &sysfsOutput{
		path:      filepath.Join(ledDir, "brightness"),
		activeLow: activeLow,
		on:        on,
		off:       "0",
	}, nil
}

type nullOutput struct {
	logger logger.Logger
}

func (o *nullOutput) Set(high bool) error {
	o.logger.Debug("Indicator output set high=%v", high)
	return nil
}

// New opens the output selected by the indicator configuration.
func New(config *configuration.Configuration, l logger.Logger) (Output, error) {
	cfg := config.Indicator

	switch cfg.Driver {
	case configuration.IndicatorDriverGPIO:
		return OpenGPIO(cfg.SysfsRoot, cfg.GPIO, cfg.ActiveLow)
	case configuration.IndicatorDriverLED:
		return OpenLED(cfg.SysfsRoot, cfg.LEDName, cfg.ActiveLow)
	case configuration.IndicatorDriverNone:
		return &nullOutput{logger: l.WithPrefix("[Indicator]")}, nil
	}

	return nil, fmt.Errorf("unknown indicator driver %q", cfg.Driver)
}

func writeAttribute(path, value string) error {
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
