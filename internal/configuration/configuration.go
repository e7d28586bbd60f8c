package configuration

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// ErrInvalid wraps every validation failure returned by Parse and Init.
var ErrInvalid = errors.New("invalid configuration")

const (
	SensorDriverIIO    = "iio"
	SensorDriverSerial = "serial"
	SensorDriverSim    = "sim"

	IndicatorDriverGPIO = "gpio"
	IndicatorDriverLED  = "led"
	IndicatorDriverNone = "none"
)

// Default returns the compiled-in configuration used when no file is given.
func Default() Configuration {
	return Configuration{
		Device: DeviceConfiguration{
			GroupID:  "553927",
			ModuleID: "Esp32-gs",
		},
		Network: NetworkConfiguration{
			SSID:      "Wokwi-GUEST",
			Password:  "",
			Interface: "wlan0",
			AssociateCommand: []string{
				"nmcli", "device", "wifi", "connect", "{ssid}",
				"password", "{secret}", "ifname", "{interface}",
			},
			AssociateTimeout: 30 * time.Second,
			RetryDelay:       1 * time.Second,
		},
		Mqtt: MqttConfiguration{
			Address:        "172.208.54.189",
			Port:           1883,
			Username:       "gs2025",
			Password:       "q1w2e3r4",
			PublishTopic:   "2TDS/esp32/teste",
			SubscribeTopic: "553927/Esp32-gs/comando",
			RetryDelay:     2 * time.Second,
			ConnectTimeout: 10 * time.Second,
			PublishTimeout: 5 * time.Second,
			KeepAlive:      15 * time.Second,
			InboundBuffer:  16,
		},
		Sensor: SensorConfiguration{
			Driver: SensorDriverIIO,
			IIO: IIOConfiguration{
				HygrometerDir: "/sys/bus/iio/devices/iio:device0",
				ADCDir:        "/sys/bus/iio/devices/iio:device1",
				ADCChannel:    6,
			},
			Serial: SerialConfiguration{
				PortName: "/dev/ttyUSB0",
				BaudRate: 115200,
				MaxAge:   30 * time.Second,
			},
		},
		Indicator: IndicatorConfiguration{
			Driver:    IndicatorDriverGPIO,
			GPIO:      2,
			SysfsRoot: "/sys/class",
		},
		PublishInterval: 10 * time.Second,
		LogLevel:        "info",
	}
}

type configurationService struct {
	configuration Configuration
	source        string
}

// Init loads filename on top of the compiled-in defaults. A missing file
// is not an error: the defaults are used as they are.
func Init(filename string) (ConfigurationService, error) {
	if filename == "" {
		cfg := Default()
		return &configurationService{configuration: cfg}, nil
	}

	data, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return &configurationService{configuration: Default()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read configuration %s: %w", filename, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	return &configurationService{configuration: cfg, source: filename}, nil
}

// Parse decodes YAML (after expanding environment variables) over the
// defaults and validates the result.
func Parse(data []byte) (Configuration, error) {
	cfg := Default()

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Configuration{}, fmt.Errorf("parse yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Configuration{}, err
	}

	return cfg, nil
}

func (s *configurationService) GetConfiguration() Configuration {
	return s.configuration
}

func (s *configurationService) Source() string {
	return s.source
}

// ClientID is the MQTT client identifier of the device.
func (c *Configuration) ClientID() string {
	return c.Device.ModuleID
}

func (c *Configuration) BrokerURL() string {
	scheme := "tcp"
	if c.Mqtt.UseTLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Mqtt.Address, c.Mqtt.Port)
}

func (c *Configuration) Validate() error {
	if c.Device.GroupID == "" || c.Device.ModuleID == "" {
		return fmt.Errorf("%w: device group_id and module_id are required", ErrInvalid)
	}

	if c.Mqtt.Address == "" {
		return fmt.Errorf("%w: mqtt address is required", ErrInvalid)
	}
	if c.Mqtt.Port == 0 {
		return fmt.Errorf("%w: mqtt port must be in 1..65535", ErrInvalid)
	}
	if err := validateTopic("publish_topic", c.Mqtt.PublishTopic); err != nil {
		return err
	}
	if err := validateTopic("subscribe_topic", c.Mqtt.SubscribeTopic); err != nil {
		return err
	}
	if c.Mqtt.InboundBuffer < 1 {
		return fmt.Errorf("%w: mqtt inbound_buffer must be positive", ErrInvalid)
	}

	durations := map[string]time.Duration{
		"publish_interval":          c.PublishInterval,
		"network.retry_delay":       c.Network.RetryDelay,
		"network.associate_timeout": c.Network.AssociateTimeout,
		"mqtt.retry_delay":          c.Mqtt.RetryDelay,
		"mqtt.connect_timeout":      c.Mqtt.ConnectTimeout,
		"mqtt.publish_timeout":      c.Mqtt.PublishTimeout,
		"mqtt.keep_alive":           c.Mqtt.KeepAlive,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be a positive duration", ErrInvalid, name)
		}
	}

	switch c.Sensor.Driver {
	case SensorDriverIIO:
		if c.Sensor.IIO.HygrometerDir == "" || c.Sensor.IIO.ADCDir == "" {
			return fmt.Errorf("%w: sensor iio hygrometer_dir and adc_dir are required", ErrInvalid)
		}
	case SensorDriverSerial:
		if c.Sensor.Serial.PortName == "" || c.Sensor.Serial.BaudRate == 0 {
			return fmt.Errorf("%w: sensor serial port_name and baud_rate are required", ErrInvalid)
		}
		if c.Sensor.Serial.MaxAge <= 0 {
			return fmt.Errorf("%w: sensor serial max_age must be a positive duration", ErrInvalid)
		}
	case SensorDriverSim:
	default:
		return fmt.Errorf("%w: unknown sensor driver %q", ErrInvalid, c.Sensor.Driver)
	}

	switch c.Indicator.Driver {
	case IndicatorDriverGPIO:
		if c.Indicator.GPIO < 0 {
			return fmt.Errorf("%w: indicator gpio must not be negative", ErrInvalid)
		}
	case IndicatorDriverLED:
		if c.Indicator.LEDName == "" {
			return fmt.Errorf("%w: indicator led_name is required", ErrInvalid)
		}
	case IndicatorDriverNone:
	default:
		return fmt.Errorf("%w: unknown indicator driver %q", ErrInvalid, c.Indicator.Driver)
	}

	return nil
}

// validateTopic rejects wildcards: both topics are matched literally.
func validateTopic(name, topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: mqtt %s is required", ErrInvalid, name)
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: mqtt %s %q must not contain wildcards", ErrInvalid, name, topic)
	}
	return nil
}
