package configuration

import "time"

type DeviceConfiguration struct {
	GroupID  string `yaml:"group_id"`
	ModuleID string `yaml:"module_id"`
}

type NetworkConfiguration struct {
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password"`
	// Interface is the network interface to watch. Empty picks the first
	// non-loopback interface that is up.
	Interface string `yaml:"interface"`
	// AssociateCommand is run to join the network. The placeholders
	// {ssid}, {secret} and {interface} are substituted per argument.
	// Empty means the link is wired and only its state is observed.
	AssociateCommand []string      `yaml:"associate_command"`
	AssociateTimeout time.Duration `yaml:"associate_timeout"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
}

type MqttConfiguration struct {
	Address        string        `yaml:"address"`
	Port           uint16        `yaml:"port"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	UseTLS         bool          `yaml:"use_tls"`
	PublishTopic   string        `yaml:"publish_topic"`
	SubscribeTopic string        `yaml:"subscribe_topic"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
	InboundBuffer  int           `yaml:"inbound_buffer"`
}

type IIOConfiguration struct {
	HygrometerDir string `yaml:"hygrometer_dir"`
	ADCDir        string `yaml:"adc_dir"`
	ADCChannel    int    `yaml:"adc_channel"`
}

type SerialConfiguration struct {
	PortName string        `yaml:"port_name"`
	BaudRate uint32        `yaml:"baud_rate"`
	MaxAge   time.Duration `yaml:"max_age"`
}

type SensorConfiguration struct {
	Driver string              `yaml:"driver"` // iio, serial or sim
	IIO    IIOConfiguration    `yaml:"iio"`
	Serial SerialConfiguration `yaml:"serial"`
}

type IndicatorConfiguration struct {
	Driver    string `yaml:"driver"` // gpio, led or none
	GPIO      int    `yaml:"gpio"`
	LEDName   string `yaml:"led_name"`
	SysfsRoot string `yaml:"sysfs_root"`
	ActiveLow bool   `yaml:"active_low"`
}

type Configuration struct {
	Device          DeviceConfiguration    `yaml:"device"`
	Network         NetworkConfiguration   `yaml:"network"`
	Mqtt            MqttConfiguration      `yaml:"mqtt"`
	Sensor          SensorConfiguration    `yaml:"sensor"`
	Indicator       IndicatorConfiguration `yaml:"indicator"`
	PublishInterval time.Duration          `yaml:"publish_interval"`
	LogLevel        string                 `yaml:"log_level"` // error, warn, info, debug
}
