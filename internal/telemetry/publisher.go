// Package telemetry samples the sensors, publishes telemetry messages and
// applies indicator commands.
package telemetry

import (
	"encoding/json"
	"fmt"

	"github.com/supby/sensor2mqtt/internal/configuration"
	"github.com/supby/sensor2mqtt/internal/gpio"
	"github.com/supby/sensor2mqtt/internal/logger"
	"github.com/supby/sensor2mqtt/internal/router"
	"github.com/supby/sensor2mqtt/internal/sensor"
	"github.com/supby/sensor2mqtt/internal/types"
)

const potentiometerMax = 4095

type Publisher struct {
	identity     types.DeviceIdentity
	publishTopic string

	session   Session
	addresses AddressSource
	drivers   *sensor.Drivers
	output    gpio.Output
	router    router.CommandRouter

	sample    Sample
	indicator types.IndicatorState

	logger logger.Logger
}

func NewPublisher(
	config *configuration.Configuration,
	session Session,
	addresses AddressSource,
	drivers *sensor.Drivers,
	output gpio.Output,
	commandRouter router.CommandRouter,
	l logger.Logger) *Publisher {
	p := &Publisher{
		identity: types.DeviceIdentity{
			GroupID:  config.Device.GroupID,
			ModuleID: config.Device.ModuleID,
		},
		publishTopic: config.Mqtt.PublishTopic,
		session:      session,
		addresses:    addresses,
		drivers:      drivers,
		output:       output,
		router:       commandRouter,
		sample: Sample{
			Temperature: FaultReading(),
			Humidity:    FaultReading(),
		},
		logger: l.WithPrefix("[Telemetry]"),
	}

	commandRouter.SubscribeOnIndicatorCommand(p.applyCommand)

	return p
}

// Init drives the indicator output low.
func (p *Publisher) Init() error {
	p.indicator = types.IndicatorState{On: false}
	if err := p.output.Set(false); err != nil {
		return fmt.Errorf("initialize indicator: %w", err)
	}
	return nil
}

// SampleEnvironment refreshes the sample. A fault in either hygrometer
// reading replaces both with the fault marker.
func (p *Publisher) SampleEnvironment() Sample {
	temperature, tempErr := p.drivers.Hygrometer.ReadTemperature()
	humidity, humErr := p.drivers.Hygrometer.ReadHumidity()

	t, h := NewReading(temperature), NewReading(humidity)
	if tempErr != nil || humErr != nil || !t.Valid() || !h.Valid() {
		p.logger.Warn("Hygrometer read failed (temperature: %v, humidity: %v)", describe(temperature, tempErr), describe(humidity, humErr))
		t, h = FaultReading(), FaultReading()
	}

	raw, err := p.drivers.Analog.ReadRaw()
	if err != nil {
		p.logger.Warn("Potentiometer read failed: %v", err)
		raw = 0
	}

	p.sample = Sample{
		Temperature:   t,
		Humidity:      h,
		Potentiometer: clamp(raw, 0, potentiometerMax),
	}

	return p.sample
}

func (p *Publisher) BuildMessage() Message {
	return Message{
		GroupID:       p.identity.GroupID,
		ModuleID:      p.identity.ModuleID,
		IP:            p.addresses.LocalAddress(),
		MAC:           p.addresses.HardwareAddress(),
		Temperature:   p.sample.Temperature,
		Humidity:      p.sample.Humidity,
		Potentiometer: p.sample.Potentiometer,
	}
}

// Publish sends the current message once. Failures are logged and not
// retried; the next sample supersedes it.
func (p *Publisher) Publish() {
	data, err := json.Marshal(p.BuildMessage())
	if err != nil {
		p.logger.Error("Error Marshal telemetry message: %v", err)
		return
	}

	if err := p.session.Publish(p.publishTopic, data); err != nil {
		p.logger.Warn("Publish to '%v' failed: %v", p.publishTopic, err)
		return
	}

	p.logger.Info("Published to '%v': %s", p.publishTopic, data)
}

// OnCommand is the inbound handler registered on the MQTT session.
func (p *Publisher) OnCommand(topic string, payload []byte) {
	p.router.Route(topic, payload)
}

func (p *Publisher) IndicatorState() types.IndicatorState {
	return p.indicator
}

func (p *Publisher) applyCommand(cmd types.IndicatorCommand) {
	p.indicator = types.IndicatorState{On: cmd == types.IndicatorOn}

	if err := p.output.Set(p.indicator.On); err != nil {
		p.logger.Error("Driving indicator %v failed: %v", p.indicator, err)
		return
	}

	p.logger.Info("Indicator %v", p.indicator)
}

func describe(v float64, err error) string {
	if err != nil {
		return err.Error()
	}
	return fmt.Sprint(v)
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
