package node

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/supby/sensor2mqtt/internal/configuration"
	"github.com/supby/sensor2mqtt/internal/connectivity"
	"github.com/supby/sensor2mqtt/internal/logger"
	"github.com/supby/sensor2mqtt/internal/router"
	"github.com/supby/sensor2mqtt/internal/sensor"
	"github.com/supby/sensor2mqtt/internal/telemetry"
)

type fakeLink struct{}

func (fakeLink) Connect(ssid, secret string) error { return nil }
func (fakeLink) IsConnected() bool                 { return true }
func (fakeLink) LocalAddress() string              { return "192.168.1.50" }
func (fakeLink) HardwareAddress() string           { return "AA:BB:CC:DD:EE:FF" }

// fakeBroker records every session operation in order and queues inbound
// messages for Pump.
type fakeBroker struct {
	connected bool
	ops       []string
	inbound   [][2]string
	handler   func(topic string, payload []byte)
}

func (b *fakeBroker) Connect(clientID, username, password string) error {
	b.ops = append(b.ops, "connect")
	b.connected = true
	return nil
}

func (b *fakeBroker) IsConnected() bool { return b.connected }

func (b *fakeBroker) Subscribe(topic string) error {
	b.ops = append(b.ops, "subscribe")
	return nil
}

func (b *fakeBroker) Publish(topic string, data []byte) error {
	if !b.connected {
		return errors.New("not connected")
	}
	b.ops = append(b.ops, "publish")
	return nil
}

func (b *fakeBroker) Pump() int {
	pending := b.inbound
	b.inbound = nil
	for _, m := range pending {
		b.handler(m[0], []byte(m[1]))
	}
	return len(pending)
}

type fakeSensors struct{}

func (fakeSensors) ReadTemperature() (float64, error) { return 24.5, nil }
func (fakeSensors) ReadHumidity() (float64, error)    { return 60.2, nil }
func (fakeSensors) ReadRaw() (int, error)             { return 2048, nil }

type fakeOutput struct{}

func (fakeOutput) Set(high bool) error { return nil }

func newTestNode(broker *fakeBroker, sleep connectivity.SleepFunc) (*Node, *telemetry.Publisher) {
	cfg := configuration.Default()
	l := logger.NewLogger(&bytes.Buffer{}, "[test]", logger.LogLevelDebug)

	publisher := telemetry.NewPublisher(
		&cfg,
		broker,
		fakeLink{},
		&sensor.Drivers{Hygrometer: fakeSensors{}, Analog: fakeSensors{}},
		fakeOutput{},
		router.NewCommandRouter(&cfg, l),
		l)
	broker.handler = publisher.OnCommand

	noSleep := func(ctx context.Context, d time.Duration) bool { return ctx.Err() == nil }
	manager := connectivity.NewManager(&cfg, fakeLink{}, broker, noSleep, l)

	return New(&cfg, manager, publisher, sleep, l), publisher
}

func TestIterateConnectsBeforePublishing(t *testing.T) {
	broker := &fakeBroker{}
	n, _ := newTestNode(broker, nil)

	assert.NoError(t, n.Iterate(context.Background()))
	assert.Equal(t, []string{"connect", "subscribe", "publish"}, broker.ops)
}

func TestSubscribeOnceAfterSessionDrop(t *testing.T) {
	broker := &fakeBroker{}
	n, _ := newTestNode(broker, nil)

	assert.NoError(t, n.Iterate(context.Background()))
	assert.NoError(t, n.Iterate(context.Background()))

	broker.connected = false
	broker.ops = nil

	assert.NoError(t, n.Iterate(context.Background()))
	assert.Equal(t, []string{"connect", "subscribe", "publish"}, broker.ops)
}

func TestCommandIsAppliedBeforePublish(t *testing.T) {
	broker := &fakeBroker{}
	n, publisher := newTestNode(broker, nil)

	broker.inbound = append(broker.inbound, [2]string{"553927/Esp32-gs/comando", "on"})

	assert.NoError(t, n.Iterate(context.Background()))
	assert.True(t, publisher.IndicatorState().On)
}

func TestRunSleepsIntervalAndStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var delays []time.Duration
	broker := &fakeBroker{}
	n, _ := newTestNode(broker, func(ctx context.Context, d time.Duration) bool {
		delays = append(delays, d)
		if len(delays) == 3 {
			cancel()
		}
		return ctx.Err() == nil
	})

	assert.ErrorIs(t, n.Run(ctx), context.Canceled)
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second, 10 * time.Second}, delays)
	assert.Equal(t, []string{"connect", "subscribe", "publish", "publish", "publish"}, broker.ops)
}
