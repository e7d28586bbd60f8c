// Package connectivity keeps the network link and the MQTT session up.
package connectivity

import (
	"context"
	"time"

	"github.com/supby/sensor2mqtt/internal/configuration"
	"github.com/supby/sensor2mqtt/internal/logger"
	"github.com/supby/sensor2mqtt/internal/network"
)

// Session is the part of the MQTT client the manager drives.
type Session interface {
	Connect(clientID, username, password string) error
	IsConnected() bool
	Subscribe(topic string) error
	Pump() int
}

// SleepFunc waits for d and reports false if ctx ended first.
type SleepFunc func(ctx context.Context, d time.Duration) bool

func SleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

type Manager struct {
	link    network.Link
	session Session
	sleep   SleepFunc

	ssid           string
	secret         string
	networkDelay   time.Duration
	clientID       string
	username       string
	password       string
	subscribeTopic string
	brokerDelay    time.Duration

	logger logger.Logger
}

// NewManager uses SleepContext when sleep is nil.
func NewManager(
	config *configuration.Configuration,
	link network.Link,
	session Session,
	sleep SleepFunc,
	l logger.Logger) *Manager {
	if sleep == nil {
		sleep = SleepContext
	}

	return &Manager{
		link:           link,
		session:        session,
		sleep:          sleep,
		ssid:           config.Network.SSID,
		secret:         config.Network.Password,
		networkDelay:   config.Network.RetryDelay,
		clientID:       config.ClientID(),
		username:       config.Mqtt.Username,
		password:       config.Mqtt.Password,
		subscribeTopic: config.Mqtt.SubscribeTopic,
		brokerDelay:    config.Mqtt.RetryDelay,
		logger:         l.WithPrefix("[Connectivity]"),
	}
}

// EnsureNetwork blocks until the link is up. It only returns an error when
// ctx is cancelled.
func (m *Manager) EnsureNetwork(ctx context.Context) error {
	if m.link.IsConnected() {
		return nil
	}

	m.logger.Info("Connecting to network '%v'", m.ssid)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		// the link may come up while we sleep, a late DHCP lease for example
		if attempt > 1 && m.link.IsConnected() {
			m.logNetworkUp()
			return nil
		}

		err := m.link.Connect(m.ssid, m.secret)
		if err == nil {
			if m.link.IsConnected() {
				m.logNetworkUp()
				return nil
			}
			err = network.ErrLinkDown
		}

		m.logger.Warn("Network attempt %v failed: %v", attempt, err)
		if !m.sleep(ctx, m.networkDelay) {
			return ctx.Err()
		}
	}
}

func (m *Manager) logNetworkUp() {
	m.logger.Info("Network connected. IP: %v, MAC: %v", m.link.LocalAddress(), m.link.HardwareAddress())
}

// EnsureMessaging blocks until the MQTT session is up and subscribes to the
// command topic after every successful connect.
func (m *Manager) EnsureMessaging(ctx context.Context) error {
	if m.session.IsConnected() {
		return nil
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		m.logger.Info("Connecting to broker as '%v'", m.clientID)
		err := m.session.Connect(m.clientID, m.username, m.password)
		if err == nil {
			m.logger.Info("Broker connected")
			m.subscribe()
			return nil
		}

		m.logger.Warn("Broker attempt %v failed: %v", attempt, err)
		if !m.sleep(ctx, m.brokerDelay) {
			return ctx.Err()
		}
	}
}

func (m *Manager) subscribe() {
	if err := m.session.Subscribe(m.subscribeTopic); err != nil {
		m.logger.Warn("Subscribe to '%v' failed: %v", m.subscribeTopic, err)
		return
	}
	m.logger.Info("Subscribed to '%v'", m.subscribeTopic)
}

// Pump delivers pending inbound messages to the command handler.
func (m *Manager) Pump() int {
	return m.session.Pump()
}

func (m *Manager) RunCycle(ctx context.Context) error {
	if err := m.EnsureNetwork(ctx); err != nil {
		return err
	}
	if err := m.EnsureMessaging(ctx); err != nil {
		return err
	}
	m.Pump()
	return nil
}
