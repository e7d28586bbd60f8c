package mqtt

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log"

	mqttlib "github.com/eclipse/paho.mqtt.golang"
	"github.com/supby/sensor2mqtt/internal/configuration"
	"github.com/supby/sensor2mqtt/internal/logger"
)

var ErrNotConnected = errors.New("mqtt client is not connected")

// subscribeFailure is the SUBACK return code for a refused subscription.
const subscribeFailure = 0x80

type MqttClient interface {
	Connect(clientID, username, password string) error
	IsConnected() bool
	Subscribe(topic string) error
	Publish(topic string, data []byte) error
	SetInboundHandler(handler InboundHandler)
	// Pump delivers every queued inbound message to the handler and
	// returns how many were delivered.
	Pump() int
	Dispose()
}

type defaultMqttClient struct {
	innerClient   mqttlib.Client
	handler       InboundHandler
	inbound       chan Message
	brokerURL     string
	configuration configuration.MqttConfiguration
	logger        logger.Logger
}

func NewClient(config *configuration.Configuration, l logger.Logger) MqttClient {
	retClient := defaultMqttClient{
		inbound:       make(chan Message, config.Mqtt.InboundBuffer),
		brokerURL:     config.BrokerURL(),
		configuration: config.Mqtt,
		logger:        l.WithPrefix("[MQTT Client]"),
	}

	redirectLibraryLogs(retClient.logger)

	return &retClient
}

func redirectLibraryLogs(l logger.Logger) {
	libLogger := log.New(l.GetWriter(), "[MQTT Library] ", log.Ldate|log.Ltime|log.Lmicroseconds)
	mqttlib.ERROR = libLogger
	mqttlib.CRITICAL = libLogger
	if l.Level() >= logger.LogLevelWarn {
		mqttlib.WARN = libLogger
	}
	if l.Level() >= logger.LogLevelDebug {
		mqttlib.DEBUG = libLogger
	}
}

func (cl *defaultMqttClient) newOptions(clientID, username, password string) *mqttlib.ClientOptions {
	opts := mqttlib.NewClientOptions()
	opts.AddBroker(cl.brokerURL)
	opts.SetClientID(clientID)
	opts.SetUsername(username)
	opts.SetPassword(password)
	// Reconnecting and resubscribing belong to the connectivity manager.
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetCleanSession(true)
	opts.SetKeepAlive(cl.configuration.KeepAlive)
	opts.SetPingTimeout(cl.configuration.ConnectTimeout)
	opts.SetConnectTimeout(cl.configuration.ConnectTimeout)
	opts.SetDefaultPublishHandler(cl.onMessageReceived)
	opts.OnConnect = func(client mqttlib.Client) {
		cl.logger.Debug("Connected to '%v'", cl.brokerURL)
	}
	opts.OnConnectionLost = func(client mqttlib.Client, err error) {
		cl.logger.Warn("Connection lost: %v", err)
	}

	if cl.configuration.UseTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	return opts
}

func (cl *defaultMqttClient) Connect(clientID, username, password string) error {
	if cl.innerClient != nil {
		cl.innerClient.Disconnect(0)
	}

	innerClient := mqttlib.NewClient(cl.newOptions(clientID, username, password))
	cl.innerClient = innerClient

	token := innerClient.Connect()
	if !token.WaitTimeout(cl.configuration.ConnectTimeout) {
		return fmt.Errorf("connect to %s: timed out after %v", cl.brokerURL, cl.configuration.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to %s: %w", cl.brokerURL, err)
	}

	return nil
}

func (cl *defaultMqttClient) IsConnected() bool {
	return cl.innerClient != nil && cl.innerClient.IsConnected()
}

func (cl *defaultMqttClient) Subscribe(topic string) error {
	if !cl.IsConnected() {
		return ErrNotConnected
	}

	token := cl.innerClient.Subscribe(topic, 0, cl.onMessageReceived)
	if !token.WaitTimeout(cl.configuration.ConnectTimeout) {
		return fmt.Errorf("subscribe %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	if st, ok := token.(*mqttlib.SubscribeToken); ok && subscribeRefused(st.Result(), topic) {
		return fmt.Errorf("subscribe %s: refused by broker", topic)
	}

	return nil
}

// subscribeRefused reports whether the SUBACK codes refuse topic.
func subscribeRefused(result map[string]byte, topic string) bool {
	code, found := result[topic]
	return found && code == subscribeFailure
}

func (cl *defaultMqttClient) Publish(topic string, data []byte) error {
	if !cl.IsConnected() {
		return ErrNotConnected
	}

	token := cl.innerClient.Publish(topic, 0, false, data)
	if !token.WaitTimeout(cl.configuration.PublishTimeout) {
		return fmt.Errorf("publish %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	return nil
}

func (cl *defaultMqttClient) SetInboundHandler(handler InboundHandler) {
	cl.handler = handler
}

func (cl *defaultMqttClient) Pump() int {
	pending := len(cl.inbound)
	for i := 0; i < pending; i++ {
		msg := <-cl.inbound
		if cl.handler != nil {
			cl.handler(msg.Topic, msg.Payload)
		}
	}

	return pending
}

func (cl *defaultMqttClient) Dispose() {
	if cl.innerClient == nil {
		return
	}

	cl.logger.Info("Disposing MQTT client")
	cl.innerClient.Disconnect(250)
}

// onMessageReceived runs on a paho goroutine and only queues the message.
func (cl *defaultMqttClient) onMessageReceived(client mqttlib.Client, msg mqttlib.Message) {
	payload := make([]byte, len(msg.Payload()))
	copy(payload, msg.Payload())

	select {
	case cl.inbound <- Message{Topic: msg.Topic(), Payload: payload}:
	default:
		cl.logger.Warn("Inbound queue full, dropping message on '%v'", msg.Topic())
	}
}
