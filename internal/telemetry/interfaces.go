package telemetry

// Session is the part of the MQTT client the publisher needs.
type Session interface {
	Publish(topic string, data []byte) error
}

// AddressSource reports the addresses embedded in every message.
type AddressSource interface {
	LocalAddress() string
	HardwareAddress() string
}
