package mqtt

// Message is an inbound publication waiting in the queue for Pump.
type Message struct {
	Topic   string
	Payload []byte
}

// InboundHandler receives messages from Pump on the caller's goroutine.
// It must not block.
type InboundHandler func(topic string, payload []byte)
