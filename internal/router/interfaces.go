package router

import (
	"github.com/supby/sensor2mqtt/internal/types"
)

// CommandRouter turns raw inbound publications into device commands.
type CommandRouter interface {
	SubscribeOnIndicatorCommand(callback func(cmd types.IndicatorCommand))
	Route(topic string, payload []byte)
}
