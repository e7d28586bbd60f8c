package router

import (
	"strings"

	"github.com/supby/sensor2mqtt/internal/configuration"
	"github.com/supby/sensor2mqtt/internal/logger"
	"github.com/supby/sensor2mqtt/internal/types"
)

type commandRouter struct {
	commandTopic       string
	onIndicatorCommand func(cmd types.IndicatorCommand)
	logger             logger.Logger
}

func NewCommandRouter(config *configuration.Configuration, l logger.Logger) CommandRouter {
	return &commandRouter{
		commandTopic: config.Mqtt.SubscribeTopic,
		logger:       l.WithPrefix("[Command Router]"),
	}
}

func (r *commandRouter) SubscribeOnIndicatorCommand(callback func(cmd types.IndicatorCommand)) {
	r.onIndicatorCommand = callback
}

// Route matches the topic literally. The payload is opaque text compared
// case-insensitively, without trimming.
func (r *commandRouter) Route(topic string, payload []byte) {
	if topic != r.commandTopic {
		r.logger.Debug("Ignoring message on '%v'", topic)
		return
	}

	cmd := types.IndicatorCommand(strings.ToUpper(string(payload)))

	switch cmd {
	case types.IndicatorOn, types.IndicatorOff:
		r.logger.Info("Command received: %v", cmd)
		if r.onIndicatorCommand != nil {
			r.onIndicatorCommand(cmd)
		}
	default:
		r.logger.Warn("Unrecognized command '%v'", string(payload))
	}
}
