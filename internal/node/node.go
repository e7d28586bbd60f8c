// Package node runs the main loop: keep connectivity, sample, publish, sleep.
package node

import (
	"context"
	"time"

	"github.com/supby/sensor2mqtt/internal/configuration"
	"github.com/supby/sensor2mqtt/internal/connectivity"
	"github.com/supby/sensor2mqtt/internal/logger"
	"github.com/supby/sensor2mqtt/internal/telemetry"
)

type Node struct {
	connectivity *connectivity.Manager
	publisher    *telemetry.Publisher
	interval     time.Duration
	sleep        connectivity.SleepFunc
	logger       logger.Logger
}

func New(
	config *configuration.Configuration,
	manager *connectivity.Manager,
	publisher *telemetry.Publisher,
	sleep connectivity.SleepFunc,
	l logger.Logger) *Node {
	if sleep == nil {
		sleep = connectivity.SleepContext
	}

	return &Node{
		connectivity: manager,
		publisher:    publisher,
		interval:     config.PublishInterval,
		sleep:        sleep,
		logger:       l.WithPrefix("[Node]"),
	}
}

// Run loops until ctx is cancelled and then returns ctx.Err().
func (n *Node) Run(ctx context.Context) error {
	n.logger.Info("Starting loop, publishing every %v", n.interval)

	for {
		if err := n.Iterate(ctx); err != nil {
			return err
		}
		if !n.sleep(ctx, n.interval) {
			return ctx.Err()
		}
	}
}

// Iterate runs one loop body without the trailing sleep.
func (n *Node) Iterate(ctx context.Context) error {
	if err := n.connectivity.RunCycle(ctx); err != nil {
		return err
	}

	n.publisher.SampleEnvironment()
	n.publisher.Publish()

	return nil
}
