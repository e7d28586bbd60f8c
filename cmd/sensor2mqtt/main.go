package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/supby/sensor2mqtt/internal/configuration"
	"github.com/supby/sensor2mqtt/internal/connectivity"
	"github.com/supby/sensor2mqtt/internal/gpio"
	"github.com/supby/sensor2mqtt/internal/logger"
	"github.com/supby/sensor2mqtt/internal/mqtt"
	"github.com/supby/sensor2mqtt/internal/network"
	"github.com/supby/sensor2mqtt/internal/node"
	"github.com/supby/sensor2mqtt/internal/router"
	"github.com/supby/sensor2mqtt/internal/sensor"
	"github.com/supby/sensor2mqtt/internal/telemetry"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var configFile = flag.String("c", "./configuration.yaml", "path to config file name")
	flag.Parse()

	log := logger.GetLogger("[main]", logger.LogLevelInfo)

	configService, err := configuration.Init(*configFile)
	if err != nil {
		log.Error("Configuration initialization error: %v", err)
		return 1
	}

	cfg := configService.GetConfiguration()

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Error("Configuration initialization error: %v", err)
		return 1
	}
	log = logger.GetLogger("[main]", level)

	if source := configService.Source(); source != "" {
		log.Info("Configuration loaded from '%v'", source)
	} else {
		log.Info("Using built-in configuration")
	}

	drivers, err := sensor.New(&cfg, log)
	if err != nil {
		log.Error("Sensor initialization error: %v", err)
		return 1
	}
	defer drivers.Close()

	indicator, err := gpio.New(&cfg, log)
	if err != nil {
		log.Error("Indicator initialization error: %v", err)
		return 1
	}

	link := network.NewLink(&cfg, log)

	mqttClient := mqtt.NewClient(&cfg, log)
	defer mqttClient.Dispose()

	commandRouter := router.NewCommandRouter(&cfg, log)
	publisher := telemetry.NewPublisher(&cfg, mqttClient, link, drivers, indicator, commandRouter, log)
	if err := publisher.Init(); err != nil {
		log.Error("Indicator initialization error: %v", err)
		return 1
	}

	mqttClient.SetInboundHandler(publisher.OnCommand)

	manager := connectivity.NewManager(&cfg, link, mqttClient, nil, log)
	n := node.New(&cfg, manager, publisher, nil, log)

	go cancelOnInterruptSignal(ctx, cancel)

	if err := n.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Loop stopped: %v", err)
		return 1
	}

	log.Info("exiting app...")
	return 0
}

func cancelOnInterruptSignal(ctx context.Context, cancel context.CancelFunc) {
	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(sigchan)
	}()

	select {
	case <-sigchan:
		cancel()
	case <-ctx.Done():
	}
}
