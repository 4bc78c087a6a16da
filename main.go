package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eddielth/sensor-gateway/api"
	"github.com/eddielth/sensor-gateway/backend"
	"github.com/eddielth/sensor-gateway/buffer"
	"github.com/eddielth/sensor-gateway/config"
	"github.com/eddielth/sensor-gateway/connectivity"
	"github.com/eddielth/sensor-gateway/gateway"
	"github.com/eddielth/sensor-gateway/logger"
	"github.com/eddielth/sensor-gateway/transport"
)

func main() {
	configPath := "config.yaml"

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logging
	if err := logger.InitFromConfig(cfg.Logger.Level, cfg.Logger.FilePath,
		cfg.Logger.MaxSize, cfg.Logger.MaxBackups, cfg.Logger.Console); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Close()

	// Ring buffer store and sync client
	store := buffer.New(buffer.DefaultCapacity, cfg.Gateway.ID, cfg.Gateway.NamePrefix)
	client := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.DataPath,
		cfg.Backend.StatusPath, cfg.Backend.HealthPath)

	// Connectivity state machine
	probeTimeout := time.Duration(cfg.Connectivity.ProbeTimeout) * time.Millisecond
	link := connectivity.NewDialLink(cfg.Connectivity.UplinkLabel, cfg.Connectivity.UplinkAddr, probeTimeout)
	probe := connectivity.TCPProbe{Addr: cfg.Connectivity.ProbeAddr, Timeout: probeTimeout}
	machine := connectivity.NewMachine(link, probe, cfg.Connectivity.LocalLabel)

	orch := gateway.NewOrchestrator(cfg.Gateway.ID, store, machine, client)

	// Radio bridge and the two transport receivers
	bridge, err := transport.NewBridge(cfg.Bridge)
	if err != nil {
		log.Fatalf("failed to initialize radio bridge: %v", err)
	}
	if err := bridge.Connect(); err != nil {
		log.Fatalf("failed to connect to radio bridge: %v", err)
	}
	defer bridge.Disconnect()

	mesh, err := transport.NewMeshReceiver(bridge, cfg.Bridge.MeshTopic, orch.HandleReading)
	if err != nil {
		log.Fatalf("failed to start mesh receiver: %v", err)
	}
	orch.AddReceiver(mesh)

	var decoder *transport.ScriptDecoder
	if cfg.Bridge.LoraScriptCode != "" || cfg.Bridge.LoraScriptPath != "" {
		decoder, err = transport.NewScriptDecoder(cfg.Bridge.LoraScriptCode, cfg.Bridge.LoraScriptPath)
		if err != nil {
			log.Fatalf("failed to load lora decode script: %v", err)
		}
	}
	lora, err := transport.NewLoraReceiver(bridge, cfg.Bridge.LoraTopic,
		cfg.Bridge.LoraRearmTopic, decoder, orch.HandleReading)
	if err != nil {
		log.Fatalf("failed to start lora receiver: %v", err)
	}
	orch.AddReceiver(lora)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Local status API
	if cfg.API.Enabled {
		apiServer := api.NewServer(cfg.API.Listen, orch)
		go func() {
			if err := apiServer.Start(ctx); err != nil {
				logger.Error("status API error: %v", err)
			}
		}()
	}

	// Start the uplink and the tick loop
	machine.Start()
	tickInterval := time.Duration(cfg.Gateway.TickInterval) * time.Millisecond
	go orch.Run(ctx, tickInterval)

	// Watch for configuration changes; only the log level applies live
	err = config.WatchConfig(configPath, func(newCfg *config.Config) error {
		level, err := logger.ParseLogLevel(newCfg.Logger.Level)
		if err != nil {
			return err
		}
		logger.SetLevel(level)
		logger.Info("log level set to %s", newCfg.Logger.Level)
		logger.Info("bridge and backend changes take effect after restart")
		return nil
	})
	if err != nil {
		logger.Warn("failed to watch configuration file: %v", err)
	} else {
		logger.Info("configuration file watch started")
	}

	logger.Info("sensor gateway %s started", cfg.Gateway.ID)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	cancel()
	logger.Info("sensor gateway stopped")
}
