package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/victorjacobs/go-remotethermo/bridge"
	"github.com/victorjacobs/go-remotethermo/config"
	"github.com/victorjacobs/go-remotethermo/logger"
	"github.com/victorjacobs/go-remotethermo/routes"
)

func main() {
	log := logger.WithComponent("main")

	if err := config.LoadEnv(); err != nil {
		log.Fatal().Err(err).Msg("Error loading environment")
	}

	filename := os.Getenv("NTI_CONFIG")
	if filename == "" {
		filename = config.DefaultFilename
	}

	cfg, err := config.LoadConfiguration(filename)
	if err != nil {
		log.Fatal().Err(err).Str("file", filename).Msg("Error loading configuration")
	}

	if err := logger.Init(cfg.Log); err != nil {
		log.Fatal().Err(err).Msg("Error configuring logging")
	}
	log = logger.WithComponent("main")

	store := config.NewStore(filename, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := bridge.Setup(ctx, cfg, store, logger.WithComponent("bridge"))
	if err != nil {
		log.Fatal().Err(err).Msg("Error setting up bridge")
	}

	if cfg.Mqtt.Enabled() {
		mqttOpts := cfg.Mqtt.ClientOptions(logger.WithComponent("mqtt"))
		// Announce sensors in the ConnectHandler so discovery survives broker restarts
		mqttOpts.SetOnConnectHandler(func(client mqtt.Client) {
			if err := b.RegisterSensors(); err != nil {
				log.Error().Err(err).Msg("Registering sensors failed")
			}
			b.PublishStates()
		})

		mqttClient := mqtt.NewClient(mqttOpts)
		detach := b.AttachHomeAssistant(mqttClient)
		defer detach()

		if t := mqttClient.Connect(); t.Wait() && t.Error() != nil {
			log.Fatal().Err(t.Error()).Msg("MQTT connection error")
		}
		defer mqttClient.Disconnect(250)
	}

	go loopSafely(ctx, func() {
		b.Run(ctx)
	})

	server := &http.Server{
		Addr:              cfg.Http.Listen,
		Handler:           routes.New(b),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go loopSafely(ctx, func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
			time.Sleep(time.Second)
		}
	})

	log.Info().Str("listen", cfg.Http.Listen).Msg("Running")

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)
}
