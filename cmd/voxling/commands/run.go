package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/voxling/voxling/cmd/voxling/internal/config"
	"github.com/voxling/voxling/pkg/audio/pcm"
	"github.com/voxling/voxling/pkg/board"
	"github.com/voxling/voxling/pkg/device"
	"github.com/voxling/voxling/pkg/ota"
	"github.com/voxling/voxling/pkg/settings"
	"github.com/voxling/voxling/pkg/transport"
	"github.com/voxling/voxling/pkg/voice"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the device core",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return runDevice(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDevice(ctx context.Context, cfg *config.Config) error {
	log := slog.Default()

	deviceID := cfg.Device.ID
	if deviceID == "" {
		deviceID = uuid.NewString()
		log.Info("no device id configured, generated one", "device_id", deviceID)
	}
	frame := time.Duration(cfg.Audio.FrameMs) * time.Millisecond

	store, err := openSettings(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	proto, err := buildTransport(cfg, deviceID, frame)
	if err != nil {
		return err
	}

	var updater device.Updater
	if cfg.OTA.URL != "" {
		client, err := ota.New(ota.Config{
			CheckURL:       cfg.OTA.URL,
			CurrentVersion: Version,
			DeviceID:       deviceID,
			ClientID:       uuid.NewString(),
			SerialNumber:   cfg.Device.SerialNumber,
			UserAgent:      "voxling/" + Version,
			DeviceInfo: map[string]any{
				"application": map[string]string{"version": Version},
				"board":       map[string]string{"type": "simulator"},
			},
		})
		if err != nil {
			return err
		}
		updater = client
	}

	app, err := device.New(device.Options{
		Protocol:          proto,
		Codec:             device.NewSimCodec(pcm.Format{SampleRate: cfg.Audio.CaptureRate}),
		Voice:             voice.New(voice.Config{WakeWord: cfg.Device.WakeWord}),
		Updater:           updater,
		Board:             board.NewConsole(os.Stdout, board.DefaultTheme),
		Settings:          store.Namespace("device"),
		CaptureSampleRate: cfg.Audio.CaptureRate,
		FrameDuration:     frame,
		RealtimeChat:      cfg.Audio.Realtime,
		BargeIn:           cfg.Audio.BargeIn,
		AutoStopSilence:   time.Duration(cfg.Audio.AutoStopSilenceSec) * time.Second,
		PowerSaveAfter:    time.Minute,
	})
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	log.Info("voxling starting", "transport", cfg.Transport.Kind, "device_id", deviceID)
	return app.Run(runCtx)
}

func openSettings(cfg *config.Config) (*settings.Store, error) {
	if cfg.Settings.Dir == "" {
		return settings.Open(settings.Options{InMemory: true})
	}
	if err := os.MkdirAll(cfg.Settings.Dir, 0o755); err != nil {
		return nil, err
	}
	return settings.Open(settings.Options{Dir: cfg.Settings.Dir})
}

func buildTransport(cfg *config.Config, deviceID string, frame time.Duration) (transport.Protocol, error) {
	switch cfg.Transport.Kind {
	case "websocket":
		if cfg.Transport.URL == "" {
			return nil, fmt.Errorf("transport.url is required for websocket")
		}
		return transport.NewWebsocket(transport.WebsocketOptions{
			URL:           cfg.Transport.URL,
			Token:         cfg.Transport.Token,
			DeviceID:      deviceID,
			FrameDuration: frame,
		}), nil
	case "mqtt":
		if cfg.Transport.MQTT.BrokerURL == "" {
			return nil, fmt.Errorf("transport.mqtt.broker_url is required for mqtt")
		}
		return transport.NewMQTT(transport.MQTTOptions{
			BrokerURL:     cfg.Transport.MQTT.BrokerURL,
			Username:      cfg.Transport.MQTT.Username,
			Password:      cfg.Transport.MQTT.Password,
			DeviceID:      deviceID,
			TopicPrefix:   cfg.Transport.MQTT.TopicPrefix,
			FrameDuration: frame,
		}), nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q", cfg.Transport.Kind)
	}
}
