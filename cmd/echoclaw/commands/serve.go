package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/jholhewres/echoclaw/pkg/echoclaw/channels/discord"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/channels/whatsapp"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/config"
	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// newServeCmd creates the `echoclaw serve` command that runs the assistant.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect the chat channels and answer messages",
		Long: `Start EchoClaw, connecting WhatsApp (and Discord when DISCORD_TOKEN is set)
and answering incoming messages until interrupted.

On the first run a QR code is printed; scan it from WhatsApp > Linked devices.

Examples:
  echoclaw serve
  echoclaw serve --channel whatsapp
  echoclaw serve --config ./config.yaml`,
		RunE: runServe,
	}

	cmd.Flags().StringSlice("channel", nil, "channels to enable (whatsapp, discord)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd, os.Stdout)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	filter, _ := cmd.Flags().GetStringSlice("channel")
	registerChannels(ctx, rt, cfg, filter, logger)

	if err := rt.assistant.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	logger.Info("EchoClaw running. Press Ctrl+C to stop.",
		"channels", rt.assistant.ChannelManager().Names(),
		"provider", cfg.AI.Provider,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping...")
	shutdown(rt, logger)
	return nil
}

// registerChannels adds the configured transports to the channel manager.
func registerChannels(ctx context.Context, rt *runtime, cfg *config.Config, filter []string, logger *slog.Logger) {
	mgr := rt.assistant.ChannelManager()

	if shouldEnable(whatsapp.ChannelName, filter, cfg.Channels.WhatsApp.Enabled) {
		waCfg := whatsapp.DefaultConfig()
		waCfg.DatabasePath = cfg.Storage.DatabasePath
		if cfg.Channels.WhatsApp.DeviceName != "" {
			waCfg.DeviceName = cfg.Channels.WhatsApp.DeviceName
		}

		wa := whatsapp.New(waCfg, logger)
		if err := mgr.Register(wa); err != nil {
			logger.Error("failed to register WhatsApp", "error", err)
		} else {
			go renderQR(ctx, wa)
			logger.Info("WhatsApp channel registered")
		}
	}

	if shouldEnable(discord.ChannelName, filter, cfg.Channels.Discord.Token != "") {
		dc := discord.New(discord.Config{
			Token:   cfg.Channels.Discord.Token,
			OwnerID: cfg.Channels.Discord.OwnerID,
		}, logger)
		if err := mgr.Register(dc); err != nil {
			logger.Error("failed to register Discord", "error", err)
		} else {
			logger.Info("Discord channel registered")
		}
	}
}

// renderQR prints pairing QR codes to the terminal until ctx ends.
func renderQR(ctx context.Context, wa *whatsapp.WhatsApp) {
	events, unsubscribe := wa.SubscribeQR()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			switch evt.Type {
			case whatsapp.QRCode:
				fmt.Println()
				fmt.Println("Scan this QR code in WhatsApp > Linked devices:")
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)
			default:
				if evt.Message != "" {
					fmt.Println(evt.Message)
				}
			}
		}
	}
}

// shutdown stops the assistant, giving up after shutdownTimeout.
func shutdown(rt *runtime, logger *slog.Logger) {
	done := make(chan struct{})
	go func() {
		rt.assistant.Stop()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-time.After(shutdownTimeout):
		logger.Warn("shutdown timed out, forcing exit", "timeout", shutdownTimeout)
	}
}

// shouldEnable reports whether a channel is enabled given the --channel
// filter. An empty filter keeps the configured default.
func shouldEnable(name string, filter []string, defaultEnabled bool) bool {
	if len(filter) == 0 {
		return defaultEnabled
	}
	return slices.Contains(filter, name)
}
