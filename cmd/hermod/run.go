package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/hermodbot/hermod/internal/admission"
	"github.com/hermodbot/hermod/internal/classify"
	"github.com/hermodbot/hermod/internal/config"
	"github.com/hermodbot/hermod/internal/dispatch"
	"github.com/hermodbot/hermod/internal/hooks"
	"github.com/hermodbot/hermod/internal/logging"
	"github.com/hermodbot/hermod/internal/observability"
	"github.com/hermodbot/hermod/internal/plugins/builtin"
	"github.com/hermodbot/hermod/internal/registry"
	"github.com/hermodbot/hermod/internal/session"
	"github.com/hermodbot/hermod/internal/transport"
	"github.com/hermodbot/hermod/internal/xdg"
)

// The loopback identities used by the interactive run mode.
const (
	loopbackBot      = "hermod@s.whatsapp.net"
	loopbackOperator = "operator@s.whatsapp.net"
)

// NewRunCmd creates the run subcommand.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the bot with the loopback console transport",
		Long: `Start the bot engine. Lines typed on stdin are delivered as inbound
messages from the console operator; outbound messages print to stdout.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(resolveConfigFile(), cmd.Flags())
			if err != nil {
				return err
			}
			return runBot(cmd.Context(), cfg, cmd)
		},
	}
	config.RegisterFlags(cmd.Flags())
	cmd.Flags().String("data-dir", "", "data directory for session state")
	return cmd
}

func runBot(ctx context.Context, cfg *config.Config, cmd *cobra.Command) error {
	logging.SetDefault("hermod", version, cfg.LogFormat, logging.ParseLevel(cfg.LogLevel))

	slog.Info("starting hermod",
		"prefix", cfg.Prefix,
		"respond_to", cfg.RespondTo,
		"log_format", cfg.LogFormat,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Session state. The loopback transport keeps no credentials, but the
	// cipher and store run the same path a real transport would.
	if cfg.SessionKey != "" {
		if err := ensureSession(cmd, cfg.SessionKey); err != nil {
			return err
		}
	}

	client := transport.NewMemory(loopbackBot)

	owners := cfg.OwnerJIDs
	if len(owners) == 0 {
		// The console operator owns the loopback instance.
		owners = []string{loopbackOperator}
	}

	cls := classify.New(client, classify.Config{
		OwnerJIDs:   owners,
		PremiumJIDs: cfg.PremiumJIDs,
	})

	bus := hooks.NewBus()
	reg := registry.New(cfg.Prefix, bus)

	adm := admission.New(admission.Config{
		MessagesPerDay:    cfg.MessagesPerDay,
		DefaultCooldown:   cfg.DefaultCooldown,
		DefaultRateMax:    cfg.DefaultRateMax,
		DefaultRateWindow: cfg.DefaultRateWindow,
		MaxTrackedUsers:   cfg.MaxTrackedUsers,
	})

	var obsServer *observability.Server
	if cfg.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.MetricsAddr, func() bool { return true },
			admission.RegisterMetrics,
			dispatch.RegisterMetrics,
		)
	}

	var guard *dispatch.SpamGuard
	if cfg.SpamEnabled {
		guardCfg := dispatch.SpamGuardConfig{
			BurstCapacity: cfg.SpamBurst,
			SustainedRate: cfg.SpamRate,
		}
		if obsServer != nil {
			guard = dispatch.NewSpamGuardWithRegistry(guardCfg, obsServer.Registry())
		} else {
			guard = dispatch.NewSpamGuard(guardCfg)
		}
		defer guard.Close()
	}

	var opts []dispatch.Option
	if guard != nil {
		opts = append(opts, dispatch.WithSpamGuard(guard))
	}
	disp := dispatch.New(reg, adm, cls, client, dispatch.Config{
		RespondTo:            cfg.RespondTo,
		UnknownCommandNotice: cfg.UnknownCommandNotice,
		Debug:                cfg.Debug,
		SuccessReaction:      cfg.SuccessReaction,
		ErrorReaction:        cfg.ErrorReaction,
		Timeout:              cfg.CommandTimeout,
	}, opts...)

	// Plugin load: builtins, with manifest overrides layered on when a
	// plugin directory is configured.
	src := builtin.NewSource(builtin.Deps{
		Registry:  reg,
		Admission: adm,
		StartedAt: time.Now(),
	})
	if cfg.PluginDir != "" {
		src = registry.WithOverrides(src, cfg.PluginDir)
	}
	if err := reg.LoadSource(src); err != nil {
		return err
	}
	slog.Info("plugins loaded",
		"commands", len(reg.All()),
		"failures", reg.LoadFailures(),
	)

	var scheduler *registry.ReloadScheduler
	if cfg.ReloadSpec != "" {
		scheduler = registry.NewReloadScheduler(reg)
		scheduler.Prime(src)
		if err := scheduler.Watch(cfg.ReloadSpec, src); err != nil {
			return fmt.Errorf("invalid reload-spec %q: %w", cfg.ReloadSpec, err)
		}
		scheduler.Start()
		defer scheduler.Stop()
		slog.Info("hot reload enabled", "spec", cfg.ReloadSpec)
	}

	if obsServer != nil {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := obsServer.Stop(shutdownCtx); err != nil {
				slog.Warn("error stopping observability server", "error", err)
			}
		}()
		go func() {
			if err, ok := <-obsErrChan; ok && err != nil {
				slog.Error("observability server error, shutting down", "error", err)
				cancel()
			}
		}()
	}

	// Print outbound traffic from the loopback client.
	go func() {
		for {
			select {
			case msg := <-client.Outbound():
				cmd.Printf("[%s] %s\n", msg.Chat, msg.Content.Text)
			case <-ctx.Done():
				return
			}
		}
	}()

	// Feed stdin lines in as operator messages.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Printf("hermod ready. Type %shelp for commands, Ctrl-D to exit.\n", cfg.Prefix)

	for {
		select {
		case sig := <-sigChan:
			slog.Info("received shutdown signal", "signal", sig)
			return nil
		case <-ctx.Done():
			slog.Info("context cancelled, shutting down")
			return nil
		case line, ok := <-lines:
			if !ok {
				slog.Info("stdin closed, shutting down")
				return nil
			}
			if line == "" {
				continue
			}
			disp.HandleEvent(ctx, consoleEvent(line))
		}
	}
}

// consoleEvent wraps one typed line as an inbound private text message.
func consoleEvent(text string) *transport.Event {
	return &transport.Event{
		ID:        ulid.Make().String(),
		Chat:      loopbackOperator,
		Sender:    loopbackOperator,
		PushName:  "operator",
		Timestamp: time.Now(),
		Message: &transport.MessageContent{
			Conversation: text,
		},
	}
}

// ensureSession opens the sealed session file, creating it on first run.
func ensureSession(cmd *cobra.Command, hexKey string) error {
	cipher, err := session.NewCipherFromHex(hexKey)
	if err != nil {
		return err
	}

	dataDir, err := cmd.Flags().GetString("data-dir")
	if err != nil {
		return err
	}
	if dataDir == "" {
		dataDir = xdg.DataDir()
	}
	if err := xdg.EnsureDir(dataDir); err != nil {
		return err
	}

	store := session.NewFileStore(filepath.Join(dataDir, "session.bin"), cipher)
	state, err := store.Load()
	switch {
	case err == nil:
		slog.Info("session state loaded", "bytes", len(state))
	case session.IsNotFound(err):
		if err := store.Save([]byte(`{"jid":"` + loopbackBot + `"}`)); err != nil {
			return err
		}
		slog.Info("session state initialized", "dir", dataDir)
	default:
		return err
	}
	return nil
}
