package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattjoyce/wordbot/internal/audit"
	"github.com/mattjoyce/wordbot/internal/command"
	"github.com/mattjoyce/wordbot/internal/config"
	"github.com/mattjoyce/wordbot/internal/discord"
	"github.com/mattjoyce/wordbot/internal/events"
	"github.com/mattjoyce/wordbot/internal/lock"
	"github.com/mattjoyce/wordbot/internal/log"
	"github.com/mattjoyce/wordbot/internal/metrics"
	"github.com/mattjoyce/wordbot/internal/ops"
	"github.com/mattjoyce/wordbot/internal/registration"
	"github.com/mattjoyce/wordbot/internal/signature"
	"github.com/mattjoyce/wordbot/internal/storage"
	"github.com/mattjoyce/wordbot/internal/webhook"
)

const pruneInterval = time.Hour

var registrationStatuses = []string{
	string(registration.StatusDisabled),
	string(registration.StatusPending),
	string(registration.StatusRegistered),
	string(registration.StatusFailed),
}

// listenAddrs reports the bound addresses once both listeners are up.
type listenAddrs struct {
	Webhook string
	Ops     string // empty when the ops listener is disabled
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, source, err := loadServiceConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("wordbot starting", "version", version, "config", source)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logger, nil); err != nil {
		logger.Error("wordbot failed", "error", err)
		return 1
	}
	logger.Info("wordbot stopped")
	return 0
}

// loadServiceConfig resolves the config the way 'serve' does: an explicit
// path, then discovery, then the environment. source names where it came from.
func loadServiceConfig(configPath string) (*config.Config, string, error) {
	if configPath == "" {
		discovered, err := config.Discover()
		switch {
		case errors.Is(err, config.ErrNoConfig):
			cfg, envErr := config.FromEnv(os.LookupEnv)
			if envErr != nil {
				return nil, "", envErr
			}
			return cfg, "environment", nil
		case err != nil:
			return nil, "", err
		}
		configPath = discovered
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, "", err
	}
	return cfg, cfg.SourcePath, nil
}

// newDiscordClient returns nil without a bot token.
func newDiscordClient(cfg *config.Config) (*discord.Client, error) {
	if cfg.Discord.BotToken == "" {
		return nil, nil
	}
	return discord.NewClient(cfg.Discord.BotToken,
		discord.WithBaseURL(cfg.Discord.APIBase),
		discord.WithTimeout(cfg.Discord.RequestTimeout),
		discord.WithUserAgent("wordbot/"+currentVersionInfo().Version),
	)
}

// resolveKey prefers the configured public_key and otherwise reads the
// application's verify_key once.
func resolveKey(ctx context.Context, cfg *config.Config, client *discord.Client) (signature.VerifyingKey, error) {
	if cfg.Discord.PublicKey != "" {
		return signature.ParseVerifyingKey(cfg.Discord.PublicKey)
	}
	if client == nil {
		return signature.VerifyingKey{}, errors.New("no public_key configured and no bot_token to fetch it")
	}
	app, err := client.CurrentApplication(ctx)
	if err != nil {
		return signature.VerifyingKey{}, fmt.Errorf("fetch application verify key: %w", err)
	}
	key, err := signature.ParseVerifyingKey(app.VerifyKey)
	if err != nil {
		return signature.VerifyingKey{}, fmt.Errorf("application verify key: %w", err)
	}
	return key, nil
}

func discordCommands(cmds []command.Command) []discord.Command {
	out := make([]discord.Command, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, discord.Command{Name: c.Name, Description: c.Description})
	}
	return out
}

// serve wires every component and blocks until ctx is cancelled or a
// listener fails. ready, when set, is called once both listeners are bound.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, ready func(listenAddrs)) error {
	client, err := newDiscordClient(cfg)
	if err != nil {
		return fmt.Errorf("discord client: %w", err)
	}

	key, err := resolveKey(ctx, cfg, client)
	if err != nil {
		return err
	}
	logger.Info("verifying key loaded", "fingerprint", key.Fingerprint())

	m := metrics.New()
	hub := events.NewHub(256)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	webhookOpts := []webhook.Option{
		webhook.WithLogger(log.WithComponent("webhook")),
		webhook.WithMetrics(m),
		webhook.WithEvents(hub),
	}
	var auditReader ops.AuditReader
	if cfg.State.Path != "" {
		if cfg.State.Path != ":memory:" {
			pidLock, err := lock.Acquire(lock.PathFor(cfg.State.Path))
			if err != nil {
				return fmt.Errorf("audit store (another instance may be running): %w", err)
			}
			defer pidLock.Release()
		}

		db, err := storage.OpenSQLite(ctx, cfg.State.Path)
		if err != nil {
			return fmt.Errorf("open audit store: %w", err)
		}
		defer db.Close()
		logger.Info("audit store opened", "path", cfg.State.Path)

		store := audit.New(db)
		webhookOpts = append(webhookOpts, webhook.WithRecorder(store))
		auditReader = store
		if cfg.State.Retention > 0 {
			go store.RunPruner(ctx, cfg.State.Retention, pruneInterval, log.WithComponent("audit"))
		}
	}

	cmds, err := cfg.BuildCommands()
	if err != nil {
		return fmt.Errorf("load commands: %w", err)
	}
	registry, err := command.NewRegistry(cmds)
	if err != nil {
		return fmt.Errorf("build command registry: %w", err)
	}
	names := make([]string, 0, len(cmds))
	for _, c := range cmds {
		names = append(names, c.Name)
	}
	logger.Info("commands loaded", "commands", names)

	if cfg.Discord.RegisterCommands {
		if client == nil {
			return errors.New("register_commands requires a bot_token")
		}
		if err := client.SetCommands(ctx, cfg.Discord.ApplicationID, discordCommands(cmds)); err != nil {
			return fmt.Errorf("register commands: %w", err)
		}
		logger.Info("commands registered", "application_id", cfg.Discord.ApplicationID, "count", len(cmds))
	}

	maxBody, err := config.ParseSize(cfg.Webhook.MaxBodySize)
	if err != nil {
		return fmt.Errorf("webhook.max_body_size: %w", err)
	}
	verifier := signature.NewVerifier(key, signature.WithMaxSkew(cfg.Webhook.MaxTimestampSkew))
	wh := webhook.New(webhook.Config{Listen: cfg.Webhook.Listen, MaxBodySize: maxBody}, verifier, registry, webhookOpts...)

	whLn, err := net.Listen("tcp", cfg.Webhook.Listen)
	if err != nil {
		return fmt.Errorf("webhook listen: %w", err)
	}

	errCh := make(chan error, 2)
	running := 0
	launch := func(name string, run func() error) {
		running++
		go func() {
			err := run()
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("%s: %w", name, err)
				return
			}
			errCh <- nil
		}()
	}
	launch("webhook", func() error { return wh.Serve(ctx, whLn) })

	var setter registration.EndpointSetter
	if client != nil {
		setter = client
	}
	reg := registration.New(setter, cfg.Discord.InteractionsEndpointURL,
		registration.Config{
			InitialBackoff: cfg.Registration.InitialBackoff,
			MaxBackoff:     cfg.Registration.MaxBackoff,
			MaxAttempts:    cfg.Registration.MaxAttempts,
		},
		registration.WithLogger(log.WithComponent("registration")),
		registration.WithAttemptHook(m.RegistrationAttempt),
		registration.WithObserver(func(s registration.Snapshot) {
			m.SetRegistrationStatus(string(s.Status), registrationStatuses...)
			hub.Publish(events.TypeRegistrationChanged, events.RegistrationChanged{
				Status:    string(s.Status),
				Attempts:  s.Attempts,
				LastError: s.LastError,
				At:        s.UpdatedAt,
			})
		}),
	)
	m.SetRegistrationStatus(string(reg.Status().Status), registrationStatuses...)
	reg.Start(ctx)

	addrs := listenAddrs{Webhook: whLn.Addr().String()}
	if cfg.Ops.Enabled {
		opsLn, err := net.Listen("tcp", cfg.Ops.Listen)
		if err != nil {
			cancel()
			_ = drain(errCh, running)
			<-reg.Done()
			return fmt.Errorf("ops listen: %w", err)
		}
		opsSrv := ops.New(ops.Config{
			Listen:         cfg.Ops.Listen,
			APIKey:         cfg.Ops.APIKey,
			Commands:       names,
			KeyFingerprint: key.Fingerprint(),
		}, reg, hub, m, auditReader, log.WithComponent("ops"))
		launch("ops", func() error { return opsSrv.Serve(ctx, opsLn) })
		addrs.Ops = opsLn.Addr().String()
	}

	logger.Info("wordbot running", "webhook", addrs.Webhook, "ops", addrs.Ops)
	if ready != nil {
		ready(addrs)
	}

	var failure error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		running--
		failure = err
		if failure == nil {
			failure = errors.New("listener stopped unexpectedly")
		}
	}
	cancel()
	if err := drain(errCh, running); failure == nil {
		failure = err
	}
	<-reg.Done()
	return failure
}

// drain waits for n launched listeners and returns the first error.
func drain(errCh <-chan error, n int) error {
	var first error
	for range n {
		if err := <-errCh; err != nil && first == nil {
			first = err
		}
	}
	return first
}
