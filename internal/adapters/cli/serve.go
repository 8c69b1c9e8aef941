package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vigil-run/vigil/internal/adapters/ingest"
	"github.com/vigil-run/vigil/internal/adapters/metrics"
	"github.com/vigil-run/vigil/internal/adapters/notifications"
	"github.com/vigil-run/vigil/internal/adapters/storage"
	"github.com/vigil-run/vigil/internal/config"
	"github.com/vigil-run/vigil/internal/core/domain"
	"github.com/vigil-run/vigil/internal/core/ports"
	"github.com/vigil-run/vigil/internal/core/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the alerting engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func serve(parent context.Context, cfg *config.Config) error {
	logger := services.NewSlogLogger(cfg.Core.LogLevel, cfg.Core.LogFormat)

	dbConfig := storage.DefaultConfig(cfg.Core.DataDir)
	if cfg.Database.Path != "" {
		dbConfig.Path = cfg.Database.Path
	}
	if cfg.Database.BusyTimeout > 0 {
		dbConfig.BusyTimeout = cfg.Database.BusyTimeout
	}
	db, err := storage.New(dbConfig)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	alertRepo := storage.NewAlertRepository(db)
	groupRepo := storage.NewGroupRepository(db)
	scheduleRepo := storage.NewScheduleRepository(db)
	policyRepo := storage.NewPolicyRepository(db)
	userRepo := storage.NewUserRepository(db)
	teamRepo := storage.NewTeamRepository(db)
	noiseRepo := storage.NewNoiseRepository(db)
	escQueue := storage.NewEscalationQueue(db)
	notifQueue := storage.NewNotificationQueue(db)
	events := storage.NewEventStore(db)

	instr := metrics.New()

	router, err := buildRouter(cfg.Routes)
	if err != nil {
		return err
	}

	groupingSvc := services.NewGroupingService(groupRepo, cfg.Grouping.Window)
	noiseSvc := services.NewNoiseService(noiseRepo)
	scheduleSvc := services.NewScheduleService(scheduleRepo, events)
	alertSvc := services.NewAlertService(
		alertRepo, policyRepo, escQueue, events, router,
		groupingSvc, noiseSvc, logger, instr,
	)

	escWorker := services.NewEscalationWorker(
		escQueue, notifQueue, alertRepo, policyRepo, scheduleRepo,
		userRepo, teamRepo, events, logger, instr,
		cfg.Workers.EscalationInterval,
	)
	notifWorker := services.NewNotificationWorker(
		notifQueue, events, logger, instr,
		cfg.Workers.NotificationInterval, cfg.Workers.MaxAttempts,
	)
	registerNotifiers(notifWorker, cfg.Notifiers, logger)

	server := ingest.NewServer(
		cfg.Core.HTTPAddr, alertSvc, scheduleSvc, noiseSvc,
		ingest.NewParserRegistry(), logger, instr.Handler(),
	)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go escWorker.Run(ctx)
	go notifWorker.Run(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()
	logger.Info("vigil serving", "addr", cfg.Core.HTTPAddr, "db", dbConfig.Path)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildRouter(routes []config.RouteConfig) (*services.Router, error) {
	built := make([]services.Route, 0, len(routes))
	for _, rc := range routes {
		policyID, err := domain.ParsePolicyID(rc.PolicyID)
		if err != nil {
			return nil, fmt.Errorf("route policy_id %q: %w", rc.PolicyID, err)
		}
		built = append(built, services.Route{Matchers: rc.Match, PolicyID: policyID})
	}
	return services.NewRouter(built), nil
}

func registerNotifiers(w *services.NotificationWorker, cfg config.NotifiersConfig, logger ports.Logger) {
	w.RegisterNotifier(notifications.NewWebhookNotifier())

	if cfg.SlackWebhookURL != "" {
		w.RegisterNotifier(notifications.NewSlackNotifier(cfg.SlackWebhookURL))
	}
	if cfg.DiscordWebhookURL != "" {
		w.RegisterNotifier(notifications.NewDiscordNotifier(cfg.DiscordWebhookURL))
	}
	if cfg.SMSProviderURL != "" {
		w.RegisterNotifier(notifications.NewSMSNotifier(cfg.SMSProviderURL))
	}
	if cfg.SMTP.Host != "" {
		w.RegisterNotifier(notifications.NewEmailNotifier(notifications.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}))
	}
	if cfg.TelegramBotToken != "" {
		tg, err := notifications.NewTelegramNotifier(cfg.TelegramBotToken)
		if err != nil {
			logger.Error("telegram notifier disabled", "error", err)
		} else {
			w.RegisterNotifier(tg)
		}
	}
}
