package command

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/campus-notifier/internal/app"
	"github.com/nhle/campus-notifier/internal/inbox"
	"github.com/nhle/campus-notifier/internal/notify"
	"github.com/nhle/campus-notifier/internal/obs"
	appsync "github.com/nhle/campus-notifier/internal/sync"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive notification inbox",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

func runTUI(cmd *cobra.Command, _ []string) error {
	client, tokens, err := authedClient()
	if err != nil {
		return err
	}

	// The UI owns the terminal, so logs always go to a file.
	log := newLogger(cfg.Log.File)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := obs.SetupOTel(ctx, obs.OTELConfig{
		Enable:      cfg.Telemetry.Enable,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: appName,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Warn("tracing disabled", zap.Error(err))
	} else {
		defer shutdown(log, "tracer", tel.Shutdown)
	}

	if cfg.Metrics.Addr != "" {
		ms := obs.BootstrapMetricsServer(cfg.Metrics.Addr, nil, log)
		defer shutdown(log, "metrics server", ms.Shutdown)
	}

	store := notify.NewStore(client, notify.WithLogger(log))
	sched := appsync.New(store, appsync.Config{
		Interval: cfg.Poll.Interval,
		PageSize: cfg.Poll.PageSize,
		Logger:   log,
	})
	defer sched.Stop()

	bus := inbox.NewBus(log)
	defer func() { _ = bus.Close() }()

	busCtx, cancelBus := context.WithCancel(ctx)
	defer cancelBus()
	go func() {
		if err := inbox.NewConsumer(bus, store, log).Run(busCtx); err != nil {
			log.Error("inbox consumer stopped", zap.Error(err))
		}
	}()

	sched.SetAuthenticated(ctx, true)

	m := app.New(app.Options{
		Store:     store,
		Poller:    sched,
		Publisher: inbox.NewPublisher(bus),
		Session:   tokens,
		Logger:    log,
	})

	log.Info("starting tui", zap.String("gateway", cfg.Gateway.BaseURL))
	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithReportFocus(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// shutdown runs fn with a short deadline and logs a failure.
func shutdown(log *zap.Logger, what string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Warn("shutdown failed", zap.String("component", what), zap.Error(err))
	}
}
