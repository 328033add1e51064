package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/migueljbento/percenseo/internal/app"
	"github.com/migueljbento/percenseo/internal/config"
	"github.com/migueljbento/percenseo/internal/survey"
	"github.com/migueljbento/percenseo/internal/telemetry"
	apperrors "github.com/migueljbento/percenseo/pkg/errors"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			log.Printf("survey: %v", err)
			os.Exit(1)
		}
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("survey", pflag.ContinueOnError)
	config.RegisterSurveyFlags(fs)
	configPath := fs.String("config", getEnv("CONFIG_FILE", ""), "path to configuration file")
	dryRun := fs.Bool("dry-run", false, "simulate calls without contacting the provider")
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: survey [flags] [number ...]\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*configPath, fs)
	if err != nil {
		return err
	}

	container, err := app.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer container.Close(context.Background())
	lg := container.Logger.Named("survey")

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, cfg.App)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	builder := newBuilder(cfg, fs, container, *dryRun)
	orchestrator, err := builder.Build(ctx)
	if err != nil {
		return err
	}

	lease := container.Lease(cfg.Store.Location, orchestrator.RunID())
	if lease != nil {
		if err := lease.Acquire(ctx); err != nil {
			if errors.Is(err, apperrors.ErrLeaseHeld) {
				lg.Warn("another survey run holds this store", zap.String("lease", lease.Key()))
			}
			return err
		}
		defer func() {
			if err := lease.Release(context.Background()); err != nil {
				lg.Warn("release run lease", zap.Error(err))
			}
		}()
	}

	if *dryRun {
		lg.Info("dry run: calls are simulated")
	}

	summary, err := orchestrator.Execute(ctx)
	if err != nil {
		return err
	}

	lg.Info("survey run finished",
		zap.String("run_id", summary.RunID.String()),
		zap.Int("queued", summary.Queued()),
		zap.Int("failed", summary.Failed()),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	lg.Info("call results are reported asynchronously to the result handler",
		zap.String("result_url", cfg.Survey.CallResultURL),
	)
	return nil
}

// newBuilder maps the loaded configuration onto a survey builder. Numbers
// given as arguments are used when no numbers file is configured. An
// explicitly passed prefix flag is forwarded even when blank so the builder
// can reject it.
func newBuilder(cfg *config.Config, fs *pflag.FlagSet, container *app.Container, dryRun bool) *survey.Builder {
	builder := survey.NewBuilder().
		WithStoreLocation(cfg.Store.Location).
		WithCallHandlerURL(cfg.Survey.CallHandlerURL).
		WithCallResultURL(cfg.Survey.CallResultURL).
		WithAccountSID(cfg.Twilio.AccountSID).
		WithAuthToken(cfg.Twilio.AuthToken).
		WithCallerNumber(cfg.Twilio.CallerNumber).
		WithProviderSettings(container.ProviderSettings()).
		WithStoreOpener(container.StoreOpener()).
		WithDialerFactory(container.DialerFactory(dryRun)).
		WithLogger(container.Logger)

	if numbers := fs.Args(); len(numbers) > 0 && cfg.Survey.NumbersFile == "" {
		builder.WithNumbers(numbers)
	} else {
		builder.WithNumbersFile(cfg.Survey.NumbersFile)
	}
	if fs.Changed("internationalprefix") || cfg.Survey.InternationalPrefix != "" {
		builder.WithInternationalPrefix(cfg.Survey.InternationalPrefix)
	}
	return builder
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
