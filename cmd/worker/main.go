package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dvloznov/autobills/internal/bank"
	"github.com/dvloznov/autobills/internal/billsjob"
	"github.com/dvloznov/autobills/internal/config"
	"github.com/dvloznov/autobills/internal/jobs"
	"github.com/dvloznov/autobills/internal/jobs/inmemory"
	"github.com/dvloznov/autobills/internal/ledger"
	"github.com/dvloznov/autobills/internal/logger"
)

func main() {
	log := logger.New()

	configPath := flag.String("config", "config.yaml", "Path to the YAML config file")
	flag.Parse()

	settings, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if settings.CronSchedule == "" {
		log.Fatal().Msg("Error: cron_schedule is required for the worker")
	}

	log.Info().Msg("Bills worker starting up")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	sheetStore, err := ledger.NewGoogleSheetStore(ctx, settings.GoogleKeyFile, settings.GoogleDelegatedAuthority, settings.GoogleSheetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize sheet store")
	}
	synchronizer := ledger.NewSynchronizer(sheetStore, settings.BillsSheetName, settings.PersonalSheetNames, false)

	runStore := inmemory.NewStore()
	queue := inmemory.NewQueue(runStore)

	// One fresh cookie-jar session per run; sessions are never reused
	// across runs.
	handler := func(ctx context.Context, job jobs.Job) error {
		log.Info().Str("job_id", job.GetID()).Msg("Starting bills run")

		client, err := bank.New(settings.NetBankingAddress, settings.UserAgent, bank.GoqueryExtractor{})
		if err != nil {
			return err
		}

		return billsjob.New(client, synchronizer, settings).Run(ctx)
	}

	if err := queue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start run consumer")
	}

	location := time.Local
	if settings.CronTimeZone != "" {
		location, err = time.LoadLocation(settings.CronTimeZone)
		if err != nil {
			log.Fatal().Err(err).Str("time_zone", settings.CronTimeZone).Msg("Invalid cron time zone")
		}
	}

	scheduler := cron.New(cron.WithLocation(location))
	_, err = scheduler.AddFunc(settings.CronSchedule, func() {
		err := queue.PublishCheckBills(ctx, &jobs.CheckBillsJob{})
		switch {
		case errors.Is(err, jobs.ErrRunInFlight):
			log.Warn().Msg("Previous bills run still in flight, skipping this trigger")
		case err != nil:
			log.Error().Err(err).Msg("Failed to publish bills run")
		}
	})
	if err != nil {
		log.Fatal().Err(err).Str("schedule", settings.CronSchedule).Msg("Invalid cron schedule")
	}

	scheduler.Start()

	log.Info().
		Str("schedule", settings.CronSchedule).
		Str("time_zone", location.String()).
		Msg("Bills worker started, waiting for triggers...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Bills worker shutting down...")

	<-scheduler.Stop().Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	log.Info().Msg("Bills worker exited")
}
