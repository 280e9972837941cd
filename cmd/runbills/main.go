package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/dvloznov/autobills/internal/bank"
	"github.com/dvloznov/autobills/internal/billsjob"
	"github.com/dvloznov/autobills/internal/config"
	"github.com/dvloznov/autobills/internal/ledger"
	"github.com/dvloznov/autobills/internal/logger"
)

// runbills executes a single reconciliation run and exits. Useful for
// testing a configuration before handing it to the scheduled worker, and
// for manual catch-up runs.
func main() {
	log := logger.New()

	configPath := flag.String("config", "", "Path to the YAML config file (required)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - read and dedup but log appends instead of writing them")
	flag.Parse()

	if *configPath == "" {
		log.Fatal().Msg("Error: --config is required")
	}

	settings, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	sheetStore, err := ledger.NewGoogleSheetStore(ctx, settings.GoogleKeyFile, settings.GoogleDelegatedAuthority, settings.GoogleSheetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize sheet store")
	}
	synchronizer := ledger.NewSynchronizer(sheetStore, settings.BillsSheetName, settings.PersonalSheetNames, *dryRun)

	client, err := bank.New(settings.NetBankingAddress, settings.UserAgent, bank.GoqueryExtractor{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize bank client")
	}

	if err := billsjob.New(client, synchronizer, settings).Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Bills run failed")
	}

	log.Info().Msg("Bills run completed")
}
