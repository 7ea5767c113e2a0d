package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/steeldragon666/abfi-nextgen-sub001/internal/application/matching"
	"github.com/steeldragon666/abfi-nextgen-sub001/internal/config"
	"github.com/steeldragon666/abfi-nextgen-sub001/internal/infrastructure/database"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var rootCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker that sweeps open matches past their expiry window`,
	RunE:  runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	svc := &matching.Service{
		DB:         db,
		Policy:     matching.DefaultScoringPolicy(),
		DefaultLat: cfg.DefaultDeliveryLat,
		DefaultLng: cfg.DefaultDeliveryLng,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Dur("interval", cfg.MatchExpiryInterval).Msg("Starting match expiry job")

		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}
		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.MatchExpiryInterval),
			gocron.NewTask(func() {
				count, err := svc.ExpireOldMatches(ctx)
				if err != nil {
					log.Error().Err(err).Msg("Failed to expire old matches")
					return
				}
				if count > 0 {
					log.Info().Int64("expired", count).Msg("Expired stale matches")
				}
			}),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			return err
		}
		scheduler.Start()

		<-ctx.Done()
		return scheduler.Shutdown()
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}
	log.Info().Msg("Worker shutting down gracefully")
	return nil
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		if lvl, err := zerolog.ParseLevel(logLevel); err == nil {
			zerolog.SetGlobalLevel(lvl)
		}
	}

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Failed to execute command")
	}
}
