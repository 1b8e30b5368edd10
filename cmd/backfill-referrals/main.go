package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"vdl-backend/internal/config"
	"vdl-backend/internal/container"
	"vdl-backend/pkg/logger"
)

// Assigns referral codes to users created before referrals existed.
// Exits 0 when every user was processed and 1 on any failure.
func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		return 1
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		return 1
	}
	log = log.Named("referral-backfill")
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Error("Failed to create container")
		return 1
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.WithError(err).Warn("Failed to release resources")
		}
	}()

	log.WithField("strict", cfg.ReferralStrictUniqueness).Info("Starting referral backfill")

	result, err := c.Backfill.Run(ctx)
	if err != nil {
		log.WithError(err).WithFields(map[string]interface{}{
			"processed": result.Processed,
			"skipped":   result.Skipped,
		}).Error("Referral backfill failed")
		return 1
	}
	return 0
}
