package cmd

import (
	"context"
	"database/sql"
	"time"

	"github.com/vibast-solutions/ms-go-account/app/repository"
	"github.com/vibast-solutions/ms-go-account/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup-tokens",
	Short: "Purge refresh tokens older than the refresh TTL",
	Long: `Delete refresh-token rows created before now minus REFRESH_TOKEN_TTL.
Their signed tokens can no longer verify, so the rows are dead weight.
Intended to run from cron.`,
	Run: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	configureLogging(cfg)

	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	refreshRepo := repository.NewRefreshTokenRepository(db)
	cutoff := time.Now().Add(-cfg.RefreshTokenTTL)

	deleted, err := refreshRepo.DeleteCreatedBefore(ctx, cutoff)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to purge expired refresh tokens")
	}

	logrus.WithFields(logrus.Fields{
		"deleted": deleted,
		"cutoff":  cutoff.Format(time.RFC3339),
	}).Info("Expired refresh tokens purged")
}
