package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/octofit/internal/adapters/repository/backend"
	"github.com/okian/octofit/internal/config"
	"github.com/okian/octofit/internal/seed"
	"github.com/okian/octofit/pkg/logger"
)

const defaultTimeout = 2 * time.Minute

func main() {
	var (
		seedValue = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Random seed for the generated activity log")
		password  = flag.String("password", seed.DefaultPassword, "Plaintext password given to every seeded user")
		timeout   = flag.Duration("timeout", defaultTimeout, "Upper bound for the whole run")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Named("seed")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := run(ctx, log, *seedValue, *password); err != nil {
		log.Error(ctx, "seed failed", logger.Error(err))
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, log logger.Logger, seedValue uint64, password string) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel))
	}

	store, err := backend.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn(ctx, "close store", logger.Error(err))
		}
	}()

	_, err = seed.Run(ctx, store, &seed.Config{Seed: seedValue, Password: password, Logger: log})
	return err
}
