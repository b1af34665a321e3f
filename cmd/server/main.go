package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exam-service/internal/app"
	"exam-service/internal/config"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	_ = godotenv.Load()

	flags := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	config.RegisterFlags(flags)
	_ = flags.Parse(os.Args[1:])

	application, err := app.New(flags)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}

	// Start dependency health checks in background
	healthCtx, healthCancel := context.WithCancel(context.Background())
	defer healthCancel()
	go application.StartHealthChecks(healthCtx)

	go func() {
		if err := application.Run(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	healthCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := application.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited gracefully")
}
