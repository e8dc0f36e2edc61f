package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"leaven-service/internal/app"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[MAIN] No .env file found, relying on system env vars")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := app.NewServer()
	if err := srv.Init(ctx); err != nil {
		shutdown(srv)
		log.Fatalf("[MAIN] failed to start: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	select {
	case <-ctx.Done():
		log.Println("[MAIN] shutting down")
	case err := <-errCh:
		if err != nil {
			log.Printf("[MAIN] server stopped: %v", err)
		}
	}

	shutdown(srv)
}

func shutdown(srv *app.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[MAIN] shutdown: %v", err)
	}
}
