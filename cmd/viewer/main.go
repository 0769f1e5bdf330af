package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"camviewer/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.NewViewerApp()
	if err != nil {
		log.Fatalf("Failed to start viewer: %v", err)
	}

	if err := application.Run(ctx); err != nil {
		log.Fatalf("Viewer stopped with error: %v", err)
	}
}
