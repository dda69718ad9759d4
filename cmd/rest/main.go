package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"helmet-compliance-be/internal/bootstrap"
	"helmet-compliance-be/internal/config"
	"helmet-compliance-be/internal/server"
	"helmet-compliance-be/internal/tracer"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Tracer
	shutdownTracer := tracer.InitTracer(cfg.Tracing)
	defer shutdownTracer(context.Background())

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(cfg)
	defer container.Shutdown()

	// 4. Start Background Services
	if err := container.Start(context.Background()); err != nil {
		log.Panicf("Unable to start event consumer: %v", err)
	}

	// 5. Initialize Server
	srv := server.New(cfg, container)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")
		if err := srv.Shutdown(); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// 6. Run Server
	if err := srv.Run(); err != nil {
		log.Printf("Server stopped: %v", err)
	}
}
