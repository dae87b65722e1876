package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tripmind/backend/internal/adapter/llm"
	"github.com/tripmind/backend/internal/adapter/search"
	"github.com/tripmind/backend/internal/booking"
	"github.com/tripmind/backend/internal/config"
	"github.com/tripmind/backend/internal/events"
	"github.com/tripmind/backend/internal/flow"
	"github.com/tripmind/backend/internal/policy"
	"github.com/tripmind/backend/internal/repository"
	"github.com/tripmind/backend/internal/runner"
	"github.com/tripmind/backend/internal/service"
	"github.com/tripmind/backend/internal/session"
	v1 "github.com/tripmind/backend/internal/transport/http/v1"
	"github.com/tripmind/backend/internal/transport/ws"
)

func main() {
	configPath := flag.String("config", "", "path to config yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Starting travel backend...")
	log.Printf("HTTP: %s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Database: %s", cfg.Database)
	log.Printf("LLM: %s (%s)", cfg.LLM.BaseURL, cfg.LLM.Model)

	archive, err := repository.NewSQLiteStore(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize booking archive: %v", err)
	}
	defer archive.Close()

	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	llmClient := llm.NewLLMClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Timeout)
	flights := search.NewFlightProvider(cfg.Search.FlightsURL, cfg.Search.Timeout)
	hotels := search.NewHotelProvider(cfg.Search.HotelsURL, cfg.Search.Timeout)

	store := session.NewStore()
	broadcaster := events.NewBroadcaster()
	pipeline := flow.NewPipeline(llmClient, flights, hotels, cfg.Run)
	controller := runner.NewController(store, pipeline, broadcaster, cfg.Run)

	notifier := booking.NewLogNotifier()
	bookings := booking.NewService(store, archive, policyEngine, broadcaster, notifier)

	svc := service.New(store, controller, broadcaster, bookings)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	v1.NewHandler(svc).RegisterRoutes(e)
	ws.NewServer(svc.Subscribe, cfg.Server.PingInterval, cfg.Server.MaxMessageSize).RegisterRoutes(e)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("API started on port %d", cfg.Server.Port)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	controller.Shutdown(shutdownCtx)
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Server stopped")
}
