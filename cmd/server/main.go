package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/portal-mailer/internal/analytics"
	"github.com/ignite/portal-mailer/internal/api"
	"github.com/ignite/portal-mailer/internal/config"
	"github.com/ignite/portal-mailer/internal/delivery"
	"github.com/ignite/portal-mailer/internal/pkg/logger"
	"github.com/ignite/portal-mailer/internal/template"
	"github.com/ignite/portal-mailer/internal/transport"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// checkPortAvailable verifies that the target port is not already in use.
// This prevents confusion from stale processes occupying the port.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	configPath := "config/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		configPath = v
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := checkPortAvailable(cfg.Server.GetHost(), cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check failed: %v", err)
	}

	if cfg.Database.URL == "" {
		log.Fatal("database.url (or DATABASE_URL) is required")
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("connected to database")

	// Send throttle is optional: without Redis all sends pass unthrottled.
	var throttle *transport.Throttle
	if cfg.Throttle.Enabled && cfg.Redis.URL != "" {
		throttle, err = transport.NewThrottleFromURL(cfg.Redis.URL, transport.ThrottleLimits{
			PerSecond: cfg.Throttle.PerSecond,
			PerMinute: cfg.Throttle.PerMinute,
			Daily:     cfg.Throttle.Daily,
		})
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		logger.Info("send throttle enabled",
			"per_second", fmt.Sprint(cfg.Throttle.PerSecond), "daily", fmt.Sprint(cfg.Throttle.Daily))
	}

	var mailer transport.Mailer
	switch cfg.Dispatch.Provider {
	case "ses":
		mailer, err = transport.NewSESMailer(cfg.SES.AccessKey, cfg.SES.SecretKey, cfg.SES.Region, throttle)
		if err != nil {
			log.Fatalf("Failed to initialize SES transport: %v", err)
		}
	case "sparkpost":
		mailer = transport.NewSparkPostMailer(cfg.SparkPost.APIKey, cfg.SparkPost.BaseURL,
			time.Duration(cfg.SparkPost.TimeoutSeconds)*time.Second, throttle)
	default:
		log.Fatalf("Unknown mail provider %q (want sparkpost or ses)", cfg.Dispatch.Provider)
	}
	logger.Info("mail transport ready", "provider", cfg.Dispatch.Provider)

	templates := template.NewStore(db)
	logStore := delivery.NewStore(db)
	tracker := delivery.NewTracker(logStore)
	dispatcher := delivery.NewDispatcher(templates, mailer, logStore, tracker, delivery.DispatcherConfig{
		FromEmail:   cfg.Dispatch.FromEmail,
		FromName:    cfg.Dispatch.FromName,
		BulkWorkers: cfg.Dispatch.BulkWorkers,
		SendTimeout: cfg.Dispatch.SendTimeout(),
	})
	aggregator := analytics.NewAggregator(analytics.NewStore(db))

	handlers := api.NewHandlers(templates, template.NewPreviewEngine(), dispatcher, tracker, logStore, aggregator)
	server := api.NewServer(handlers, cfg.Server.AllowedOrigins)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
