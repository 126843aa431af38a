package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/pantrylabs/cookbook/pkg/api"
	"github.com/pantrylabs/cookbook/pkg/auth"
	"github.com/pantrylabs/cookbook/pkg/config"
	"github.com/pantrylabs/cookbook/pkg/observability"
	"github.com/pantrylabs/cookbook/pkg/recipes"
	"github.com/pantrylabs/cookbook/pkg/storage"
)

var (
	createSuperuser = flag.Bool("create-superuser", false, "Create a superuser account and exit")
	superuserEmail  = flag.String("email", "", "Email for --create-superuser")
	superuserPass   = flag.String("password", "", "Password for --create-superuser")
)

func main() {
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := storage.Open(storage.Config{
		Driver:   cfg.Database.Driver,
		URL:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
		Timeout:  cfg.Database.Timeout,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := storage.Migrate(db, cfg.Database.Driver); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}
	log.WithField("driver", cfg.Database.Driver).Info("Database ready")

	if *createSuperuser {
		runCreateSuperuser(log, db, cfg, *superuserEmail, *superuserPass)
		return
	}

	if err := os.MkdirAll(cfg.Media.Root, 0o755); err != nil {
		log.Fatalf("Failed to create media root: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	server, err := api.NewServer(api.Options{
		DB:             db,
		Logger:         logger,
		Metrics:        metrics,
		MediaRoot:      cfg.Media.Root,
		TokenTTL:       cfg.Auth.TokenTTL,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		MaxUploadBytes: cfg.Media.MaxUploadBytes,
	})
	if err != nil {
		log.Fatalf("Failed to build API server: %v", err)
	}

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for probes
	opsMux := http.NewServeMux()
	observability.NewHealthChecker(db).RegisterHealthEndpoints(opsMux)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(opsMux, registry)
	}
	opsServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: opsMux,
	}

	scheduler := startScheduler(log, cfg, db, server.AuthService(), server.RecipeService(), metrics)

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		<-scheduler.Stop().Done()
		return nil
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return opsServer.Shutdown(ctx)
	})

	go func() {
		log.WithField("addr", opsServer.Addr).Info("Ops server listening")
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Ops server failed")
		}
	}()

	go func() {
		log.WithField("addr", httpServer.Addr).Info("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		log.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
	log.Info("Shutdown complete")
}

// startScheduler runs the expired-token purge and business gauge refresh
func startScheduler(log *logrus.Logger, cfg *config.Config, db *sql.DB, authService *auth.Service, recipeService *recipes.Service, metrics *observability.Metrics) *cron.Cron {
	c := cron.New()

	_, err := c.AddFunc(cfg.Auth.PurgeSchedule, func() {
		purged, err := authService.PurgeExpiredTokens(context.Background())
		if err != nil {
			log.WithError(err).Error("Token purge failed")
			return
		}
		if purged > 0 {
			log.WithField("purged", purged).Info("Expired tokens purged")
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule token purge: %v", err)
	}

	if metrics != nil {
		_, err = c.AddFunc("@every 1m", func() {
			ctx := context.Background()
			if users, tokens, err := authService.Stats(ctx); err == nil {
				metrics.UsersTotal.Set(float64(users))
				metrics.APITokensActive.Set(float64(tokens))
			}
			if n, err := recipeService.Count(ctx); err == nil {
				metrics.RecipesTotal.Set(float64(n))
			}
			stats := db.Stats()
			metrics.DBConnectionsActive.Set(float64(stats.InUse))
			metrics.DBConnectionsIdle.Set(float64(stats.Idle))
		})
		if err != nil {
			log.Fatalf("Failed to schedule gauge refresh: %v", err)
		}
	}

	c.Start()
	return c
}

// runCreateSuperuser implements the --create-superuser mode
func runCreateSuperuser(log *logrus.Logger, db *sql.DB, cfg *config.Config, email, password string) {
	if email == "" || password == "" {
		log.Fatal("--create-superuser requires --email and --password")
	}

	user, err := auth.NewService(db, cfg.Auth.TokenTTL).CreateSuperuser(context.Background(), email, password)
	if err != nil {
		log.Fatalf("Failed to create superuser: %v", err)
	}
	fmt.Printf("Superuser %s created (id %d)\n", user.Email, user.ID)
}
