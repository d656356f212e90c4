package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alarmmate/internal/delivery"
	"alarmmate/internal/detector"
	"alarmmate/internal/handlers"
	"alarmmate/internal/logger"
	"alarmmate/internal/repository"
	"alarmmate/internal/server"
	"alarmmate/internal/service"

	"github.com/spf13/viper"
)

const (
	defaultDeliveryTick = 1 * time.Second
	defaultKeeperTick   = 30 * time.Second
)

func main() {
	// init logger
	log := logger.Get(logger.InfoLevel)

	// load config.yml
	if err := loadConfig(); err != nil {
		log.Fatalw("error reading config", "err", err)
	}

	// open DB
	db, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Fatalw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(db)
	mech := delivery.NewTimer(repos.Pending, log)
	services := service.NewService(repos, mech, viper.GetString("auth.signing_key"), log)
	apiHandler := handlers.NewHandler(services, buildDetector(log), log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// start background loops (via composed service)
	go mech.Run(ctx, tickFrom("delivery.tick", defaultDeliveryTick))
	go services.Keeper.Run(ctx, tickFrom("keeper.tick", defaultKeeperTick))
	go services.Gate.Run(ctx)

	// resume a ring that outlived a restart, then arm the next alarm
	if err := services.Gate.Recover(ctx); err != nil {
		log.Warnw("gate recovery failed", "err", err)
	}
	if _, err := services.Scheduler.Recompute(ctx); err != nil {
		log.Warnw("initial arm failed", "err", err)
	}

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "alarmmate.db")
		dbPath = "alarmmate.db"
	}
	return repository.InitDB(dbPath)
}

// buildDetector returns the timetable detector client, or nil when no
// detector URL is configured. The photo endpoint degrades to 503 then.
func buildDetector(log *logger.Logger) detector.Detector {
	url := viper.GetString("detector.url")
	if url == "" {
		log.Infow("detector.url not set; photo analysis disabled")
		return nil
	}
	return detector.NewHTTPDetector(url, viper.GetDuration("detector.timeout"))
}

func tickFrom(key string, fallback time.Duration) time.Duration {
	if d := viper.GetDuration(key); d > 0 {
		return d
	}
	return fallback
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
