package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/wicaksono/loan-servicing/internal/config"
	"github.com/wicaksono/loan-servicing/internal/event"
	"github.com/wicaksono/loan-servicing/internal/handler"
	"github.com/wicaksono/loan-servicing/internal/repository"
	"github.com/wicaksono/loan-servicing/internal/service"
	customError "github.com/wicaksono/loan-servicing/pkg/errors"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := newLogger(cfg)

	db, err := initDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	redisClient := initRedis(cfg)
	defer redisClient.Close()

	loanRepo := repository.NewLoanRepository(db)
	tagRepo := repository.NewTagHistoryRepository(db)
	cache := repository.NewCollectionCache(redisClient, cfg.SnapshotTTL())
	publisher := event.NewRedisPublisher(redisClient, cfg.Redis.Channel)

	sweeper := service.NewDelinquencySweeper(loanRepo, tagRepo, cache, publisher, log)

	// Health endpoints for the daemon
	healthHandler := handler.NewHealthHandler(db, redisClient)
	router := mux.NewRouter()
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")

	server := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
		Handler: router,
	}
	go func() {
		log.Infof("Health server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Health server failed to start: %v", err)
		}
	}()

	location := cfg.SweepLocation()
	c := cron.New(cron.WithSeconds(), cron.WithLocation(location))
	_, err = c.AddFunc(cfg.Sweep.CronSpec, func() {
		runSweep(sweeper, log, location)
	})
	if err != nil {
		log.Fatalf("Failed to schedule delinquency sweep: %v", err)
	}

	c.Start()
	log.Info("Delinquency sweeper started")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down sweeper...")

	cronCtx := c.Stop()
	<-cronCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Health server forced to shutdown: %v", err)
	}

	log.Info("Sweeper exited")
}

// businessDateIn maps a clock reading to midnight of its calendar day in the
// configured timezone. Truncate would snap to UTC midnight and hand the sweep
// yesterday's date for any timezone east of UTC.
func businessDateIn(now time.Time, location *time.Location) time.Time {
	local := now.In(location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, location)
}

func runSweep(sweeper *service.DelinquencySweeper, log *logrus.Logger, location *time.Location) {
	businessDate := businessDateIn(time.Now(), location)
	ctx := context.Background()

	summary, err := sweeper.Sweep(ctx, businessDate)
	fields := logrus.Fields{
		"business_date": businessDate.Format("2006-01-02"),
	}
	if summary != nil {
		fields["loans_swept"] = summary.LoansSwept
		fields["transitions"] = summary.Transitions
		fields["failed"] = summary.Failed
	}

	var batchErr *customError.BatchError
	switch {
	case err == nil:
		log.WithFields(fields).Info("delinquency sweep completed")
	case errors.As(err, &batchErr):
		log.WithFields(fields).WithError(err).Warn("delinquency sweep completed with failures")
	default:
		log.WithFields(fields).WithError(err).Error("delinquency sweep aborted")
	}
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	if cfg.Logging.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}
