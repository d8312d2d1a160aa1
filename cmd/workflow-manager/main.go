// cmd/workflow-manager/main.go
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"fleet-workflow/internal/application"
	"fleet-workflow/internal/common/camunda"
	"fleet-workflow/internal/common/config"
	"fleet-workflow/internal/common/database"
	"fleet-workflow/internal/common/logger"
	"fleet-workflow/internal/common/observability"
	"fleet-workflow/internal/common/validation"
	"fleet-workflow/internal/notification"
	"fleet-workflow/internal/order"
	"fleet-workflow/internal/orders"
	"fleet-workflow/internal/user"
	ordercommand "fleet-workflow/internal/workers/fleet/order-command"
	"fleet-workflow/pkg/registry"
)

const (
	connectAttempts = 10
	connectBackoff  = 2 * time.Second
	shutdownTimeout = 30 * time.Second
)

// stores holds the backends selected by storage.driver.
type stores struct {
	pg           *database.PostgresClient
	applications application.Store
	users        user.Store
}

// db is nil for in-memory storage, which makes the order registry use memory stores.
func (s *stores) db() *sql.DB {
	if s.pg == nil {
		return nil
	}
	return s.pg.DB
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting workflow manager...",
		zap.String("environment", cfg.App.Environment),
		zap.String("storage", cfg.Storage.Driver),
	)

	if err := run(cfg, log); err != nil {
		zapLog.Fatal("workflow manager failed", zap.Error(err))
	}
	zapLog.Info("Workflow manager stopped")
}

func run(cfg *config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	defer func() {
		if err := obs.Shutdown(context.Background()); err != nil {
			log.Warn("observability shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	if st.pg != nil {
		defer st.pg.Close()
	}

	var rdb *database.RedisClient
	if cfg.Database.Redis.Address != "" {
		rdb = database.NewRedis(cfg.Database.Redis)
		if err := database.WaitReady(ctx, connectAttempts, connectBackoff, rdb.Ping); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()
		log.Info("Redis connected successfully", nil)
	}

	var directory user.Directory = st.users
	var invalidator user.Invalidator
	if rdb != nil {
		cached := user.NewCachedDirectory(st.users, rdb.Client, time.Duration(cfg.Cache.UserTTL)*time.Second, log)
		directory, invalidator = cached, cached
	}
	users := user.NewService(st.users, directory, invalidator, log)

	if login := cfg.Bootstrap.AdminLogin; login != "" {
		if _, err := users.EnsureAdministrator(ctx, login, cfg.Bootstrap.AdminPassword); err != nil {
			return fmt.Errorf("bootstrap administrator: %w", err)
		}
	}

	transport, err := newTransport(ctx, cfg.Notifications, rdb, log)
	if err != nil {
		return err
	}

	families := orders.NewRegistry(orders.Deps{
		DB:           st.db(),
		Applications: st.applications,
		Workflow:     application.NewWorkflow(st.applications, log),
		Notifier:     notification.NewRouter(directory, transport, log),
		Logger:       log,
		Options:      order.Options{CompensateOnConflict: cfg.Workflow.CompensateOnConflict},
	})

	reg, err := registry.LoadRegistry(cfg.Registry.Path)
	if err != nil {
		return err
	}
	schemas, err := validation.NewSchemaSet(reg)
	if err != nil {
		return err
	}

	var workers []*camunda.Worker
	if cfg.Camunda.Enabled {
		zeebe, err := camunda.NewClient(ctx, camunda.ConfigFrom(cfg.Camunda), log)
		if err != nil {
			return err
		}
		defer zeebe.Close()
		log.Info("Zeebe client connected successfully", nil)

		for _, taskType := range reg.TaskTypes() {
			handler, err := ordercommand.NewHandler(ordercommand.HandlerOptions{
				TaskType:      taskType,
				Config:        ordercommand.ConfigFor(cfg, taskType),
				Actors:        users,
				Families:      families,
				Schemas:       schemas,
				Observability: obs,
				Logger:        log,
			})
			if err != nil {
				return err
			}
			if w := camunda.StartWorker(zeebe.GetClient(), taskType, config.GetWorkerConfig(cfg, taskType), handler.Handle, log); w != nil {
				workers = append(workers, w)
			}
		}
		log.Info("workers registered", map[string]interface{}{"count": len(workers)})
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           newMux(st.pg, rdb),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		log.Info("Health/Metrics server listening", map[string]interface{}{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received, stopping workers...", nil)
	case err := <-serverErr:
		log.Error("Health/Metrics server failed", map[string]interface{}{"error": err.Error()})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, w := range workers {
		w.Stop()
	}
	return srv.Shutdown(shutdownCtx)
}

func openStores(ctx context.Context, cfg *config.Config, log logger.Logger) (*stores, error) {
	if cfg.Storage.Driver == config.DriverMemory {
		log.Warn("using in-memory storage, data is lost on restart", nil)
		return &stores{applications: application.NewMemStore(), users: user.NewMemStore()}, nil
	}

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if err := database.WaitReady(ctx, connectAttempts, connectBackoff, pg.Ping); err != nil {
		pg.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	log.Info("PostgreSQL connected successfully", nil)

	return &stores{
		pg:           pg,
		applications: application.NewPostgresStore(pg.DB),
		users:        user.NewPostgresStore(pg.DB),
	}, nil
}

func newTransport(ctx context.Context, cfg config.NotificationConfig, rdb *database.RedisClient, log logger.Logger) (notification.Transport, error) {
	switch cfg.Transport {
	case config.TransportSNS:
		return notification.NewSNSTransport(ctx, cfg.Region, cfg.Topics)
	case config.TransportRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis notification transport needs database.redis.address")
		}
		return notification.NewRedisTransport(rdb.Client, cfg.RedisChannelPrefix), nil
	default:
		return notification.NewLogTransport(log), nil
	}
}

func newMux(pg *database.PostgresClient, rdb *database.RedisClient) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", nil)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if pg != nil {
			if err := pg.Ping(ctx); err != nil {
				writeStatus(w, http.StatusServiceUnavailable, "postgres unavailable", err)
				return
			}
		}
		if rdb != nil {
			if err := rdb.Ping(ctx); err != nil {
				writeStatus(w, http.StatusServiceUnavailable, "redis unavailable", err)
				return
			}
		}
		writeStatus(w, http.StatusOK, "ready", nil)
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, code int, status string, err error) {
	body := map[string]string{"status": status}
	if err != nil {
		body["error"] = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
