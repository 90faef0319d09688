package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/jmoiron/sqlx"

	"github.com/qrave1/RoomChat/internal/application/config"
	"github.com/qrave1/RoomChat/internal/application/constant"
	"github.com/qrave1/RoomChat/internal/application/metric"
	"github.com/qrave1/RoomChat/internal/infra/adapters/kv"
	"github.com/qrave1/RoomChat/internal/infra/adapters/memory"
	"github.com/qrave1/RoomChat/internal/infra/adapters/postgres"
	"github.com/qrave1/RoomChat/internal/infra/adapters/postgres/repository"
	"github.com/qrave1/RoomChat/internal/infra/adapters/redis"
	"github.com/qrave1/RoomChat/internal/infra/ports/http/handlers"
	"github.com/qrave1/RoomChat/internal/infra/ports/http/server"
	"github.com/qrave1/RoomChat/internal/usecase"
)

const shutdownTimeout = 15 * time.Second

func runApp() {
	ctx := context.Background()

	level := slog.LevelInfo

	cfg, err := config.New()
	if err == nil && cfg.Debug {
		level = slog.LevelDebug
	}

	slog.SetDefault(
		slog.New(
			slog.NewJSONHandler(
				os.Stdout,
				&slog.HandlerOptions{Level: level},
			),
		),
	)

	if err != nil {
		slog.Error("parse config", slog.Any(constant.Error, err))
		os.Exit(1)
	}

	slog.Info("Running app", slog.Bool("debug", cfg.Debug))

	store := newStore(ctx, cfg)

	// журнал модерации опционален
	var (
		dbConn    *sqlx.DB
		auditRepo repository.AuditRepository
	)
	if cfg.Postgres.Enabled {
		dbConn, err = postgres.NewPostgres(ctx, cfg.Postgres.DSN())
		if err != nil {
			slog.Error("connect to postgres", slog.Any(constant.Error, err))
			os.Exit(1)
		}

		auditRepo = repository.NewAuditRepo(dbConn)
	}

	sessionRepo := kv.NewSessionRepository(store, cfg.Rooms.SessionTTL)
	roomRepo := kv.NewRoomRepository(store, cfg.Rooms.RoomTTL)
	historyRepo := kv.NewHistoryRepository(store, cfg.Chat.HistoryLimit, cfg.Rooms.RoomTTL)
	wsConnRepo := memory.NewWSConnectionRepository()

	messageUsecase, err := usecase.NewMessageUsecase(cfg.Chat, historyRepo)
	if err != nil {
		slog.Error("create message usecase", slog.Any(constant.Error, err))
		os.Exit(1)
	}

	var audit usecase.AuditRecorder
	var auditReader handlers.AuditReader
	if auditRepo != nil {
		audit = auditRepo
		auditReader = auditRepo
	}

	directory := usecase.NewRoomDirectory(
		cfg.Rooms,
		sessionRepo,
		roomRepo,
		usecase.NewTokenIssuer(cfg.AdminTokenSecret),
		usecase.NewLifecycleScheduler(cfg.Rooms.TeardownGrace),
		audit,
		messageUsecase.EraseHistory,
	)

	// соединения прошлого процесса мертвы
	recovered, err := directory.Recover(ctx)
	if err != nil {
		slog.Error("recover rooms", slog.Any(constant.Error, err))
	} else if recovered > 0 {
		slog.Info("recovered rooms", slog.Int("count", recovered))
	}

	roomUsecase := usecase.NewRoomUsecase(directory, messageUsecase, wsConnRepo)

	roomHandler := handlers.NewRoomHandler(roomUsecase, auditReader)
	wsHandler := handlers.NewWebSocketHandler(cfg, roomUsecase, wsConnRepo)

	echoSrv := server.New(roomHandler, wsHandler)

	metricsSrv := metric.NewServer()

	// Запускаем HTTP сервер
	go func() {
		if err := echoSrv.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", slog.Any(constant.Error, err))
			os.Exit(1)
		}
	}()

	// Запускаем сервер метрик
	go func() {
		if err := metricsSrv.Start(":" + cfg.MetricPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", slog.Any(constant.Error, err))
			os.Exit(1)
		}
	}()

	slog.Info(
		"servers started",
		slog.String("port", cfg.Port),
		slog.String("metric_port", cfg.MetricPort),
	)

	operations := map[string]gfshutdown.Operation{
		"http": func(ctx context.Context) error {
			return echoSrv.Shutdown(ctx)
		},
		"metrics": func(ctx context.Context) error {
			return metricsSrv.Shutdown(ctx)
		},
		// операции идут параллельно: стор и базу закрываем только после запущенных teardown
		"rooms": func(ctx context.Context) error {
			directory.Close()

			err := store.Close()
			if dbConn != nil {
				err = errors.Join(err, dbConn.Close())
			}

			return err
		},
	}

	wait := gfshutdown.GracefulShutdown(ctx, shutdownTimeout, operations)

	exitCode := <-wait
	slog.Info("Application exited", slog.Int("code", exitCode))
	os.Exit(exitCode)
}

// newStore returns the durable store behind a volatile fallback, or only the
// volatile store when Redis is not configured or unreachable at startup.
func newStore(ctx context.Context, cfg *config.Config) kv.Store {
	volatile := memory.NewKVStore()

	if cfg.Redis.URL == "" {
		slog.Warn("REDIS_URL is empty, room state lives in process memory")
		return volatile
	}

	client, err := redis.Connect(ctx, cfg.Redis.URL, cfg.Redis.Timeout)
	if err != nil {
		slog.Warn("redis unavailable, room state lives in process memory", slog.Any(constant.Error, err))
		metric.StoreFallback()
		return volatile
	}

	slog.Info("connected to redis")

	return kv.NewFallbackStore(redis.NewKVStore(client), volatile, cfg.Redis.Timeout)
}
