// Package main provides the game server binary: the WebSocket listener, the
// single-threaded game loop, the metrics endpoint and the maintenance jobs.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/cory-johannsen/brainduel/internal/config"
	"github.com/cory-johannsen/brainduel/internal/game/question"
	"github.com/cory-johannsen/brainduel/internal/gameserver"
	"github.com/cory-johannsen/brainduel/internal/observability"
	"github.com/cory-johannsen/brainduel/internal/server"
	"github.com/cory-johannsen/brainduel/internal/storage/postgres"
	"github.com/cory-johannsen/brainduel/internal/transport/websocket"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	questionsFile := flag.String("questions", "", "load the question bank from this YAML file instead of the database")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, "gameserver")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting game server",
		zap.String("addr", cfg.Transport.Addr()),
		zap.String("path", cfg.Transport.Path),
	)

	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)
	store := postgres.NewStore(pool)

	bank, err := loadBank(ctx, store, *questionsFile)
	if err != nil {
		logger.Fatal("loading question bank", zap.Error(err))
	}
	if bank.Len() == 0 {
		logger.Warn("question bank is empty, every match will settle at its first question")
	}
	logger.Info("question bank loaded", zap.Int("questions", bank.Len()))

	defaultAvatar, err := gameserver.LoadDefaultAvatar(cfg.GameServer)
	if err != nil {
		logger.Fatal("loading default avatar", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	clock := clockwork.NewRealClock()
	tr := websocket.New(cfg.Transport, logger.Named("transport"))
	srv := gameserver.NewServer(gameserver.Deps{
		Config:        cfg.GameServer,
		Transport:     tr,
		Store:         store,
		Bank:          bank,
		Source:        question.NewCryptoSource(),
		Clock:         clock,
		DefaultAvatar: defaultAvatar,
		Logger:        logger.Named("game"),
		Metrics:       metrics,
	})

	jobs, err := server.NewJobs(server.JobsConfig{
		HealthInterval: cfg.Health.Interval,
		HealthTimeout:  cfg.Health.Timeout,
		StatsInterval:  cfg.Health.StatsInterval,
	}, clock, pool, srv, metrics, logger.Named("jobs"))
	if err != nil {
		logger.Fatal("scheduling jobs", zap.Error(err))
	}

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("transport", &server.FuncService{StartFn: tr.ListenAndServe, StopFn: tr.Stop})
	lifecycle.Add("game-loop", server.NewLoopService(srv.Run))
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, observability.Handler(reg))
		lifecycle.Add("metrics", server.NewHTTPService(&http.Server{
			Addr:              cfg.Metrics.Addr(),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}, 5*time.Second, logger.Named("metrics")))
	}
	lifecycle.Add("jobs", jobs)

	logger.Info("game server initialized", zap.Duration("startup", time.Since(start)))

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("game server stopped with error", zap.Error(err))
	}
}

// loadBank reads the question bank from path when set, from the database otherwise.
func loadBank(ctx context.Context, store *postgres.Store, path string) (*question.Bank, error) {
	if path != "" {
		qs, err := question.LoadFile(path)
		if err != nil {
			return nil, err
		}
		return question.NewBank(qs), nil
	}
	qs, err := store.QuestionRepo.All(ctx)
	if err != nil {
		return nil, err
	}
	return question.NewBank(qs), nil
}
