// Command setlog-server serves the idempotent set-log append API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/config"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/migrate"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/repository"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/repository/memory"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/repository/postgres"
	httpserver "github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/server/http"
	"github.com/ZachariahRedfield/FawxzzyFitness-sub000/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main parses flags, runs migrations and serves HTTP until SIGINT/SIGTERM.
func main() {
	addr := flag.String("addr", ":8080", "listen address")
	dsn := flag.String("dsn", "", "PostgreSQL DSN (empty keeps sets in memory)")
	jwtKey := flag.String("jwt-key", "", "HS256 signing key (required)")
	maxBatch := flag.Int("max-batch", config.MaxBatchSize, "max items per batch append")
	attempts := flag.Int("append-attempts", 5, "set_index allocation attempts per append")
	certFile := flag.String("tls-cert", "", "TLS certificate (PEM); empty serves plain HTTP")
	keyFile := flag.String("tls-key", "", "TLS private key (PEM)")
	devUser := flag.String("dev-token-user", "", "print a 24h token for this user id and exit")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	if *jwtKey == "" {
		logger.Fatal("missing jwt signing key (--jwt-key)")
	}

	if *devUser != "" {
		if err := printDevToken(*jwtKey, *devUser); err != nil {
			logger.Fatal("dev token", zap.Error(err))
		}
		return
	}

	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", *addr),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var repo repository.SetLogRepository
	if *dsn == "" {
		logger.Warn("no --dsn given, sets are kept in memory")
		repo = memory.NewSetLogRepo()
	} else {
		if err := migrate.Up(ctx, *dsn); err != nil {
			logger.Fatal("migrate up", zap.Error(err))
		}
		db, err := postgres.New(ctx, *dsn)
		if err != nil {
			logger.Fatal("pgxpool.New", zap.Error(err))
		}
		defer db.Close()
		if err := db.Ping(ctx); err != nil {
			logger.Fatal("ping database", zap.Error(err))
		}
		repo = postgres.NewSetLogRepo(db)
	}

	svc := service.NewSetLogService(repo, *maxBatch, *attempts)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           httpserver.New(svc, []byte(*jwtKey), logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if *certFile != "" {
			logger.Info("listening (TLS)", zap.String("addr", *addr))
			errCh <- srv.ListenAndServeTLS(*certFile, *keyFile)
			return
		}
		logger.Info("listening", zap.String("addr", *addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			logger.Warn("forced shutdown", zap.Error(err))
			_ = srv.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}

func printDevToken(key, user string) error {
	id, err := uuid.FromString(user)
	if err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	tok, exp, err := httpserver.IssueToken([]byte(key), id, 24*time.Hour)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	fmt.Fprintf(os.Stderr, "expires %s\n", exp.Format(time.RFC3339))
	return nil
}
