package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/darestream/darestream/internal/api"
	"github.com/darestream/darestream/internal/config"
	"github.com/darestream/darestream/internal/dares"
	"github.com/darestream/darestream/internal/database"
	"github.com/darestream/darestream/internal/ledger"
	"github.com/darestream/darestream/internal/media"
	"github.com/darestream/darestream/internal/server"
	"github.com/darestream/darestream/internal/stats"
	"github.com/darestream/darestream/internal/stream"
)

const (
	defaultSigningKey      = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="
	defaultMediaSigningKey = "bWVkaWEtc2lnbmluZy1rZXktZm9yLWRldi1vbmx5"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr            string
	dsn             string
	redisAddr       string
	signingKey      string
	mediaSigningKey string
	allowedOrigins  stringSliceFlag
	hostGracePeriod time.Duration
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&dsn, "dsn", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable", "database connection string")
	flag.StringVar(&redisAddr, "redis-addr", "localhost:6379", "redis address for the balance store")
	flag.StringVar(&signingKey, "signing-key", defaultSigningKey, "base64 encoded session token signing key")
	flag.StringVar(&mediaSigningKey, "media-signing-key", defaultMediaSigningKey, "base64 encoded media room token signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.DurationVar(&hostGracePeriod, "host-grace-period", 30*time.Second, "how long a live session survives a host disconnect")
	flag.Parse()

	logger := log.New(os.Stderr, "[darestream] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, redisAddr, signingKey, mediaSigningKey, allowedOrigins, hostGracePeriod)
	if err != nil {
		logger.Fatal("config:", err)
	}

	archive, err := database.NewPgArchive(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := archive.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	if err := archive.EnsureSchema(context.Background()); err != nil {
		logger.Fatal("ensure schema:", err)
	}

	balanceStore, err := ledger.NewRedisStore(&ledger.RedisStoreConfig{
		RedisClient: redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}),
	})
	if err != nil {
		logger.Fatal("redis:", err)
	}
	tokenLedger := ledger.NewLedger(logger, balanceStore)

	mediaIssuer, err := media.NewJWTIssuer(cfg.MediaSigningKey)
	if err != nil {
		logger.Fatal("media issuer:", err)
	}

	registry, err := stream.NewRegistry(logger, &stream.RegistryConfig{
		Media:       mediaIssuer,
		Archive:     archive,
		GracePeriod: cfg.HostGracePeriod,
	})
	if err != nil {
		logger.Fatal("registry:", err)
	}

	queue := dares.NewQueue(logger, tokenLedger, registry, archive)

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)
	for _, name := range []string{stats.ActiveSessions, stats.ConnectedClients, stats.EventsBroadcast, stats.TipsTotal} {
		statsUpdater.RegisterMetric(name)
	}

	streamServer, err := server.NewStreamServer(logger, registry, queue, tokenLedger, statsUpdater)
	if err != nil {
		logger.Fatal("new stream server:", err)
	}
	registry.SetOnForceEnd(streamServer.ForceEnd)

	payments := &api.DevPaymentProcessor{Log: logger}
	srv := api.NewDareStreamApp(mux, logger, streamServer, registry, queue, tokenLedger, archive, payments, statsUpdater, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go streamServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down stream server...")
	streamServer.Shutdown()

	logger.Println("shutdown complete")
}
