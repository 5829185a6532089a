package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/layer-3/siwa"
	"github.com/layer-3/siwa/adapters/events"
	"github.com/layer-3/siwa/adapters/lookup"
	"github.com/layer-3/siwa/adapters/store"
	"github.com/layer-3/siwa/adapters/tokenizer"
	"github.com/layer-3/siwa/config"
	"github.com/layer-3/siwa/envelope"
	"github.com/layer-3/siwa/internal/logger"
	"github.com/layer-3/siwa/ports"
	"github.com/layer-3/siwa/scheme"
	"github.com/layer-3/siwa/scheme/ethereum"
	"github.com/layer-3/siwa/scheme/solana"
	"github.com/layer-3/siwa/service"
	transport "github.com/layer-3/siwa/transport/http"
)

var serveFlags struct {
	addr     string
	redisURL string
	nodeURL  string
	logLevel string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the authentication server",
	Long: `Start the HTTP authentication server.

Configuration is read from SIWA_* environment variables; flags override them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		applyServeFlags(cmd, &cfg)

		log, err := logger.New(cfg.Log)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg, log)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", "", "HTTP listen address (SIWA_HTTP_ADDR)")
	serveCmd.Flags().StringVar(&serveFlags.redisURL, "redis-url", "", "Redis URL (SIWA_REDIS_URL)")
	serveCmd.Flags().StringVar(&serveFlags.nodeURL, "node-url", "", "Aptos fullnode REST URL (SIWA_NODE_URL)")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "log level (SIWA_LOG_LEVEL)")
}

func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.HTTPAddr = serveFlags.addr
	}
	if flags.Changed("redis-url") {
		cfg.RedisURL = serveFlags.redisURL
	}
	if flags.Changed("node-url") {
		cfg.NodeURL = serveFlags.nodeURL
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = serveFlags.logLevel
	}
}

func serve(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisClient := redis.NewClient(opts)
	defer redisClient.Close()

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: redisClient,
		},
		events.NewZapLogger(log.Named("events")),
	)
	if err != nil {
		return fmt.Errorf("failed to create Redis publisher: %w", err)
	}
	defer publisher.Close()

	tokens, err := loadTokenizer(cfg.JWTKeyFile, log)
	if err != nil {
		return err
	}

	registry := scheme.NewRegistry(
		scheme.WithExtension(scheme.SolanaDerived, solana.Load),
		scheme.WithExtension(scheme.EthereumDerived, ethereum.Load),
	)

	nodeClient, err := lookup.NewNodeClient(cfg.NodeURL, lookup.WithLogger(log.Named("lookup")))
	if err != nil {
		return err
	}

	verifier := siwa.NewVerifier(
		registry,
		nodeClient,
		siwa.WithExcludedResources(cfg.ExcludedResources...),
		siwa.WithLogger(log.Named("verifier")),
	)

	authService := service.NewAuthService(
		verifier,
		envelope.NewCodec(registry),
		tokens,
		store.NewRedisStore(redisClient),
		events.NewWatermillPublisher(publisher),
		cfg.Service,
		service.WithLogger(log.Named("auth")),
	)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           transport.SetupRouter(authService, log.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("domain", cfg.Service.Domain))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func loadTokenizer(keyFile string, log *zap.Logger) (ports.Tokenizer, error) {
	if keyFile != "" {
		pem, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read JWT key: %w", err)
		}
		return tokenizer.NewJWTTokenizerFromPEM(pem)
	}

	// Tokens signed with a generated key do not survive a restart
	log.Warn("SIWA_JWT_KEY_FILE not set, generating an ephemeral signing key")
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate JWT key: %w", err)
	}
	return tokenizer.NewJWTTokenizer(privateKey), nil
}
