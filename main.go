package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/docverify/internal/auth"
	"github.com/example/docverify/internal/engineclient"
	"github.com/example/docverify/internal/extract"
	"github.com/example/docverify/internal/face"
	"github.com/example/docverify/internal/handlers"
	"github.com/example/docverify/internal/imaging"
	"github.com/example/docverify/internal/logging"
	"github.com/example/docverify/internal/ocr"
	"github.com/example/docverify/internal/repository"
	"github.com/example/docverify/internal/usecase"
)

func main() {
	_ = godotenv.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger, err := logging.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	db := initDatabase(ctx, logger)
	repo := repository.NewVerificationRepository(db, logger)
	if err := repo.AutoMigrate(ctx); err != nil {
		logger.Fatal("auto migrate failed", zap.Error(err))
	}

	redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
	defer redisCancel()
	redisClient := initRedis(redisCtx, logger)
	cache := usecase.NewRedisCache(redisClient)

	ocrEngine := engineclient.NewOCRClient(getEnv("OCR_ENGINE_ADDR", "http://ocr-engine:9090"), logger)
	faceEngine := engineclient.NewFaceClient(getEnv("FACE_ENGINE_ADDR", "http://face-engine:9091"), logger)
	fallbackEngine := engineclient.NewFallbackClient(getEnv("FALLBACK_ENGINE_ADDR", "http://face-fallback:9092"), logger)

	preprocessor := imaging.NewPreprocessor(imaging.DefaultConfig(), logger)
	aggregator := ocr.NewAggregator(ocrEngine, ocr.DefaultAggregatorConfig(), logger)
	resolver := extract.NewResolver(logger)
	faceExtractor := face.NewExtractor(faceEngine, faceEngine, face.DefaultExtractorConfig(), logger)
	faceVerifier := face.NewVerifier(faceEngine, fallbackEngine, face.DefaultVerifierConfig(), logger)
	liveness := face.NewLivenessScorer(faceEngine, face.DefaultLivenessConfig(), logger)

	stats := usecase.NewStats(prometheus.DefaultRegisterer)
	uc := usecase.NewVerificationUseCase(repo, cache, preprocessor, aggregator, resolver, faceExtractor, faceVerifier, liveness, stats, logger)

	r := gin.Default()
	r.MaxMultipartMemory = handlers.MaxUploadSize

	authCfg := auth.Config{
		Secret:   getEnv("JWT_SECRET", "dev-secret"),
		Audience: os.Getenv("JWT_AUDIENCE"),
	}
	handlers.RegisterRoutes(r, uc, stats, authCfg)

	server := &http.Server{
		Addr:    getEnv("LISTEN_ADDR", ":8080"),
		Handler: r,
	}

	logger.Info("document verification API listening", zap.String("addr", server.Addr))
	if err := serveHTTPServer(server, 15*time.Second, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func initDatabase(ctx context.Context, zapLogger *zap.Logger) *gorm.DB {
	dsn := getEnv("DATABASE_DSN", "host=postgres user=postgres password=postgres dbname=docverify port=5432 sslmode=disable")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		zapLogger.Fatal("failed to access db handle", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		zapLogger.Fatal("database ping failed", zap.Error(err))
	}

	return db
}

func initRedis(ctx context.Context, zapLogger *zap.Logger) *redis.Client {
	addr := getEnv("REDIS_ADDR", "redis:6379")
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	return client
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
