package main

import (
	"concord-backend/internal/config"
	"concord-backend/internal/database"
	"concord-backend/internal/email"
	"concord-backend/internal/fileHandlers"
	"concord-backend/internal/handlers"
	"concord-backend/internal/hub"
	"concord-backend/internal/jwt"
	"concord-backend/internal/keyValue"
	"concord-backend/internal/media"
	"concord-backend/internal/search"
	"concord-backend/internal/snowflake"
	"concord-backend/internal/storage"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const shutdownTimeout = 10 * time.Second

func setupLogger(cfg *config.Config) (*zap.SugaredLogger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.OutputPaths = []string{"stdout"}
	if cfg.LogToFile {
		zapConfig.OutputPaths = append(zapConfig.OutputPaths, "app.log")
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	return logger.Sugar(), nil
}

func setupRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(options)

	err = rdb.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}

	return rdb, nil
}

func setupStorage(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	if cfg.StorageDriver == "minio" {
		return storage.NewMinio(ctx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.PublicURL,
		})
	}
	return storage.NewLocal("./public", "/cdn"), nil
}

// setupSearch returns the service and the meili client to close, if there is
// one.
func setupSearch(cfg *config.Config, store *database.Store, sugar *zap.SugaredLogger) (*search.Service, *search.Meili) {
	if cfg.MeiliURL == "" {
		sugar.Info("No Meilisearch configured, searching messages in the database")
		return search.NewService(nil, store, sugar), nil
	}

	meili := search.NewMeili(cfg.MeiliURL, cfg.MeiliKey, sugar)
	return search.NewService(meili, store, sugar), meili
}

func main() {
	fmt.Println("Reading config file...")
	cfg, err := config.Load("config.json")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	fmt.Println("Setting up logger...")
	sugar, err := setupLogger(cfg)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer sugar.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = exec.LookPath("ffmpeg")
	if err != nil {
		sugar.Warn("ffmpeg wasn't found, picture uploads will fail")
	}

	err = snowflake.Setup(cfg.SnowflakeWorkerID)
	if err != nil {
		sugar.Fatal(err)
	}

	db, err := database.Setup(ctx, cfg, sugar)
	if err != nil {
		sugar.Fatal(err)
	}
	defer db.Close()
	store := database.NewStore(db)

	var redisClient *redis.Client
	if cfg.SelfContained {
		sugar.Info("Running self contained, key/value and pub/sub stay in this process")
	} else {
		sugar.Info("Connecting to redis...")
		redisClient, err = setupRedis(ctx, cfg.RedisURL)
		if err != nil {
			sugar.Fatal(err)
		}
		defer redisClient.Close()
	}

	keyValue.Setup(ctx, sugar, redisClient, cfg.SelfContained)
	hub.Setup(sugar, redisClient, cfg.SelfContained)
	email.Setup(cfg, sugar)
	jwt.Setup(cfg.JwtSecret, cfg.IsHttps())
	media.Setup(cfg.LivekitURL, cfg.LivekitApiKey, cfg.LivekitApiSecret)

	backend, err := setupStorage(ctx, cfg)
	if err != nil {
		sugar.Fatal(err)
	}
	fileHandlers.Setup(sugar, backend)

	searcher, meili := setupSearch(cfg, store, sugar)
	if meili != nil {
		defer meili.Close()
	}

	handlers.Setup(sugar, store, searcher, cfg.IsHttps())

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Address, cfg.Port),
		Handler:           handlers.NewRouter(cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sugar.Infof("Server is running on %s", cfg.FullAddress())

		var err error
		if cfg.IsHttps() {
			err = server.ListenAndServeTLS(cfg.TlsCert, cfg.TlsKey)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatal(err)
		}
	}()

	<-ctx.Done()
	sugar.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = server.Shutdown(shutdownCtx)
	if err != nil {
		sugar.Error(err)
	}
}
