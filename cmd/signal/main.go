package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	otelgin "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/velahub/signalcore/internal/auth"
	"github.com/velahub/signalcore/internal/cipher"
	"github.com/velahub/signalcore/internal/config"
	"github.com/velahub/signalcore/internal/health"
	"github.com/velahub/signalcore/internal/httpapi"
	"github.com/velahub/signalcore/internal/kvstore"
	"github.com/velahub/signalcore/internal/logging"
	"github.com/velahub/signalcore/internal/middleware"
	"github.com/velahub/signalcore/internal/ratelimit"
	"github.com/velahub/signalcore/internal/room"
	"github.com/velahub/signalcore/internal/router"
	"github.com/velahub/signalcore/internal/tracing"
	"github.com/velahub/signalcore/internal/transport"
)

const serviceName = "signalcore"

func main() {
	envPaths := []string{".env", "../../.env", "../.env"}
	var envLoaded bool
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			envLoaded = true
			break
		}
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		// logging isn't initialized yet; this is the one place a plain
		// stderr print is appropriate.
		println("configuration error:", err.Error())
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		println("failed to initialize logger:", err.Error())
		os.Exit(1)
	}
	ctx := context.Background()
	if !envLoaded {
		logging.Warn(ctx, "no .env file found in any expected location, relying on environment variables")
	}

	if collectorAddr := os.Getenv("OTEL_COLLECTOR_ADDR"); collectorAddr != "" {
		tp, err := tracing.InitTracer(ctx, serviceName, collectorAddr)
		if err != nil {
			logging.Warn(ctx, "failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tp.Shutdown(shutdownCtx)
			}()
		}
	}

	validator, err := auth.NewFromConfig(ctx, cfg.SecretKey, cfg.Auth0Domain, cfg.Auth0Audience, cfg.SkipAuth)
	if err != nil {
		logging.Fatal(ctx, "failed to initialize token verifier", zap.Error(err))
	}

	var store kvstore.Store
	var redisClient *redis.Client
	if cfg.RedisEnabled {
		redisStore, err := kvstore.NewRedisStore(cfg.KVURL, "")
		if err != nil {
			logging.Fatal(ctx, "failed to connect to KV store", zap.Error(err))
		}
		store = redisStore
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.KVURL})
	} else {
		store = kvstore.NewMemoryStore()
	}
	defer store.Close()

	chatCipher, err := cipher.New()
	if err != nil {
		logging.Fatal(ctx, "failed to initialize chat cipher", zap.Error(err))
	}

	registry := room.NewRegistry()
	rtr := router.New(registry, store, chatCipher)

	rateLimiter, err := ratelimit.NewRateLimiter(cfg, redisClient)
	if err != nil {
		logging.Fatal(ctx, "failed to initialize rate limiter", zap.Error(err))
	}

	allowedOrigins := auth.GetAllowedOriginsFromEnv("ALLOWED_ORIGINS", []string{"http://localhost:3000"})

	hub := transport.NewHub(validator, registry, rtr, store, allowedOrigins, cfg.MaxParticipantsDef)
	api := httpapi.New(store, registry, rtr, validator, cfg)
	healthHandler := health.NewHandler(pingerOrNil(store, cfg.RedisEnabled))

	if cfg.DevelopmentMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CorrelationID())
	engine.Use(otelgin.Middleware(serviceName))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = allowedOrigins
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, middleware.HeaderXCorrelationID, "Authorization")
	engine.Use(cors.New(corsConfig))
	engine.Use(rateLimiter.GlobalMiddleware())

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/livez", healthHandler.Liveness)
	engine.GET("/readyz", healthHandler.Readiness)

	wsGroup := engine.Group("/rooms")
	wsGroup.GET("/ws/:roomId", hub.ServeWs)

	api.Register(engine)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: engine,
	}

	go func() {
		logging.Info(ctx, "server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal(ctx, "server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(ctx, "shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "server forced to shutdown", zap.Error(err))
	}
	registry.CloseAll(shutdownCtx)

	logging.Info(ctx, "server exiting")
}

// pingerOrNil adapts store to health.Pinger only when a real KV store is
// configured; a memory store has nothing external to probe.
func pingerOrNil(store kvstore.Store, redisEnabled bool) health.Pinger {
	if !redisEnabled {
		return nil
	}
	return store
}
