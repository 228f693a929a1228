package main

import (
	"context"
	"log"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/movaride/negotiation/internal/docstore"
	"github.com/movaride/negotiation/internal/events"
	"github.com/movaride/negotiation/internal/negotiation"
	"github.com/movaride/negotiation/internal/pool"
	"github.com/movaride/negotiation/internal/realtime"
	"github.com/movaride/negotiation/internal/ridehistory"
	"github.com/movaride/negotiation/internal/trip"
	"github.com/movaride/negotiation/pkg/common"
	"github.com/movaride/negotiation/pkg/config"
	"github.com/movaride/negotiation/pkg/logger"
	"github.com/movaride/negotiation/pkg/middleware"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	cfg, err := config.Load("negotiation")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// Trip document store: Firestore in deployment, in-memory otherwise.
	var store docstore.Store
	if cfg.Firebase.Enabled {
		fs, err := docstore.NewFirestoreStore(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsPath)
		if err != nil {
			logger.Fatal("Failed to connect to Firestore: " + err.Error())
		}
		defer fs.Close()
		store = fs
		logger.Info("Connected to Firestore")
	} else {
		store = docstore.NewMemoryStore()
		logger.Warn("FIREBASE_ENABLED is false, using in-memory store")
	}

	// Redis-backed pending pool index.
	var poolIndex *pool.Index
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("Failed to connect to Redis: " + err.Error())
		}
		defer rdb.Close()
		poolIndex = pool.NewIndex(rdb)
		logger.Info("Connected to Redis")
	}

	// NATS event publisher.
	var publisher *events.Publisher
	if cfg.NATS.Enabled {
		publisher, err = events.Connect(cfg.NATS.URL)
		if err != nil {
			logger.Fatal("Failed to connect to NATS: " + err.Error())
		}
		defer publisher.Close()
		logger.Info("Connected to NATS")
	}

	engine := &trip.Engine{
		MinimumFare:   cfg.Negotiation.MinimumFare,
		RetryCooldown: cfg.Negotiation.RetryCooldown,
	}
	projector := ridehistory.NewProjector(store)
	service := negotiation.NewService(store, engine, projector, poolIndex, publisher)
	handler := negotiation.NewHandler(service)

	hub := realtime.NewHub()
	gateway := realtime.NewGateway(hub, service)
	go hub.Run()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.Server.CORSOrigins, ",")
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization",
		middleware.UserIDHeader, middleware.UserRoleHeader, middleware.UserNameHeader}
	router.Use(cors.New(corsConfig))

	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Recovery())
	router.Use(middleware.Metrics(cfg.Server.ServiceName))

	router.GET("/healthz", common.HealthCheck(cfg.Server.ServiceName, version))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)
	api.GET("/ws", middleware.Identity(), gateway.HandleWebSocket)

	addr := ":" + cfg.Server.Port
	logger.Info("Negotiation service starting on " + addr)
	if err := router.Run(addr); err != nil {
		logger.Fatal("Failed to start server: " + err.Error())
	}
}
