package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"friendZoneAPI/handlers"
	"friendZoneAPI/internal/config"
	"friendZoneAPI/internal/feed"
	"friendZoneAPI/internal/metrics"
	"friendZoneAPI/internal/notification"
	"friendZoneAPI/internal/reconcile"
	"friendZoneAPI/internal/store"
	"friendZoneAPI/internal/workers"
	"friendZoneAPI/middleware"
	"friendZoneAPI/services"
)

var (
	cfg         config.Config
	dbPool      *pgxpool.Pool
	redisClient *redis.Client
	publisher   *feed.Publisher

	userService     *services.UserService
	zoneService     *services.ZoneService
	friendService   *services.FriendService
	requestService  *services.RequestService
	sharingService  *services.SharingService
	presenceService *services.PresenceService
	deviceService   *services.DeviceService
	dispatcher      *services.NotificationDispatcher
	hub             *feed.Hub
	watchers        *feed.Watchers
)

// clerkUsers adapts UserService to the auth middleware's resolver contract.
type clerkUsers struct {
	users *services.UserService
}

func (c clerkUsers) ResolveUserID(ctx context.Context, clerkID string) (string, error) {
	id, err := c.users.ResolveUserID(ctx, clerkID)
	if errors.Is(err, services.ErrNotFound) {
		return "", middleware.ErrUnknownUser
	}
	return id, err
}

func init() {
	cfg = config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	clerk.SetKey(cfg.ClerkSecretKey)
	log.Println("Clerk initialized successfully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to parse database URL:", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatal("Failed to create connection pool:", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}
	log.Println("Successfully connected to Postgres")

	if err := store.ApplyMigrations(cfg.DatabaseURL); err != nil {
		log.Fatal("Failed to apply migrations:", err)
	}

	redisClient, err = feed.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	log.Println("Successfully connected to Redis")

	publisher = feed.NewPublisher(redisClient)

	var provider services.PushNotificationProvider = services.LogPushProvider{}
	var sinks []feed.Sink

	firebaseApp, err := notification.NewFirebaseApp(ctx, cfg.FirebaseCredentialsJSON, cfg.FirebaseCredentialsFile)
	if err != nil {
		log.Printf("Warning: Could not initialize Firebase: %v", err)
	} else {
		fcmService, err := notification.NewFCMService(ctx, firebaseApp)
		if err != nil {
			log.Printf("Warning: Could not initialize FCM: %v", err)
		} else {
			provider = fcmService
			log.Println("FCM Push Provider initialized successfully")
		}

		if cfg.FirestoreMirrorEnabled {
			fsClient, err := firebaseApp.Firestore(context.Background())
			if err != nil {
				log.Printf("Warning: Could not initialize Firestore mirror: %v", err)
			} else {
				sinks = append(sinks, feed.NewFirestoreMirror(fsClient))
				log.Println("Firestore view mirror enabled")
			}
		}
	}

	deviceService = services.NewDeviceService(dbPool)
	dispatcher = services.NewNotificationDispatcher(deviceService, provider, cfg.DispatchWorkers, cfg.DispatchQueueSize)

	userService = services.NewUserService(dbPool, publisher)
	zoneService = services.NewZoneService(dbPool, publisher)
	friendService = services.NewFriendService(dbPool, publisher)
	requestService = services.NewRequestService(dbPool, publisher, dispatcher)
	presenceService = services.NewPresenceService(dbPool, publisher, dispatcher)
	sharingService = services.NewSharingService(friendService, requestService)

	watchers = feed.NewWatchers()
	opts := []feed.Option{
		feed.WithCache(feed.NewViewCache(redisClient, cfg.ViewCacheTTL)),
		feed.WithWatchers(watchers),
	}
	if len(sinks) > 0 {
		opts = append(opts, feed.WithSinks(sinks...))
	}
	hub = feed.NewHub(
		services.NewSnapshotLoader(friendService, requestService, zoneService),
		publisher,
		reconcile.NewService(cfg.Presence),
		opts...,
	)
	userService.AddAccountListener(hub)

	metrics.Register(prometheus.DefaultRegisterer)
	middleware.InitPrometheus(prometheus.DefaultRegisterer)
}

func main() {
	defer func() {
		log.Println("Closing database connection pool...")
		dbPool.Close()
		redisClient.Close()
	}()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	go hub.RunEviction(ctx, cfg.ViewCacheTTL)

	go func() {
		if err := feed.Subscribe(ctx, redisClient, hub.HandleChange); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Change feed subscription ended: %v", err)
		}
	}()

	userHandler := handlers.NewUserHandler(userService)
	webhookHandler := handlers.NewWebhookHandler(userService, cfg.ClerkWebhookSecret)
	zoneHandler := handlers.NewZoneHandler(zoneService)
	friendHandler := handlers.NewFriendHandler(hub, friendService, sharingService)
	requestHandler := handlers.NewRequestHandler(requestService)
	locationHandler := handlers.NewLocationHandler(presenceService)
	deviceHandler := handlers.NewDeviceHandler(deviceService)
	streamHandler := handlers.NewStreamHandler(hub, watchers)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.CleanupVisitors(ctx)

	workers.NewPresenceSweeper(presenceService, publisher, cfg.Presence, cfg.PresenceSweepPeriod).Start(ctx)

	r := mux.NewRouter()
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(cfg.MetricsUser, cfg.MetricsPass)(promhttp.Handler()))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := dbPool.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "redis connection failed"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "friendzone-api"}`))
	}).Methods("GET")

	webhooks := r.PathPrefix("/webhooks").Subrouter()
	webhooks.Use(limiter.Middleware)
	webhooks.HandleFunc("/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	protected := r.PathPrefix("/api/v1").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware(middleware.ClerkVerifier, clerkUsers{users: userService}))
	protected.Use(limiter.Middleware)

	protected.HandleFunc("/user", userHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/user", userHandler.UpdateProfile).Methods("PUT")
	protected.HandleFunc("/user", userHandler.DeleteAccount).Methods("DELETE")

	protected.HandleFunc("/zones", zoneHandler.ListZones).Methods("GET")
	protected.HandleFunc("/zones", zoneHandler.CreateZone).Methods("POST")
	protected.HandleFunc("/zones/{zoneId}", zoneHandler.DeleteZone).Methods("DELETE")

	protected.HandleFunc("/friends", friendHandler.GetFriends).Methods("GET")
	protected.HandleFunc("/friends/stream", streamHandler.StreamFriends).Methods("GET")
	protected.HandleFunc("/friends/{key}", friendHandler.GetFriend).Methods("GET")
	protected.HandleFunc("/friends/{key}", friendHandler.RemoveFriend).Methods("DELETE")
	protected.HandleFunc("/friends/{key}/zones/preview", friendHandler.PreviewZones).Methods("POST")
	protected.HandleFunc("/friends/{key}/zones", friendHandler.UpdateZones).Methods("PUT")

	protected.HandleFunc("/requests", requestHandler.ListRequests).Methods("GET")
	protected.HandleFunc("/requests", requestHandler.CreateRequest).Methods("POST")
	protected.HandleFunc("/requests/{id}/accept", requestHandler.AcceptRequest).Methods("POST")
	protected.HandleFunc("/requests/{id}/reject", requestHandler.RejectRequest).Methods("POST")
	protected.HandleFunc("/requests/{id}", requestHandler.CancelRequest).Methods("DELETE")

	protected.HandleFunc("/location", locationHandler.ReportLocation).Methods("POST")

	protected.HandleFunc("/devices", deviceHandler.RegisterDevice).Methods("POST")
	protected.HandleFunc("/devices/{token}", deviceHandler.UnregisterDevice).Methods("DELETE")

	// CORS configuration
	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := ":" + cfg.Port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	stop()
	dispatcher.Stop()

	log.Println("Server shutdown complete")
}
