package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-sync/internal/ai"
	"chat-sync/internal/chat"
	"chat-sync/internal/config"
	"chat-sync/internal/db"
	"chat-sync/internal/handlers"
	"chat-sync/internal/identity"
	"chat-sync/internal/middleware"
	"chat-sync/internal/observability"
	"chat-sync/internal/rabbitmq"
	"chat-sync/internal/realtime"
	"chat-sync/internal/repositories"
	"chat-sync/internal/telemetry"
	"chat-sync/internal/ws"
)

const serviceName = "chat-sync"

func main() {
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, serviceName, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}

	var (
		roomRepo    repositories.RoomRepository
		messageRepo repositories.MessageRepository
	)
	switch cfg.StoreDriver {
	case config.StoreMemory:
		store := repositories.NewMemoryStore()
		roomRepo, messageRepo = store, store
		log.Printf("store driver=memory")
	default:
		database, err := db.Connect(cfg.DatabaseDSN)
		if err != nil {
			log.Fatalf("failed to connect to db: %v", err)
		}
		defer database.Close()
		roomRepo, messageRepo = repositories.NewRoomRepo(database), repositories.NewMessageRepo(database)
		log.Printf("store driver=postgres")
	}

	amqpPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer amqpPublisher.Close()
	log.Printf("event publisher mode=%s reason=%q", rabbitmq.PublisherMode(amqpPublisher), rabbitmq.PublisherNoopReason(amqpPublisher))
	observability.SetPublisher(amqpPublisher)
	audit := telemetry.NewAuditEmitter(amqpPublisher, "audit.chat", serviceName, cfg.Environment)

	broker := realtime.NewBroker()
	defer broker.Close()

	var bus realtime.Publisher = broker
	if cfg.EventBus == config.BusRedis {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("invalid REDIS_URL: %v", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		redisBus := realtime.NewRedisBus(client, cfg.EventsChannel, broker)
		go func() {
			if err := redisBus.Run(ctx); err != nil {
				log.Printf("redis relay stopped: %v", err)
			}
		}()
		bus = redisBus
	}
	log.Printf("event bus=%s delivery=%s", cfg.EventBus, cfg.DeliveryMode)

	svc := chat.NewService(roomRepo, messageRepo,
		chat.WithPublisher(realtime.MultiPublisher{bus, rabbitmq.NewEventMirror(amqpPublisher)}),
	)
	if cfg.AIEndpoint != "" {
		completer := ai.NewHTTPCompleter(cfg.AIEndpoint, cfg.AIModel, cfg.AITimeout)
		svc.SetMentionHandler(ai.NewTrigger(completer, svc, cfg.AIMentionToken))
		log.Printf("ai trigger enabled token=%s model=%s", cfg.AIMentionToken, cfg.AIModel)
	} else {
		log.Printf("ai trigger disabled: empty AI_COMPLETION_URL")
	}

	newChannel := func() realtime.DeliveryChannel {
		if cfg.DeliveryMode == config.DeliveryPoll {
			return realtime.NewPollChannel(svc, cfg.PollInterval)
		}
		return realtime.NewPushChannel(broker)
	}

	hub := ws.NewHub()
	verifier := identity.NewVerifier(cfg.JWTSecret)

	roomHandler := handlers.NewRoomHandler(svc, audit)
	messageHandler := handlers.NewMessageHandler(svc, audit)
	roomWS := ws.NewRoomWebSocketHandler(hub, svc, verifier, newChannel)

	router := gin.Default()

	// middlewares
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.RequestIDMiddleware())
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(verifier)
	sendLimiter := middleware.RateLimit(middleware.NewLimiterPool(cfg.SendRPS, cfg.SendBurst, 10*time.Minute))

	router.GET("/rooms", authMiddleware, roomHandler.ListRooms)
	router.POST("/rooms", authMiddleware, roomHandler.CreateRoom)
	router.POST("/rooms/direct", authMiddleware, roomHandler.ResolveDirectRoom)
	router.GET("/rooms/:room_id", authMiddleware, roomHandler.GetRoom)
	router.DELETE("/rooms/:room_id", authMiddleware, roomHandler.DeactivateRoom)

	router.GET("/rooms/:room_id/messages", authMiddleware, messageHandler.ListMessages)
	router.POST("/rooms/:room_id/messages", authMiddleware, sendLimiter, messageHandler.SendMessage)
	router.GET("/rooms/:room_id/messages/search", authMiddleware, messageHandler.SearchMessages)
	router.GET("/rooms/:room_id/unread", authMiddleware, messageHandler.UnreadCount)
	router.POST("/rooms/:room_id/read", authMiddleware, messageHandler.MarkRoomRead)

	router.PATCH("/messages/:message_id", authMiddleware, messageHandler.EditMessage)
	router.DELETE("/messages/:message_id", authMiddleware, messageHandler.DeleteMessage)
	router.POST("/messages/:message_id/read", authMiddleware, messageHandler.MarkMessageRead)

	router.GET("/ws/rooms/:room_id", roomWS.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "ws_connections": hub.Total()})
	})
	handlers.RegisterDebugRoutes(router, handlers.DebugOptions{
		Enabled: cfg.DebugRoutes,
		Audit:   audit,
		Connections: func(roomID string) int {
			if roomID == "" {
				return hub.Total()
			}
			return hub.Count(roomID)
		},
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()
	log.Printf("chat-sync listening port=%s", cfg.Port)

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	hub.CloseAll("server shutting down")
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("tracing shutdown: %v", err)
	}
}
