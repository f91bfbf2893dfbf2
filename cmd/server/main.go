package main

import (
	"context"
	"net/http"
	"os"
	"strings"

	"mingle/infrastructure/db"
	"mingle/infrastructure/ws"
	httpHandler "mingle/internal/delivery/http"
	"mingle/internal/delivery/websocket"
	"mingle/internal/fanout"
	"mingle/internal/notify"
	"mingle/internal/repository"
	"mingle/internal/usecase"
	"mingle/pkg/jwt"
	"mingle/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.New(os.Getenv("ENV") != "production")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	mongoStore, err := db.NewMongoStore(ctx, os.Getenv("MONGODB_URI"), os.Getenv("MONGODB_DATABASE"))
	if err != nil {
		log.Fatalw("connect mongodb", "error", err)
	}
	defer mongoStore.Close(ctx)

	log.Info("connected to MongoDB")

	chatRepo := repository.NewChatRepository(*mongoStore.DB)
	messageRepo := repository.NewMessageRepository(*mongoStore.DB)
	userRepo := repository.NewUserRepository(*mongoStore.DB)

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "dev-secret-change-me"
		log.Warn("using default JWT secret; set JWT_SECRET in production")
	}
	jwtManager := jwt.NewJWTManager(jwtSecret)

	var notifier notify.Notifier
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		topic := os.Getenv("KAFKA_NOTIFY_TOPIC")
		if topic == "" {
			topic = "chat-notifications"
		}
		log.Infow("using kafka notifier", "brokers", brokers, "topic", topic)
		notifier = notify.NewKafkaNotifier(strings.Split(brokers, ","), topic, log)
	} else {
		log.Info("no KAFKA_BROKERS set, notifications disabled")
		notifier = notify.NoopNotifier{}
	}
	defer notifier.Close()

	var hub ws.IHub
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		serverID := os.Getenv("SERVER_ID")
		if serverID == "" {
			serverID = "server-1"
		}
		log.Infow("using redis hub", "addr", redisAddr, "serverId", serverID)
		hub = ws.NewRedisHub(redisAddr, serverID, log)
	} else {
		log.Info("using in-memory hub (single server)")
		hub = ws.NewHub(log)
	}
	go hub.Run()

	fanoutSvc := fanout.NewService(hub, log)

	chatUc := usecase.NewChatUsecase(chatRepo, userRepo, log)
	receiptUc := usecase.NewReceiptUsecase(chatRepo, messageRepo, log)
	messageUc := usecase.NewMessageUsecase(messageRepo, chatRepo, receiptUc, notifier, log)
	typingUc := usecase.NewTypingUsecase(chatRepo)

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	websocketH := websocket.NewWebsocketHandler(hub, fanoutSvc, jwtManager, chatUc, messageUc, typingUc, userRepo, log)
	httpH := httpHandler.NewHttpHandler(chatUc, messageUc, receiptUc, typingUc, fanoutSvc, log)
	authMiddleware := httpHandler.NewAuthMiddleware(jwtManager)

	httpHandler.MapHttpRoutes(router, *httpH, *websocketH, authMiddleware)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Infow("http server is running", "port", port)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatalw("http server", "error", err)
	}
}
