package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/Zhenya20062/comranet-server/internal/cache"
	"github.com/Zhenya20062/comranet-server/internal/handlers"
	"github.com/Zhenya20062/comranet-server/internal/middleware"
	"github.com/Zhenya20062/comranet-server/internal/push"
	"github.com/Zhenya20062/comranet-server/internal/repository"
	"github.com/Zhenya20062/comranet-server/internal/service"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"

	"github.com/Zhenya20062/comranet-server/internal/docstore/mongostore"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName: "Comranet Server",
	})

	// Middleware
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: os.Getenv("ALLOWED_ORIGINS"),
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	// Initialize document store
	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		mongoURI = "mongodb://localhost:27017"
	}
	mongoDB := os.Getenv("MONGO_DB")
	if mongoDB == "" {
		mongoDB = "comranet"
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	store, err := mongostore.Connect(connectCtx, mongoURI, mongoDB)
	cancel()
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer store.Close(context.Background())
	log.Println("MongoDB connected successfully")

	// Initialize Redis-backed presence
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if parsedDB, err := strconv.Atoi(dbStr); err == nil {
			redisDB = parsedDB
		}
	}

	redisCache := cache.NewRedisCache(redisAddr, redisPassword, redisDB)
	if err := redisCache.Ping(); err != nil {
		log.Printf("WARNING: Redis connection failed: %v. Running without presence tracking.", err)
		redisCache = nil
	} else {
		log.Println("Redis cache connected successfully")
		defer redisCache.Close()
	}
	presence := cache.NewPresenceCache(redisCache)

	// Initialize push transport (best-effort; fan-out is skipped if missing)
	var pushSender service.PushSender
	if cfg, err := push.LoadConfigFromEnv(); err != nil {
		log.Printf("WARNING: Push transport not configured: %v", err)
	} else {
		pushSender = push.NewClient(cfg)
		log.Println("OneSignal push transport initialized")
	}

	// Initialize repositories
	userDirectory := repository.NewUserDirectory(store)
	messageRepo := repository.NewMessageRepository(store)
	chatRepo := repository.NewChatRepository(store)

	// Initialize services
	notificationService := service.NewNotificationService(chatRepo, userDirectory, presence, pushSender)
	messageService := service.NewMessageService(messageRepo, chatRepo, userDirectory, notificationService)
	chatService := service.NewChatService(chatRepo, messageRepo, userDirectory)

	// Initialize handlers
	messageHandler := handlers.NewMessageHandler(messageService)
	chatHandler := handlers.NewChatHandler(chatService)
	userHandler := handlers.NewUserHandler(userDirectory)
	wsHandler := handlers.NewWebSocketHandler(chatRepo, chatService, presence)

	// Routes
	api := app.Group("/", middleware.OriginAllowed())
	api.Get("/messages/:chat_id", messageHandler.GetMessages)
	api.Post("/messages/:chat_id", limiter.New(limiter.Config{
		Max:        60,
		Expiration: time.Minute,
	}), messageHandler.SendMessage)

	api.Get("/chats", chatHandler.GetChatList)
	api.Post("/chats", chatHandler.CreateChat)
	api.Post("/chats/:chat_id/leave", chatHandler.LeaveChat)

	api.Post("/update_notification_id/:login/:notification_id", userHandler.UpdateNotificationID)

	// WebSocket route (websocket upgrade needs special handling)
	app.Use(
		"/chats/new",
		middleware.OriginAllowed(),
		func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		},
	)
	app.Get("/chats/new/:user_id", websocket.New(wsHandler.HandleChatList))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		online, err := presence.OnlineUsers()
		if err != nil {
			log.Printf("Failed to read presence set: %v", err)
		}
		return c.JSON(fiber.Map{
			"status":       "ok",
			"message":      "Comranet server is running",
			"online_users": len(online),
		})
	})

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s...", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
