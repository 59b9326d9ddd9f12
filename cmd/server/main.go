package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"

	"github.com/CryptoCapi/Mexora-sub001/internal/cache"
	"github.com/CryptoCapi/Mexora-sub001/internal/chatsync"
	"github.com/CryptoCapi/Mexora-sub001/internal/config"
	"github.com/CryptoCapi/Mexora-sub001/internal/crypto"
	"github.com/CryptoCapi/Mexora-sub001/internal/handlers"
	"github.com/CryptoCapi/Mexora-sub001/internal/middleware"
	"github.com/CryptoCapi/Mexora-sub001/internal/presence"
	"github.com/CryptoCapi/Mexora-sub001/internal/reaper"
	"github.com/CryptoCapi/Mexora-sub001/internal/repository"
	"github.com/CryptoCapi/Mexora-sub001/internal/roster"
	"github.com/CryptoCapi/Mexora-sub001/internal/store"
	"github.com/CryptoCapi/Mexora-sub001/internal/store/memstore"
	"github.com/CryptoCapi/Mexora-sub001/internal/store/pgstore"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	cryptoSvc, err := crypto.NewFromHex(cfg.EncryptionKeyHex)
	if err != nil {
		log.Fatal("Invalid ENCRYPTION_KEY: ", err)
	}

	ctx := context.Background()

	// Store backend: Postgres when configured, in-memory otherwise.
	var st store.Store
	if cfg.DatabaseDSN != "" {
		db, err := pgstore.InitDB(cfg.DatabaseDSN)
		if err != nil {
			log.Fatal("Failed to connect to database: ", err)
		}
		st = pgstore.New(db)
		log.Println("Postgres store connected")
	} else {
		st = memstore.New()
		log.Println("WARNING: DATABASE_DSN not set; using in-memory store")
	}

	// Redis is optional; every cache degrades to a no-op without it.
	redisCache := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := redisCache.Ping(); err != nil {
		log.Printf("WARNING: Redis connection failed: %v. Running without cache.", err)
		redisCache = nil
	} else {
		log.Println("Redis cache connected")
	}
	badgeCache := cache.NewBadgeCache(redisCache)
	typingCache := cache.NewTypingCache(redisCache)
	inviteCache := cache.NewInviteCache(redisCache)
	identities := cache.NewIdentityResolver(redisCache, st)

	msgRepo := repository.NewMessageRepository(st, cryptoSvc)
	chatRepo := repository.NewChatRepository(st)

	views := chatsync.NewManager(ctx, st, msgRepo, cryptoSvc)
	rosters := roster.NewManager(ctx, st, msgRepo, identities, views.CloseChat)
	tracker := presence.NewTracker(typingCache, cfg.TypingWindow)

	go reaper.New(msgRepo, chatRepo, cfg.ReapInterval).Run(ctx)

	wsHandler := handlers.NewWebSocketHandler(views, rosters, tracker)
	chatHandler := handlers.NewChatHandler(chatRepo, rosters, cryptoSvc, inviteCache, badgeCache)
	messageHandler := handlers.NewMessageHandler(views, tracker, badgeCache)

	app := fiber.New(fiber.Config{
		AppName: "Mexora Chat Core",
	})
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
	}))

	api := app.Group("/api")
	protected := api.Group("/", middleware.AuthRequired())

	protected.Get("/chats", chatHandler.GetRoster)
	protected.Post("/chats/direct", chatHandler.CreateDirect)
	protected.Post("/chats/group", chatHandler.CreateGroup)
	protected.Delete("/chats/:id", chatHandler.DeleteChat)
	protected.Get("/chats/:id/unread", chatHandler.GetUnread)
	protected.Put("/chats/:id/settings", chatHandler.UpdateGroupSettings)
	protected.Post("/chats/:id/members", chatHandler.AddMember)
	protected.Post("/chats/:id/block", chatHandler.BlockUser)
	protected.Post("/chats/:id/invites", chatHandler.CreateInvite)
	protected.Post("/join/:token", chatHandler.JoinInvite)

	protected.Get("/chats/:id/messages", messageHandler.GetLog)
	protected.Post("/chats/:id/messages", messageHandler.Send)
	protected.Put("/chats/:id/messages/:message_id", messageHandler.Edit)
	protected.Delete("/chats/:id/messages/:message_id", messageHandler.Delete)
	protected.Post("/chats/:id/messages/:message_id/reactions", messageHandler.React)
	protected.Post("/chats/:id/messages/:message_id/report", messageHandler.Report)
	protected.Post("/chats/:id/read", messageHandler.MarkRead)
	protected.Post("/chats/:id/typing", messageHandler.Typing)
	protected.Delete("/chats/:id/typing", messageHandler.StopTyping)
	protected.Get("/chats/:id/typing", messageHandler.GetTyping)

	// WebSocket route (websocket upgrade needs special handling)
	app.Use(
		"/ws",
		middleware.AuthRequired(),
		func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		},
	)
	app.Get("/ws", websocket.New(wsHandler.HandleWebSocket))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})

	log.Printf("Listening on :%s", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}
