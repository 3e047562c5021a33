package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"campus-hub/internal/apperr"
	"campus-hub/internal/chat"
	"campus-hub/internal/config"
	"campus-hub/internal/db"
	"campus-hub/internal/forum"
	"campus-hub/internal/httpx"
	"campus-hub/internal/logger"
	myMiddleware "campus-hub/internal/middleware"
	"campus-hub/internal/retry"
	"campus-hub/internal/room"
	"campus-hub/internal/user"
	"campus-hub/internal/vote"
)

func main() {
	// 1. Config & Flags
	fs := config.Flags()
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid_config", zap.Error(err))
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("server_failed", zap.Error(err))
	}
	log.Info("server_stopped")
}

type app struct {
	users    *user.Handler
	rooms    *room.Handler
	chat     *chat.Handler
	forum    *forum.Handler
	auth     *myMiddleware.AuthMiddleware
	database *db.Database
	redis    *redis.Client
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to Database (Platform Layer)
	database, err := db.NewDatabase(cfg.DB)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer database.Close()
	log.Info("postgres_connected")

	if err := database.AutoMigrate(ctx); err != nil {
		return err
	}
	log.Info("schema_initialized")

	// 3. Connect to Redis (Platform Layer). Without it the server runs as a
	// single instance.
	var redisClient *redis.Client
	var relay chat.Relay = chat.NopRelay{}
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		relay = chat.NewRedisRelay(redisClient, cfg.Redis.Channel, log.Named("relay"))
		log.Info("redis_connected", zap.String("addr", cfg.Redis.Addr))
	}

	policy := retry.New(cfg.Store.RetryBackoff)

	// 4. Identity Gate
	userService := user.NewService(user.NewRepository(database.Conn), cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)

	// 5. Room Registry
	roomService := room.NewService(room.NewRepository(database.Conn), policy, log.Named("room"))
	if err := bootstrap(ctx, cfg, userService, roomService, log); err != nil {
		return err
	}

	// 6. Chat: registry, broadcaster, sessions
	registry := chat.NewRegistry()
	metrics := chat.NewMetrics(prometheus.DefaultRegisterer, registry)
	broadcaster := chat.NewBroadcaster(registry, chat.NewRepository(database.Conn), roomService, relay, policy,
		metrics, log.Named("chat"), chat.BroadcasterConfig{
			MaxContentLength: cfg.Chat.MaxContentLength,
			HistoryLimit:     cfg.Chat.HistoryLimit,
		})
	manager := chat.NewManager(userService, roomService, registry, broadcaster, cfg.Chat.SendBuffer, log.Named("session"))
	dispatcher := chat.NewDispatcher(manager, broadcaster, log.Named("chat"))

	// 7. Forum
	ledger := vote.NewLedger(vote.NewRepository(database.Conn), policy, prometheus.DefaultRegisterer, log.Named("vote"))
	postRepo := forum.NewPostRepository(database.Conn)
	postService := forum.NewPostService(postRepo, ledger, policy, log.Named("forum"))
	commentRepo := forum.NewCommentRepository(database.Conn)
	commentService := forum.NewCommentService(commentRepo, postRepo, ledger, policy,
		cfg.Forum.MaxCommentDepth, log.Named("forum"))
	karmaService := forum.NewKarmaService(postRepo, commentRepo, ledger, policy)

	a := &app{
		users: user.NewHandler(userService, log),
		rooms: room.NewHandler(roomService, log),
		chat: chat.NewHandler(manager, broadcaster, dispatcher, chat.ClientConfig{
			MaxMessageSize: cfg.Chat.MaxMessageSize,
			RatePerSecond:  cfg.Chat.RatePerSecond,
			RateBurst:      cfg.Chat.RateBurst,
		}, log.Named("ws")),
		forum:    forum.NewHandler(postService, commentService, karmaService, log),
		auth:     myMiddleware.NewAuthMiddleware(userService, log),
		database: database,
		redis:    redisClient,
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server_starting", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return relay.Run(gctx, broadcaster.DeliverRemote)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("server_shutting_down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		// Hijacked websocket connections are not tracked by the server.
		manager.Shutdown()
		return err
	})
	return g.Wait()
}

type adminBootstrapper interface {
	EnsureAdmin(ctx context.Context, username, email, password string) (*user.User, error)
}

type roomSeeder interface {
	EnsureDefaults(ctx context.Context, adminID int64) error
}

// bootstrap creates the default admin and the built-in rooms. It is skipped
// only when no admin exists yet and no admin password is configured.
func bootstrap(ctx context.Context, cfg *config.Config, users adminBootstrapper, rooms roomSeeder, log *zap.Logger) error {
	admin, err := users.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Email, cfg.Admin.Password)
	if err != nil {
		if cfg.Admin.Password == "" && apperr.KindOf(err) == apperr.KindValidation {
			log.Warn("admin_bootstrap_skipped", zap.String("reason", "admin.password is not set"))
			return nil
		}
		return fmt.Errorf("ensure admin: %w", err)
	}
	log.Info("admin_ready", zap.Int64("user_id", admin.ID), zap.String("username", admin.Username))

	if err := rooms.EnsureDefaults(ctx, admin.ID); err != nil {
		return fmt.Errorf("default rooms: %w", err)
	}
	return nil
}

func (a *app) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Public Routes
	r.Get("/healthz", a.healthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/register", a.users.Register)
	r.Post("/login", a.users.Login)

	// WebSocket (Real-time). Authenticates from ?token= or the Authorization
	// header itself.
	r.Get("/ws", a.chat.ServeWs)

	// Protected Routes (Require JWT)
	r.Group(func(r chi.Router) {
		r.Use(a.auth.Handle)

		r.Get("/api/users/search", a.users.SearchUsers)
		r.Group(func(r chi.Router) {
			r.Use(myMiddleware.RequireAdmin)
			r.Get("/api/users/pending", a.users.ListPending)
			r.Patch("/api/users/{id}/approve", a.users.Approve)
		})

		r.Get("/api/rooms", a.rooms.ListRooms)
		r.Post("/api/rooms", a.rooms.CreateRoom)
		r.Get("/api/rooms/{id}", a.rooms.GetRoom)
		r.Post("/api/rooms/{id}/join", a.rooms.JoinRoom)
		r.Get("/api/rooms/{id}/messages", a.chat.GetRoomMessages)

		r.Get("/api/messages/{id}", a.chat.GetMessage)
		r.Delete("/api/messages/{id}", a.chat.DeleteMessage)

		r.Post("/api/posts", a.forum.CreatePost)
		r.Get("/api/posts", a.forum.ListPosts)
		r.Get("/api/posts/{id}", a.forum.GetPost)
		r.Post("/api/posts/{id}/vote", a.forum.VotePost(""))
		r.Post("/api/posts/{id}/upvote", a.forum.VotePost(vote.Up))
		r.Post("/api/posts/{id}/downvote", a.forum.VotePost(vote.Down))
		r.Get("/api/posts/{id}/comments", a.forum.ListComments)

		r.Get("/api/profile/karma", a.forum.Karma)

		r.Post("/api/comments", a.forum.CreateComment)
		r.Get("/api/comments/post/{id}", a.forum.ListComments)
		r.Post("/api/comments/{id}/vote", a.forum.VoteComment(""))
		r.Post("/api/comments/{id}/upvote", a.forum.VoteComment(vote.Up))
		r.Post("/api/comments/{id}/downvote", a.forum.VoteComment(vote.Down))
	})
	return r
}

func (a *app) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"postgres": "ok"}
	code := http.StatusOK
	if err := a.database.Ping(ctx); err != nil {
		status["postgres"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	if a.redis != nil {
		status["redis"] = "ok"
		if err := a.redis.Ping(ctx).Err(); err != nil {
			status["redis"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	httpx.JSON(w, code, status)
}
