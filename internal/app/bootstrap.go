package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"postfolio/internal/auth"
	"postfolio/internal/board"
	"postfolio/internal/config"
	"postfolio/internal/db"
	"postfolio/internal/embed"
	"postfolio/internal/httpx"
	"postfolio/internal/live"
	"postfolio/internal/maintenance"
	"postfolio/internal/observability"
	"postfolio/internal/store/memory"
	"postfolio/internal/user"
)

type Options struct {
	LoadDotEnv bool
	// Config skips environment parsing when set.
	Config *config.Config
	Logger *observability.Logger
}

type Runtime struct {
	Handler http.Handler
	Addr    string
	Close   func() error
}

type stores struct {
	users   user.Store
	boards  board.Store
	pruner  maintenance.DanglingPruner
	orphans maintenance.OrphanRemover
	ping    func(ctx context.Context) error
	close   func() error
}

func Build(options Options) (*Runtime, error) {
	cfg, err := resolveConfig(options)
	if err != nil {
		return nil, err
	}

	logger := options.Logger
	if logger == nil {
		logger = observability.NewLogger()
	}

	if err := observability.InitSentry(cfg.SentryDSN, cfg.AppEnv); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err})
	}

	st, err := openStores(cfg)
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:     cfg.JWTSecret,
		Algorithm:  cfg.JWTAlgorithm,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		_ = st.close()
		return nil, fmt.Errorf("init token service: %w", err)
	}

	userService := user.NewService(st.users)
	boardService := board.NewService(st.boards)
	gate := auth.NewGate(tokens, userService)

	authHandler := auth.NewHandler(userService, tokens)
	userHandler := user.NewHandler(userService)
	boardHandler := board.NewHandler(boardService)
	embedHandler := embed.NewHandler(embed.NewOEmbedClient(cfg.TwitterOEmbedURL))
	channel := live.NewChannel(gate, userService, boardService, logger)
	maintenanceHandler := maintenance.NewHandler(st.pruner, st.orphans, userService, boardService, logger, cfg.MaintenanceSecret)
	loginLimiter := auth.NewLoginRateLimiter(cfg.LoginRateMax, cfg.LoginRateWindow)

	protected := func(h http.HandlerFunc) http.Handler {
		return gate.Middleware(h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", authHandler.Register)
	mux.Handle("POST /login", loginLimiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.HandleFunc("POST /refresh-token", authHandler.Refresh)

	mux.Handle("GET /user", protected(userHandler.Me))
	mux.Handle("PUT /user", protected(userHandler.Update))
	mux.Handle("DELETE /user", protected(userHandler.Delete))
	mux.HandleFunc("DELETE /users", maintenanceHandler.DeleteUsers)

	mux.Handle("GET /boards", protected(boardHandler.List))
	mux.Handle("POST /boards", protected(boardHandler.Create))
	mux.HandleFunc("DELETE /boards", maintenanceHandler.DeleteBoards)
	mux.Handle("GET /boards/{id}", protected(boardHandler.Get))
	mux.Handle("PUT /boards/{id}", protected(boardHandler.Update))
	mux.Handle("DELETE /boards/{id}", protected(boardHandler.Delete))
	mux.Handle("PUT /boards/{id}/theme", protected(boardHandler.SetTheme))
	mux.HandleFunc("GET /portfolio/{id}", boardHandler.Portfolio)
	mux.Handle("POST /embeds/tweet", protected(embedHandler.Tweet))

	mux.Handle("GET /live/posts/add/{board_id}", channel.Handler(live.OpAdd))
	mux.Handle("GET /live/posts/edit/{board_id}", channel.Handler(live.OpEdit))
	mux.Handle("GET /live/posts/delete/{board_id}", channel.Handler(live.OpDelete))

	mux.HandleFunc("GET /internal/maintenance/cleanup", maintenanceHandler.Cleanup)
	mux.HandleFunc("POST /internal/maintenance/cleanup", maintenanceHandler.Cleanup)
	mux.HandleFunc("GET /health", healthHandler(st.ping))

	handler := httpx.CORS(cfg.AllowedOrigins, mux)
	handler = observability.RecoverMiddleware(logger, observability.RequestLoggingMiddleware(logger, handler))

	logger.Info("app_built", map[string]any{"store": cfg.Driver, "env": cfg.AppEnv})

	return &Runtime{
		Handler: handler,
		Addr:    cfg.Addr(),
		Close: func() error {
			observability.FlushSentry()
			return st.close()
		},
	}, nil
}

func resolveConfig(options Options) (config.Config, error) {
	if options.Config != nil {
		if err := options.Config.Validate(); err != nil {
			return config.Config{}, err
		}
		return *options.Config, nil
	}
	return config.Load(options.LoadDotEnv)
}

func openStores(cfg config.Config) (stores, error) {
	if cfg.Driver == config.DriverMemory {
		store := memory.New()
		return stores{
			users:   store.Users(),
			boards:  store.Boards(),
			pruner:  store,
			orphans: store,
			ping:    store.Ping,
			close:   func() error { return nil },
		}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	database, err := db.Open(ctx, cfg.DatabaseURL, db.PoolConfig{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	})
	if err != nil {
		return stores{}, err
	}

	if cfg.RunMigrations {
		if err := db.RunMigrations(ctx, database); err != nil {
			_ = database.Close()
			return stores{}, fmt.Errorf("run migrations: %w", err)
		}
	}

	userRepo := user.NewRepository(database)
	boardRepo := board.NewRepository(database)
	return stores{
		users:   userRepo,
		boards:  boardRepo,
		pruner:  userRepo,
		orphans: boardRepo,
		ping:    database.PingContext,
		close:   database.Close,
	}, nil
}

func healthHandler(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}

		httpx.WriteJSON(w, status, body)
	}
}
