package routes

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/saldo-pay/saldo/internal/auth"
	"github.com/saldo-pay/saldo/internal/config"
	"github.com/saldo-pay/saldo/internal/deposit"
	"github.com/saldo-pay/saldo/internal/gateway"
	"github.com/saldo-pay/saldo/internal/history"
	"github.com/saldo-pay/saldo/internal/identity"
	"github.com/saldo-pay/saldo/internal/ledger"
	"github.com/saldo-pay/saldo/internal/middleware"
	"github.com/saldo-pay/saldo/internal/withdrawal"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger

	// Optional overrides, used by tests.
	Store   ledger.Store
	Users   identity.Repository
	Gateway gateway.Gateway
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   d.Cfg.Location.String(),
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)
	RegisterMetricsRoute(app)

	// Services and handlers
	store := d.Store
	if store == nil {
		if d.DB != nil {
			store = ledger.NewPostgresStore(d.DB)
		} else {
			store = ledger.NewInMemory()
		}
	}
	ledgerSvc := ledger.NewService(store, ledger.ServiceConfig{
		OrderIDPrefix: d.Cfg.OrderIDPrefix,
		Location:      d.Cfg.Location,
	}, d.Logger)

	users := d.Users
	if users == nil {
		if d.DB != nil {
			users = identity.NewPostgresRepository(d.DB)
		} else {
			users = identity.NewMemoryRepository()
		}
	}
	identitySvc := identity.NewService(users, d.Logger)

	var denylist auth.Denylist = auth.NewMemoryDenylist()
	if d.Cache != nil {
		denylist = auth.NewRedisDenylist(d.Cache)
	}
	tokens := auth.NewTokens(d.Cfg.JWTSecret, d.Cfg.AppName, d.Cfg.AccessTokenTTL, d.Cfg.ClientTokenTTL)
	authSvc := auth.NewService(identitySvc, tokens, denylist, d.Logger)

	gw := d.Gateway
	if gw == nil && d.Cfg.Midtrans.Enabled {
		gw = gateway.NewMidtrans(gateway.MidtransConfig{
			ServerKey:  d.Cfg.Midtrans.ServerKey,
			Production: d.Cfg.Midtrans.Production,
		}, d.Logger)
	}
	depositSvc := deposit.NewService(ledgerSvc, gw, deposit.Config{
		UseGateway: d.Cfg.Midtrans.Enabled,
		ServerKey:  d.Cfg.Midtrans.ServerKey,
		Expiry:     d.Cfg.Midtrans.Expiry(),
	}, d.Logger)

	handlers := Handlers{
		Auth:       auth.NewHandler(authSvc, d.Logger),
		Deposit:    deposit.NewHandler(depositSvc, d.Cfg.Currency, d.Logger),
		Withdrawal: withdrawal.NewHandler(ledgerSvc, d.Logger),
		History:    history.NewHandler(ledgerSvc, d.Logger),
	}

	api := app.Group("/api")
	idempotent := middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)

	RegisterClientRoutes(api, handlers, middleware.ClientAuth(authSvc), idempotent)
	RegisterAdminRoutes(api, handlers,
		middleware.AdminAuth(authSvc, d.Logger),
		middleware.LoginRateLimit(d.Cache, d.Cfg.LoginPerMinute),
	)

	return nil
}

// Handlers groups the HTTP handlers mounted under /api.
type Handlers struct {
	Auth       *auth.Handler
	Deposit    *deposit.Handler
	Withdrawal *withdrawal.Handler
	History    *history.Handler
}
