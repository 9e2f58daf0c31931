package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nafee3/nafee3/internal/config"
	"github.com/nafee3/nafee3/internal/identity"
	"github.com/nafee3/nafee3/internal/logging"
	"github.com/nafee3/nafee3/internal/media"
	"github.com/nafee3/nafee3/internal/middleware"
	"github.com/nafee3/nafee3/internal/notification"
	"github.com/nafee3/nafee3/internal/otp"
	"github.com/nafee3/nafee3/internal/profile"
	"github.com/nafee3/nafee3/internal/ratelimit"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	// Notifier delivers passcodes. Nil logs them, which is only useful in
	// development.
	Notifier notification.Notifier
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	d.Logger = logging.OrDiscard(d.Logger)

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	if d.Cfg.LogLevel == "debug" {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	provider := newProvider(d)
	profiles := newProfileService(d)
	photos := media.NewDiskStore(d.Cfg.Media.Dir, d.Cfg.Media.BaseURL, d.Logger)

	authn := middleware.SessionAuth(provider)
	var writes []fiber.Handler
	writes = append(writes, authn)
	if d.Cache != nil {
		writes = append(writes, middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterIdentityRoutes(app, identity.NewHandler(provider), authn, middleware.RateLimit(newLimiter(d, "auth_ip", d.Cfg.OTP.AuthPerMinIP), d.Logger))
	RegisterProfileRoutes(app, profile.NewHandler(profiles), writes...)
	RegisterMediaRoutes(app, media.NewHandler(photos), d.Cfg.Media.Dir, writes...)
	return nil
}

func newProvider(d Deps) *identity.Provider {
	var (
		repo    identity.Repository
		codes   otp.Store
		revoked identity.Revocations
	)
	if d.DB != nil {
		repo = identity.NewPostgresRepository(d.DB)
	} else {
		repo = identity.NewMemoryRepository()
	}
	if d.Cache != nil {
		codes = otp.NewRedisStore(d.Cache)
		revoked = identity.NewRedisRevocations(d.Cache)
	} else {
		codes = otp.NewMemoryStore()
		revoked = identity.NewMemoryRevocations()
	}
	notifier := d.Notifier
	if notifier == nil {
		notifier = notification.NewLoggerNotifier(d.Logger)
	}

	otpSvc := otp.NewService(codes, notifier, otp.Options{
		TTL:         d.Cfg.OTP.TTL,
		Length:      d.Cfg.OTP.Length,
		MaxAttempts: d.Cfg.OTP.MaxAttempts,
		HashCost:    d.Cfg.OTP.HashCost,
		Logger:      d.Logger,
	})
	tokens := identity.NewTokenIssuer(d.Cfg.Session.Secret, d.Cfg.Session.Issuer, d.Cfg.Session.TTL)
	return identity.NewProvider(repo, otpSvc, newLimiter(d, "otp_send", d.Cfg.OTP.SendPerMin), tokens, revoked, identity.ProviderOptions{
		Region: d.Cfg.PhoneDefaultRegion,
		Logger: d.Logger,
	})
}

func newProfileService(d Deps) *profile.Service {
	var repo profile.Repository
	if d.DB != nil {
		repo = profile.NewPostgresRepository(d.DB)
	} else {
		repo = profile.NewMemoryRepository()
	}
	return profile.NewService(repo, profile.Options{
		SimThreshold: d.Cfg.Search.SimThreshold,
		TopK:         d.Cfg.Search.TopK,
		Logger:       d.Logger,
	})
}

// newLimiter returns a per-minute limiter; zero or less disables it.
func newLimiter(d Deps, name string, perMinute int) ratelimit.Limiter {
	switch {
	case perMinute <= 0:
		return ratelimit.Unlimited{}
	case d.Cache != nil:
		return ratelimit.NewRedisLimiter(d.Cache, "ratelimit:"+name+":", perMinute, time.Minute)
	default:
		return ratelimit.NewMemoryLimiter(perMinute, time.Minute)
	}
}

// chain returns handlers followed by last in a fresh slice.
func chain(handlers []fiber.Handler, last fiber.Handler) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(handlers)+1)
	return append(append(out, handlers...), last)
}
