package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/snapfetch/snapfetch/internal/ads"
	"github.com/snapfetch/snapfetch/internal/bot"
	"github.com/snapfetch/snapfetch/internal/config"
	"github.com/snapfetch/snapfetch/internal/db"
	"github.com/snapfetch/snapfetch/internal/handlers"
	"github.com/snapfetch/snapfetch/internal/logger"
	"github.com/snapfetch/snapfetch/internal/media"
	"github.com/snapfetch/snapfetch/internal/media/backends/cobalt"
	"github.com/snapfetch/snapfetch/internal/media/backends/instagram"
	"github.com/snapfetch/snapfetch/internal/media/backends/tiktokphoto"
	"github.com/snapfetch/snapfetch/internal/media/backends/ytdlp"
	"github.com/snapfetch/snapfetch/internal/payments"
	"github.com/snapfetch/snapfetch/internal/schedule"
	"github.com/snapfetch/snapfetch/internal/server"
	"github.com/snapfetch/snapfetch/internal/subscriptions"
	"github.com/snapfetch/snapfetch/internal/usage"
	"github.com/snapfetch/snapfetch/internal/users"
	"github.com/snapfetch/snapfetch/internal/version"
)

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			conn.Close()
			return nil
		},
	})
	return conn, nil
}

func provideStaging(log *slog.Logger, cfg config.Config) (*media.Staging, error) {
	return media.NewStaging(log, cfg.Media.StagingDir, cfg.Media.FetchTimeout())
}

func provideCobalt(log *slog.Logger, cfg config.Config, staging *media.Staging) *cobalt.Strategy {
	return cobalt.New(log, staging, cobalt.Config{
		BaseURL: cfg.Cobalt.BaseURL,
		APIKey:  cfg.Cobalt.APIKey,
		Timeout: time.Duration(cfg.Cobalt.TimeoutSeconds) * time.Second,
	})
}

func provideRegistry(log *slog.Logger, cfg config.Config, staging *media.Staging, cob *cobalt.Strategy) *media.Registry {
	return media.NewRegistry(
		ytdlp.New(log, staging, cfg.Media.FetchTimeout()),
		cob,
		instagram.New(log, staging, 30*time.Second),
		tiktokphoto.New(log, staging, 30*time.Second),
	)
}

// checkCobalt probes the configured cobalt instance once at startup so
// an unreachable instance shows up in the log instead of failing the
// first user.
func checkCobalt(lc fx.Lifecycle, logger *slog.Logger, cob *cobalt.Strategy) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				probeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := cob.Verify(probeCtx); err != nil {
					logger.Warn("cobalt check failed", slog.Any("error", err))
				}
			}()
			return nil
		},
	})
}

func provideUsage(log *slog.Logger, cfg config.Config, pool *pgxpool.Pool) *usage.Service {
	return usage.NewService(log, pool, cfg.Media.UsageRetentionDays)
}

func providePayPal(log *slog.Logger, cfg config.Config) *payments.PayPalClient {
	return payments.NewPayPalClient(log, cfg.PayPal.APIBaseURL(), cfg.PayPal.ClientID, cfg.PayPal.Secret)
}

func providePayments(log *slog.Logger, cfg config.Config, pool *pgxpool.Pool,
	paypal *payments.PayPalClient, subsSvc *subscriptions.Service,
) *payments.Service {
	base := cfg.Server.PublicBaseURL
	return payments.NewService(log, pool, paypal, subsSvc, base+"/pay/return", base+"/pay/cancel")
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Config.Auth.JWTSecret, params.ServerHandlers...)
}

func startBot(lc fx.Lifecycle, b *bot.Bot) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			b.Start(context.Background())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			b.Stop()
			return nil
		},
	})
}

func startMaintenance(lc fx.Lifecycle, runner *schedule.Runner, usageSvc *usage.Service) error {
	if err := runner.Add(schedule.Job{
		Name:    "usage-purge",
		Pattern: "30 3 * * *",
		Timeout: 5 * time.Minute,
		Run:     usageSvc.Purge,
	}); err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			runner.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			runner.Stop()
			return nil
		},
	})
	return nil
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	fmt.Printf("Starting snapfetch %s\n", version.GetInfo())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}

func main() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,

			provideStaging,
			provideCobalt,
			provideRegistry,
			media.NewChain,
			media.NewFetcher,

			users.NewService,
			subscriptions.NewService,
			provideUsage,
			providePayPal,
			providePayments,
			ads.NewManager,
			schedule.NewRunner,
			bot.New,

			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(handlers.NewStatsHandler),
			provideServerHandler(handlers.NewPaymentsHandler),
			provideServerHandler(handlers.NewAdsHandler),

			provideServer,
		),
		fx.Invoke(
			checkCobalt,
			startMaintenance,
			startBot,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}
