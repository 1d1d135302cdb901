// Package bot runs the Telegram front end: it receives links, walks
// them through the extraction pipeline, and delivers the resulting
// files back into the chat.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/snapfetch/snapfetch/internal/ads"
	"github.com/snapfetch/snapfetch/internal/config"
	"github.com/snapfetch/snapfetch/internal/media"
	"github.com/snapfetch/snapfetch/internal/payments"
	"github.com/snapfetch/snapfetch/internal/subscriptions"
	"github.com/snapfetch/snapfetch/internal/usage"
	"github.com/snapfetch/snapfetch/internal/users"
)

// api is the slice of tgbotapi.BotAPI the bot uses; an interface so
// tests can run the handlers without a live bot token.
type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Bot struct {
	api           api
	cfg           config.TelegramConfig
	users         *users.Service
	subscriptions *subscriptions.Service
	usage         *usage.Service
	payments      *payments.Service
	ads           *ads.Manager
	fetcher       *media.Fetcher
	staging       *media.Staging
	limiter       *limiterPool
	fetchTimeout  config.MediaConfig
	publicBaseURL string
	logger        *slog.Logger
	cancel        context.CancelFunc
}

// New connects to the Telegram Bot API.
func New(log *slog.Logger, cfg config.Config,
	usersSvc *users.Service, subsSvc *subscriptions.Service, usageSvc *usage.Service,
	paymentsSvc *payments.Service, adsMgr *ads.Manager,
	fetcher *media.Fetcher, staging *media.Staging,
) (*Bot, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Telegram.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	client, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Bot{
		api:           client,
		cfg:           cfg.Telegram,
		users:         usersSvc,
		subscriptions: subsSvc,
		usage:         usageSvc,
		payments:      paymentsSvc,
		ads:           adsMgr,
		fetcher:       fetcher,
		staging:       staging,
		limiter:       newLimiterPool(cfg.Telegram.RatePerMinute),
		fetchTimeout:  cfg.Media,
		publicBaseURL: cfg.Server.PublicBaseURL,
		logger:        log.With(slog.String("service", "bot")),
	}, nil
}

// Start begins the long-polling update loop. Each update is handled in
// its own goroutine so one slow download never blocks the loop.
func (b *Bot) Start(ctx context.Context) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.cfg.UpdateTimeout
	if updateConfig.Timeout <= 0 {
		updateConfig.Timeout = 30
	}
	updates := b.api.GetUpdatesChan(updateConfig)

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	go func() {
		b.logger.Info("update loop started")
		for {
			select {
			case <-runCtx.Done():
				b.api.StopReceivingUpdates()
				b.logger.Info("update loop stopped")
				return
			case update, ok := <-updates:
				if !ok {
					b.logger.Info("updates channel closed")
					return
				}
				go b.handleUpdate(runCtx, update)
			}
		}
	}()
}

// Stop cancels the update loop.
func (b *Bot) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}
