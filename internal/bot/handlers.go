package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/snapfetch/snapfetch/internal/media"
	"github.com/snapfetch/snapfetch/internal/payments"
	"github.com/snapfetch/snapfetch/internal/subscriptions"
	"github.com/snapfetch/snapfetch/internal/usage"
	"github.com/snapfetch/snapfetch/internal/users"
)

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}

	user, err := b.users.Touch(ctx, users.Profile{
		TelegramID:   msg.From.ID,
		Username:     msg.From.UserName,
		FirstName:    msg.From.FirstName,
		LanguageCode: msg.From.LanguageCode,
	})
	if err != nil {
		b.logger.Error("touch user failed", slog.Int64("telegram_id", msg.From.ID), slog.Any("error", err))
		b.reply(msg.Chat.ID, "Something went wrong on my side. Try again shortly.")
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user)
		return
	}

	url, wantAudio := extractURL(msg.Text)
	if url == "" {
		b.reply(msg.Chat.ID, msgNoURL)
		return
	}
	b.handleDownload(ctx, msg.Chat.ID, user, url, wantAudio)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user users.User) {
	switch msg.Command() {
	case "start":
		b.reply(msg.Chat.ID, msgWelcome)
	case "help":
		b.reply(msg.Chat.ID, msgHelp)
	case "status":
		b.sendStatus(ctx, msg.Chat.ID, user)
	case "subscribe":
		b.sendPlans(msg.Chat.ID)
	case "promo":
		b.redeemPromo(ctx, msg.Chat.ID, user, strings.TrimSpace(msg.CommandArguments()))
	default:
		b.reply(msg.Chat.ID, "Unknown command. /help lists what I can do.")
	}
}

// handleDownload runs one link through rate limiting, quota, fetch,
// size gating, and delivery. The staged file is always removed before
// returning.
func (b *Bot) handleDownload(ctx context.Context, chatID int64, user users.User, url string, wantAudio bool) {
	if !b.limiter.Allow(user.TelegramID) {
		b.reply(chatID, msgRateLimited)
		return
	}

	sub, err := b.subscriptions.Current(ctx, user.ID)
	if err != nil {
		b.logger.Error("load subscription failed", slog.String("user_id", user.ID), slog.Any("error", err))
		b.reply(chatID, "Something went wrong on my side. Try again shortly.")
		return
	}
	spec := subscriptions.SpecFor(sub.Plan)

	if spec.DailyDownloads > 0 {
		used, err := b.usage.CountToday(ctx, user.ID)
		if err != nil {
			b.logger.Error("count usage failed", slog.String("user_id", user.ID), slog.Any("error", err))
			b.reply(chatID, "Something went wrong on my side. Try again shortly.")
			return
		}
		if used >= spec.DailyDownloads {
			b.reply(chatID, quotaMessage(spec))
			b.sendSponsor(chatID)
			return
		}
	}

	b.reply(chatID, msgWorking)

	fetchCtx, cancel := context.WithTimeout(ctx, b.fetchTimeout.FetchTimeout())
	defer cancel()

	var desired media.ContentType
	if wantAudio {
		desired = media.ContentAudio
	}

	artifact, err := b.fetcher.Fetch(fetchCtx, url, desired)
	if err != nil {
		b.logger.Warn("fetch failed",
			slog.String("url", url),
			slog.String("kind", string(media.KindOf(err))),
			slog.Any("error", err),
		)
		b.reply(chatID, errorMessage(err))
		return
	}
	defer func() {
		if err := b.staging.Remove(artifact.LocalPath); err != nil {
			b.logger.Warn("remove artifact failed", slog.String("path", artifact.LocalPath), slog.Any("error", err))
		}
	}()

	if artifact.SizeBytes > spec.MaxFileBytes() {
		b.reply(chatID, sizeMessage(artifact.SizeBytes, spec))
		return
	}

	if err := b.deliver(chatID, artifact); err != nil {
		b.logger.Error("deliver failed",
			slog.String("path", artifact.LocalPath),
			slog.Any("error", err),
		)
		b.reply(chatID, "The download worked but sending it to Telegram failed. Try again.")
		return
	}

	if err := b.usage.Add(ctx, usage.Record{
		UserID:      user.ID,
		Platform:    artifact.Platform,
		ContentType: artifact.ContentType,
		Strategy:    artifact.Strategy,
		SizeBytes:   artifact.SizeBytes,
	}); err != nil {
		b.logger.Error("record usage failed", slog.String("user_id", user.ID), slog.Any("error", err))
	}

	if !spec.Paid() {
		b.sendSponsor(chatID)
	}
}

// deliver sends the artifact with the upload type matching its content.
func (b *Bot) deliver(chatID int64, artifact media.Artifact) error {
	file := tgbotapi.FilePath(artifact.LocalPath)
	caption := captionFor(artifact.Platform)
	var msg tgbotapi.Chattable
	switch artifact.ContentType {
	case media.ContentAudio:
		audio := tgbotapi.NewAudio(chatID, file)
		audio.Caption = caption
		msg = audio
	case media.ContentImage:
		photo := tgbotapi.NewPhoto(chatID, file)
		photo.Caption = caption
		msg = photo
	default:
		video := tgbotapi.NewVideo(chatID, file)
		video.Caption = caption
		msg = video
	}
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendStatus(ctx context.Context, chatID int64, user users.User) {
	sub, err := b.subscriptions.Current(ctx, user.ID)
	if err != nil {
		b.logger.Error("load subscription failed", slog.String("user_id", user.ID), slog.Any("error", err))
		b.reply(chatID, "Something went wrong on my side. Try again shortly.")
		return
	}
	used, err := b.usage.CountToday(ctx, user.ID)
	if err != nil {
		b.logger.Error("count usage failed", slog.String("user_id", user.ID), slog.Any("error", err))
		b.reply(chatID, "Something went wrong on my side. Try again shortly.")
		return
	}
	b.reply(chatID, statusMessage(subscriptions.SpecFor(sub.Plan), sub, used))
}

// sendPlans shows the catalog with one purchase button per paid plan.
func (b *Bot) sendPlans(chatID int64) {
	var lines []string
	var buttons []tgbotapi.InlineKeyboardButton
	for _, spec := range subscriptions.Catalog() {
		lines = append(lines, planLine(spec))
		if spec.Paid() {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(
				spec.Title+" "+spec.Price(), "plan:"+string(spec.Plan),
			))
		}
	}

	msg := tgbotapi.NewMessage(chatID, strings.Join(lines, "\n"))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(buttons...))
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("send plans failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}

func (b *Bot) redeemPromo(ctx context.Context, chatID int64, user users.User, code string) {
	if code == "" {
		b.reply(chatID, "Usage: /promo <code>")
		return
	}
	sub, err := b.subscriptions.RedeemPromo(ctx, user.ID, code)
	if err != nil {
		if errors.Is(err, subscriptions.ErrPromoInvalid) {
			b.reply(chatID, "That promo code isn't valid.")
			return
		}
		b.logger.Error("redeem promo failed", slog.String("user_id", user.ID), slog.Any("error", err))
		b.reply(chatID, "Something went wrong on my side. Try again shortly.")
		return
	}
	spec := subscriptions.SpecFor(sub.Plan)
	b.reply(chatID, "Promo accepted - your "+spec.Title+" plan is active.")
}

// handleCallback processes plan-selection button presses.
func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	// Acknowledge immediately so the button stops spinning.
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Warn("answer callback failed", slog.Any("error", err))
	}

	plan, ok := strings.CutPrefix(cb.Data, "plan:")
	if !ok {
		return
	}
	chatID := cb.Message.Chat.ID

	user, err := b.users.Touch(ctx, users.Profile{
		TelegramID:   cb.From.ID,
		Username:     cb.From.UserName,
		FirstName:    cb.From.FirstName,
		LanguageCode: cb.From.LanguageCode,
	})
	if err != nil {
		b.logger.Error("touch user failed", slog.Int64("telegram_id", cb.From.ID), slog.Any("error", err))
		b.reply(chatID, "Something went wrong on my side. Try again shortly.")
		return
	}

	checkout, err := b.payments.StartCheckout(ctx, user.ID, user.TelegramID, subscriptions.Plan(plan))
	if err != nil {
		if errors.Is(err, payments.ErrFreePlan) {
			b.reply(chatID, "The free plan is already yours - just send a link.")
			return
		}
		b.logger.Error("start checkout failed",
			slog.String("user_id", user.ID),
			slog.String("plan", plan),
			slog.Any("error", err),
		)
		b.reply(chatID, "I couldn't start the payment. Try again in a moment.")
		return
	}

	spec := subscriptions.SpecFor(checkout.Plan)
	msg := tgbotapi.NewMessage(chatID,
		"Complete your "+spec.Title+" purchase ("+spec.Price()+") with PayPal. The plan activates as soon as the payment goes through.")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("Pay with PayPal", checkout.ApproveURL),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("send checkout link failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}

// sendSponsor appends a sponsor message for free-tier interactions.
// Silence when the inventory is empty.
func (b *Bot) sendSponsor(chatID int64) {
	if b.ads == nil {
		return
	}
	ad, ok := b.ads.Next()
	if !ok {
		return
	}
	msg := tgbotapi.NewMessage(chatID, ad.Text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("Learn more", b.publicBaseURL+"/a/"+ad.ID),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("send sponsor failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = b.cfg.DisableWebPage
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("send reply failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}
