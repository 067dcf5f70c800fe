package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/arielbenavi/WhaleWatcher/clients/notifier"
	"github.com/arielbenavi/WhaleWatcher/config"
	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// TelegramClient sends whale alerts to a Telegram chat.
// Implements notifier.Notifier.
type TelegramClient struct {
	logger *zap.Logger
	api    *tgbotapi.BotAPI
	chatID int64
	isProd bool
}

// NewTelegramClient builds the client. With no token (or a failed bot
// handshake) a disabled client is returned: sends are skipped with a warning
// instead of failing the run.
func NewTelegramClient(logger *zap.Logger, cfg *config.Config) *TelegramClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	chatID := cfg.TelegramChatID()

	token := cfg.Telegram.BotToken
	if token == "" {
		logger.Warn("TELEGRAM_BOT_TOKEN not set, Telegram alerts disabled")
		return &TelegramClient{logger: logger, chatID: chatID, isProd: cfg.IsProd}
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		logger.Error("failed to create telegram bot", zap.Error(err))
		return &TelegramClient{logger: logger, chatID: chatID, isProd: cfg.IsProd}
	}

	logger.Info("telegram bot initialized",
		zap.Bool("isProd", cfg.IsProd),
		zap.Int64("chatID", chatID),
		zap.String("account", api.Self.UserName),
	)

	return &TelegramClient{
		logger: logger,
		api:    api,
		chatID: chatID,
		isProd: cfg.IsProd,
	}
}

// Send delivers a whale alert. Implements notifier.Notifier.
func (tc *TelegramClient) Send(ctx context.Context, alert notifier.WhaleAlert) error {
	if tc.api == nil || tc.chatID == 0 {
		tc.logger.Warn("telegram not configured, skipping alert")
		return fmt.Errorf("telegram not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(tc.chatID, BuildAlertMessage(alert))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := tc.api.Send(msg); err != nil {
		tc.logger.Error("failed to send telegram message", zap.Error(err))
		return fmt.Errorf("send telegram message: %w", err)
	}

	tc.logger.Info("sent telegram whale alert",
		zap.String("wallet", notifier.ShortAddress(alert.Wallet)),
		zap.String("level", alert.Level),
	)
	return nil
}

// BuildAlertMessage renders the alert as Telegram HTML. Level and portfolio
// impact are bold so they stand out in the chat.
func BuildAlertMessage(alert notifier.WhaleAlert) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s <b>%s</b> whale movement\n\n", levelEmoji(alert.Level), escapeHTML(alert.Level)))

	sb.WriteString(fmt.Sprintf("Wallet: <code>%s</code>\n", escapeHTML(alert.Wallet)))
	sb.WriteString(fmt.Sprintf("Action: %s %.4f BTC (~$%s)\n",
		escapeHTML(alert.Action),
		alert.AmountBTC,
		humanize.CommafWithDigits(alert.USDValue, 0),
	))
	sb.WriteString(fmt.Sprintf("Portfolio impact: <b>%.1f%%</b>\n", alert.PctChange))

	sb.WriteString(fmt.Sprintf("Category: %s\n", escapeHTML(alert.Category)))
	if len(alert.Flags) > 0 {
		sb.WriteString(fmt.Sprintf("Patterns: %s\n", escapeHTML(strings.Join(alert.Flags, ", "))))
	}
	if alert.ROIPct != nil {
		sb.WriteString(fmt.Sprintf("Wallet ROI: %+.1f%%\n", *alert.ROIPct))
	} else {
		sb.WriteString("Wallet ROI: n/a\n")
	}

	ts := alert.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	sb.WriteString(fmt.Sprintf("\n<i>WhaleWatcher • %s</i>", ts.UTC().Format("2006-01-02 15:04 UTC")))

	return sb.String()
}

func levelEmoji(level string) string {
	switch level {
	case "URGENT":
		return "🚨"
	case "HIGH":
		return "⚠️"
	default:
		return "ℹ️"
	}
}

// Close cleans up resources. Implements notifier.Notifier.
func (tc *TelegramClient) Close() error {
	return nil
}

// escapeHTML escapes the characters Telegram's HTML parse mode reserves.
func escapeHTML(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	return replacer.Replace(s)
}
