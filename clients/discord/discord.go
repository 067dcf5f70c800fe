package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/arielbenavi/WhaleWatcher/clients/notifier"
	"github.com/arielbenavi/WhaleWatcher/config"
	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// DiscordClient sends whale alerts to a Discord channel.
// Implements notifier.Notifier.
type DiscordClient struct {
	logger    *zap.Logger
	session   *discordgo.Session
	channelID string
	isProd    bool
}

// NewDiscordClient builds the client. Without a token a disabled client is
// returned: sends are skipped with a warning instead of failing the run.
func NewDiscordClient(logger *zap.Logger, cfg *config.Config) *DiscordClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	channelID := cfg.DiscordChannelID()

	token := cfg.Discord.BotToken
	if token == "" {
		logger.Warn("DISCORD_BOT_TOKEN not set, Discord alerts disabled")
		return &DiscordClient{logger: logger, channelID: channelID, isProd: cfg.IsProd}
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		logger.Error("failed to create discord session", zap.Error(err))
		return &DiscordClient{logger: logger, channelID: channelID, isProd: cfg.IsProd}
	}

	logger.Info("discord bot initialized",
		zap.Bool("isProd", cfg.IsProd),
		zap.String("channelID", channelID),
	)

	return &DiscordClient{
		logger:    logger,
		session:   session,
		channelID: channelID,
		isProd:    cfg.IsProd,
	}
}

// Send delivers a whale alert as a rich embed. Implements notifier.Notifier.
func (dc *DiscordClient) Send(ctx context.Context, alert notifier.WhaleAlert) error {
	if dc.session == nil || dc.channelID == "" {
		dc.logger.Warn("discord not configured, skipping alert")
		return fmt.Errorf("discord not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	embed := BuildAlertEmbed(alert)
	if _, err := dc.session.ChannelMessageSendEmbed(dc.channelID, embed); err != nil {
		dc.logger.Error("failed to send discord embed", zap.Error(err))
		return fmt.Errorf("send discord embed: %w", err)
	}

	dc.logger.Info("sent discord whale alert",
		zap.String("wallet", notifier.ShortAddress(alert.Wallet)),
		zap.String("level", alert.Level),
	)
	return nil
}

// BuildAlertEmbed renders the alert as a Discord embed, colored by severity.
func BuildAlertEmbed(alert notifier.WhaleAlert) *discordgo.MessageEmbed {
	color := 0x3498DB // blue for INFO
	emoji := "ℹ️"
	switch alert.Level {
	case "URGENT":
		color = 0xE74C3C // red
		emoji = "🚨"
	case "HIGH":
		color = 0xF39C12 // orange
		emoji = "⚠️"
	}

	roiStr := "n/a"
	if alert.ROIPct != nil {
		roiStr = fmt.Sprintf("%+.1f%%", *alert.ROIPct)
	}

	flagsStr := "none"
	if len(alert.Flags) > 0 {
		flagsStr = strings.Join(alert.Flags, ", ")
	}

	ts := alert.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("%s %s whale movement", emoji, alert.Level),
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Wallet", Value: fmt.Sprintf("`%s`", alert.Wallet)},
			{
				Name: "Action",
				Value: fmt.Sprintf("%s %.4f BTC (~$%s)",
					alert.Action, alert.AmountBTC, humanize.CommafWithDigits(alert.USDValue, 0)),
				Inline: true,
			},
			{Name: "Portfolio impact", Value: fmt.Sprintf("**%.1f%%**", alert.PctChange), Inline: true},
			{Name: "Category", Value: alert.Category, Inline: true},
			{Name: "Patterns", Value: flagsStr, Inline: true},
			{Name: "Wallet ROI", Value: roiStr, Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: "WhaleWatcher",
		},
		Timestamp: ts.UTC().Format(time.RFC3339),
	}
}

// Close cleans up resources. Implements notifier.Notifier.
func (dc *DiscordClient) Close() error {
	if dc.session == nil {
		return nil
	}
	return dc.session.Close()
}
