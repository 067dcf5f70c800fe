package clients

import (
	"github.com/arielbenavi/WhaleWatcher/clients/blockchain"
	"github.com/arielbenavi/WhaleWatcher/clients/coingecko"
	"github.com/arielbenavi/WhaleWatcher/clients/discord"
	"github.com/arielbenavi/WhaleWatcher/clients/notifier"
	"github.com/arielbenavi/WhaleWatcher/clients/telegram"
	"github.com/arielbenavi/WhaleWatcher/config"

	"go.uber.org/zap"
)

type Clients struct {
	Logger *zap.Logger

	Discord    *discord.DiscordClient
	Telegram   *telegram.TelegramClient
	Notifier   notifier.Notifier // Combined notifier for all channels
	Blockchain *blockchain.Client
	CoinGecko  *coingecko.Client
}

func NewClients(logger *zap.Logger, cfg *config.Config) *Clients {
	discordClient := discord.NewDiscordClient(logger, cfg)
	telegramClient := telegram.NewTelegramClient(logger, cfg)

	// Create combined notifier for all channels
	multiNotifier := notifier.NewMultiNotifier(discordClient, telegramClient)

	return &Clients{
		Logger:     logger,
		Discord:    discordClient,
		Telegram:   telegramClient,
		Notifier:   multiNotifier,
		Blockchain: blockchain.NewClient(logger, cfg),
		CoinGecko:  coingecko.NewClient(logger, cfg),
	}
}
