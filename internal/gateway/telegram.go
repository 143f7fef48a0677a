package gateway

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// telegramLimit is the maximum length of one Telegram message.
const telegramLimit = 4096

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts run reports to one chat.
type TelegramNotifier struct {
	Bot    sender
	ChatID int64
	logger *zap.Logger
}

func NewTelegramNotifier(token string, chatID int64, logger *zap.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}

	logger = logger.Named("telegram")
	logger.Info("Authorized on account", zap.String("user", bot.Self.UserName))

	return &TelegramNotifier{Bot: bot, ChatID: chatID, logger: logger}, nil
}

func (tg *TelegramNotifier) Notify(ctx context.Context, report Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	text := []rune(report.Text())
	if len(text) > telegramLimit {
		text = append(text[:telegramLimit-1], '…')
	}

	msg := tgbotapi.NewMessage(tg.ChatID, string(text))
	msg.DisableWebPagePreview = true
	if _, err := tg.Bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	tg.logger.Debug("report sent", zap.Int64("chat", tg.ChatID))
	return nil
}
