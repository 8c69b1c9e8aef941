package notifications

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vigil-run/vigil/internal/core/domain"
	"github.com/vigil-run/vigil/internal/core/ports"
)

// telegramSender is the slice of the bot API the notifier uses; the real
// *tgbotapi.BotAPI satisfies it.
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier delivers notifications as Telegram bot messages. The
// target is the recipient's numeric chat id.
type TelegramNotifier struct {
	bot telegramSender
}

// NewTelegramNotifier creates a notifier from a bot token.
func NewTelegramNotifier(token string) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &TelegramNotifier{bot: bot}, nil
}

func (n *TelegramNotifier) Channel() domain.Channel { return domain.ChannelTelegram }

func (n *TelegramNotifier) Notify(_ context.Context, msg *ports.Notification) (*ports.NotifyResult, error) {
	chatID, err := strconv.ParseInt(msg.Target, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a chat id", ports.ErrInvalidTarget, msg.Target)
	}

	text := fmt.Sprintf("[%s] %s", msg.Severity, msg.Summary)
	sent, err := n.bot.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrChannelUnavailable, err)
	}
	return &ports.NotifyResult{ExternalID: strconv.Itoa(sent.MessageID)}, nil
}
