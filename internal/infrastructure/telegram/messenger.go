// Package telegram adapts the Telegram Bot API to the notify.Messenger
// interface.
package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/therudywolf/DomainsBot-sub000/internal/application/notify"
)

// goneMarkers are lowercase substrings of Telegram API errors that mean a
// chat is permanently unusable as a destination.
var goneMarkers = []string{
	"chat not found",
	"bot was kicked",
	"bot is not a member",
	"not enough rights",
	"forbidden",
	"chat_id is empty",
}

// Messenger sends notification texts through a Telegram bot.
type Messenger struct {
	bot *tgbotapi.BotAPI
	log *zap.SugaredLogger
}

// NewMessenger authorizes the bot with the given token.
func NewMessenger(token string, log *zap.SugaredLogger) (*Messenger, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram authorization failed: %w", err)
	}
	log.Infow("telegram bot authorized", "username", bot.Self.UserName)
	return &Messenger{bot: bot, log: log}, nil
}

// Send delivers one message to one chat. Errors that mean the chat is gone
// for good are wrapped in notify.ErrDestinationGone.
func (m *Messenger) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := m.bot.Send(msg); err != nil {
		return classify(chatID, err)
	}
	return nil
}

// classify maps a Telegram send error onto the notifier's error taxonomy.
func classify(chatID int64, err error) error {
	lower := strings.ToLower(err.Error())
	for _, marker := range goneMarkers {
		if strings.Contains(lower, marker) {
			return fmt.Errorf("chat %d: %s: %w", chatID, err.Error(), notify.ErrDestinationGone)
		}
	}
	return fmt.Errorf("send to chat %d: %w", chatID, err)
}
