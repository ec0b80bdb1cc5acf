// Package notify tells operators which programs failed a cycle.
package notify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/gridops/meterbot/internal/logging"
)

var (
	ErrNoRecipients = errors.New("no notification recipients configured")
	ErrNoToken      = errors.New("telegram token is empty")
)

// Messenger delivers one text message to one chat.
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// TelegramMessenger sends through the Telegram Bot API.
type TelegramMessenger struct {
	bot *tgbotapi.BotAPI
}

func NewTelegramMessenger(token string) (*TelegramMessenger, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramMessenger{bot: bot}, nil
}

func (m *TelegramMessenger) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := m.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}

// FailureMessage is the text sent when programs fail a cycle.
func FailureMessage(programs []string) string {
	return fmt.Sprintf("Failed to execute programs automatically: %s.\nPlease, run the programs manually.",
		strings.Join(programs, ", "))
}

// Notifier broadcasts to the configured recipients. The token is read from
// the environment on every send so that it never lives in the config file.
type Notifier struct {
	recipients []string
	tokenEnv   string
	log        *logging.Logger
	getenv     func(string) string
	dial       func(token string) (Messenger, error)
}

func NewNotifier(recipients []string, tokenEnv string, log *logging.Logger) *Notifier {
	return &Notifier{
		recipients: recipients,
		tokenEnv:   tokenEnv,
		log:        log,
		getenv:     os.Getenv,
		dial: func(token string) (Messenger, error) {
			return NewTelegramMessenger(token)
		},
	}
}

// NotifyFailures sends FailureMessage(programs) to every recipient.
func (n *Notifier) NotifyFailures(ctx context.Context, programs []string) error {
	return n.Broadcast(ctx, FailureMessage(programs))
}

// Broadcast sends text to every recipient. Errors are logged and returned;
// a failed recipient does not stop the others.
func (n *Notifier) Broadcast(ctx context.Context, text string) error {
	if len(n.recipients) == 0 {
		n.log.Errorf("%v", ErrNoRecipients)
		return ErrNoRecipients
	}
	token := strings.TrimSpace(n.getenv(n.tokenEnv))
	if token == "" {
		n.log.Errorf("%v (env %s)", ErrNoToken, n.tokenEnv)
		return ErrNoToken
	}
	m, err := n.dial(token)
	if err != nil {
		n.log.Errorf("telegram bot error: %v", err)
		return err
	}

	var errs []error
	sent := 0
	for _, r := range n.recipients {
		chatID, err := strconv.ParseInt(strings.TrimSpace(r), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("recipient %q: %w", r, err))
			continue
		}
		if err := m.Send(ctx, chatID, text); err != nil {
			errs = append(errs, err)
			continue
		}
		sent++
	}
	if err := errors.Join(errs...); err != nil {
		n.log.Errorf("notification errors sent=%d: %v", sent, err)
		return err
	}
	n.log.Infof("notification sent to telegram recipients count=%d", sent)
	return nil
}
