package telegram_chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/davarch/build-notifier/internal/domain"
	"github.com/davarch/build-notifier/internal/infrastructure/render"
	tele "gopkg.in/telebot.v4"
)

// Sink sends build messages as plain text Telegram messages. The channel is
// either a numeric chat id or a public @username.
type Sink struct {
	bot *tele.Bot
}

func New(token, apiURL string, timeout time.Duration) (*Sink, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   token,
		URL:     apiURL,
		Client:  &http.Client{Timeout: timeout},
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	return &Sink{bot: b}, nil
}

type username string

func (u username) Recipient() string { return string(u) }

func recipient(channel string) (tele.Recipient, error) {
	channel = strings.TrimSpace(channel)
	if id, err := strconv.ParseInt(channel, 10, 64); err == nil {
		return tele.ChatID(id), nil
	}
	if channel == "" {
		return nil, errors.New("telegram channel is empty")
	}
	if !strings.HasPrefix(channel, "@") {
		channel = "@" + channel
	}
	return username(channel), nil
}

func (s *Sink) Send(ctx context.Context, channel string, m domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to, err := recipient(channel)
	if err != nil {
		return err
	}

	_, err = s.bot.Send(to, render.Text(m), &tele.SendOptions{DisableWebPagePreview: true})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
