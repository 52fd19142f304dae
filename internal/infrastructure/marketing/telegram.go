package marketing

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/you/mcmarket/domain"
)

const defaultTelegramURL = "https://api.telegram.org"

// TelegramPublisher sends messages to a channel through the Bot API
type TelegramPublisher struct {
	endpoint string
	botToken string
	chatID   string
	http     *http.Client
}

func NewTelegramPublisher(apiURL, botToken, chatID string, timeout time.Duration) *TelegramPublisher {
	if apiURL == "" {
		apiURL = defaultTelegramURL
	}
	return &TelegramPublisher{
		endpoint: strings.TrimSuffix(apiURL, "/") + "/bot%s/%s",
		botToken: botToken,
		chatID:   chatID,
		http:     &http.Client{Timeout: timeout},
	}
}

func (p *TelegramPublisher) Name() string { return "telegram" }

// ctxDoer binds the bot's requests to the caller's context
type ctxDoer struct {
	ctx    context.Context
	client *http.Client
}

func (d ctxDoer) Do(req *http.Request) (*http.Response, error) {
	return d.client.Do(req.WithContext(d.ctx))
}

// bot builds a client without the getMe round trip NewBotAPI makes
func (p *TelegramPublisher) bot(ctx context.Context) *tgbotapi.BotAPI {
	b := &tgbotapi.BotAPI{Token: p.botToken, Client: ctxDoer{ctx: ctx, client: p.http}, Buffer: 100}
	b.SetAPIEndpoint(p.endpoint)
	return b
}

// Publish returns the message ID. Numeric chat IDs address a chat, anything
// else is treated as a channel username.
func (p *TelegramPublisher) Publish(ctx context.Context, message, link string) (string, error) {
	if p.botToken == "" || p.chatID == "" {
		return "", domain.NewServiceUnavailable("Telegram sharing is not configured", nil)
	}

	text := message
	if link != "" {
		text = message + "\n\n" + link
	}

	var msg tgbotapi.MessageConfig
	if id, err := strconv.ParseInt(p.chatID, 10, 64); err == nil {
		msg = tgbotapi.NewMessage(id, text)
	} else {
		msg = tgbotapi.NewMessageToChannel(p.chatID, text)
	}

	sent, err := p.bot(ctx).Send(msg)
	if err != nil {
		return "", domain.NewServiceUnavailable("Telegram post failed", err)
	}
	return strconv.Itoa(sent.MessageID), nil
}
