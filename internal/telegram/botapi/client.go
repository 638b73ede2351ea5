// Package botapi talks to Telegram through the Bot API. It is the primary identity:
// it receives commands, posts and edits status messages, and uploads documents up to
// the Bot API limit.
package botapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/italolelis/leechbot/internal/upload"
)

// DefaultEndpoint is the public Bot API server.
const DefaultEndpoint = tgbotapi.APIEndpoint

const pollTimeoutSeconds = 60

// Sender is the subset of *tgbotapi.BotAPI the client uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(u tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Client adapts a Sender to the relay and upload interfaces.
type Client struct {
	api      Sender
	username string
}

// New authenticates the token against endpoint (a format string with token and method
// placeholders, DefaultEndpoint when empty) and routes the library's logs to logger.
func New(token, endpoint string, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	if httpClient == nil {
		httpClient = &http.Client{}
	}

	if logger != nil {
		if err := tgbotapi.SetLogger(&slogBridge{logger: logger.With("component", "telegram_bot_api")}); err != nil {
			return nil, fmt.Errorf("failed to set bot api logger: %w", err)
		}
	}

	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bot api: %w", err)
	}

	return &Client{api: api, username: api.Self.UserName}, nil
}

// NewWithSender wraps an existing Sender.
func NewWithSender(api Sender, username string) *Client {
	return &Client{api: api, username: username}
}

// Username is the bot's handle without the @ prefix.
func (c *Client) Username() string {
	return c.username
}

// Reply sends text as a reply and returns the new message id.
func (c *Client) Reply(ctx context.Context, chatID int64, replyTo int, text string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo

	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}

	return sent.MessageID, nil
}

// Edit replaces the text of messageID. Editing to identical text is not an error.
func (c *Client) Edit(ctx context.Context, chatID int64, messageID int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := c.api.Request(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		if strings.Contains(err.Error(), "message is not modified") {
			return nil
		}

		return fmt.Errorf("failed to edit message: %w", err)
	}

	return nil
}

// SendDocument uploads doc.Path as a document. The Bot API names the upload after the
// file on disk, so callers rename the file first.
func (c *Client) SendDocument(ctx context.Context, doc upload.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d := tgbotapi.NewDocument(doc.ChatID, tgbotapi.FilePath(doc.Path))
	d.Caption = doc.Caption

	if _, err := c.api.Send(d); err != nil {
		return fmt.Errorf("failed to send document: %w", err)
	}

	return nil
}

// Updates starts long polling. The channel closes after Stop.
func (c *Client) Updates() tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSeconds
	u.AllowedUpdates = []string{"message"}

	return c.api.GetUpdatesChan(u)
}

// Stop ends long polling.
func (c *Client) Stop() {
	c.api.StopReceivingUpdates()
}

// slogBridge satisfies tgbotapi.BotLogger. The library only logs polling failures.
type slogBridge struct {
	logger *slog.Logger
}

func (b *slogBridge) Println(v ...interface{}) {
	b.logger.Warn(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (b *slogBridge) Printf(format string, v ...interface{}) {
	b.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
