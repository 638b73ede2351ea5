// Package userbot uploads documents as a Telegram user account over MTProto. User
// accounts are allowed much larger files than bots.
package userbot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gotd/td/constant"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/message/styling"
	"github.com/gotd/td/telegram/peers"
	"github.com/gotd/td/telegram/uploader"
	"github.com/italolelis/leechbot/internal/logctx"
	"github.com/italolelis/leechbot/internal/upload"
)

const defaultUploadThreads = 4

// ErrNotAuthorized means the session string no longer grants access.
var ErrNotAuthorized = errors.New("userbot session is not authorized")

// ErrStopped is returned by calls made after Run has exited.
var ErrStopped = errors.New("userbot client stopped")

// Config holds the MTProto application credentials and the session.
type Config struct {
	AppID         int
	AppHash       string
	SessionString string
	UploadThreads int
}

// Client is the elevated uploader. Run must be running for SendDocument to work.
type Client struct {
	client  *telegram.Client
	threads int

	ready   chan struct{}
	stopped chan struct{}
	runErr  error

	mu       sync.RWMutex
	peers    *peers.Manager
	uploader *uploader.Uploader
	sender   *message.Sender
}

func New(cfg Config) (*Client, error) {
	if cfg.AppID == 0 || cfg.AppHash == "" {
		return nil, errors.New("api id and api hash are required for the userbot")
	}

	storage, err := NewStringStorage(cfg.SessionString)
	if err != nil {
		return nil, err
	}

	if cfg.UploadThreads <= 0 {
		cfg.UploadThreads = defaultUploadThreads
	}

	return &Client{
		client: telegram.NewClient(cfg.AppID, cfg.AppHash, telegram.Options{
			SessionStorage: storage,
			NoUpdates:      true,
		}),
		threads: cfg.UploadThreads,
		ready:   make(chan struct{}),
		stopped: make(chan struct{}),
	}, nil
}

// Run connects, verifies the session is authorized and keeps the connection open until
// ctx is canceled.
func (c *Client) Run(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx).With("component", "userbot")

	err := c.client.Run(ctx, func(ctx context.Context) error {
		status, err := c.client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to check userbot authorization: %w", err)
		}

		if !status.Authorized {
			return ErrNotAuthorized
		}

		api := c.client.API()

		c.mu.Lock()
		c.peers = peers.Options{}.Build(api)
		c.uploader = uploader.NewUploader(api).
			WithPartSize(uploader.MaximumPartSize).
			WithThreads(c.threads)
		c.sender = message.NewSender(api).WithUploader(c.uploader)
		c.mu.Unlock()

		if status.User != nil {
			logger.Info("userbot session ready", "user_id", status.User.ID, "username", status.User.Username)
		}

		close(c.ready)

		<-ctx.Done()

		return ctx.Err()
	})

	if errors.Is(err, context.Canceled) {
		err = nil
	}

	c.runErr = err
	close(c.stopped)

	return err
}

// WaitReady blocks until the session is verified, Run fails, or ctx ends.
func (c *Client) WaitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-c.stopped:
		if c.runErr != nil {
			return c.runErr
		}

		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendDocument uploads doc.Path and posts it to doc.ChatID as a file. ChatID uses the
// Bot API numbering (negative for groups and channels).
func (c *Client) SendDocument(ctx context.Context, doc upload.Document) error {
	if err := c.WaitReady(ctx); err != nil {
		return err
	}

	c.mu.RLock()
	manager, up, sender := c.peers, c.uploader, c.sender
	c.mu.RUnlock()

	peer, err := manager.ResolveTDLibID(ctx, constant.TDLibPeerID(doc.ChatID))
	if err != nil {
		return fmt.Errorf("failed to resolve chat %d: %w", doc.ChatID, err)
	}

	file, err := up.FromPath(ctx, doc.Path)
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}

	media := message.UploadedDocument(file, styling.Plain(doc.Caption)).
		Filename(doc.Filename).
		ForceFile(true)

	if _, err := sender.To(peer.InputPeer()).Media(ctx, media); err != nil {
		return fmt.Errorf("failed to send document: %w", err)
	}

	return nil
}
