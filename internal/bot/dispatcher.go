package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/italolelis/leechbot/internal/logctx"
	"github.com/italolelis/leechbot/internal/relay"
	"github.com/italolelis/leechbot/internal/telemetry"
	"github.com/italolelis/leechbot/internal/transfer"
)

const (
	CommandStart = "start"
	CommandLeech = "leech"
)

// Commands executes parsed commands.
type Commands interface {
	HandleStart(ctx context.Context, req relay.Request) error
	HandleLeech(ctx context.Context, req relay.Request) relay.Outcome
}

// Dispatcher turns updates into commands. Every command runs in its own goroutine so
// a slow transfer never blocks the polling loop.
type Dispatcher struct {
	commands Commands
	botName  string
	tel      *telemetry.Telemetry
	wg       sync.WaitGroup
}

// NewDispatcher creates a dispatcher for the bot named botName (without the @).
func NewDispatcher(commands Commands, botName string, tel *telemetry.Telemetry) *Dispatcher {
	return &Dispatcher{commands: commands, botName: botName, tel: tel}
}

// Run consumes updates until the channel closes or ctx is canceled. Commands already
// started keep running; use Wait to drain them.
func (d *Dispatcher) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	logger := logctx.LoggerFromContext(ctx)
	logger.Info("dispatcher started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("dispatcher stopped")

			return nil
		case update, ok := <-updates:
			if !ok {
				logger.Info("update channel closed")

				return nil
			}

			d.Dispatch(ctx, update)
		}
	}
}

// Dispatch starts the command carried by update, if any.
func (d *Dispatcher) Dispatch(ctx context.Context, update tgbotapi.Update) {
	command, req, ok := Parse(update, d.botName)
	if !ok {
		return
	}

	// Jobs are not canceled by shutdown; they finish or die with the process.
	jobCtx, logger := logctx.With(context.WithoutCancel(ctx),
		"command", command, "chat_id", req.ChatID, "update_id", update.UpdateID)

	d.wg.Add(1)

	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("command panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			}
		}()

		d.run(jobCtx, command, req)
	}()
}

func (d *Dispatcher) run(ctx context.Context, command string, req relay.Request) {
	logger := logctx.LoggerFromContext(ctx)

	switch command {
	case CommandStart:
		err := d.commands.HandleStart(ctx, req)
		d.tel.RecordCommand(ctx, command, !isUnauthorized(err))

		if err != nil {
			logger.Info("start command failed", "err", err)
		}
	case CommandLeech:
		out := d.commands.HandleLeech(ctx, req)
		d.tel.RecordCommand(ctx, command, !isUnauthorized(out.Err))
	}
}

// Wait blocks until every dispatched command returns or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})

	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Parse extracts a supported command from update. A command may be addressed as
// /leech@botName; one addressed to any other bot is ignored, as are unknown commands
// and plain text.
func Parse(update tgbotapi.Update, botName string) (string, relay.Request, bool) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || !msg.IsCommand() {
		return "", relay.Request{}, false
	}

	if _, addressee, found := strings.Cut(msg.CommandWithAt(), "@"); found && !strings.EqualFold(addressee, botName) {
		return "", relay.Request{}, false
	}

	command := msg.Command()
	if command != CommandStart && command != CommandLeech {
		return "", relay.Request{}, false
	}

	return command, relay.Request{
		ChatID:     msg.Chat.ID,
		MessageID:  msg.MessageID,
		Args:       msg.CommandArguments(),
		ReceivedAt: msg.Time(),
	}, true
}

func isUnauthorized(err error) bool {
	var authErr *transfer.AuthorizationError

	return errors.As(err, &authErr)
}
