// Command gensession logs a Telegram user account in interactively and prints the
// SESSION_STRING that enables the elevated uploader.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/italolelis/leechbot/internal/logctx"
	"github.com/italolelis/leechbot/internal/telegram/userbot"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/term"
)

type config struct {
	APIID   int    `envconfig:"API_ID" required:"true"`
	APIHash string `envconfig:"API_HASH" required:"true"`
	Phone   string `envconfig:"PHONE"`
}

func main() {
	_ = godotenv.Load()

	logger := logctx.NewJSONLogger(os.Stderr, slog.LevelInfo)

	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		logger.Error("config error", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	encoded, err := generate(ctx, cfg, bufio.NewReader(os.Stdin))
	if err != nil {
		logger.Error("failed to generate session", "err", err)
		os.Exit(1)
	}

	fmt.Printf("SESSION_STRING=%s\n", encoded)
}

func generate(ctx context.Context, cfg config, in *bufio.Reader) (string, error) {
	storage, err := userbot.NewStringStorage("")
	if err != nil {
		return "", err
	}

	flow := auth.NewFlow(terminalAuth{phone: cfg.Phone, in: in}, auth.SendCodeOptions{})

	client := telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
		SessionStorage: storage,
		NoUpdates:      true,
	})

	err = client.Run(ctx, func(ctx context.Context) error {
		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		self, err := client.Self(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch account: %w", err)
		}

		fmt.Fprintf(os.Stderr, "Logged in as %s (id %d)\n", self.Username, self.ID)

		return nil
	})
	if err != nil {
		return "", err
	}

	return storage.Encode(), nil
}

// terminalAuth answers the login flow from the terminal.
type terminalAuth struct {
	phone string
	in    *bufio.Reader
}

func (a terminalAuth) Phone(_ context.Context) (string, error) {
	if a.phone != "" {
		return a.phone, nil
	}

	return prompt(a.in, "Phone number (international format): ")
}

func (a terminalAuth) Code(_ context.Context, _ *tg.AuthSentCode) (string, error) {
	return prompt(a.in, "Login code: ")
}

func (a terminalAuth) Password(_ context.Context) (string, error) {
	return promptSecret("Two-step verification password: ")
}

func (a terminalAuth) AcceptTermsOfService(_ context.Context, tos tg.HelpTermsOfService) error {
	return &auth.SignUpRequired{TermsOfService: tos}
}

func (a terminalAuth) SignUp(_ context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, errors.New("sign up is not supported; register the account in an official app first")
}

func prompt(in *bufio.Reader, label string) (string, error) {
	fmt.Fprint(os.Stderr, label)

	line, err := in.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	return strings.TrimSpace(line), nil
}

func promptSecret(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	defer fmt.Fprintln(os.Stderr)

	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	return strings.TrimSpace(string(b)), nil
}
