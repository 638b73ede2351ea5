package relay

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/italolelis/leechbot/internal/downloader"
	"github.com/italolelis/leechbot/internal/downloader/progress"
	"github.com/italolelis/leechbot/internal/logctx"
	"github.com/italolelis/leechbot/internal/notifier"
	"github.com/italolelis/leechbot/internal/policy"
	"github.com/italolelis/leechbot/internal/telemetry"
	"github.com/italolelis/leechbot/internal/transfer"
	"github.com/italolelis/leechbot/internal/upload"
)

const (
	msgNotAuthorized    = "Not authorized in this chat."
	msgUsage            = "Usage: /leech <direct-file-url>"
	msgHelp             = "Send /leech <direct-file-url> to mirror a file.\n4 GB uploads require a configured userbot session."
	msgStarting         = "Starting download…"
	msgDownloadFailed   = "Download failed: %s"
	msgDownloadComplete = "Download complete: %s. Preparing upload…"
	msgUploadFailed     = "Upload failed: %s"
	msgUploadComplete   = "Upload complete ✅"
)

// Outcome labels recorded on the relays metric.
const (
	OutcomeCompleted      = "completed"
	OutcomeUnauthorized   = "unauthorized"
	OutcomeUsage          = "usage"
	OutcomeTooLarge       = "too_large"
	OutcomeDownloadFailed = "download_failed"
	OutcomeUploadFailed   = "upload_failed"
)

// Chat is the part of the messaging client the orchestrator talks to.
type Chat interface {
	// Reply posts text as a reply to replyTo and returns the new message id.
	Reply(ctx context.Context, chatID int64, replyTo int, text string) (int, error)
	// Edit replaces the text of an existing message.
	Edit(ctx context.Context, chatID int64, messageID int, text string) error
}

// Fetcher streams a URL into a local file.
type Fetcher interface {
	Fetch(ctx context.Context, url, destPath string, ceiling int64, sink progress.Sink) (downloader.Result, error)
}

// UploaderSelector returns the identity chosen at startup.
type UploaderSelector interface {
	Select() (upload.Identity, upload.Uploader)
}

// Request is one inbound command.
type Request struct {
	ChatID     int64
	MessageID  int
	Args       string    // raw text after the command
	ReceivedAt time.Time // when the chat platform accepted the message
}

// Outcome is the terminal result of a relay.
type Outcome struct {
	JobID    string
	State    State
	Identity upload.Identity
	Written  int64
	Filename string
	Err      error
}

// Label maps the outcome to a bounded metric label.
func (o Outcome) Label() string {
	if o.Err == nil {
		return OutcomeCompleted
	}

	var (
		authErr     *transfer.AuthorizationError
		usageErr    *transfer.UsageError
		downloadErr *transfer.DownloadError
		uploadErr   *transfer.UploadError
	)

	switch {
	case errors.As(o.Err, &authErr):
		return OutcomeUnauthorized
	case errors.As(o.Err, &usageErr):
		return OutcomeUsage
	case errors.As(o.Err, &downloadErr) && downloadErr.Kind == transfer.KindTooLarge:
		return OutcomeTooLarge
	case errors.As(o.Err, &uploadErr):
		return OutcomeUploadFailed
	default:
		return OutcomeDownloadFailed
	}
}

// Settings is the read-only process configuration the handler needs.
type Settings struct {
	DownloadDir      string
	Ceiling          int64
	AllowList        policy.AllowList
	ProgressInterval time.Duration
}

// Option configures a Handler.
type Option func(*Handler)

func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(h *Handler) { h.tel = tel }
}

func WithNotifier(n notifier.Notifier) Option {
	return func(h *Handler) { h.notifier = n }
}

// WithClock replaces time.Now for workspace naming and progress throttling.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// WithIDSource replaces the job id generator.
func WithIDSource(next func() string) Option {
	return func(h *Handler) { h.nextID = next }
}

// Handler runs /start and /leech. It is safe for concurrent use; every call owns its Job.
type Handler struct {
	settings Settings
	chat     Chat
	fetcher  Fetcher
	router   UploaderSelector
	tel      *telemetry.Telemetry
	notifier notifier.Notifier
	now      func() time.Time
	nextID   func() string
}

func NewHandler(settings Settings, chat Chat, fetcher Fetcher, router UploaderSelector, opts ...Option) (*Handler, error) {
	if chat == nil || fetcher == nil || router == nil {
		return nil, errors.New("chat, fetcher and router are required")
	}

	if settings.Ceiling <= 0 {
		return nil, fmt.Errorf("ceiling must be positive, got %d", settings.Ceiling)
	}

	if settings.ProgressInterval <= 0 {
		settings.ProgressInterval = 2 * time.Second
	}

	h := &Handler{
		settings: settings,
		chat:     chat,
		fetcher:  fetcher,
		router:   router,
		now:      time.Now,
		nextID:   uuid.NewString,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h, nil
}

// HandleStart replies with the help text to authorized chats.
func (h *Handler) HandleStart(ctx context.Context, req Request) error {
	if !h.settings.AllowList.IsAllowed(req.ChatID) {
		h.reply(ctx, req, msgNotAuthorized)

		return &transfer.AuthorizationError{ChatID: req.ChatID}
	}

	if _, err := h.chat.Reply(ctx, req.ChatID, req.MessageID, msgHelp); err != nil {
		return fmt.Errorf("failed to send help: %w", err)
	}

	return nil
}

// HandleLeech relays the file at the first argument back to the chat. All failures are
// reported to the chat and returned in the Outcome; none escape as panics or errors.
func (h *Handler) HandleLeech(ctx context.Context, req Request) Outcome {
	job := newJob(h.nextID(), h.settings.Ceiling)

	ctx, logger := logctx.With(ctx, "job_id", job.ID, "chat_id", req.ChatID)

	if !req.ReceivedAt.IsZero() {
		logger.Debug("relay started", "queued_for", h.now().Sub(req.ReceivedAt).String())
	}

	var out Outcome

	h.tel.InstrumentRelay(ctx, func(ctx context.Context) string {
		out = h.run(ctx, job, req)

		return out.Label()
	})

	if out.Err != nil {
		logger.Info("relay finished with failure", "state", out.State.String(), "err", out.Err)
	} else {
		logger.Info("relay completed", "filename", out.Filename, "bytes", out.Written, "identity", out.Identity.String())
	}

	return out
}

func (h *Handler) run(ctx context.Context, job *Job, req Request) Outcome {
	out := Outcome{JobID: job.ID}

	fail := func(err error) Outcome {
		job.transition(ctx, StateFailed)
		out.State = job.State
		out.Err = err

		return out
	}

	job.transition(ctx, StateAuthorizing)

	if !h.settings.AllowList.IsAllowed(req.ChatID) {
		h.reply(ctx, req, msgNotAuthorized)

		return fail(&transfer.AuthorizationError{ChatID: req.ChatID})
	}

	job.transition(ctx, StateValidating)

	rawURL, err := parseURLArg(req.Args)
	if err != nil {
		h.reply(ctx, req, msgUsage)

		return fail(err)
	}

	job.transition(ctx, StateDownloading)

	if err := job.acquire(h.settings.DownloadDir, h.now()); err != nil {
		h.reply(ctx, req, fmt.Sprintf(msgDownloadFailed, err))
		h.notify(ctx, req, "", err)

		return fail(&transfer.DownloadError{Kind: transfer.KindTransport, Err: err})
	}
	defer job.release(ctx)

	status := h.reply(ctx, req, msgStarting)

	sink := &jobSink{
		job: job,
		next: progress.NewThrottle(progress.SinkFunc(func(ctx context.Context, downloaded, total int64) {
			job.LastReport = h.now()
			h.edit(ctx, req.ChatID, status, progressText(downloaded, total))
		}), h.settings.ProgressInterval, progress.WithClock(h.now)),
	}

	err = h.tel.InstrumentDownload(ctx, func(ctx context.Context) (int64, error) {
		res, err := h.fetcher.Fetch(ctx, rawURL, job.TempPath, job.Ceiling, sink)
		job.Downloaded = res.Written
		job.DeclaredTotal = res.DeclaredTotal

		return res.Written, err
	})
	out.Written = job.Downloaded

	if err != nil {
		h.edit(ctx, req.ChatID, status, fmt.Sprintf(msgDownloadFailed, err))
		h.notify(ctx, req, "", err)

		return fail(err)
	}

	job.transition(ctx, StateDownloaded)
	h.edit(ctx, req.ChatID, status, fmt.Sprintf(msgDownloadComplete, humanize.Bytes(uint64(job.Downloaded))))

	filename := DeriveFilename(rawURL)
	out.Filename = filename

	identity, uploader := h.router.Select()
	out.Identity = identity

	if err := job.finalize(filename); err != nil {
		uerr := &transfer.UploadError{Identity: identity.String(), Err: fmt.Errorf("failed to prepare file: %w", err)}
		h.edit(ctx, req.ChatID, status, fmt.Sprintf(msgUploadFailed, uerr))
		h.notify(ctx, req, filename, uerr)

		return fail(uerr)
	}

	job.transition(ctx, StateUploading)

	if err := h.upload(ctx, job, req, identity, uploader); err != nil {
		h.edit(ctx, req.ChatID, status, fmt.Sprintf(msgUploadFailed, err))
		h.notify(ctx, req, filename, err)

		return fail(err)
	}

	job.transition(ctx, StateCompleted)
	h.edit(ctx, req.ChatID, status, msgUploadComplete)
	h.notify(ctx, req, filename, nil)

	out.State = job.State

	return out
}

func (h *Handler) upload(
	ctx context.Context,
	job *Job,
	req Request,
	identity upload.Identity,
	uploader upload.Uploader,
) error {
	filename := filepath.Base(job.FinalPath)

	info, err := os.Stat(job.FinalPath)
	if err != nil {
		return &transfer.UploadError{Identity: identity.String(), Err: fmt.Errorf("failed to prepare file: %w", err)}
	}

	doc := upload.Document{
		ChatID:   req.ChatID,
		Path:     job.FinalPath,
		Filename: filename,
		Caption:  Caption(filename, info.Size()),
	}

	if err := uploader.SendDocument(ctx, doc); err != nil {
		return &transfer.UploadError{Identity: identity.String(), Err: err}
	}

	return nil
}

// Caption is the text attached to the uploaded document.
func Caption(filename string, size int64) string {
	return fmt.Sprintf("Leech: %s (%s)", filename, humanize.Bytes(uint64(size)))
}

func progressText(downloaded, total int64) string {
	if total <= 0 {
		return fmt.Sprintf("Downloading: %s / ?", humanize.Bytes(uint64(downloaded)))
	}

	pct := float64(downloaded) / float64(total) * 100

	return fmt.Sprintf("Downloading: %s / %s (%.1f%%)",
		humanize.Bytes(uint64(downloaded)), humanize.Bytes(uint64(total)), pct)
}

// parseURLArg accepts a single absolute http(s) URL.
func parseURLArg(args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "", &transfer.UsageError{Command: "leech", Reason: "missing URL"}
	}

	u, err := url.Parse(fields[0])
	if err != nil {
		return "", &transfer.UsageError{Command: "leech", Reason: "malformed URL", Err: err}
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", &transfer.UsageError{Command: "leech", Reason: "URL must be absolute http or https"}
	}

	return fields[0], nil
}

// reply posts text and returns the message id, or 0 when posting failed.
func (h *Handler) reply(ctx context.Context, req Request, text string) int {
	id, err := h.chat.Reply(ctx, req.ChatID, req.MessageID, text)
	if err != nil {
		logctx.LoggerFromContext(ctx).Warn("failed to send reply", "err", err)

		return 0
	}

	return id
}

func (h *Handler) edit(ctx context.Context, chatID int64, messageID int, text string) {
	if messageID == 0 {
		return
	}

	if err := h.chat.Edit(ctx, chatID, messageID, text); err != nil {
		logctx.LoggerFromContext(ctx).Debug("failed to edit status message", "err", err)
	}
}

func (h *Handler) notify(ctx context.Context, req Request, filename string, err error) {
	if h.notifier == nil {
		return
	}

	content := fmt.Sprintf("✅ Relayed %s to chat %d", filename, req.ChatID)
	if err != nil {
		content = fmt.Sprintf("❌ Relay failed for chat %d: %v", req.ChatID, err)
	}

	if nerr := h.notifier.Notify(ctx, content); nerr != nil {
		logctx.LoggerFromContext(ctx).Warn("failed to send notification", "err", nerr)
	}
}

// jobSink keeps the job counters current on every chunk and forwards to the throttle.
type jobSink struct {
	job  *Job
	next progress.Sink
}

func (s *jobSink) Report(ctx context.Context, downloaded, total int64) {
	s.job.Downloaded = downloaded
	s.job.DeclaredTotal = total

	s.next.Report(ctx, downloaded, total)
}
