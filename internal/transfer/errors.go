package transfer

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// AuthorizationError is returned when a chat outside the allow list invokes a command.
// Nothing has been allocated when it is raised, so no cleanup is needed.
type AuthorizationError struct {
	ChatID int64
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("chat %d is not authorized", e.ChatID)
}

// UsageError represents a missing or malformed command argument.
type UsageError struct {
	Command string // Command that was invoked, without the leading slash
	Reason  string // Human-readable explanation of what is wrong with the arguments
	Err     error  // Underlying error, if any
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("invalid usage of /%s: %s", e.Command, e.Reason)
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

// DownloadErrorKind classifies why a download failed.
type DownloadErrorKind int

const (
	// KindTransport covers connect/read timeouts and other network failures.
	KindTransport DownloadErrorKind = iota
	// KindHTTPStatus means the server answered with a non-success status.
	KindHTTPStatus
	// KindTooLarge means the declared or observed size exceeded the ceiling.
	KindTooLarge
)

func (k DownloadErrorKind) String() string {
	switch k {
	case KindHTTPStatus:
		return "http_status"
	case KindTooLarge:
		return "too_large"
	default:
		return "transport"
	}
}

// DownloadError represents every failure of the streaming fetcher.
type DownloadError struct {
	Kind       DownloadErrorKind
	StatusCode int   // HTTP status code for KindHTTPStatus
	Status     string
	Observed   int64 // Declared or downloaded bytes for KindTooLarge
	Limit      int64 // Ceiling in bytes for KindTooLarge
	Err        error // Underlying error, if any
}

func (e *DownloadError) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		if e.Status != "" {
			return fmt.Sprintf("server responded with HTTP %s", e.Status)
		}

		return fmt.Sprintf("server responded with HTTP %d", e.StatusCode)
	case KindTooLarge:
		return fmt.Sprintf("file too large: %s > limit %s",
			humanize.Bytes(uint64(e.Observed)), humanize.Bytes(uint64(e.Limit)))
	default:
		if e.Err != nil {
			return fmt.Sprintf("transport error: %v", e.Err)
		}

		return "transport error"
	}
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// UploadError represents a failed send of the downloaded document to the chat.
type UploadError struct {
	Identity string // Identity that attempted the upload
	Err      error  // Underlying error, if any
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upload via %s failed: %v", e.Identity, e.Err)
	}

	return fmt.Sprintf("upload via %s failed", e.Identity)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
