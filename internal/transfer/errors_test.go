package transfer

import (
	"errors"
	"fmt"
	"testing"
)

// TestAuthorizationError_Error verifies error message formatting
func TestAuthorizationError_Error(t *testing.T) {
	err := &AuthorizationError{ChatID: -1001234}

	expected := "chat -1001234 is not authorized"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

// TestUsageError_Error verifies error message formatting
func TestUsageError_Error(t *testing.T) {
	err := &UsageError{Command: "leech", Reason: "missing url"}

	expected := "invalid usage of /leech: missing url"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

// TestDownloadError_Error verifies error message formatting per kind
func TestDownloadError_Error(t *testing.T) {
	tests := []struct {
		name       string
		err        *DownloadError
		wantFormat string
	}{
		{
			name:       "http status with text",
			err:        &DownloadError{Kind: KindHTTPStatus, StatusCode: 404, Status: "404 Not Found"},
			wantFormat: "server responded with HTTP 404 Not Found",
		},
		{
			name:       "http status code only",
			err:        &DownloadError{Kind: KindHTTPStatus, StatusCode: 503},
			wantFormat: "server responded with HTTP 503",
		},
		{
			name:       "too large reports both magnitudes",
			err:        &DownloadError{Kind: KindTooLarge, Observed: 6000 << 20, Limit: 5120 << 20},
			wantFormat: "file too large: 6.3 GB > limit 5.4 GB",
		},
		{
			name:       "transport with cause",
			err:        &DownloadError{Kind: KindTransport, Err: errors.New("connection reset")},
			wantFormat: "transport error: connection reset",
		},
		{
			name:       "transport without cause",
			err:        &DownloadError{Kind: KindTransport},
			wantFormat: "transport error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantFormat {
				t.Errorf("Error() = %q, want %q", got, tt.wantFormat)
			}
		})
	}
}

// TestUploadError_Error verifies error message formatting
func TestUploadError_Error(t *testing.T) {
	err := &UploadError{Identity: "elevated", Err: errors.New("FILE_PARTS_INVALID")}

	expected := "upload via elevated failed: FILE_PARTS_INVALID"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

// TestErrors_Unwrap verifies error chain traversal
func TestErrors_Unwrap(t *testing.T) {
	cause := errors.New("underlying cause")

	tests := []struct {
		name string
		err  error
	}{
		{"UsageError", &UsageError{Command: "leech", Reason: "bad url", Err: cause}},
		{"DownloadError", &DownloadError{Kind: KindTransport, Err: cause}},
		{"UploadError", &UploadError{Identity: "primary", Err: cause}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if unwrapped := errors.Unwrap(tt.err); unwrapped != cause {
				t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
			}

			wrapped := fmt.Errorf("context: %w", tt.err)
			if !errors.Is(wrapped, cause) {
				t.Error("errors.Is() should find cause in wrapped chain")
			}
		})
	}
}

// TestDownloadError_As verifies programmatic error type detection
func TestDownloadError_As(t *testing.T) {
	wrapped := fmt.Errorf("fetch: %w", &DownloadError{Kind: KindTooLarge, Observed: 10, Limit: 5})

	var target *DownloadError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As() should extract DownloadError from wrapped chain")
	}

	if target.Kind != KindTooLarge {
		t.Errorf("Kind = %v, want %v", target.Kind, KindTooLarge)
	}

	if target.Observed != 10 || target.Limit != 5 {
		t.Errorf("Observed/Limit = %d/%d, want 10/5", target.Observed, target.Limit)
	}
}

func TestDownloadErrorKind_String(t *testing.T) {
	tests := map[DownloadErrorKind]string{
		KindTransport:  "transport",
		KindHTTPStatus: "http_status",
		KindTooLarge:   "too_large",
	}

	for kind, want := range tests {
		if got := kind.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
