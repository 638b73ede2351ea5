package policy

import "github.com/italolelis/leechbot/internal/transfer"

// Preflight decides whether a transfer may start given the size the server declared.
// An unknown size (zero or negative) always passes; the chunk check covers it.
func Preflight(declaredTotal, ceiling int64) error {
	if declaredTotal > 0 && declaredTotal > ceiling {
		return &transfer.DownloadError{
			Kind:     transfer.KindTooLarge,
			Observed: declaredTotal,
			Limit:    ceiling,
		}
	}

	return nil
}

// OnChunk decides whether a transfer may continue after downloaded bytes were written.
// It ignores the declared size so servers that lie about Content-Length are still capped.
func OnChunk(downloaded, ceiling int64) error {
	if downloaded > ceiling {
		return &transfer.DownloadError{
			Kind:     transfer.KindTooLarge,
			Observed: downloaded,
			Limit:    ceiling,
		}
	}

	return nil
}
