package upload

import (
	"context"

	"github.com/italolelis/leechbot/internal/telemetry"
)

// InstrumentedUploader wraps an Uploader with telemetry.
type InstrumentedUploader struct {
	uploader  Uploader
	telemetry *telemetry.Telemetry
	identity  Identity
}

// NewInstrumentedUploader creates a new instrumented uploader.
func NewInstrumentedUploader(u Uploader, tel *telemetry.Telemetry, identity Identity) *InstrumentedUploader {
	return &InstrumentedUploader{
		uploader:  u,
		telemetry: tel,
		identity:  identity,
	}
}

// SendDocument sends the document with telemetry.
func (u *InstrumentedUploader) SendDocument(ctx context.Context, doc Document) error {
	return u.telemetry.InstrumentUpload(ctx, u.identity.String(), func(ctx context.Context) error {
		return u.uploader.SendDocument(ctx, doc)
	})
}
