package upload

import (
	"context"
	"errors"
)

// Identity is the account that performs the outbound upload.
type Identity int

const (
	// Primary is the bot account that receives commands.
	Primary Identity = iota
	// Elevated is an optional user account with higher upload limits.
	Elevated
)

func (i Identity) String() string {
	if i == Elevated {
		return "elevated"
	}

	return "primary"
}

// Document is a local file to be sent to a chat.
type Document struct {
	ChatID   int64
	Path     string
	Filename string
	Caption  string
}

// Uploader sends a document under one identity.
type Uploader interface {
	SendDocument(ctx context.Context, doc Document) error
}

// SelectUploader picks the elevated identity whenever one was configured at startup.
func SelectUploader(elevatedConfigured bool) Identity {
	if elevatedConfigured {
		return Elevated
	}

	return Primary
}

// Router holds the identity resolved once at startup.
type Router struct {
	identity Identity
	uploader Uploader
}

// NewRouter resolves the identity. elevated may be nil when no session was configured.
func NewRouter(primary, elevated Uploader) (*Router, error) {
	if primary == nil {
		return nil, errors.New("primary uploader is required")
	}

	identity := SelectUploader(elevated != nil)

	r := &Router{identity: identity, uploader: primary}
	if identity == Elevated {
		r.uploader = elevated
	}

	return r, nil
}

// Select returns the identity and its uploader.
func (r *Router) Select() (Identity, Uploader) {
	return r.identity, r.uploader
}
