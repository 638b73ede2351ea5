package userbot

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/gotd/td/session"
)

// StringStorage keeps an MTProto session in memory and exports it as a single string
// suitable for an environment variable.
type StringStorage struct {
	mu   sync.Mutex
	data []byte
}

var _ session.Storage = (*StringStorage)(nil)

// NewStringStorage decodes a string produced by Encode. An empty string yields an
// empty storage.
func NewStringStorage(encoded string) (*StringStorage, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return &StringStorage{}, nil
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid session string: %w", err)
	}

	return &StringStorage{data: data}, nil
}

func (s *StringStorage) LoadSession(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.data) == 0 {
		return nil, session.ErrNotFound
	}

	return append([]byte(nil), s.data...), nil
}

func (s *StringStorage) StoreSession(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = append([]byte(nil), data...)

	return nil
}

// Encode returns the current session as a string.
func (s *StringStorage) Encode() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return base64.StdEncoding.EncodeToString(s.data)
}
