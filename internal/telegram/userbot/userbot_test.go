package userbot_test

import (
	"context"
	"testing"
	"time"

	"github.com/gotd/td/session"
	"github.com/italolelis/leechbot/internal/telegram/userbot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringStorage_Empty(t *testing.T) {
	s, err := userbot.NewStringStorage("  ")
	require.NoError(t, err)

	_, err = s.LoadSession(context.Background())
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.Equal(t, "", s.Encode())
}

func TestStringStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src, err := userbot.NewStringStorage("")
	require.NoError(t, err)

	require.NoError(t, src.StoreSession(ctx, []byte(`{"Version":1,"Data":{"DC":2}}`)))

	dst, err := userbot.NewStringStorage(src.Encode())
	require.NoError(t, err)

	data, err := dst.LoadSession(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Version":1,"Data":{"DC":2}}`, string(data))
}

func TestStringStorage_Invalid(t *testing.T) {
	_, err := userbot.NewStringStorage("not base64 !!")
	assert.Error(t, err)
}

func TestStringStorage_LoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s, err := userbot.NewStringStorage("")
	require.NoError(t, err)
	require.NoError(t, s.StoreSession(ctx, []byte("abc")))

	data, err := s.LoadSession(ctx)
	require.NoError(t, err)
	data[0] = 'z'

	again, err := s.LoadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := userbot.New(userbot.Config{AppHash: "hash"})
	assert.Error(t, err)

	_, err = userbot.New(userbot.Config{AppID: 1})
	assert.Error(t, err)

	_, err = userbot.New(userbot.Config{AppID: 1, AppHash: "hash", SessionString: "%%%"})
	assert.Error(t, err)
}

func TestWaitReady_ContextDeadline(t *testing.T) {
	c, err := userbot.New(userbot.Config{AppID: 1, AppHash: "hash"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, c.WaitReady(ctx), context.DeadlineExceeded)
}
