package botapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/italolelis/leechbot/internal/telegram/botapi"
	"github.com/italolelis/leechbot/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent       []tgbotapi.Chattable
	requested  []tgbotapi.Chattable
	sendErr    error
	requestErr error
	stopped    bool
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)

	return tgbotapi.Message{MessageID: 99}, f.sendErr
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requested = append(f.requested, c)

	return &tgbotapi.APIResponse{Ok: f.requestErr == nil}, f.requestErr
}

func (f *fakeSender) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeSender) StopReceivingUpdates() { f.stopped = true }

func TestClient_Reply(t *testing.T) {
	api := &fakeSender{}
	c := botapi.NewWithSender(api, "leech_bot")

	id, err := c.Reply(context.Background(), 42, 7, "Starting download…")
	require.NoError(t, err)
	assert.Equal(t, 99, id)

	require.Len(t, api.sent, 1)
	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, 7, msg.ReplyToMessageID)
	assert.Equal(t, "Starting download…", msg.Text)
}

func TestClient_Edit(t *testing.T) {
	api := &fakeSender{}
	c := botapi.NewWithSender(api, "leech_bot")

	require.NoError(t, c.Edit(context.Background(), 42, 99, "Upload complete ✅"))

	require.Len(t, api.requested, 1)
	edit, ok := api.requested[0].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), edit.ChatID)
	assert.Equal(t, 99, edit.MessageID)
	assert.Equal(t, "Upload complete ✅", edit.Text)
}

func TestClient_EditErrors(t *testing.T) {
	api := &fakeSender{requestErr: errors.New("Bad Request: message is not modified")}
	c := botapi.NewWithSender(api, "leech_bot")

	assert.NoError(t, c.Edit(context.Background(), 1, 2, "same"))

	api.requestErr = errors.New("Bad Request: message to edit not found")
	assert.Error(t, c.Edit(context.Background(), 1, 2, "gone"))
}

func TestClient_SendDocument(t *testing.T) {
	api := &fakeSender{}
	c := botapi.NewWithSender(api, "leech_bot")

	err := c.SendDocument(context.Background(), upload.Document{
		ChatID: 42, Path: "/tmp/job/z.bin", Filename: "z.bin", Caption: "Leech: z.bin (10 MB)",
	})
	require.NoError(t, err)

	require.Len(t, api.sent, 1)
	doc, ok := api.sent[0].(tgbotapi.DocumentConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), doc.ChatID)
	assert.Equal(t, "Leech: z.bin (10 MB)", doc.Caption)
	assert.Equal(t, tgbotapi.FilePath("/tmp/job/z.bin"), doc.File)
}

func TestClient_SendDocumentError(t *testing.T) {
	api := &fakeSender{sendErr: errors.New("Request Entity Too Large")}
	c := botapi.NewWithSender(api, "leech_bot")

	err := c.SendDocument(context.Background(), upload.Document{ChatID: 1, Path: "/tmp/x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Request Entity Too Large")
}

func TestClient_CanceledContext(t *testing.T) {
	api := &fakeSender{}
	c := botapi.NewWithSender(api, "leech_bot")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Reply(ctx, 1, 0, "x")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, api.sent)
}

func TestClient_Stop(t *testing.T) {
	api := &fakeSender{}
	c := botapi.NewWithSender(api, "leech_bot")

	c.Stop()
	assert.True(t, api.stopped)
}

func TestNew_SelfHostedEndpoint(t *testing.T) {
	var methods []string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Leech","username":"leech_bot"}}`))
	}))
	defer ts.Close()

	c, err := botapi.New("123:abc", ts.URL+"/bot%s/%s", ts.Client(), nil)
	require.NoError(t, err)

	assert.Equal(t, "leech_bot", c.Username())
	require.NotEmpty(t, methods)
	assert.True(t, strings.HasSuffix(methods[0], "/bot123:abc/getMe"))
}

func TestNew_InvalidToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	}))
	defer ts.Close()

	_, err := botapi.New("bad", ts.URL+"/bot%s/%s", ts.Client(), nil)
	assert.Error(t, err)
}
