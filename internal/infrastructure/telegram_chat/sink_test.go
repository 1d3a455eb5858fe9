package telegram_chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/davarch/build-notifier/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func TestRecipient(t *testing.T) {
	r, err := recipient("-1001234")
	require.NoError(t, err)
	assert.Equal(t, tele.ChatID(-1001234), r)

	r, err = recipient("builds")
	require.NoError(t, err)
	assert.Equal(t, "@builds", r.Recipient())

	r, err = recipient("@builds")
	require.NoError(t, err)
	assert.Equal(t, "@builds", r.Recipient())

	_, err = recipient(" ")
	assert.Error(t, err)
}

func TestSend_PostsPlainText(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot123:abc/sendMessage", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":-1001234,"type":"channel"},"text":"x"}}`))
	}))
	t.Cleanup(srv.Close)

	s, err := New("123:abc", srv.URL, time.Second)
	require.NoError(t, err)

	err = s.Send(context.Background(), "-1001234", domain.Message{
		Title:  `Build "Build" #8 SUCCEEDED`,
		Fields: []domain.Field{{Title: "Download", Value: "<https://tc/a.zip|a.zip>"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "-1001234", fmt.Sprint(body["chat_id"]))
	assert.Equal(t, "Build \"Build\" #8 SUCCEEDED\nDownload: a.zip (https://tc/a.zip)\n", body["text"])
}

func TestSend_CancelledContext(t *testing.T) {
	s, err := New("123:abc", "http://127.0.0.1:1", time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Send(ctx, "1", domain.Message{}), context.Canceled)
}
