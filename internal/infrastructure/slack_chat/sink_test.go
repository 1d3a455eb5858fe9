package slack_chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/davarch/build-notifier/internal/domain"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_PostsAttachment(t *testing.T) {
	var got []slack.Attachment
	var channel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat.postMessage", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		channel = r.PostForm.Get("channel")
		assert.NoError(t, json.Unmarshal([]byte(r.PostForm.Get("attachments")), &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"channel":"C1","ts":"1"}`))
	}))
	t.Cleanup(srv.Close)

	s, err := New("xoxb-test", srv.URL+"/", time.Second)
	require.NoError(t, err)

	err = s.Send(context.Background(), "#ci", domain.Message{
		Pretext:   "*Web* build results:",
		Color:     "good",
		Title:     `Build "Build" #8 SUCCEEDED`,
		TitleLink: "https://tc/42",
		Fields:    []domain.Field{{Title: "Duration", Value: "1m", Short: true}},
	})

	require.NoError(t, err)
	assert.Equal(t, "#ci", channel)
	require.Len(t, got, 1)
	assert.Equal(t, "good", got[0].Color)
	assert.Equal(t, "https://tc/42", got[0].TitleLink)
	assert.Equal(t, []slack.AttachmentField{{Title: "Duration", Value: "1m", Short: true}}, got[0].Fields)
	assert.Equal(t, []string{"pretext", "fields"}, got[0].MarkdownIn)
}

func TestSend_APIErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	t.Cleanup(srv.Close)

	s, err := New("xoxb-test", srv.URL+"/", time.Second)
	require.NoError(t, err)

	err = s.Send(context.Background(), "#nope", domain.Message{Title: "t"})

	assert.ErrorContains(t, err, "channel_not_found")
}

func TestNew_RequiresToken(t *testing.T) {
	_, err := New("", "", time.Second)
	assert.Error(t, err)
}
