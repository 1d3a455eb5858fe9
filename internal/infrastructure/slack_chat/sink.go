package slack_chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/davarch/build-notifier/internal/domain"
	"github.com/slack-go/slack"
)

// Sink posts build messages as Slack attachments.
type Sink struct {
	api *slack.Client
}

// New builds a Slack sink. apiURL is optional and must end with a slash
// when set.
func New(token, apiURL string, timeout time.Duration) (*Sink, error) {
	if token == "" {
		return nil, errors.New("slack token is empty")
	}

	opts := []slack.Option{slack.OptionHTTPClient(&http.Client{Timeout: timeout})}
	if apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(apiURL))
	}
	return &Sink{api: slack.New(token, opts...)}, nil
}

func (s *Sink) Send(ctx context.Context, channel string, m domain.Message) error {
	_, _, err := s.api.PostMessageContext(ctx, channel, slack.MsgOptionAttachments(attachment(m)))
	if err != nil {
		var rl *slack.RateLimitedError
		if errors.As(err, &rl) {
			return fmt.Errorf("slack rate limited, retry after %s: %w", rl.RetryAfter, err)
		}
		return fmt.Errorf("slack post: %w", err)
	}
	return nil
}

func attachment(m domain.Message) slack.Attachment {
	fields := make([]slack.AttachmentField, 0, len(m.Fields))
	for _, f := range m.Fields {
		fields = append(fields, slack.AttachmentField{Title: f.Title, Value: f.Value, Short: f.Short})
	}
	return slack.Attachment{
		Fallback:   m.Title,
		Color:      m.Color,
		Pretext:    m.Pretext,
		Title:      m.Title,
		TitleLink:  m.TitleLink,
		Fields:     fields,
		MarkdownIn: []string{"pretext", "fields"},
	}
}
