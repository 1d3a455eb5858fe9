package notify_libnotify

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/davarch/build-notifier/internal/domain"
	"github.com/davarch/build-notifier/internal/infrastructure/render"
)

// Notifier is a desktop sink built on notify-send. The channel argument of
// Send is ignored.
type Notifier struct {
	soft bool
	opt  Options
	run  func(ctx context.Context, name string, args ...string) error
}

func New() *Notifier     { return &Notifier{soft: false, run: execRun} }
func NewSoft() *Notifier { return &Notifier{soft: true, run: execRun} }

type Options struct {
	Urgency string
	Expire  time.Duration
}

// WithOptions sets the urgency and expiry used for every notification.
// Failed builds are always sent as critical.
func (n *Notifier) WithOptions(opt Options) *Notifier {
	n.opt = opt
	return n
}

func execRun(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

func (n *Notifier) Send(ctx context.Context, _ string, m domain.Message) error {
	opt := n.opt
	if m.Color == "danger" {
		opt.Urgency = "critical"
	}
	return n.NotifyWith(ctx, render.Flatten(m.Title), render.Body(m), m.TitleLink, opt)
}

func (n *Notifier) NotifyWith(ctx context.Context, title, body, url string, opt Options) error {
	body = strings.TrimRight(body, "\n")
	if strings.TrimSpace(url) != "" {
		if body == "" {
			body = url
		} else {
			body = body + "\n" + url
		}
	}

	args := []string{"--app-name=build-notifier"}
	if opt.Urgency != "" {
		args = append(args, "--urgency="+opt.Urgency)
	}
	if opt.Expire > 0 {
		ms := strconv.Itoa(int(opt.Expire / time.Millisecond))
		args = append(args, "--expire-time="+ms)
	}
	args = append(args, title, body)

	if err := n.run(ctx, "notify-send", args...); err != nil {
		if n.soft {
			return nil
		}
		return err
	}

	return nil
}
