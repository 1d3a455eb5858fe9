package cli

import (
	"fmt"
	"strings"

	"github.com/davarch/build-notifier/internal/application"
	"github.com/davarch/build-notifier/internal/domain"
	"github.com/davarch/build-notifier/internal/infrastructure/cache_fs"
	"github.com/davarch/build-notifier/internal/infrastructure/config"
	"github.com/davarch/build-notifier/internal/infrastructure/notify_libnotify"
	"github.com/davarch/build-notifier/internal/infrastructure/render"
	"github.com/davarch/build-notifier/internal/infrastructure/slack_chat"
	"github.com/davarch/build-notifier/internal/infrastructure/teamcity_http"
	"github.com/davarch/build-notifier/internal/infrastructure/telegram_chat"
	"go.uber.org/zap"
)

func newTeamCity(cfg config.Config) *teamcity_http.Client {
	tc := cfg.TeamCity
	return teamcity_http.New(tc.Scheme, tc.Host, tc.User, tc.Password, tc.Timeout)
}

func newSink(cfg config.Config) (domain.Sink, error) {
	n := cfg.Notify
	switch n.Sink {
	case config.SinkSlack:
		return slack_chat.New(n.Slack.Token, n.Slack.APIURL, cfg.TeamCity.Timeout)
	case config.SinkTelegram:
		return telegram_chat.New(n.Telegram.Token, n.Telegram.APIURL, cfg.TeamCity.Timeout)
	case config.SinkDesktop:
		return notify_libnotify.NewSoft(), nil
	}
	return nil, fmt.Errorf("unknown sink %q", n.Sink)
}

func newRenderer(log *zap.Logger, cfg config.Config, tc domain.BuildInspector) *render.Renderer {
	r := cfg.Render
	return render.New(log, tc, render.Options{
		DownloadBase:        downloadBase(cfg),
		OmitTestsIfPassed:   r.OmitTestsIfPassed,
		OmitCommitsIfNone:   r.OmitCommitsIfNone,
		ReleaseArtifact:     r.ReleaseArtifact,
		TestPackage:         r.TestPackage,
		TestReportArtifact:  r.TestReportArtifact,
		DisplayIgnoredTests: r.DisplayIgnoredTests,
		CommitURL:           r.CommitURL,
	})
}

func downloadBase(cfg config.Config) string {
	if strings.Contains(cfg.TeamCity.Host, "://") {
		return cfg.TeamCity.Host
	}
	return cfg.TeamCity.Scheme + "://" + cfg.TeamCity.Host
}

// newUseCase wires the engine. sink may be nil for dry runs.
func newUseCase(log *zap.Logger, cfg config.Config, tc *teamcity_http.Client, sink domain.Sink) *application.PollUseCase {
	var cache domain.StatusCache
	if cfg.Cache.Path != "" {
		cache = cache_fs.New(cfg.Cache.Path)
	}
	if sink != nil {
		sink = application.NewThrottledSink(sink, cfg.Notify.RatePerSec)
	}

	return application.NewPollUseCase(log, tc, newRenderer(log, cfg, tc), sink, cache, application.PollConfig{
		Project:   cfg.TeamCity.Project,
		Lookback:  cfg.Poll.Lookback,
		Whitelist: cfg.BuildTypeIDs(),
		Dispatch: application.DispatcherOptions{
			Channel:     cfg.Notify.Channel,
			Concurrency: cfg.Notify.Concurrency,
			Retry: application.RetryConfig{
				Initial:     cfg.Notify.Retry.Initial,
				Max:         cfg.Notify.Retry.Max,
				MaxAttempts: cfg.Notify.Retry.MaxAttempts,
			},
		},
	})
}
