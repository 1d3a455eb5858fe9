package render

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/davarch/build-notifier/internal/domain"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

const (
	noRelease     = "Release not available"
	noChanges     = "Nothing changed"
	noTests       = ":rollsafe: There were no tests"
	unknownValue  = "n/a"
	maxTestLines  = 4
	defaultCommit = "https://github.com/%s/commit/%s"
)

type Options struct {
	// DownloadBase is the server root used for artifact links, e.g. https://tc.example.com.
	DownloadBase        string
	OmitTestsIfPassed   bool
	OmitCommitsIfNone   bool
	ReleaseArtifact     string
	TestPackage         string
	TestReportArtifact  string
	DisplayIgnoredTests bool
	// CommitURL is a format string taking the VCS root name and the revision.
	CommitURL string
}

// Renderer builds a chat message for a finished build. Only a failure to
// load the build itself is an error; every other lookup degrades to a
// placeholder.
type Renderer struct {
	log  *zap.Logger
	tc   domain.BuildInspector
	opts Options
}

func New(log *zap.Logger, tc domain.BuildInspector, opts Options) *Renderer {
	if opts.CommitURL == "" {
		opts.CommitURL = defaultCommit
	}
	opts.DownloadBase = strings.TrimRight(opts.DownloadBase, "/")
	return &Renderer{log: log.Named("render"), tc: tc, opts: opts}
}

func (r *Renderer) Render(ctx context.Context, b domain.BuildSummary) (domain.Message, error) {
	d, err := r.tc.BuildDetail(ctx, b.ID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("build detail: %w", err)
	}
	if d.BuildTypeID == "" {
		d.BuildTypeID = b.BuildTypeID
	}

	fields := []domain.Field{
		{Title: "Duration", Value: r.duration(ctx, d), Short: true},
		{Title: "Agent", Value: r.agent(ctx, d), Short: true},
		{Title: "Status", Value: orUnknown(d.StatusText), Short: true},
		{Title: "Download", Value: r.releaseLink(ctx, d), Short: true},
	}

	if !r.opts.OmitTestsIfPassed || !d.Succeeded() {
		fields = append(fields, domain.Field{Title: "Tests", Value: firstLines(r.tests(ctx, d), maxTestLines)})
	}

	changes := r.commits(ctx, d)
	if !r.opts.OmitCommitsIfNone || changes != noChanges {
		fields = append(fields, domain.Field{Title: "Commits", Value: changes})
	}

	return domain.Message{
		BuildID:   b.ID,
		Pretext:   fmt.Sprintf("*%s* build results:", d.ProjectName),
		Color:     color(d),
		Title:     title(d),
		TitleLink: d.WebURL,
		Fields:    fields,
	}, nil
}

func color(d domain.BuildDetail) string {
	if d.Succeeded() {
		return "good"
	}
	return "danger"
}

func title(d domain.BuildDetail) string {
	verdict := "FAILED"
	if d.Succeeded() {
		verdict = "SUCCEEDED"
	}
	return fmt.Sprintf("Build %q #%s %s", d.BuildTypeName, d.Number, verdict)
}

func (r *Renderer) duration(ctx context.Context, d domain.BuildDetail) string {
	ms, err := r.tc.BuildDurationMillis(ctx, d.ID)
	if err != nil {
		r.log.Debug("duration unavailable", zap.Int64("id", int64(d.ID)), zap.Error(err))
		return unknownValue
	}
	return PrettyMillis(ms)
}

func (r *Renderer) agent(ctx context.Context, d domain.BuildDetail) string {
	emoji := ":linux:"
	if d.Agent.ID != 0 {
		name, err := r.tc.AgentOS(ctx, d.Agent.ID)
		if err != nil {
			r.log.Debug("agent os unavailable", zap.Int64("agent", d.Agent.ID), zap.Error(err))
		}
		name = strings.ToLower(name)
		switch {
		case strings.Contains(name, "mac"):
			emoji = ":osx:"
		case strings.Contains(name, "win"):
			emoji = ":windows:"
		}
	}
	return emoji + " " + orUnknown(d.Agent.Name)
}

func (r *Renderer) releaseLink(ctx context.Context, d domain.BuildDetail) string {
	if r.opts.ReleaseArtifact == "" {
		return noRelease
	}
	files, err := r.tc.Artifacts(ctx, d.ID)
	if err != nil {
		r.log.Debug("artifacts unavailable", zap.Int64("id", int64(d.ID)), zap.Error(err))
		return noRelease
	}
	for _, f := range files {
		if f.Name != r.opts.ReleaseArtifact {
			continue
		}
		size := uint64(0)
		if f.Size > 0 {
			size = uint64(f.Size)
		}
		return link(r.downloadURL(d, f.Name), fmt.Sprintf("%s (%s)", f.Name, humanize.Bytes(size)))
	}
	return noRelease
}

func (r *Renderer) downloadURL(d domain.BuildDetail, path string) string {
	return fmt.Sprintf("%s/repository/download/%s/%d:id/%s", r.opts.DownloadBase, d.BuildTypeID, d.ID, path)
}

func (r *Renderer) tests(ctx context.Context, d domain.BuildDetail) string {
	if d.TestCount == 0 {
		return noTests
	}
	tests, err := r.tc.TestOccurrences(ctx, d.ID)
	if err != nil {
		r.log.Debug("tests unavailable", zap.Int64("id", int64(d.ID)), zap.Error(err))
		return noTests
	}

	var failing []domain.TestOccurrence
	for _, t := range tests {
		if t.Status == "SUCCESS" {
			continue
		}
		if !r.opts.DisplayIgnoredTests && t.Status == "UNKNOWN" {
			continue
		}
		failing = append(failing, t)
	}
	if len(failing) == 0 {
		return fmt.Sprintf(":awesome: All %d tests passed!", len(tests))
	}

	lines := make([]string, 0, len(failing))
	for _, t := range failing {
		full, err := r.tc.TestOccurrence(ctx, t.ID)
		if err != nil {
			full = t
		}
		lines = append(lines, r.failedTestLink(d, full))
	}
	return strings.Join(lines, "\n")
}

var screenshotRe = regexp.MustCompile(`Screenshot: file:(?:.+)/tests/(.+)\.png`)

func (r *Renderer) failedTestLink(d domain.BuildDetail, t domain.TestOccurrence) string {
	emoji := ":goberserk:"
	if t.Ignored {
		emoji = ":okay:"
	}
	testLink := link(
		fmt.Sprintf("%s&tab=buildResultsDiv#testNameId%s", d.WebURL, t.TestID),
		fmt.Sprintf("%s `%s`", emoji, r.testName(t.Name)),
	)
	if t.Status != "FAILURE" || r.opts.TestReportArtifact == "" {
		return testLink
	}

	m := screenshotRe.FindStringSubmatch(t.Details)
	if m == nil {
		return testLink
	}
	shot := fmt.Sprintf("%s%%21/tests/%s.png", r.opts.TestReportArtifact, m[1])
	return testLink + " " + link(r.downloadURL(d, shot), ":frame_with_picture:")
}

func (r *Renderer) testName(name string) string {
	pkg := r.opts.TestPackage
	if pkg != "" && strings.HasPrefix(name, pkg) && len(name) > len(pkg) {
		return name[len(pkg)+1:]
	}
	return name
}

func (r *Renderer) commits(ctx context.Context, d domain.BuildDetail) string {
	var rev domain.Revision
	changes := d.Changes

	switch {
	case len(d.Revisions) > 0:
		rev = d.Revisions[0]
	case len(d.SnapshotDeps) > 0:
		dep, err := r.tc.BuildDetail(ctx, d.SnapshotDeps[0])
		if err != nil || len(dep.Revisions) == 0 {
			return noChanges
		}
		rev = dep.Revisions[0]
		changes = dep.Changes
	}
	if len(changes) == 0 {
		return noChanges
	}

	lines := make([]string, 0, len(changes))
	for _, c := range changes {
		msg, err := r.tc.ChangeComment(ctx, c.ID)
		if err != nil {
			r.log.Debug("change comment unavailable", zap.Int64("change", c.ID), zap.Error(err))
		}
		msg, _, _ = strings.Cut(msg, "\n")
		lines = append(lines, fmt.Sprintf("%s %s - _%s_", r.commitLink(rev, c.Version), msg, c.Username))
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) commitLink(rev domain.Revision, version string) string {
	short := version
	if len(short) > 8 {
		short = short[:8]
	}
	if rev.VCSRootName == "" {
		return "`" + short + "`"
	}
	return link(fmt.Sprintf(r.opts.CommitURL, rev.VCSRootName, version), "`"+short+"`")
}

func link(href, text string) string {
	return "<" + href + "|" + text + ">"
}

func firstLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return unknownValue
	}
	return s
}
