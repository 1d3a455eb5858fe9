package teamcity_http

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/davarch/build-notifier/internal/domain"
)

const (
	durationProperty = "BuildDuration"
	agentOSProperty  = "teamcity.agent.jvm.os.name"
)

func (c *Client) BuildDetail(ctx context.Context, id domain.BuildID) (domain.BuildDetail, error) {
	var b buildDTO
	if err := c.getJSON(ctx, fmt.Sprintf("/builds/id:%d", id), nil, &b); err != nil {
		return domain.BuildDetail{}, err
	}
	return b.detail(), nil
}

func (c *Client) BuildDurationMillis(ctx context.Context, id domain.BuildID) (int64, error) {
	var stats propertiesDTO
	if err := c.getJSON(ctx, fmt.Sprintf("/builds/id:%d/statistics", id), nil, &stats); err != nil {
		return 0, err
	}
	v, ok := stats.lookup(durationProperty)
	if !ok {
		return 0, fmt.Errorf("%s missing: %w", durationProperty, domain.ErrDataShape)
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s=%q: %w", durationProperty, v, domain.ErrDataShape)
	}
	return ms, nil
}

func (c *Client) AgentOS(ctx context.Context, agentID int64) (string, error) {
	var a agentDTO
	if err := c.getJSON(ctx, fmt.Sprintf("/agents/id:%d", agentID), nil, &a); err != nil {
		return "", err
	}
	if a.Properties == nil {
		return "", fmt.Errorf("agent properties missing: %w", domain.ErrDataShape)
	}
	name, ok := a.Properties.lookup(agentOSProperty)
	if !ok {
		return "", fmt.Errorf("%s missing: %w", agentOSProperty, domain.ErrDataShape)
	}
	return name, nil
}

func (c *Client) Artifacts(ctx context.Context, id domain.BuildID) ([]domain.Artifact, error) {
	var files filesDTO
	if err := c.getJSON(ctx, fmt.Sprintf("/builds/id:%d/artifacts/children/", id), nil, &files); err != nil {
		return nil, err
	}
	out := make([]domain.Artifact, 0, len(files.File))
	for _, f := range files.File {
		out = append(out, domain.Artifact{Name: f.Name, Size: f.Size})
	}
	return out, nil
}

func (c *Client) TestOccurrences(ctx context.Context, id domain.BuildID) ([]domain.TestOccurrence, error) {
	q := url.Values{}
	q.Set("locator", fmt.Sprintf("build:(id:%d),count:10000", id))

	var list testListDTO
	if err := c.getJSON(ctx, "/testOccurrences", q, &list); err != nil {
		return nil, err
	}
	out := make([]domain.TestOccurrence, 0, len(list.TestOccurrence))
	for _, t := range list.TestOccurrence {
		out = append(out, t.occurrence())
	}
	return out, nil
}

func (c *Client) TestOccurrence(ctx context.Context, occurrenceID string) (domain.TestOccurrence, error) {
	var t testDTO
	if err := c.getJSON(ctx, "/testOccurrences/"+occurrenceID, nil, &t); err != nil {
		return domain.TestOccurrence{}, err
	}
	return t.occurrence(), nil
}

func (c *Client) ChangeComment(ctx context.Context, changeID int64) (string, error) {
	var ch changeDTO
	if err := c.getJSON(ctx, fmt.Sprintf("/changes/id:%d", changeID), nil, &ch); err != nil {
		return "", err
	}
	return ch.Comment, nil
}
