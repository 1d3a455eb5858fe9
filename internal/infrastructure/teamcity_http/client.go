package teamcity_http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/davarch/build-notifier/internal/domain"
)

type Client struct {
	baseUrl  string
	user     string
	password string
	hc       *http.Client

	newBackOff func() backoff.BackOff
}

func New(scheme, host, user, password string, timeout time.Duration) *Client {
	tr := &http.Transport{
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
	}
	if scheme == "" {
		scheme = "https"
	}
	base := scheme + "://" + trimSlash(host)
	if strings.Contains(host, "://") {
		base = trimSlash(host)
	}

	return &Client{
		baseUrl:    base + "/app/rest",
		user:       user,
		password:   password,
		hc:         &http.Client{Transport: tr, Timeout: timeout},
		newBackOff: defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 300 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 5 * time.Second
	return bo
}

func (c *Client) ListFinishedBuilds(ctx context.Context, project string, limit int) ([]domain.BuildSummary, error) {
	q := url.Values{}
	q.Set("locator", fmt.Sprintf("project:(id:%s),state:finished,count:%d", project, limit))

	var list buildListDTO
	if err := c.getJSON(ctx, "/builds", q, &list); err != nil {
		return nil, err
	}

	out := make([]domain.BuildSummary, 0, len(list.Build))
	for _, b := range list.Build {
		out = append(out, b.summary())
	}
	return out, nil
}

func (c *Client) MostRecentFinishedBuild(ctx context.Context, project string, bt domain.BuildTypeID) (*domain.BuildSummary, error) {
	q := url.Values{}
	q.Set("locator", fmt.Sprintf("project:(id:%s),buildType:(id:%s),state:finished,count:1", project, bt))

	var list buildListDTO
	if err := c.getJSON(ctx, "/builds", q, &list); err != nil {
		return nil, err
	}
	if len(list.Build) == 0 {
		return nil, nil
	}
	b := list.Build[0].summary()
	return &b, nil
}

func (c *Client) ListBuildTypes(ctx context.Context, project string) ([]domain.BuildTypeID, error) {
	types, err := c.BuildTypes(ctx, project)
	if err != nil {
		return nil, err
	}

	out := make([]domain.BuildTypeID, 0, len(types))
	for _, bt := range types {
		out = append(out, domain.BuildTypeID(bt.ID))
	}
	return out, nil
}

// BuildTypes lists id and display name for every build type of project.
func (c *Client) BuildTypes(ctx context.Context, project string) ([]BuildType, error) {
	var p projectDTO
	if err := c.getJSON(ctx, "/projects/id:"+project, nil, &p); err != nil {
		return nil, err
	}
	if p.BuildTypes == nil {
		return nil, nil
	}
	return p.BuildTypes.BuildType, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseUrl + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.SetBasicAuth(c.user, c.password)
		req.Header.Set("Accept", "application/json")

		resp, err := c.hc.Do(req)
		if err != nil {
			return err
		}

		defer func() {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}()

		if resp.StatusCode == http.StatusTooManyRequests {
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if sec, _ := strconv.Atoi(ra); sec > 0 {
					select {
					case <-time.After(time.Duration(sec) * time.Second):
					case <-ctx.Done():
						return backoff.Permanent(ctx.Err())
					}
					return fmt.Errorf("retry after due to 429")
				}
			}

			return fmt.Errorf("teamcity 429")
		}

		if resp.StatusCode >= 500 {
			return fmt.Errorf("teamcity %s", resp.Status)
		}

		if resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("teamcity %s: %s", resp.Status, path))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode %s: %w", path, err))
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(c.newBackOff(), ctx)); err != nil {
		return &domain.FetchError{Op: "GET " + path, Err: err}
	}
	return nil
}

func mapStatus(s string) domain.BuildStatus {
	switch s {
	case "SUCCESS":
		return domain.StatusSuccess
	case "FAILURE":
		return domain.StatusFailure
	case "ERROR":
		return domain.StatusError
	default:
		return domain.StatusUnknown
	}
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
