package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/davarch/build-notifier/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	SinkSlack    = "slack"
	SinkTelegram = "telegram"
	SinkDesktop  = "desktop"
)

type Retry struct {
	Initial     time.Duration `yaml:"initial"`
	Max         time.Duration `yaml:"max"`
	MaxAttempts int           `yaml:"max_attempts"`
}

type Chat struct {
	Token  string `yaml:"token"`
	APIURL string `yaml:"api_url,omitempty"`
}

type Config struct {
	TeamCity struct {
		Scheme   string        `yaml:"scheme"`
		Host     string        `yaml:"host"`
		User     string        `yaml:"user"`
		Password string        `yaml:"password"`
		Project  string        `yaml:"project"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"teamcity"`

	Poll struct {
		Interval  time.Duration `yaml:"interval"`
		Lookback  int           `yaml:"lookback"`
		PauseFile string        `yaml:"pause_file"`
		Whitelist []string      `yaml:"whitelist"`
	} `yaml:"poll"`

	Notify struct {
		Sink        string  `yaml:"sink"`
		Channel     string  `yaml:"channel"`
		Slack       Chat    `yaml:"slack"`
		Telegram    Chat    `yaml:"telegram"`
		RatePerSec  float64 `yaml:"rate_per_sec"`
		Concurrency int     `yaml:"concurrency"`
		Retry       Retry   `yaml:"retry"`
	} `yaml:"notify"`

	Render struct {
		OmitTestsIfPassed   bool   `yaml:"omit_tests_if_passed"`
		OmitCommitsIfNone   bool   `yaml:"omit_commits_if_none"`
		ReleaseArtifact     string `yaml:"release_artifact"`
		TestPackage         string `yaml:"test_package"`
		TestReportArtifact  string `yaml:"test_report_artifact"`
		DisplayIgnoredTests bool   `yaml:"display_ignored_tests"`
		CommitURL           string `yaml:"commit_url"`
	} `yaml:"render"`

	Cache struct {
		Path string `yaml:"path"`
	} `yaml:"cache"`

	Metrics struct {
		Listen string `yaml:"listen"`
	} `yaml:"metrics"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func defaults() Config {
	var c Config
	c.TeamCity.Scheme = "https"
	c.TeamCity.Timeout = 10 * time.Second
	c.Poll.Interval = 10 * time.Second
	c.Poll.Lookback = 10
	c.Notify.Sink = SinkSlack
	c.Notify.RatePerSec = 1
	c.Notify.Retry.Max = 5 * time.Minute
	c.Render.DisplayIgnoredTests = true
	c.Render.CommitURL = "https://github.com/%s/commit/%s"
	c.Cache.Path = "~/.cache/build_notifier.json"
	c.Log.Level = "info"
	return c
}

// Load reads path (a missing file is fine), applies env overrides and
// validates the result. The returned Config is usable for editing even when
// validation fails.
func Load(path string) (Config, error) {
	c, err := LoadFile(path)
	if err != nil {
		return c, err
	}

	applyEnv(&c)
	normalize(&c)

	return c, c.Validate()
}

// LoadFile reads only the YAML file over the defaults, without env overrides
// or validation. Commands that edit and Save the file start from it so env
// secrets never end up on disk.
func LoadFile(path string) (Config, error) {
	c := defaults()
	if path == "" {
		return c, nil
	}

	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, fmt.Errorf("parse %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return c, err
	}
	return c, nil
}

func applyEnv(c *Config) {
	setString(&c.TeamCity.Host, "TC_HOST")
	setString(&c.TeamCity.User, "TC_USER")
	setString(&c.TeamCity.Password, "TC_PASSWORD")
	setString(&c.TeamCity.Project, "TC_PROJECT")
	setDuration(&c.TeamCity.Timeout, "TC_TIMEOUT")

	setString(&c.Notify.Slack.Token, "SLACK_TOKEN")
	setString(&c.Notify.Channel, "SLACK_CHANNEL")
	setString(&c.Notify.Telegram.Token, "TELEGRAM_TOKEN")
	setString(&c.Notify.Sink, "NOTIFY_SINK")

	if s := os.Getenv("BUILD_WHITELIST"); s != "" {
		c.Poll.Whitelist = splitList(s)
	}
	setDuration(&c.Poll.Interval, "INTERVAL")
	if v := os.Getenv("LOOKBACK"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Poll.Lookback = n
		}
	}

	setBool(&c.Render.OmitTestsIfPassed, "OMIT_TESTS_IF_PASSED")
	setBool(&c.Render.OmitCommitsIfNone, "OMIT_COMMITS_IF_NONE")
	setString(&c.Render.ReleaseArtifact, "RELEASE_ARTIFACT")
	setString(&c.Render.TestPackage, "TEST_PACKAGE")
	setString(&c.Render.TestReportArtifact, "TEST_REPORT_ARTIFACT")
	setBool(&c.Render.DisplayIgnoredTests, "DISPLAY_IGNORED_TESTS")

	setString(&c.Cache.Path, "CACHE_PATH")
	setString(&c.Metrics.Listen, "METRICS_LISTEN")
	setString(&c.Log.Level, "LOG_LEVEL")
}

func normalize(c *Config) {
	c.Cache.Path = expandHome(c.Cache.Path)
	c.Notify.Sink = strings.ToLower(strings.TrimSpace(c.Notify.Sink))

	if c.TeamCity.Scheme == "" {
		c.TeamCity.Scheme = "https"
	}
	if c.TeamCity.Timeout <= 0 {
		c.TeamCity.Timeout = 10 * time.Second
	}
	if c.Poll.Interval <= 0 {
		c.Poll.Interval = 10 * time.Second
	}
	if c.Poll.Lookback <= 0 {
		c.Poll.Lookback = 10
	}
	if c.Poll.PauseFile == "" {
		c.Poll.PauseFile = "~/.cache/build_notifier_paused"
	}
	c.Poll.PauseFile = expandHome(c.Poll.PauseFile)
}

func (c Config) Validate() error {
	var errs []error
	if c.TeamCity.Host == "" {
		errs = append(errs, errors.New("TC_HOST is required"))
	}
	if c.TeamCity.Project == "" {
		errs = append(errs, errors.New("TC_PROJECT is required"))
	} else if !locatorSafe(c.TeamCity.Project) {
		errs = append(errs, fmt.Errorf("TC_PROJECT %q must not contain %q", c.TeamCity.Project, locatorReserved))
	}
	for _, bt := range c.Poll.Whitelist {
		if err := ValidateBuildType(bt); err != nil {
			errs = append(errs, err)
		}
	}
	if c.TeamCity.User == "" || c.TeamCity.Password == "" {
		errs = append(errs, errors.New("TC_USER and TC_PASSWORD are required"))
	}

	switch c.Notify.Sink {
	case SinkSlack:
		if c.Notify.Slack.Token == "" {
			errs = append(errs, errors.New("SLACK_TOKEN is required for the slack sink"))
		}
		if c.Notify.Channel == "" {
			errs = append(errs, errors.New("SLACK_CHANNEL is required for the slack sink"))
		}
	case SinkTelegram:
		if c.Notify.Telegram.Token == "" {
			errs = append(errs, errors.New("TELEGRAM_TOKEN is required for the telegram sink"))
		}
		if c.Notify.Channel == "" {
			errs = append(errs, errors.New("notify.channel is required for the telegram sink"))
		}
	case SinkDesktop:
	default:
		errs = append(errs, fmt.Errorf("unknown sink %q", c.Notify.Sink))
	}

	return errors.Join(errs...)
}

// locatorReserved are the characters TeamCity locators use as syntax.
const locatorReserved = ",()"

func locatorSafe(s string) bool {
	return !strings.ContainsAny(s, locatorReserved)
}

// ValidateBuildType rejects whitelist entries that would break the build
// locator they are placed in.
func ValidateBuildType(name string) error {
	if !locatorSafe(name) {
		return fmt.Errorf("whitelist entry %q must not contain %q", name, locatorReserved)
	}
	return nil
}

// BuildTypeIDs resolves the whitelist to full build type ids. Short names
// get the "{project}_" prefix.
func (c Config) BuildTypeIDs() domain.Whitelist {
	ids := make([]domain.BuildTypeID, 0, len(c.Poll.Whitelist))
	for _, name := range c.Poll.Whitelist {
		ids = append(ids, BuildTypeID(c.TeamCity.Project, name))
	}
	return domain.NewWhitelist(ids...)
}

func BuildTypeID(project, name string) domain.BuildTypeID {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	prefix := project + "_"
	if project == "" || strings.HasPrefix(name, prefix) {
		return domain.BuildTypeID(name)
	}
	return domain.BuildTypeID(prefix + name)
}

// ShortName strips the "{project}_" prefix.
func ShortName(project string, id domain.BuildTypeID) string {
	return strings.TrimPrefix(string(id), project+"_")
}

func Save(path string, c Config) error {
	if path == "" {
		return errors.New("empty config path")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	lockFile := path + ".lock"
	lf, err := os.OpenFile(lockFile, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return err
	}
	defer func() { _ = lf.Close() }()

	if runtime.GOOS != "windows" {
		if err := syscall.Flock(int(lf.Fd()), syscall.LOCK_EX); err != nil {
			return err
		}
		defer func() { _ = syscall.Flock(int(lf.Fd()), syscall.LOCK_UN) }()
	}

	b, err := yaml.Marshal(&c)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}

	defer func() { _ = f.Close() }()

	if _, err := f.Write(b); err != nil {
		return err
	}

	if err := f.Sync(); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") {
		if h, _ := os.UserHomeDir(); h != "" {
			return h + p[1:]
		}
	}
	return p
}
