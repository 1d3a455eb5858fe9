package cache_fs

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"

	"github.com/davarch/build-notifier/internal/domain"
)

// FSCache writes the status document consumed by status bars. The file is
// replaced atomically so readers never see a partial document.
type FSCache struct {
	path string
}

func New(path string) *FSCache { return &FSCache{path: path} }

type watermarkEntry struct {
	BuildType string `json:"build_type"`
	BuildID   int64  `json:"build_id"`
}

type lastBuild struct {
	ID        int64  `json:"id"`
	BuildType string `json:"build_type"`
	Number    string `json:"number"`
	Status    string `json:"status"`
	URL       string `json:"url"`
}

type document struct {
	Project   string           `json:"project"`
	Watermark []watermarkEntry `json:"watermark"`
	LastBuild *lastBuild       `json:"last_build,omitempty"`
	Retrieved int64            `json:"retrieved"`
}

func (c *FSCache) Write(_ context.Context, s domain.Status) error {
	if c.path == "" {
		return errors.New("cache path is empty")
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}

	b, err := json.MarshalIndent(toDocument(s), "", "  ")
	if err != nil {
		return err
	}

	tmp := c.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(b, '\n')); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}

	return os.Rename(tmp, c.path)
}

func toDocument(s domain.Status) document {
	doc := document{
		Project:   s.Project,
		Watermark: make([]watermarkEntry, 0, len(s.Watermark)),
		Retrieved: s.Retrieved,
	}
	for t, id := range s.Watermark {
		doc.Watermark = append(doc.Watermark, watermarkEntry{BuildType: string(t), BuildID: int64(id)})
	}
	sort.Slice(doc.Watermark, func(i, j int) bool {
		return doc.Watermark[i].BuildType < doc.Watermark[j].BuildType
	})

	if b := s.LastBuild; b != nil {
		doc.LastBuild = &lastBuild{
			ID:        int64(b.ID),
			BuildType: string(b.BuildTypeID),
			Number:    b.Number,
			Status:    string(b.Status),
			URL:       b.WebURL,
		}
	}
	return doc
}
