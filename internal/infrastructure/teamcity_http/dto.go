package teamcity_http

import (
	"encoding/json"

	"github.com/davarch/build-notifier/internal/domain"
)

type buildListDTO struct {
	Count int        `json:"count"`
	Build []buildDTO `json:"build"`
}

type buildDTO struct {
	ID          int64  `json:"id"`
	BuildTypeID string `json:"buildTypeId"`
	Number      string `json:"number"`
	Status      string `json:"status"`
	State       string `json:"state"`
	StatusText  string `json:"statusText"`
	WebURL      string `json:"webUrl"`

	BuildType *BuildType `json:"buildType"`
	Agent     *struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"agent"`
	TestOccurrences *struct {
		Count int `json:"count"`
	} `json:"testOccurrences"`
	Revisions *struct {
		Revision []struct {
			Version         string `json:"version"`
			VCSRootInstance *struct {
				Name string `json:"name"`
			} `json:"vcs-root-instance"`
		} `json:"revision"`
	} `json:"revisions"`
	LastChanges *struct {
		Change []changeDTO `json:"change"`
	} `json:"lastChanges"`
	SnapshotDependencies *struct {
		Count int `json:"count"`
		Build []struct {
			ID int64 `json:"id"`
		} `json:"build"`
	} `json:"snapshot-dependencies"`
}

type BuildType struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ProjectName string `json:"projectName"`
}

type projectDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	BuildTypes *struct {
		Count     int         `json:"count"`
		BuildType []BuildType `json:"buildType"`
	} `json:"buildTypes"`
}

type changeDTO struct {
	ID       int64  `json:"id"`
	Version  string `json:"version"`
	Username string `json:"username"`
	Comment  string `json:"comment"`
}

type propertiesDTO struct {
	Property []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"property"`
}

func (p propertiesDTO) lookup(name string) (string, bool) {
	for _, pr := range p.Property {
		if pr.Name == name {
			return pr.Value, true
		}
	}
	return "", false
}

type agentDTO struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	Properties *propertiesDTO `json:"properties"`
}

type filesDTO struct {
	File []struct {
		Name string `json:"name"`
		Size int64  `json:"size"`
	} `json:"file"`
}

type testListDTO struct {
	Count          int       `json:"count"`
	TestOccurrence []testDTO `json:"testOccurrence"`
}

type testDTO struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Ignored bool   `json:"ignored"`
	Details string `json:"details"`
	Test    *struct {
		ID json.Number `json:"id"`
	} `json:"test"`
}

func (b buildDTO) summary() domain.BuildSummary {
	return domain.BuildSummary{
		ID:          domain.BuildID(b.ID),
		BuildTypeID: domain.BuildTypeID(b.BuildTypeID),
		Number:      b.Number,
		Status:      mapStatus(b.Status),
		State:       b.State,
		WebURL:      b.WebURL,
	}
}

func (b buildDTO) detail() domain.BuildDetail {
	d := domain.BuildDetail{
		BuildSummary: b.summary(),
		StatusText:   b.StatusText,
	}
	if b.BuildType != nil {
		d.BuildTypeName = b.BuildType.Name
		d.ProjectName = b.BuildType.ProjectName
	}
	if b.Agent != nil {
		d.Agent = domain.Agent{ID: b.Agent.ID, Name: b.Agent.Name}
	}
	if b.TestOccurrences != nil {
		d.TestCount = b.TestOccurrences.Count
	}
	if b.Revisions != nil {
		for _, r := range b.Revisions.Revision {
			rev := domain.Revision{Version: r.Version}
			if r.VCSRootInstance != nil {
				rev.VCSRootName = r.VCSRootInstance.Name
			}
			d.Revisions = append(d.Revisions, rev)
		}
	}
	if b.LastChanges != nil {
		for _, c := range b.LastChanges.Change {
			d.Changes = append(d.Changes, domain.Change{ID: c.ID, Version: c.Version, Username: c.Username})
		}
	}
	if b.SnapshotDependencies != nil {
		for _, dep := range b.SnapshotDependencies.Build {
			d.SnapshotDeps = append(d.SnapshotDeps, domain.BuildID(dep.ID))
		}
	}
	return d
}

func (t testDTO) occurrence() domain.TestOccurrence {
	o := domain.TestOccurrence{
		ID:      t.ID,
		Name:    t.Name,
		Status:  t.Status,
		Ignored: t.Ignored,
		Details: t.Details,
	}
	if t.Test != nil {
		o.TestID = t.Test.ID.String()
	}
	return o
}
