package domain

// BuildDetail carries everything the renderer needs beyond BuildSummary.
type BuildDetail struct {
	BuildSummary

	StatusText    string
	BuildTypeName string
	ProjectName   string

	Agent        Agent
	TestCount    int
	Revisions    []Revision
	Changes      []Change
	SnapshotDeps []BuildID
}

type Agent struct {
	ID   int64
	Name string
}

type Revision struct {
	Version     string
	VCSRootName string
}

type Change struct {
	ID       int64
	Version  string
	Username string
}

type TestOccurrence struct {
	ID      string
	TestID  string
	Name    string
	Status  string
	Ignored bool
	Details string
}

type Artifact struct {
	Name string
	Size int64
}
