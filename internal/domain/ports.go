package domain

import "context"

type BuildSource interface {
	ListFinishedBuilds(ctx context.Context, project string, limit int) ([]BuildSummary, error)
	// MostRecentFinishedBuild returns nil when the build type has no finished builds.
	MostRecentFinishedBuild(ctx context.Context, project string, buildType BuildTypeID) (*BuildSummary, error)
	ListBuildTypes(ctx context.Context, project string) ([]BuildTypeID, error)
}

// BuildInspector serves the enrichment queries used while rendering.
type BuildInspector interface {
	BuildDetail(ctx context.Context, id BuildID) (BuildDetail, error)
	BuildDurationMillis(ctx context.Context, id BuildID) (int64, error)
	AgentOS(ctx context.Context, agentID int64) (string, error)
	Artifacts(ctx context.Context, id BuildID) ([]Artifact, error)
	TestOccurrences(ctx context.Context, id BuildID) ([]TestOccurrence, error)
	TestOccurrence(ctx context.Context, occurrenceID string) (TestOccurrence, error)
	ChangeComment(ctx context.Context, changeID int64) (string, error)
}

type Renderer interface {
	Render(ctx context.Context, b BuildSummary) (Message, error)
}

type Sink interface {
	Send(ctx context.Context, channel string, m Message) error
}

type StatusCache interface {
	Write(ctx context.Context, s Status) error
}
