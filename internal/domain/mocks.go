package domain

import (
	"context"
	"strconv"
	"sync"
)

type MockSource struct {
	mu sync.Mutex

	Builds     []BuildSummary
	Latest     map[BuildTypeID]BuildSummary
	Types      []BuildTypeID
	Err        error
	LatestErr  error
	TypesErr   error
	ListCalled int
	LastCalled int
	TypeCalled int
}

func (m *MockSource) SetBuilds(b []BuildSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Builds = b
}

func (m *MockSource) ListFinishedBuilds(ctx context.Context, project string, limit int) ([]BuildSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListCalled++
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]BuildSummary, len(m.Builds))
	copy(out, m.Builds)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockSource) MostRecentFinishedBuild(ctx context.Context, project string, bt BuildTypeID) (*BuildSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastCalled++
	if m.LatestErr != nil {
		return nil, m.LatestErr
	}
	b, ok := m.Latest[bt]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *MockSource) ListBuildTypes(ctx context.Context, project string) ([]BuildTypeID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TypeCalled++
	if m.TypesErr != nil {
		return nil, m.TypesErr
	}
	return m.Types, nil
}

func (m *MockSource) Calls() (list, latest, types int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ListCalled, m.LastCalled, m.TypeCalled
}

type MockRenderer struct {
	Err error
}

func (r *MockRenderer) Render(ctx context.Context, b BuildSummary) (Message, error) {
	if r.Err != nil {
		return Message{}, r.Err
	}
	return Message{
		BuildID: b.ID,
		Title:   string(b.BuildTypeID) + " #" + strconv.FormatInt(int64(b.ID), 10),
	}, nil
}

// MockSink records delivered build IDs. Fail makes specific builds fail,
// Block holds every Send until it is closed.
type MockSink struct {
	mu sync.Mutex

	Sent  []BuildID
	Fail  map[BuildID]error
	Panic map[BuildID]bool
	Block chan struct{}
	// Started receives the build ID when a Send begins, if non-nil.
	Started chan BuildID
}

func (s *MockSink) Send(ctx context.Context, channel string, m Message) error {
	if s.Started != nil {
		s.Started <- m.BuildID
	}
	if s.Block != nil {
		<-s.Block
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Panic[m.BuildID] {
		panic("sink exploded")
	}
	if err := s.Fail[m.BuildID]; err != nil {
		return err
	}
	s.Sent = append(s.Sent, m.BuildID)
	return nil
}

func (s *MockSink) SetFail(id BuildID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail == nil {
		s.Fail = map[BuildID]error{}
	}
	if err == nil {
		delete(s.Fail, id)
		return
	}
	s.Fail[id] = err
}

func (s *MockSink) Delivered() []BuildID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]BuildID, len(s.Sent))
	copy(out, s.Sent)
	return out
}

type MockCache struct {
	mu       sync.Mutex
	Statuses []Status
	Err      error
}

func (c *MockCache) Write(ctx context.Context, s Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.Statuses = append(c.Statuses, s)
	return nil
}
