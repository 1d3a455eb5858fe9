package domain

import "strings"

type BuildTypeID string

type BuildID int64

type BuildStatus string

const (
	StatusSuccess BuildStatus = "SUCCESS"
	StatusFailure BuildStatus = "FAILURE"
	StatusError   BuildStatus = "ERROR"
	StatusUnknown BuildStatus = "UNKNOWN"
)

// BuildSummary is one finished build as listed by the build server.
type BuildSummary struct {
	ID          BuildID
	BuildTypeID BuildTypeID
	Number      string
	Status      BuildStatus
	State       string
	WebURL      string
}

func (b BuildSummary) Succeeded() bool { return b.Status == StatusSuccess }

// Whitelist restricts the tracked build types. An empty whitelist tracks all of them.
type Whitelist map[BuildTypeID]struct{}

func NewWhitelist(ids ...BuildTypeID) Whitelist {
	wl := make(Whitelist, len(ids))
	for _, id := range ids {
		id = BuildTypeID(strings.TrimSpace(string(id)))
		if id == "" {
			continue
		}
		wl[id] = struct{}{}
	}
	return wl
}

func (wl Whitelist) Empty() bool { return len(wl) == 0 }

func (wl Whitelist) Allows(t BuildTypeID) bool {
	if len(wl) == 0 {
		return true
	}
	_, ok := wl[t]
	return ok
}

func (wl Whitelist) IDs() []BuildTypeID {
	out := make([]BuildTypeID, 0, len(wl))
	for id := range wl {
		out = append(out, id)
	}
	return out
}

// Status is the document written to the status file after every cycle.
type Status struct {
	Project   string
	Watermark map[BuildTypeID]BuildID
	LastBuild *BuildSummary
	Retrieved int64
}
