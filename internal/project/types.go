// Package project defines the project and session snapshot model shared by the
// reconciliation engine, the lifecycle tracker, and the API client. Snapshots
// are produced by the project-listing API and by event-channel pushes; they are
// treated as immutable once received and are replaced, never mutated.
package project

import "strings"

// TempSessionPrefix is the prefix of client-assigned placeholder session IDs,
// used between "message sent" and the server confirming a real session ID.
const TempSessionPrefix = "new-session-"

// SessionSummary describes one coding session inside a project.
// The ID may be a temporary placeholder (see TempSessionPrefix) before the
// server assigns a real identifier.
type SessionSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// IsTemporary reports whether the session carries a client-assigned
// placeholder ID.
func (s SessionSummary) IsTemporary() bool {
	return IsTemporaryID(s.ID)
}

// IsTemporaryID reports whether the given session ID is a temporary
// placeholder.
func IsTemporaryID(id string) bool {
	return strings.HasPrefix(id, TempSessionPrefix)
}

// SessionMeta carries aggregate session information for a project.
type SessionMeta struct {
	Total int `json:"total"`
}

// Snapshot is one project as reported by the server: its identity, its
// sessions ordered most-recent-first, and aggregate metadata.
type Snapshot struct {
	Name        string           `json:"name"`
	DisplayName string           `json:"displayName"`
	FullPath    string           `json:"fullPath"`
	Sessions    []SessionSummary `json:"sessions"`
	SessionMeta SessionMeta      `json:"sessionMeta"`
}

// FindSession returns the session with the given ID, or nil if the project
// does not contain it.
func (p *Snapshot) FindSession(id string) *SessionSummary {
	if p == nil {
		return nil
	}
	for i := range p.Sessions {
		if p.Sessions[i].ID == id {
			return &p.Sessions[i]
		}
	}
	return nil
}

// MostRecentSession returns the first session in the snapshot (sessions are
// ordered most-recent-first), or nil if the project has none.
func (p *Snapshot) MostRecentSession() *SessionSummary {
	if p == nil || len(p.Sessions) == 0 {
		return nil
	}
	return &p.Sessions[0]
}

// WithoutSession returns a copy of the snapshot with the given session
// removed and the session count decremented, flooring at zero. The receiver
// is left untouched.
func (p *Snapshot) WithoutSession(id string) *Snapshot {
	out := *p
	out.Sessions = make([]SessionSummary, 0, len(p.Sessions))
	for _, s := range p.Sessions {
		if s.ID != id {
			out.Sessions = append(out.Sessions, s)
		}
	}
	if len(out.Sessions) < len(p.Sessions) && out.SessionMeta.Total > 0 {
		out.SessionMeta.Total--
	}
	return &out
}

// Label returns the project's human-readable name, falling back to the unique
// name when no display name is set.
func (p *Snapshot) Label() string {
	if p == nil {
		return ""
	}
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Name
}

// FindByName returns the snapshot with the given unique name from a list, or
// nil if absent.
func FindByName(projects []*Snapshot, name string) *Snapshot {
	for _, p := range projects {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Equal reports whether two snapshots carry identical data, including their
// full session lists and metadata. Used to preserve held object identity when
// a refresh returns unchanged data.
func (p *Snapshot) Equal(other *Snapshot) bool {
	if p == nil || other == nil {
		return p == other
	}
	if p.Name != other.Name ||
		p.DisplayName != other.DisplayName ||
		p.FullPath != other.FullPath ||
		p.SessionMeta != other.SessionMeta ||
		len(p.Sessions) != len(other.Sessions) {
		return false
	}
	for i := range p.Sessions {
		if p.Sessions[i] != other.Sessions[i] {
			return false
		}
	}
	return true
}
