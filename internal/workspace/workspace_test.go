package workspace

import (
	"context"
	"strings"
	"testing"

	"github.com/Iron-Ham/cockpit/internal/errors"
	"github.com/Iron-Ham/cockpit/internal/event"
	"github.com/Iron-Ham/cockpit/internal/lifecycle"
	"github.com/Iron-Ham/cockpit/internal/project"
)

type fakeLister struct {
	result []*project.Snapshot
	err    error
}

func (f *fakeLister) Projects(context.Context) ([]*project.Snapshot, error) {
	return f.result, f.err
}

func snapshot(name string, sessions ...project.SessionSummary) *project.Snapshot {
	return &project.Snapshot{
		Name:        name,
		DisplayName: name,
		FullPath:    "/work/" + name,
		Sessions:    sessions,
		SessionMeta: project.SessionMeta{Total: len(sessions)},
	}
}

func session(id, title string) project.SessionSummary {
	return project.SessionSummary{ID: id, Title: title, CreatedAt: "t0", UpdatedAt: "t1"}
}

func newTestWorkspace(lister ProjectLister) (*Workspace, *lifecycle.Tracker) {
	tracker := lifecycle.NewTracker(nil)
	return New(lister, tracker, nil), tracker
}

func mustFetch(t *testing.T, w *Workspace) {
	t.Helper()
	if err := w.FetchProjects(context.Background()); err != nil {
		t.Fatalf("FetchProjects() error: %v", err)
	}
}

func TestFetchProjectsPreservesIdentity(t *testing.T) {
	lister := &fakeLister{result: []*project.Snapshot{snapshot("alpha", session("s1", "first"))}}
	w, _ := newTestWorkspace(lister)
	mustFetch(t, w)
	held := w.Projects()[0]

	// Refresh with identical data: held object survives.
	lister.result = []*project.Snapshot{snapshot("alpha", session("s1", "first"))}
	mustFetch(t, w)
	if w.Projects()[0] != held {
		t.Error("refresh replaced an unchanged project object")
	}

	// Refresh with changed data: object replaced.
	lister.result = []*project.Snapshot{snapshot("alpha", session("s1", "renamed"))}
	mustFetch(t, w)
	if w.Projects()[0] == held {
		t.Error("refresh kept a stale object for changed data")
	}
}

func TestFetchProjectsError(t *testing.T) {
	w, _ := newTestWorkspace(&fakeLister{err: context.DeadlineExceeded})
	err := w.FetchProjects(context.Background())
	if err == nil || !strings.Contains(err.Error(), "project fetch failed") {
		t.Fatalf("FetchProjects() = %v", err)
	}
}

func TestSelectProjectAutoSelectsMostRecent(t *testing.T) {
	lister := &fakeLister{result: []*project.Snapshot{
		snapshot("alpha", session("s2", "newer"), session("s1", "older")),
		snapshot("beta"),
	}}
	w, _ := newTestWorkspace(lister)
	mustFetch(t, w)

	if err := w.SelectProject("alpha"); err != nil {
		t.Fatalf("SelectProject() error: %v", err)
	}
	p, s := w.Selection()
	if p.Name != "alpha" || s == nil || s.ID != "s2" {
		t.Errorf("Selection() = %v, %v", p, s)
	}

	// A project without sessions selects no session.
	if err := w.SelectProject("beta"); err != nil {
		t.Fatalf("SelectProject() error: %v", err)
	}
	if _, s := w.Selection(); s != nil {
		t.Errorf("empty project selected session %v", s)
	}

	if err := w.SelectProject("ghost"); err == nil {
		t.Error("SelectProject() accepted an unknown project")
	}
}

func TestSelectNewSession(t *testing.T) {
	w, _ := newTestWorkspace(&fakeLister{})
	if err := w.SelectNewSession(); !errors.Is(err, errors.ErrNoProjectSelected) {
		t.Fatalf("SelectNewSession() = %v, want ErrNoProjectSelected", err)
	}

	lister := &fakeLister{result: []*project.Snapshot{snapshot("alpha", session("s1", "first"))}}
	w, _ = newTestWorkspace(lister)
	mustFetch(t, w)
	w.SelectProject("alpha")

	if err := w.SelectNewSession(); err != nil {
		t.Fatalf("SelectNewSession() error: %v", err)
	}
	p, s := w.Selection()
	if p == nil || s != nil {
		t.Errorf("Selection() = %v, %v; want project kept, session cleared", p, s)
	}
}

func TestSelectSessionByID(t *testing.T) {
	lister := &fakeLister{result: []*project.Snapshot{
		snapshot("alpha", session("s1", "first")),
		snapshot("beta", session("s2", "second")),
	}}
	w, _ := newTestWorkspace(lister)
	mustFetch(t, w)

	if err := w.SelectSessionByID("s2"); err != nil {
		t.Fatalf("SelectSessionByID() error: %v", err)
	}
	p, s := w.Selection()
	if p.Name != "beta" || s.ID != "s2" {
		t.Errorf("Selection() = %v, %v", p, s)
	}

	if err := w.SelectSessionByID("ghost"); err == nil {
		t.Error("SelectSessionByID() accepted an unknown session")
	}
}

func TestProtectedPushDiscarded(t *testing.T) {
	lister := &fakeLister{result: []*project.Snapshot{snapshot("alpha", session("s1", "first"))}}
	w, _ := newTestWorkspace(lister)
	mustFetch(t, w)
	w.SelectProject("alpha")
	w.OnSessionActive("s1")

	w.HandleEvent(event.ProjectsUpdated{
		Projects: []*project.Snapshot{snapshot("alpha", session("s1", "clobbered"))},
	})
	if got := w.Projects()[0].Sessions[0].Title; got != "first" {
		t.Errorf("protected push applied: title = %q", got)
	}

	// Additive push still lands.
	w.HandleEvent(event.ProjectsUpdated{
		Projects: []*project.Snapshot{snapshot("alpha", session("s1", "first"), session("s2", "new"))},
	})
	if got := len(w.Projects()[0].Sessions); got != 2 {
		t.Errorf("additive push dropped: %d sessions", got)
	}

	// After release, the destructive push applies.
	w.OnSessionInactive("s1")
	w.HandleEvent(event.ProjectsUpdated{
		Projects: []*project.Snapshot{snapshot("alpha", session("s1", "clobbered"))},
	})
	if got := w.Projects()[0].Sessions[0].Title; got != "clobbered" {
		t.Errorf("unprotected push not applied: title = %q", got)
	}
}

func TestSessionCreatedPromotesSelection(t *testing.T) {
	lister := &fakeLister{result: []*project.Snapshot{snapshot("alpha", session("s1", "first"))}}
	w, tracker := newTestWorkspace(lister)
	mustFetch(t, w)
	w.SelectProject("alpha")
	w.SelectNewSession()

	tempID := NewTemporarySessionID()
	if !project.IsTemporaryID(tempID) {
		t.Fatalf("NewTemporarySessionID() = %q", tempID)
	}
	w.OnSessionActive(tempID)

	// Simulate the view tracking the placeholder as its selection.
	w.mu.Lock()
	w.selectedSession = &project.SessionSummary{ID: tempID}
	w.mu.Unlock()

	w.HandleEvent(event.SessionCreated{ProjectID: "alpha", SessionID: "real-1"})

	_, s := w.Selection()
	if s == nil || s.ID != "real-1" {
		t.Errorf("selection not promoted: %v", s)
	}
	if tracker.Contains(tempID) || !tracker.Contains("real-1") {
		t.Error("tracker protection not promoted")
	}
}

func TestOnReplaceTemporarySession(t *testing.T) {
	lister := &fakeLister{result: []*project.Snapshot{snapshot("alpha", session("s1", "first"))}}
	w, tracker := newTestWorkspace(lister)
	mustFetch(t, w)
	w.SelectProject("alpha")

	tempID := NewTemporarySessionID()
	w.OnSessionActive(tempID)
	w.mu.Lock()
	w.selectedSession = &project.SessionSummary{ID: tempID}
	w.mu.Unlock()

	w.OnReplaceTemporarySession(tempID, "real-9")

	if tracker.Contains(tempID) || !tracker.Contains("real-9") {
		t.Error("protection did not move to the real ID")
	}
	_, s := w.Selection()
	if s == nil || s.ID != "real-9" {
		t.Errorf("selection not rewritten: %v", s)
	}
}

func TestLifecycleEventsReachTracker(t *testing.T) {
	lister := &fakeLister{result: []*project.Snapshot{snapshot("alpha", session("s1", "first"))}}
	w, tracker := newTestWorkspace(lister)
	mustFetch(t, w)

	w.HandleEvent(event.StatusUpdate{
		ProjectID: "alpha",
		SessionID: "s1",
		Status:    event.Status{Text: "Thinking", Tokens: 12},
	})
	s, ok := tracker.StatusFor("alpha")
	if !ok || s.StatusText != "Thinking" || s.Tokens != 12 {
		t.Errorf("status event not applied: %+v", s)
	}

	w.HandleEvent(event.SessionEnded{ProjectID: "alpha"})
	s, _ = tracker.StatusFor("alpha")
	if s.Active {
		t.Error("ended event left the record active")
	}
}

func TestDeleteSession(t *testing.T) {
	lister := &fakeLister{result: []*project.Snapshot{
		snapshot("alpha", session("s1", "first"), session("s2", "second")),
	}}
	w, _ := newTestWorkspace(lister)
	mustFetch(t, w)
	w.SelectProject("alpha") // selects s1

	if err := w.DeleteSession("alpha", "s1"); err != nil {
		t.Fatalf("DeleteSession() error: %v", err)
	}
	p, s := w.Selection()
	if s != nil {
		t.Errorf("deleted session still selected: %v", s)
	}
	if p.FindSession("s1") != nil {
		t.Error("session survived delete")
	}
	if p.SessionMeta.Total != 1 {
		t.Errorf("session count = %d, want 1", p.SessionMeta.Total)
	}

	if err := w.DeleteSession("alpha", "ghost"); !errors.Is(err, errors.ErrSessionNotFound) {
		t.Errorf("DeleteSession(ghost) = %v", err)
	}
	if err := w.DeleteSession("ghost", "s2"); err == nil {
		t.Error("DeleteSession() accepted an unknown project")
	}
}

func TestDeleteSessionCountFloorsAtZero(t *testing.T) {
	p := snapshot("alpha", session("s1", "first"))
	p.SessionMeta.Total = 0 // count already drifted below the session list
	lister := &fakeLister{result: []*project.Snapshot{p}}
	w, _ := newTestWorkspace(lister)
	mustFetch(t, w)

	if err := w.DeleteSession("alpha", "s1"); err != nil {
		t.Fatalf("DeleteSession() error: %v", err)
	}
	if got := w.Projects()[0].SessionMeta.Total; got != 0 {
		t.Errorf("session count = %d, want 0", got)
	}
}

func TestDeleteProject(t *testing.T) {
	lister := &fakeLister{result: []*project.Snapshot{
		snapshot("alpha", session("s1", "first")),
		snapshot("beta"),
	}}
	w, _ := newTestWorkspace(lister)
	mustFetch(t, w)
	w.SelectProject("alpha")

	if err := w.DeleteProject("alpha"); err != nil {
		t.Fatalf("DeleteProject() error: %v", err)
	}
	p, s := w.Selection()
	if p != nil || s != nil {
		t.Errorf("deleted project still selected: %v, %v", p, s)
	}
	if got := w.Projects(); len(got) != 1 || got[0].Name != "beta" {
		t.Errorf("Projects() = %v", got)
	}

	if err := w.DeleteProject("ghost"); err == nil {
		t.Error("DeleteProject() accepted an unknown project")
	}
}
