// Package workspace ties the engine together: it owns the project list and
// the current selection, folds event-channel messages through the
// reconciliation engine and the lifecycle tracker, and exposes the
// session-activity callbacks views call into.
package workspace

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Iron-Ham/cockpit/internal/errors"
	"github.com/Iron-Ham/cockpit/internal/event"
	"github.com/Iron-Ham/cockpit/internal/lifecycle"
	"github.com/Iron-Ham/cockpit/internal/logging"
	"github.com/Iron-Ham/cockpit/internal/project"
	"github.com/Iron-Ham/cockpit/internal/reconcile"
)

// ProjectLister is the slice of the API client the workspace needs.
type ProjectLister interface {
	Projects(ctx context.Context) ([]*project.Snapshot, error)
}

// Workspace holds the live view of projects and the current selection. All
// public operations run to completion under the workspace lock, so event
// handling and user actions never interleave mid-update.
type Workspace struct {
	mu      sync.Mutex
	client  ProjectLister
	tracker *lifecycle.Tracker
	engine  *reconcile.Engine
	logger  *logging.Logger

	projects        []*project.Snapshot
	selectedProject *project.Snapshot
	selectedSession *project.SessionSummary
}

// New creates a Workspace over the given collaborators. The engine is built
// on the tracker's protected set.
func New(client ProjectLister, tracker *lifecycle.Tracker, logger *logging.Logger) *Workspace {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Workspace{
		client:  client,
		tracker: tracker,
		engine:  reconcile.NewEngine(tracker, logger),
		logger:  logger.WithComponent("workspace"),
	}
}

// NewTemporarySessionID mints a placeholder session ID for a conversation
// the server has not yet acknowledged.
func NewTemporarySessionID() string {
	return project.TempSessionPrefix + uuid.NewString()
}

// FetchProjects loads (or reloads) the project list from the API. Unchanged
// projects keep their held objects; the current selection is re-resolved
// against the fresh list. User-initiated refresh bypasses snapshot
// protection - the explicit action wins over the shield.
func (w *Workspace) FetchProjects(ctx context.Context) error {
	incoming, err := w.client.Projects(ctx)
	if err != nil {
		return errors.Wrap(err, "project fetch failed")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.applyLocked(reconcile.ApplyFull, incoming)
	return nil
}

// applyLocked replaces the project list via the engine's apply path,
// preserving held identity and re-resolving the selection.
func (w *Workspace) applyLocked(decision reconcile.Decision, incoming []*project.Snapshot) {
	state := reconcile.State{
		Projects:        w.projects,
		SelectedProject: w.selectedProject,
		SelectedSession: w.selectedSession,
	}
	res := w.engine.Apply(decision, state, incoming)
	w.projects = res.Projects
	w.selectedProject = res.SelectedProject
	w.selectedSession = res.SelectedSession
}

// HandleEvent folds one event-channel message into the workspace. It is the
// channel's dispatch target and runs messages strictly in arrival order.
func (w *Workspace) HandleEvent(msg event.Message) {
	switch m := msg.(type) {
	case event.ProjectsUpdated:
		w.onProjectsUpdated(m.Projects)
	case event.SessionCreated:
		w.onSessionCreated(m)
	default:
		w.tracker.OnLifecycleEvent(msg)
	}
}

func (w *Workspace) onProjectsUpdated(incoming []*project.Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()

	state := reconcile.State{
		Projects:        w.projects,
		SelectedProject: w.selectedProject,
		SelectedSession: w.selectedSession,
	}
	res := w.engine.Reconcile(state, incoming)
	if res.Decision == reconcile.Discard {
		return
	}
	w.projects = res.Projects
	w.selectedProject = res.SelectedProject
	w.selectedSession = res.SelectedSession
}

// onSessionCreated promotes the tracker's placeholder and, when the created
// session belongs to the selected project while a placeholder is selected,
// rewrites the selection to the real ID.
func (w *Workspace) onSessionCreated(m event.SessionCreated) {
	w.tracker.OnLifecycleEvent(m)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.selectedProject == nil || w.selectedProject.Name != m.ProjectID {
		return
	}
	if w.selectedSession == nil || !project.IsTemporaryID(w.selectedSession.ID) {
		return
	}
	promoted := *w.selectedSession
	promoted.ID = m.SessionID
	w.selectedSession = &promoted
	w.logger.Debug("selection promoted to real session",
		"project", m.ProjectID, "session", m.SessionID)
}

// OnSessionActive shields the session from disruptive snapshot updates. The
// owning project is resolved by search; placeholder IDs fall back to the
// selected project.
func (w *Workspace) OnSessionActive(sessionID string) {
	w.tracker.MarkActive(w.projectNameFor(sessionID), sessionID)
}

// OnSessionInactive releases the session's shield.
func (w *Workspace) OnSessionInactive(sessionID string) {
	w.tracker.MarkInactive(w.projectNameFor(sessionID), sessionID)
}

// OnReplaceTemporarySession atomically swaps the placeholder for the real ID
// in both the tracker and the selection.
func (w *Workspace) OnReplaceTemporarySession(tempID, realID string) {
	w.tracker.ReplaceTemporary(w.projectNameFor(tempID), tempID, realID)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.selectedSession != nil && w.selectedSession.ID == tempID {
		promoted := *w.selectedSession
		promoted.ID = realID
		w.selectedSession = &promoted
	}
}

func (w *Workspace) projectNameFor(sessionID string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range w.projects {
		if p.FindSession(sessionID) != nil {
			return p.Name
		}
	}
	if w.selectedProject != nil {
		return w.selectedProject.Name
	}
	return sessionID
}

// SelectProject makes the named project current and auto-selects its most
// recent session when one exists.
func (w *Workspace) SelectProject(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	p := project.FindByName(w.projects, name)
	if p == nil {
		return errors.NewNotFoundError("project", name)
	}
	w.selectedProject = p
	w.selectedSession = p.MostRecentSession()
	return nil
}

// SelectNewSession keeps the current project and clears the session
// selection, the state a fresh conversation starts from.
func (w *Workspace) SelectNewSession() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.selectedProject == nil {
		return errors.ErrNoProjectSelected
	}
	w.selectedSession = nil
	return nil
}

// SelectSessionByID finds the session across every project and selects both
// it and its owning project.
func (w *Workspace) SelectSessionByID(sessionID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, p := range w.projects {
		if s := p.FindSession(sessionID); s != nil {
			w.selectedProject = p
			w.selectedSession = s
			return nil
		}
	}
	return errors.NewNotFoundError("session", sessionID)
}

// DeleteSession removes the session from the held snapshot after a
// client-initiated delete: the owning project gets a rebuilt session list,
// its session count floors at zero, and a selection targeting the deleted
// session is cleared.
func (w *Workspace) DeleteSession(projectName, sessionID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	held := project.FindByName(w.projects, projectName)
	if held == nil {
		return errors.NewNotFoundError("project", projectName)
	}
	if held.FindSession(sessionID) == nil {
		return errors.ErrSessionNotFound
	}

	replaced := held.WithoutSession(sessionID)
	for i, p := range w.projects {
		if p == held {
			w.projects[i] = replaced
		}
	}
	if w.selectedProject == held {
		w.selectedProject = replaced
	}
	if w.selectedSession != nil && w.selectedSession.ID == sessionID {
		w.selectedSession = nil
	}
	return nil
}

// DeleteProject removes the project from the held list after a
// client-initiated delete, clearing the selection when it pointed there.
func (w *Workspace) DeleteProject(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	held := project.FindByName(w.projects, name)
	if held == nil {
		return errors.NewNotFoundError("project", name)
	}

	kept := make([]*project.Snapshot, 0, len(w.projects)-1)
	for _, p := range w.projects {
		if p != held {
			kept = append(kept, p)
		}
	}
	w.projects = kept

	if w.selectedProject == held {
		w.selectedProject = nil
		w.selectedSession = nil
	}
	return nil
}

// Projects returns the held project list. The slice is a copy; the
// snapshots themselves are shared and treated as immutable.
func (w *Workspace) Projects() []*project.Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*project.Snapshot, len(w.projects))
	copy(out, w.projects)
	return out
}

// Selection returns the currently selected project and session, either of
// which may be nil.
func (w *Workspace) Selection() (*project.Snapshot, *project.SessionSummary) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selectedProject, w.selectedSession
}
