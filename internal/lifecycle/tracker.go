// Package lifecycle tracks which sessions are mid-conversation and mirrors
// per-project activity status for the whole workspace. The protected-session
// set gates snapshot reconciliation; the status table feeds the monitor view.
package lifecycle

import (
	"sync"
	"time"

	"github.com/Iron-Ham/cockpit/internal/event"
	"github.com/Iron-Ham/cockpit/internal/logging"
	"github.com/Iron-Ham/cockpit/internal/project"
)

// DefaultStatusExpiry is how long a completed conversation's status record
// lingers before auto-removal.
const DefaultStatusExpiry = 30 * time.Second

// startingStatus seeds a status record the moment a message is sent, before
// the server reports anything.
const startingStatus = "Starting..."

// Status is one project's activity record.
type Status struct {
	ProjectName  string
	SessionID    string
	StatusText   string
	Tokens       int
	CanInterrupt bool
	Active       bool
	StartTime    time.Time
	EndTime      time.Time
}

// Tracker owns the protected-session set and the per-project status table.
// All methods are safe for concurrent use; each runs to completion under the
// tracker's lock, so observers never see a half-applied transition.
type Tracker struct {
	mu        sync.Mutex
	protected map[string]bool
	statuses  map[string]*Status // keyed by project name
	expiries  map[string]*time.Timer
	expiry    time.Duration
	clock     func() time.Time
	logger    *logging.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithStatusExpiry overrides how long inactive status records linger.
func WithStatusExpiry(d time.Duration) Option {
	return func(t *Tracker) { t.expiry = d }
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(t *Tracker) { t.clock = clock }
}

// NewTracker creates an empty Tracker.
func NewTracker(logger *logging.Logger, opts ...Option) *Tracker {
	if logger == nil {
		logger = logging.NopLogger()
	}
	t := &Tracker{
		protected: make(map[string]bool),
		statuses:  make(map[string]*Status),
		expiries:  make(map[string]*time.Timer),
		expiry:    DefaultStatusExpiry,
		clock:     time.Now,
		logger:    logger.WithComponent("lifecycle"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// MarkActive adds the session to the protected set and seeds or refreshes
// the owning project's status record. Idempotent: re-marking an already
// active session refreshes the record without losing the start time.
func (t *Tracker) MarkActive(projectName, sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.protected[sessionID] = true
	t.cancelExpiryLocked(projectName)

	now := t.clock()
	if s, ok := t.statuses[projectName]; ok && s.SessionID == sessionID && s.Active {
		return
	}
	t.statuses[projectName] = &Status{
		ProjectName: projectName,
		SessionID:   sessionID,
		StatusText:  startingStatus,
		Tokens:      0,
		Active:      true,
		StartTime:   now,
	}
	t.logger.Debug("session active", "project", projectName, "session", sessionID)
}

// MarkInactive removes the session from the protected set unconditionally
// and, when the project's status record belongs to it, flips the record
// inactive and schedules its expiry.
func (t *Tracker) MarkInactive(projectName, sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.markInactiveLocked(projectName, sessionID)
}

func (t *Tracker) markInactiveLocked(projectName, sessionID string) {
	delete(t.protected, sessionID)

	s, ok := t.statuses[projectName]
	if !ok || s.SessionID != sessionID || !s.Active {
		return
	}
	s.Active = false
	s.EndTime = t.clock()
	t.scheduleExpiryLocked(projectName, s.SessionID)
	t.logger.Debug("session inactive", "project", projectName, "session", sessionID)
}

// ReplaceTemporary atomically swaps a temporary placeholder ID for the real
// session ID assigned by the server. Protection carries over with no window
// in which neither ID is protected.
func (t *Tracker) ReplaceTemporary(projectName, tempID, realID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.protected[tempID] {
		return
	}
	delete(t.protected, tempID)
	t.protected[realID] = true

	if s, ok := t.statuses[projectName]; ok && s.SessionID == tempID {
		s.SessionID = realID
	}
	t.logger.Debug("temporary session promoted",
		"project", projectName, "temp", tempID, "session", realID)
}

// Contains reports whether the session ID is currently protected.
func (t *Tracker) Contains(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.protected[sessionID]
}

// HasTemporary reports whether any temporary placeholder ID is protected.
func (t *Tracker) HasTemporary() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id := range t.protected {
		if project.IsTemporaryID(id) {
			return true
		}
	}
	return false
}

// StatusFor returns a copy of the project's status record, if one exists.
func (t *Tracker) StatusFor(projectName string) (Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.statuses[projectName]
	if !ok {
		return Status{}, false
	}
	return *s, true
}

// Statuses returns a copy of every current status record.
func (t *Tracker) Statuses() map[string]Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Status, len(t.statuses))
	for name, s := range t.statuses {
		out[name] = *s
	}
	return out
}

// OnLifecycleEvent folds a server event into the tracker. Session-created
// events promote the project's temporary placeholder to the assigned real ID
// (or seed protection when no placeholder exists); status updates upsert the
// project's record (creating one when the event races ahead of local
// activity); completion and abort events share the inactivation path.
func (t *Tracker) OnLifecycleEvent(msg event.Message) {
	switch m := msg.(type) {
	case event.SessionCreated:
		t.promoteOrActivate(m.ProjectID, m.SessionID)
	case event.StatusUpdate:
		t.applyStatusUpdate(m)
	case event.SessionEnded:
		t.EndProject(m.ProjectID)
	}
}

// EndProject inactivates whatever session currently owns the project's
// status record. Completion and abort events identify only the project, so
// the record tells us which session is ending.
func (t *Tracker) EndProject(projectName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.statuses[projectName]; ok {
		t.markInactiveLocked(projectName, s.SessionID)
	}
}

func (t *Tracker) promoteOrActivate(projectName, realID string) {
	t.mu.Lock()
	s, ok := t.statuses[projectName]
	if ok && project.IsTemporaryID(s.SessionID) && t.protected[s.SessionID] {
		delete(t.protected, s.SessionID)
		t.protected[realID] = true
		s.SessionID = realID
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	t.MarkActive(projectName, realID)
}

func (t *Tracker) applyStatusUpdate(m event.StatusUpdate) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.statuses[m.ProjectID]
	if !ok || s.SessionID != m.SessionID {
		// Status arrived before (or without) a local MarkActive. Create the
		// record so the monitor still shows the activity.
		s = &Status{
			ProjectName: m.ProjectID,
			SessionID:   m.SessionID,
			Active:      true,
			StartTime:   t.clock(),
		}
		t.statuses[m.ProjectID] = s
		t.cancelExpiryLocked(m.ProjectID)
	}

	if m.Status.Text != "" {
		s.StatusText = m.Status.Text
	}
	if m.Status.Tokens > 0 {
		s.Tokens = m.Status.Tokens
	}
	if m.Status.CanInterrupt != nil {
		s.CanInterrupt = *m.Status.CanInterrupt
	}
}

// scheduleExpiryLocked arms (or re-arms) the project's status-removal timer.
// The timer re-checks under the lock that the record is still the same
// inactive one before deleting, so a session restarted in the window wins.
func (t *Tracker) scheduleExpiryLocked(projectName, sessionID string) {
	t.cancelExpiryLocked(projectName)
	t.expiries[projectName] = time.AfterFunc(t.expiry, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.expiries, projectName)
		s, ok := t.statuses[projectName]
		if !ok || s.Active || s.SessionID != sessionID {
			return
		}
		delete(t.statuses, projectName)
	})
}

func (t *Tracker) cancelExpiryLocked(projectName string) {
	if timer, ok := t.expiries[projectName]; ok {
		timer.Stop()
		delete(t.expiries, projectName)
	}
}
