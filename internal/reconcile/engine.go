// Package reconcile decides what to do with background project-snapshot
// pushes while a conversation may be in flight. A naive full replacement on
// every push would reset local view state and race with the user's own
// deletes and renames; full suppression during activity would hide new
// sessions and projects until the conversation ended. The engine splits the
// difference: updates that only add data are applied, updates that touch the
// session the user is looking at are discarded wholesale.
package reconcile

import (
	"github.com/Iron-Ham/cockpit/internal/logging"
	"github.com/Iron-Ham/cockpit/internal/project"
)

// Decision classifies an incoming snapshot push.
type Decision int

const (
	// Discard rejects the incoming snapshot entirely; held state is unchanged.
	Discard Decision = iota
	// ApplyFull applies the incoming snapshot wholesale.
	ApplyFull
	// ApplyAdditive applies the incoming snapshot; the selected session's
	// descriptive fields are known to be untouched, so selection survives.
	ApplyAdditive
)

// String returns a short name for the decision, used in logs.
func (d Decision) String() string {
	switch d {
	case Discard:
		return "discard"
	case ApplyFull:
		return "apply-full"
	case ApplyAdditive:
		return "apply-additive"
	default:
		return "unknown"
	}
}

// ProtectedSet is the view of the lifecycle tracker the engine needs:
// membership of a concrete session ID, and whether any temporary placeholder
// ID is currently protected (which covers the gap between "message sent" and
// "real id assigned").
type ProtectedSet interface {
	Contains(sessionID string) bool
	HasTemporary() bool
}

// State is the held view the engine reconciles against.
type State struct {
	Projects        []*project.Snapshot
	SelectedProject *project.Snapshot
	SelectedSession *project.SessionSummary
}

// Result is the reconciled view. When the decision is Discard, the held state
// is returned unchanged. SessionCleared is set when a server-confirmed
// deletion removed the selected session - the one change allowed even under
// protection.
type Result struct {
	Decision        Decision
	Projects        []*project.Snapshot
	SelectedProject *project.Snapshot
	SelectedSession *project.SessionSummary
	SessionCleared  bool
}

// Engine classifies and applies incoming snapshot pushes.
type Engine struct {
	protected ProtectedSet
	logger    *logging.Logger
}

// NewEngine creates an Engine over the given protected-session view.
func NewEngine(protected ProtectedSet, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Engine{
		protected: protected,
		logger:    logger.WithComponent("reconciler"),
	}
}

// Reconcile classifies the incoming snapshot list against the held state and
// returns the resulting view. The held state is never mutated.
func (e *Engine) Reconcile(state State, incoming []*project.Snapshot) Result {
	decision := e.Classify(state, incoming)

	if decision == Discard {
		e.logger.Debug("discarding snapshot push",
			"project", state.SelectedProject.Name,
			"session", state.SelectedSession.ID)
		return Result{
			Decision:        Discard,
			Projects:        state.Projects,
			SelectedProject: state.SelectedProject,
			SelectedSession: state.SelectedSession,
		}
	}

	return e.apply(decision, state, incoming)
}

// Apply runs the apply path directly with a caller-chosen decision,
// bypassing classification. User-initiated loads use it: an explicit refresh
// wins over the protection shield.
func (e *Engine) Apply(decision Decision, state State, incoming []*project.Snapshot) Result {
	if decision == Discard {
		return Result{
			Decision:        Discard,
			Projects:        state.Projects,
			SelectedProject: state.SelectedProject,
			SelectedSession: state.SelectedSession,
		}
	}
	return e.apply(decision, state, incoming)
}

// Classify decides whether the incoming snapshot list may be applied.
//
// With nothing selected there is nothing to protect. With a selection but no
// active protection, updates apply in full. Under protection the update must
// be additive: the selected project and session must both survive into the
// incoming set, and the selected session's descriptive fields must be
// untouched. Anything else is discarded wholesale - a missing project or
// session here means the push would silently clear the active view, and the
// explicit deletion path is the only one allowed to do that.
func (e *Engine) Classify(state State, incoming []*project.Snapshot) Decision {
	if state.SelectedProject == nil || state.SelectedSession == nil {
		return ApplyFull
	}

	hasProtection := e.protected.Contains(state.SelectedSession.ID) || e.protected.HasTemporary()
	if !hasProtection {
		return ApplyFull
	}

	held := project.FindByName(state.Projects, state.SelectedProject.Name)
	updated := project.FindByName(incoming, state.SelectedProject.Name)
	if held == nil || updated == nil {
		return Discard
	}

	heldSession := held.FindSession(state.SelectedSession.ID)
	updatedSession := updated.FindSession(state.SelectedSession.ID)
	if heldSession == nil || updatedSession == nil {
		return Discard
	}

	// Compare the descriptive fields (id, title, created_at, updated_at) the
	// loaded conversation view depends on. Any in-place modification of the
	// record the user is viewing is non-additive.
	if *heldSession != *updatedSession {
		return Discard
	}

	return ApplyAdditive
}

// apply replaces the held project list with the incoming one, preserving held
// object identity for projects whose data is unchanged, then re-resolves the
// selection against the new list.
func (e *Engine) apply(decision Decision, state State, incoming []*project.Snapshot) Result {
	merged := make([]*project.Snapshot, len(incoming))
	for i, p := range incoming {
		if held := project.FindByName(state.Projects, p.Name); held != nil && held.Equal(p) {
			merged[i] = held
		} else {
			merged[i] = p
		}
	}

	res := Result{
		Decision:        decision,
		Projects:        merged,
		SelectedProject: state.SelectedProject,
		SelectedSession: state.SelectedSession,
	}

	if state.SelectedProject == nil {
		return res
	}

	if refreshed := project.FindByName(merged, state.SelectedProject.Name); refreshed != nil {
		res.SelectedProject = refreshed

		if state.SelectedSession != nil && refreshed.FindSession(state.SelectedSession.ID) == nil {
			// Server-confirmed deletion of the selected session wins even
			// while the view is otherwise protected.
			res.SelectedSession = nil
			res.SessionCleared = true
			e.logger.Info("selected session removed by server",
				"project", refreshed.Name, "session", state.SelectedSession.ID)
		}
	}

	return res
}
