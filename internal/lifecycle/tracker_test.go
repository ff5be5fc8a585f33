package lifecycle

import (
	"testing"
	"time"

	"github.com/Iron-Ham/cockpit/internal/event"
	"github.com/Iron-Ham/cockpit/internal/project"
)

func TestMarkActiveProtectsSession(t *testing.T) {
	tr := NewTracker(nil)

	tr.MarkActive("alpha", "s1")
	if !tr.Contains("s1") {
		t.Error("s1 not protected after MarkActive")
	}

	s, ok := tr.StatusFor("alpha")
	if !ok {
		t.Fatal("no status record for alpha")
	}
	if !s.Active || s.SessionID != "s1" || s.StatusText != startingStatus || s.Tokens != 0 {
		t.Errorf("unexpected seeded status: %+v", s)
	}
}

func TestMarkActiveIdempotent(t *testing.T) {
	tr := NewTracker(nil)

	tr.MarkActive("alpha", "s1")
	first, _ := tr.StatusFor("alpha")

	tr.MarkActive("alpha", "s1")
	second, _ := tr.StatusFor("alpha")

	if !second.StartTime.Equal(first.StartTime) {
		t.Error("re-marking an active session reset its start time")
	}
	if !tr.Contains("s1") {
		t.Error("s1 lost protection")
	}
}

func TestMarkInactiveUnconditionalRemoval(t *testing.T) {
	tr := NewTracker(nil)

	// Inactive for a session that was never active: protected-set removal is
	// a no-op, no status record appears.
	tr.MarkInactive("alpha", "ghost")
	if _, ok := tr.StatusFor("alpha"); ok {
		t.Error("MarkInactive created a status record")
	}

	tr.MarkActive("alpha", "s1")
	tr.MarkInactive("alpha", "s1")
	if tr.Contains("s1") {
		t.Error("s1 still protected after MarkInactive")
	}
	s, ok := tr.StatusFor("alpha")
	if !ok {
		t.Fatal("status record removed immediately instead of lingering")
	}
	if s.Active || s.EndTime.IsZero() {
		t.Errorf("record not flipped inactive: %+v", s)
	}
}

func TestMarkInactiveMismatchedSessionKeepsRecord(t *testing.T) {
	tr := NewTracker(nil)

	tr.MarkActive("alpha", "s2")
	tr.MarkInactive("alpha", "s1")

	if tr.Contains("s1") {
		t.Error("s1 protected")
	}
	if !tr.Contains("s2") {
		t.Error("s2 lost protection")
	}
	s, _ := tr.StatusFor("alpha")
	if !s.Active {
		t.Error("another session's inactivation flipped alpha's record")
	}
}

func TestStatusExpiry(t *testing.T) {
	tr := NewTracker(nil, WithStatusExpiry(20*time.Millisecond))

	tr.MarkActive("alpha", "s1")
	tr.MarkInactive("alpha", "s1")

	if _, ok := tr.StatusFor("alpha"); !ok {
		t.Fatal("record expired before the timer fired")
	}

	deadline := time.Now().Add(time.Second)
	for {
		if _, ok := tr.StatusFor("alpha"); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("record never expired")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStatusExpiryCancelledByRestart(t *testing.T) {
	tr := NewTracker(nil, WithStatusExpiry(20*time.Millisecond))

	tr.MarkActive("alpha", "s1")
	tr.MarkInactive("alpha", "s1")
	tr.MarkActive("alpha", "s1")

	time.Sleep(60 * time.Millisecond)

	s, ok := tr.StatusFor("alpha")
	if !ok {
		t.Fatal("restart did not cancel the pending expiry")
	}
	if !s.Active {
		t.Errorf("record not active after restart: %+v", s)
	}
}

func TestReplaceTemporaryAtomic(t *testing.T) {
	tr := NewTracker(nil)
	tempID := project.TempSessionPrefix + "abc123"

	tr.MarkActive("alpha", tempID)
	if !tr.HasTemporary() {
		t.Fatal("temporary placeholder not reported")
	}

	tr.ReplaceTemporary("alpha", tempID, "real-1")

	if tr.Contains(tempID) {
		t.Error("temporary ID still protected")
	}
	if !tr.Contains("real-1") {
		t.Error("real ID not protected")
	}
	if tr.HasTemporary() {
		t.Error("HasTemporary still true after promotion")
	}
	s, _ := tr.StatusFor("alpha")
	if s.SessionID != "real-1" {
		t.Errorf("status record not rekeyed: %+v", s)
	}
}

func TestReplaceTemporaryUnprotectedNoop(t *testing.T) {
	tr := NewTracker(nil)

	tr.ReplaceTemporary("alpha", project.TempSessionPrefix+"gone", "real-1")
	if tr.Contains("real-1") {
		t.Error("promotion of an unprotected placeholder granted protection")
	}
}

func boolPtr(b bool) *bool { return &b }

func TestOnLifecycleEventStatusUpdate(t *testing.T) {
	tr := NewTracker(nil)
	tr.MarkActive("alpha", "s1")

	tr.OnLifecycleEvent(event.StatusUpdate{
		ProjectID: "alpha",
		SessionID: "s1",
		Status:    event.Status{Text: "Thinking", Tokens: 42, CanInterrupt: boolPtr(true)},
	})

	s, _ := tr.StatusFor("alpha")
	if s.StatusText != "Thinking" || s.Tokens != 42 || !s.CanInterrupt {
		t.Errorf("status update not applied: %+v", s)
	}

	// Partial update keeps prior fields.
	tr.OnLifecycleEvent(event.StatusUpdate{
		ProjectID: "alpha",
		SessionID: "s1",
		Status:    event.Status{Tokens: 50},
	})
	s, _ = tr.StatusFor("alpha")
	if s.StatusText != "Thinking" || s.Tokens != 50 || !s.CanInterrupt {
		t.Errorf("partial update clobbered fields: %+v", s)
	}
}

func TestOnLifecycleEventStatusUpdateCreatesRecord(t *testing.T) {
	tr := NewTracker(nil)

	tr.OnLifecycleEvent(event.StatusUpdate{
		ProjectID: "beta",
		SessionID: "s9",
		Status:    event.Status{Text: "Working", Tokens: 7},
	})

	s, ok := tr.StatusFor("beta")
	if !ok {
		t.Fatal("status update did not create a record")
	}
	if !s.Active || s.SessionID != "s9" || s.StatusText != "Working" {
		t.Errorf("unexpected record: %+v", s)
	}
}

func TestOnLifecycleEventSessionCreatedPromotesTemporary(t *testing.T) {
	tr := NewTracker(nil)
	tempID := project.TempSessionPrefix + "tok"
	tr.MarkActive("alpha", tempID)

	tr.OnLifecycleEvent(event.SessionCreated{ProjectID: "alpha", SessionID: "real-7"})

	if tr.Contains(tempID) || !tr.Contains("real-7") {
		t.Error("session-created did not promote the placeholder")
	}
	s, _ := tr.StatusFor("alpha")
	if s.SessionID != "real-7" {
		t.Errorf("status record not rekeyed: %+v", s)
	}
}

func TestOnLifecycleEventSessionEnded(t *testing.T) {
	tr := NewTracker(nil, WithStatusExpiry(time.Hour))
	tr.MarkActive("alpha", "s1")

	tr.OnLifecycleEvent(event.SessionEnded{ProjectID: "alpha", Aborted: true})

	if tr.Contains("s1") {
		t.Error("abort did not release protection")
	}
	s, _ := tr.StatusFor("alpha")
	if s.Active {
		t.Error("record still active after abort")
	}
}
