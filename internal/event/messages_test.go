package event

import (
	"encoding/json"
	"testing"
)

func TestNormalizeStatus(t *testing.T) {
	boolPtr := func(b bool) *bool { return &b }

	tests := []struct {
		name   string
		raw    string
		want   Status
		wantOK bool
	}{
		{
			name:   "object with tokens",
			raw:    `{"text":"Thinking...","tokens":42}`,
			want:   Status{Text: "Thinking...", Tokens: 42},
			wantOK: true,
		},
		{
			name:   "object with legacy token_count",
			raw:    `{"text":"Working","token_count":7}`,
			want:   Status{Text: "Working", Tokens: 7},
			wantOK: true,
		},
		{
			name:   "tokens wins over token_count",
			raw:    `{"text":"x","tokens":3,"token_count":9}`,
			want:   Status{Text: "x", Tokens: 3},
			wantOK: true,
		},
		{
			name:   "bare string payload",
			raw:    `"Starting..."`,
			want:   Status{Text: "Starting..."},
			wantOK: true,
		},
		{
			name:   "interrupt flag carried through",
			raw:    `{"text":"busy","tokens":1,"can_interrupt":true}`,
			want:   Status{Text: "busy", Tokens: 1, CanInterrupt: boolPtr(true)},
			wantOK: true,
		},
		{
			name:   "negative tokens clamped",
			raw:    `{"text":"odd","tokens":-5}`,
			want:   Status{Text: "odd", Tokens: 0},
			wantOK: true,
		},
		{
			name:   "empty payload rejected",
			raw:    ``,
			wantOK: false,
		},
		{
			name:   "array payload rejected",
			raw:    `[1,2,3]`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeStatus(json.RawMessage(tt.raw))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got.Text != tt.want.Text || got.Tokens != tt.want.Tokens {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
			if (got.CanInterrupt == nil) != (tt.want.CanInterrupt == nil) {
				t.Errorf("CanInterrupt presence mismatch: got %v, want %v", got.CanInterrupt, tt.want.CanInterrupt)
			}
			if got.CanInterrupt != nil && tt.want.CanInterrupt != nil && *got.CanInterrupt != *tt.want.CanInterrupt {
				t.Errorf("CanInterrupt = %v, want %v", *got.CanInterrupt, *tt.want.CanInterrupt)
			}
		})
	}
}

func TestDecodeMessage_ProjectsUpdated(t *testing.T) {
	data := []byte(`{"type":"projects_updated","projects":[{"name":"alpha","displayName":"Alpha","sessions":[{"id":"s1","title":"One"}]}]}`)

	msg := decodeMessage(data)
	updated, ok := msg.(ProjectsUpdated)
	if !ok {
		t.Fatalf("expected ProjectsUpdated, got %T", msg)
	}
	if len(updated.Projects) != 1 || updated.Projects[0].Name != "alpha" {
		t.Errorf("unexpected projects payload: %+v", updated.Projects)
	}
	if updated.Projects[0].Sessions[0].ID != "s1" {
		t.Errorf("unexpected session payload: %+v", updated.Projects[0].Sessions)
	}
}

func TestDecodeMessage_SessionCreated(t *testing.T) {
	msg := decodeMessage([]byte(`{"type":"session-created","projectId":"alpha","sessionId":"real-1"}`))
	created, ok := msg.(SessionCreated)
	if !ok {
		t.Fatalf("expected SessionCreated, got %T", msg)
	}
	if created.ProjectID != "alpha" || created.SessionID != "real-1" {
		t.Errorf("unexpected fields: %+v", created)
	}
}

func TestDecodeMessage_SessionCreatedMissingFields(t *testing.T) {
	if msg := decodeMessage([]byte(`{"type":"session-created","projectId":"alpha"}`)); msg != nil {
		t.Errorf("session-created without sessionId should be dropped, got %T", msg)
	}
}

func TestDecodeMessage_StatusUpdate(t *testing.T) {
	msg := decodeMessage([]byte(`{"type":"claude-status","projectId":"alpha","sessionId":"s1","data":{"text":"Working","token_count":12}}`))
	status, ok := msg.(StatusUpdate)
	if !ok {
		t.Fatalf("expected StatusUpdate, got %T", msg)
	}
	if status.Status.Text != "Working" || status.Status.Tokens != 12 {
		t.Errorf("unexpected status: %+v", status.Status)
	}
}

func TestDecodeMessage_EndedVariants(t *testing.T) {
	complete := decodeMessage([]byte(`{"type":"claude-complete","projectId":"alpha"}`))
	ended, ok := complete.(SessionEnded)
	if !ok {
		t.Fatalf("expected SessionEnded, got %T", complete)
	}
	if ended.Aborted {
		t.Error("claude-complete should not be marked aborted")
	}

	aborted := decodeMessage([]byte(`{"type":"session-aborted","projectId":"alpha"}`))
	ended, ok = aborted.(SessionEnded)
	if !ok {
		t.Fatalf("expected SessionEnded, got %T", aborted)
	}
	if !ended.Aborted {
		t.Error("session-aborted should be marked aborted")
	}
}

func TestDecodeMessage_UnknownAndMalformed(t *testing.T) {
	if msg := decodeMessage([]byte(`{"type":"totally-new-thing"}`)); msg != nil {
		t.Errorf("unknown types should be ignored, got %T", msg)
	}
	if msg := decodeMessage([]byte(`{not json`)); msg != nil {
		t.Errorf("malformed frames should be dropped, got %T", msg)
	}
}
